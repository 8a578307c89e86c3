package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MLflowRecorder records runs against an MLflow tracking server through its
// REST API. Runs land in a single named experiment, created on first use.
type MLflowRecorder struct {
	baseURL    string
	experiment string
	client     *http.Client

	experimentID string
}

var _ Recorder = (*MLflowRecorder)(nil)

// NewMLflowRecorder creates a recorder for one tracking server and
// experiment name.
func NewMLflowRecorder(uri, experiment string) *MLflowRecorder {
	return &MLflowRecorder{
		baseURL:    strings.TrimRight(uri, "/"),
		experiment: experiment,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// RecordRun creates a finished run under the recorder's experiment and
// attaches the given params and metrics to it.
func (r *MLflowRecorder) RecordRun(ctx context.Context, runName string, params map[string]string, metrics map[string]float64) error {
	expID, err := r.resolveExperiment(ctx)
	if err != nil {
		return fmt.Errorf("resolve experiment %q: %w", r.experiment, err)
	}

	now := time.Now().UnixMilli()

	var created struct {
		Run struct {
			Info struct {
				RunID string `json:"run_id"`
			} `json:"info"`
		} `json:"run"`
	}
	err = r.post(ctx, "/api/2.0/mlflow/runs/create", map[string]any{
		"experiment_id": expID,
		"run_name":      runName,
		"start_time":    now,
	}, &created)
	if err != nil {
		return fmt.Errorf("create run %q: %w", runName, err)
	}
	runID := created.Run.Info.RunID

	batch := map[string]any{"run_id": runID}
	var paramEntries []map[string]any
	for k, v := range params {
		paramEntries = append(paramEntries, map[string]any{"key": k, "value": v})
	}
	var metricEntries []map[string]any
	for k, v := range metrics {
		metricEntries = append(metricEntries, map[string]any{"key": k, "value": v, "timestamp": now, "step": 0})
	}
	batch["params"] = paramEntries
	batch["metrics"] = metricEntries
	if err := r.post(ctx, "/api/2.0/mlflow/runs/log-batch", batch, nil); err != nil {
		return fmt.Errorf("log run %q: %w", runName, err)
	}

	err = r.post(ctx, "/api/2.0/mlflow/runs/update", map[string]any{
		"run_id":   runID,
		"status":   "FINISHED",
		"end_time": time.Now().UnixMilli(),
	}, nil)
	if err != nil {
		return fmt.Errorf("finish run %q: %w", runName, err)
	}
	return nil
}

// resolveExperiment looks up the experiment by name, creating it when
// absent. The id is cached for the recorder's lifetime.
func (r *MLflowRecorder) resolveExperiment(ctx context.Context) (string, error) {
	if r.experimentID != "" {
		return r.experimentID, nil
	}

	var got struct {
		Experiment struct {
			ExperimentID string `json:"experiment_id"`
		} `json:"experiment"`
	}
	path := "/api/2.0/mlflow/experiments/get-by-name?experiment_name=" + url.QueryEscape(r.experiment)
	err := r.get(ctx, path, &got)
	if err == nil && got.Experiment.ExperimentID != "" {
		r.experimentID = got.Experiment.ExperimentID
		return r.experimentID, nil
	}

	var created struct {
		ExperimentID string `json:"experiment_id"`
	}
	err = r.post(ctx, "/api/2.0/mlflow/experiments/create", map[string]any{"name": r.experiment}, &created)
	if err != nil {
		return "", err
	}
	r.experimentID = created.ExperimentID
	return r.experimentID, nil
}

func (r *MLflowRecorder) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return err
	}
	return r.do(req, out)
}

func (r *MLflowRecorder) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return r.do(req, out)
}

func (r *MLflowRecorder) do(req *http.Request, out any) error {
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("tracking server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
