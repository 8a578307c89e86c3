package eval

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yannistannier/ayd/internal/embeddings"
	"github.com/yannistannier/ayd/internal/llm"
	"github.com/yannistannier/ayd/internal/observability"
	"github.com/yannistannier/ayd/internal/prompts"
	"github.com/yannistannier/ayd/internal/rag"
	"github.com/yannistannier/ayd/internal/tracking"
	"github.com/yannistannier/ayd/pkg/models"
)

// EvaluationError wraps any failure inside the evaluation sequence, naming
// the step that failed.
type EvaluationError struct {
	Step string
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation step %s: %v", e.Step, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// RunConfig parameterizes one evaluation run.
type RunConfig struct {
	Workflow        string
	Collection      string
	Index           string
	GenerationModel string
	JudgeModel      string
	Precision       int

	// Params are extra key/values recorded alongside the run.
	Params map[string]string
}

// Config assembles an Orchestrator.
type Config struct {
	Client     llm.CompletionClient
	Embedder   embeddings.Provider
	Strategy   rag.Strategy
	Classifier Classifier
	Prompts    *prompts.Store
	Tracker    tracking.Recorder

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Orchestrator drives the seven-step evaluation sequence over one retrieval
// strategy and records the resulting metrics.
type Orchestrator struct {
	client     llm.CompletionClient
	embedder   embeddings.Provider
	strategy   rag.Strategy
	classifier Classifier
	prompts    *prompts.Store
	tracker    tracking.Recorder

	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewOrchestrator creates an evaluation orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("completion client is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("retrieval strategy is required")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("response classifier is required")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("prompt store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.LogConfig{Output: io.Discard})
	}

	return &Orchestrator{
		client:     cfg.Client,
		embedder:   cfg.Embedder,
		strategy:   cfg.Strategy,
		classifier: cfg.Classifier,
		prompts:    cfg.Prompts,
		tracker:    cfg.Tracker,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}, nil
}

// Run evaluates the strategy against a synthetic Q&A set built from the
// given sample chunks and returns the aggregated metrics. Every in-step
// failure surfaces as an EvaluationError naming the step.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig, samples []Sample) (*models.PipelineEvaluationMetrics, error) {
	start := time.Now()
	result, err := o.run(ctx, cfg, samples)
	if o.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		o.metrics.RecordEvaluationRun(cfg.Workflow, status, time.Since(start).Seconds())
	}
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, cfg RunConfig, samples []Sample) (*models.PipelineEvaluationMetrics, error) {
	if len(samples) == 0 {
		return nil, &EvaluationError{Step: "dataset", Err: fmt.Errorf("no sample chunks for index %q", cfg.Index)}
	}
	filters := map[string]string{"index": cfg.Index}

	examples, err := o.generateDataset(ctx, cfg, samples)
	if err != nil {
		return nil, &EvaluationError{Step: "dataset", Err: err}
	}
	o.logger.Info(ctx, "synthetic dataset generated", "questions", len(examples))

	retrievals, err := o.retrieveAll(ctx, examples, filters)
	if err != nil {
		return nil, &EvaluationError{Step: "retrieval", Err: err}
	}

	var hitScores []float64
	var relevance []bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hitScores = scoreHits(examples, retrievals)
		return nil
	})
	g.Go(func() error {
		var rerr error
		relevance, rerr = o.checkRelevance(gctx, cfg, examples, retrievals)
		return rerr
	})
	if err := g.Wait(); err != nil {
		return nil, &EvaluationError{Step: "retrieval scoring", Err: err}
	}
	o.logger.Info(ctx, "retrieval scored", "hit_rate", Mean(hitScores), "relevance_rate", Mean(boolScores(relevance)))

	responses, sources := o.generateResponses(ctx, examples, retrievals, filters)
	o.logger.Info(ctx, "responses generated", "count", len(responses))

	faithfulness, err := o.scoreFaithfulness(ctx, cfg, responses, sources, relevance)
	if err != nil {
		return nil, &EvaluationError{Step: "faithfulness", Err: err}
	}
	o.logger.Info(ctx, "faithfulness scored", "score", faithfulness)

	correctness, err := o.scoreCorrectness(ctx, cfg, examples, responses)
	if err != nil {
		return nil, &EvaluationError{Step: "correctness", Err: err}
	}
	o.logger.Info(ctx, "correctness scored", "score", correctness)

	result := &models.PipelineEvaluationMetrics{
		RetrievalScore:    (Mean(hitScores) + Mean(boolScores(relevance))) / 2,
		FaithfulnessScore: faithfulness,
		CorrectnessScore:  correctness,
		Workflow:          cfg.Workflow,
		Collection:        cfg.Collection,
	}

	if err := o.record(ctx, cfg, result); err != nil {
		return nil, &EvaluationError{Step: "recording", Err: err}
	}
	return result, nil
}

// generateDataset builds one synthetic (question, reference answer) pair per
// sample chunk in two batched completion calls.
func (o *Orchestrator) generateDataset(ctx context.Context, cfg RunConfig, samples []Sample) ([]models.EvalExample, error) {
	qTpl, err := o.prompts.Get("qa_generation", "question", cfg.GenerationModel)
	if err != nil {
		return nil, err
	}
	aTpl, err := o.prompts.Get("qa_generation", "answer", cfg.GenerationModel)
	if err != nil {
		return nil, err
	}

	qPrompts := make([]string, len(samples))
	for i, s := range samples {
		qPrompts[i] = qTpl.Render(map[string]string{"content": s.Text})
	}
	questions, err := o.client.Complete(ctx, cfg.GenerationModel, qPrompts, paramsOf(qTpl))
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	aPrompts := make([]string, len(samples))
	for i, s := range samples {
		aPrompts[i] = aTpl.Render(map[string]string{"content": s.Text, "question": questions[i]})
	}
	answers, err := o.client.Complete(ctx, cfg.GenerationModel, aPrompts, paramsOf(aTpl))
	if err != nil {
		return nil, fmt.Errorf("generate reference answers: %w", err)
	}

	examples := make([]models.EvalExample, len(samples))
	for i, s := range samples {
		examples[i] = models.EvalExample{
			ChunkID:         s.ChunkID,
			Question:        questions[i],
			ReferenceAnswer: answers[i],
		}
	}
	return examples, nil
}

func (o *Orchestrator) retrieveAll(ctx context.Context, examples []models.EvalExample, filters map[string]string) ([][]models.SearchResult, error) {
	retrievals := make([][]models.SearchResult, len(examples))
	for i, ex := range examples {
		results, err := o.strategy.Retrieve(ctx, ex.Question, filters)
		if err != nil {
			return nil, fmt.Errorf("retrieve for question %d: %w", i, err)
		}
		retrievals[i] = results
	}
	return retrievals, nil
}

// scoreHits marks each question 1 when its source chunk id came back in the
// retrieved set.
func scoreHits(examples []models.EvalExample, retrievals [][]models.SearchResult) []float64 {
	scores := make([]float64, len(examples))
	for i, ex := range examples {
		for _, r := range retrievals[i] {
			if r.ChunkID == ex.ChunkID {
				scores[i] = 1
				break
			}
		}
	}
	return scores
}

// checkRelevance asks the judge model, per question, whether the retrieved
// context contains the requested information. One batched completion call.
func (o *Orchestrator) checkRelevance(ctx context.Context, cfg RunConfig, examples []models.EvalExample, retrievals [][]models.SearchResult) ([]bool, error) {
	tpl, err := o.prompts.Get("retrieval_check", "eval", cfg.JudgeModel)
	if err != nil {
		return nil, err
	}

	judgePrompts := make([]string, len(examples))
	for i, ex := range examples {
		judgePrompts[i] = tpl.Render(map[string]string{
			"context_str": rag.JoinContext(retrievals[i]),
			"question":    ex.Question,
		})
	}
	outputs, err := o.client.Complete(ctx, cfg.JudgeModel, judgePrompts, paramsOf(tpl))
	if err != nil {
		return nil, fmt.Errorf("relevance check: %w", err)
	}

	verdicts := make([]bool, len(outputs))
	for i, out := range outputs {
		verdicts[i] = ParseVerdict(out)
	}
	return verdicts, nil
}

// generateResponses runs the strategy's query per question. A failed
// generation records its error text as the response instead of aborting the
// run.
func (o *Orchestrator) generateResponses(ctx context.Context, examples []models.EvalExample, retrievals [][]models.SearchResult, filters map[string]string) ([]string, [][]models.SearchResult) {
	responses := make([]string, len(examples))
	sources := make([][]models.SearchResult, len(examples))
	for i, ex := range examples {
		answer, err := o.strategy.Query(ctx, ex.Question, filters)
		if err != nil {
			o.logger.Warn(ctx, "generation failed for question", "question", i, "error", err)
			responses[i] = err.Error()
			sources[i] = retrievals[i]
			continue
		}
		responses[i] = answer.Text
		sources[i] = answer.Sources
	}
	return responses, sources
}

// scoreFaithfulness classifies responses into real answers (class 1) and
// declines (class 0). Class-1 responses are judged against their own
// retrieved context; a class-0 response counts as faithful exactly when the
// relevance check found the context lacking.
func (o *Orchestrator) scoreFaithfulness(ctx context.Context, cfg RunConfig, responses []string, sources [][]models.SearchResult, relevance []bool) (float64, error) {
	vectors, err := o.embedder.EmbedBatch(ctx, responses)
	if err != nil {
		return 0, fmt.Errorf("embed responses: %w", err)
	}
	labels := o.classifier.Predict(vectors)
	if len(labels) != len(responses) {
		return 0, fmt.Errorf("classifier returned %d labels for %d responses", len(labels), len(responses))
	}

	var judged []int
	for i, label := range labels {
		if label == 1 {
			judged = append(judged, i)
		}
	}

	verdicts := make(map[int]bool, len(judged))
	if len(judged) > 0 {
		tpl, err := o.prompts.Get("faithfulness", "eval", cfg.JudgeModel)
		if err != nil {
			return 0, err
		}
		judgePrompts := make([]string, len(judged))
		for j, i := range judged {
			judgePrompts[j] = tpl.Render(map[string]string{
				"context_str":      rag.JoinContext(sources[i]),
				"generated_answer": responses[i],
			})
		}
		outputs, err := o.client.Complete(ctx, cfg.JudgeModel, judgePrompts, paramsOf(tpl))
		if err != nil {
			return 0, fmt.Errorf("faithfulness judge: %w", err)
		}
		for j, i := range judged {
			verdicts[i] = ParseVerdict(outputs[j])
		}
	}

	scores := make([]float64, len(responses))
	for i, label := range labels {
		switch {
		case label == 1 && verdicts[i]:
			scores[i] = 1
		case label == 0 && !relevance[i]:
			// Declining is the right call when the context had nothing.
			scores[i] = 1
		}
	}
	return Mean(scores), nil
}

// scoreCorrectness grades each generated response against its reference
// answer on a 1-5 scale and normalizes the mean into [0, 1].
func (o *Orchestrator) scoreCorrectness(ctx context.Context, cfg RunConfig, examples []models.EvalExample, responses []string) (float64, error) {
	tpl, err := o.prompts.Get("correctness", "eval", cfg.JudgeModel)
	if err != nil {
		return 0, err
	}

	judgePrompts := make([]string, len(examples))
	for i, ex := range examples {
		judgePrompts[i] = tpl.Render(map[string]string{
			"question":         ex.Question,
			"reference_answer": ex.ReferenceAnswer,
			"generated_answer": responses[i],
		})
	}
	outputs, err := o.client.Complete(ctx, cfg.JudgeModel, judgePrompts, paramsOf(tpl))
	if err != nil {
		return 0, fmt.Errorf("correctness judge: %w", err)
	}

	grades := make([]int, 0, len(outputs))
	for _, out := range outputs {
		grades = append(grades, ParseGrade(out))
	}
	return MeanGrade(grades), nil
}

// record persists the run to the tracking store under a timestamped name.
func (o *Orchestrator) record(ctx context.Context, cfg RunConfig, result *models.PipelineEvaluationMetrics) error {
	if o.tracker == nil {
		return nil
	}

	runName := fmt.Sprintf("%s_%s_%d", cfg.Workflow, cfg.Index, time.Now().Unix())
	params := map[string]string{
		"workflow":         cfg.Workflow,
		"collection":       cfg.Collection,
		"index":            cfg.Index,
		"generation_model": cfg.GenerationModel,
		"judge_model":      cfg.JudgeModel,
		"precision":        fmt.Sprintf("%d", cfg.Precision),
	}
	for k, v := range cfg.Params {
		params[k] = v
	}
	metrics := map[string]float64{
		"retrieval_score":    result.RetrievalScore,
		"faithfulness_score": result.FaithfulnessScore,
		"correctness_score":  result.CorrectnessScore,
	}

	if err := o.tracker.RecordRun(ctx, runName, params, metrics); err != nil {
		return err
	}
	o.logger.Info(ctx, "evaluation run recorded", "run", runName)
	return nil
}

func paramsOf(tpl prompts.Template) llm.Params {
	return llm.Params{
		Temperature: tpl.Temperature,
		TopP:        tpl.TopP,
		MaxTokens:   tpl.MaxTokens,
	}
}
