// Package tracking persists evaluation runs to an external metrics store.
package tracking

import "context"

// Recorder stores one evaluation run: its name, the parameters it ran with,
// and the metrics it produced.
type Recorder interface {
	RecordRun(ctx context.Context, runName string, params map[string]string, metrics map[string]float64) error
}
