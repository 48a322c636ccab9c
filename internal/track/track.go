// Package track records experiment metrics and qualitative samples for a
// training run.
package track

// Tracker receives scalar metrics and tabular samples during a run.
//
// Implementations must tolerate being called from a single training
// goroutine; they are not required to be safe for concurrent use.
type Tracker interface {
	// LogMetrics records scalar metrics at a global step.
	LogMetrics(step int, metrics map[string]float64) error

	// LogTable records a named table of rows, such as qualitative
	// image/caption samples.
	LogTable(key string, columns []string, rows [][]string) error

	// Finish flushes and releases the tracker.
	Finish() error
}

// Noop discards everything. It stands in when tracking is disabled.
type Noop struct{}

func (Noop) LogMetrics(int, map[string]float64) error    { return nil }
func (Noop) LogTable(string, []string, [][]string) error { return nil }
func (Noop) Finish() error                               { return nil }
