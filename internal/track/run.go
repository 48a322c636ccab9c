package track

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

const (
	metricsFile = "metrics.jsonl"
	tablesDir   = "tables"
)

// Run writes metrics as JSON lines and tables as JSON files under a run
// directory, one directory per run. When an endpoint is configured, every
// payload is also POSTed to it; push failures are logged and do not stop
// training.
type Run struct {
	dir      string
	name     string
	endpoint string
	client   *http.Client
	metrics  *os.File
	enc      *json.Encoder
	logger   *log.Logger
}

type metricRecord struct {
	Run     string             `json:"run,omitempty"`
	Step    int                `json:"step"`
	Time    string             `json:"time"`
	Metrics map[string]float64 `json:"metrics"`
}

type tableRecord struct {
	Run     string     `json:"run,omitempty"`
	Key     string     `json:"key,omitempty"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NewRun creates a run directory named after the run name and start time and
// opens the metrics stream in it. An empty endpoint disables pushing.
func NewRun(baseDir, name, endpoint string, logger *log.Logger) (*Run, error) {
	stamp := time.Now().Format("20060102-150405")
	dir := filepath.Join(baseDir, fmt.Sprintf("%s-%s", name, stamp))
	if err := os.MkdirAll(filepath.Join(dir, tablesDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, metricsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics file: %w", err)
	}

	logger.Info("tracking run", "dir", dir, "endpoint", endpoint)
	return &Run{
		dir:      dir,
		name:     name,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		metrics:  f,
		enc:      json.NewEncoder(f),
		logger:   logger,
	}, nil
}

// push POSTs one JSON payload to the configured endpoint. Tracking must not
// take training down, so failures are only logged.
func (r *Run) push(payload any) {
	if r.endpoint == "" {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn("failed to encode tracking payload", "err", err)
		return
	}

	resp, err := r.client.Post(r.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		r.logger.Warn("failed to push to tracker", "endpoint", r.endpoint, "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		r.logger.Warn("tracker rejected payload", "endpoint", r.endpoint, "status", resp.StatusCode)
	}
}

// Dir returns the run directory.
func (r *Run) Dir() string {
	return r.dir
}

// LogMetrics appends one JSON line of scalars to the metrics stream and
// echoes it to the logger.
func (r *Run) LogMetrics(step int, metrics map[string]float64) error {
	rec := metricRecord{
		Step:    step,
		Time:    time.Now().Format(time.RFC3339),
		Metrics: metrics,
	}
	if err := r.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	rec.Run = r.name
	r.push(rec)

	kv := make([]any, 0, 2+2*len(metrics))
	kv = append(kv, "step", step)
	for k, v := range metrics {
		kv = append(kv, k, v)
	}
	r.logger.Info("metrics", kv...)
	return nil
}

// LogTable writes the table as a JSON file under tables/, overwriting any
// previous table with the same key.
func (r *Run) LogTable(key string, columns []string, rows [][]string) error {
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("table %q row %d has %d cells, want %d", key, i, len(row), len(columns))
		}
	}

	data, err := json.MarshalIndent(tableRecord{Columns: columns, Rows: rows}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode table %q: %w", key, err)
	}

	path := filepath.Join(r.dir, tablesDir, key+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write table %q: %w", key, err)
	}

	r.push(tableRecord{Run: r.name, Key: key, Columns: columns, Rows: rows})
	return nil
}

// Finish closes the metrics stream.
func (r *Run) Finish() error {
	if err := r.metrics.Close(); err != nil {
		return fmt.Errorf("failed to close metrics file: %w", err)
	}
	return nil
}
