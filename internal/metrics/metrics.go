// Package metrics collects the summary of an indexer run for the CLI.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/efebarandurmaz/courtside/internal/vector"
)

// IndexRun collects statistics for one indexer run.
type IndexRun struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitzero"`
	Duration   time.Duration `json:"duration_ms,omitempty"`
	InputDir   string        `json:"input_dir"`
	Store      string        `json:"store"`
	Model      string        `json:"model"`
	Archive    ArchiveStats  `json:"archive,omitzero"`
	Documents  int           `json:"documents"`
	Chunks     int           `json:"chunks"`
	Batches    int           `json:"batches"`
	Dimension  int           `json:"dimension"`
	Steps      []StepTiming  `json:"steps"`
	Errors     []string      `json:"errors,omitempty"`
}

// ArchiveStats describes an optional archive download.
type ArchiveStats struct {
	URL   string `json:"url,omitempty"`
	Files int    `json:"files,omitempty"`
}

// StepTiming records one phase of the run.
type StepTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ms"`
	OK       bool          `json:"ok"`
}

// New starts tracking a run.
func New(inputDir, store, model string) *IndexRun {
	return &IndexRun{
		StartedAt: time.Now(),
		InputDir:  inputDir,
		Store:     store,
		Model:     model,
		Steps:     []StepTiming{},
	}
}

// AddStep records a phase's timing and outcome. A non-nil err is also kept
// in Errors.
func (m *IndexRun) AddStep(name string, d time.Duration, err error) {
	m.Steps = append(m.Steps, StepTiming{Name: name, Duration: d, OK: err == nil})
	if err != nil {
		m.Errors = append(m.Errors, fmt.Sprintf("%s: %v", name, err))
	}
}

// Time runs fn as a named step.
func (m *IndexRun) Time(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.AddStep(name, time.Since(start), err)
	return err
}

// CollectArchive records the archive download.
func (m *IndexRun) CollectArchive(url string, files int) {
	m.Archive = ArchiveStats{URL: url, Files: files}
}

// CollectBuild copies the figures of a successful build.
func (m *IndexRun) CollectBuild(r vector.BuildReport) {
	m.Documents = r.Documents
	m.Chunks = r.Chunks
	m.Batches = r.Batches
	m.Dimension = r.Dimension
}

// Finish marks the run as complete.
func (m *IndexRun) Finish() {
	m.FinishedAt = time.Now()
	m.Duration = m.FinishedAt.Sub(m.StartedAt)
}

// OK reports whether every step succeeded.
func (m *IndexRun) OK() bool { return len(m.Errors) == 0 }

// PrintSummary writes a human-readable summary.
func (m *IndexRun) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║        COURTSIDE INDEX REPORT        ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Duration:    %-23s║\n", m.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "║ Store:       %-23s║\n", m.Store)
	fmt.Fprintf(w, "║ Model:       %-23s║\n", m.Model)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ INPUT (%s)\n", m.InputDir)
	if m.Archive.URL != "" {
		fmt.Fprintf(w, "║   Archive:     %s (%d files)\n", m.Archive.URL, m.Archive.Files)
	}
	fmt.Fprintf(w, "║   Documents:   %d\n", m.Documents)
	fmt.Fprintf(w, "║   Chunks:      %d\n", m.Chunks)
	fmt.Fprintf(w, "║   Batches:     %d\n", m.Batches)
	fmt.Fprintf(w, "║   Dimension:   %d\n", m.Dimension)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ STEPS\n")
	for _, s := range m.Steps {
		status := "OK"
		if !s.OK {
			status = "FAILED"
		}
		fmt.Fprintf(w, "║   %-14s %8s  %s\n", s.Name, s.Duration.Round(time.Millisecond), status)
	}
	if len(m.Errors) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ ERRORS\n")
		for _, e := range m.Errors {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the run as formatted JSON. Durations are in milliseconds.
func (m *IndexRun) JSON() ([]byte, error) {
	type step struct {
		Name     string `json:"name"`
		Duration int64  `json:"duration_ms"`
		OK       bool   `json:"ok"`
	}
	type alias IndexRun
	out := struct {
		*alias
		Duration int64  `json:"duration_ms"`
		Steps    []step `json:"steps"`
	}{alias: (*alias)(m), Duration: m.Duration.Milliseconds(), Steps: make([]step, 0, len(m.Steps))}
	for _, s := range m.Steps {
		out.Steps = append(out.Steps, step{Name: s.Name, Duration: s.Duration.Milliseconds(), OK: s.OK})
	}
	return json.MarshalIndent(out, "", "  ")
}
