package metrics

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/efebarandurmaz/courtside/internal/vector"
)

func TestIndexRun_Summary(t *testing.T) {
	m := New("inputs", "bolt", "mistral-embed")
	m.CollectArchive("https://example.com/data.zip", 4)
	m.AddStep("fetch", 1200*time.Millisecond, nil)
	m.AddStep("load", 30*time.Millisecond, nil)
	m.CollectBuild(vector.BuildReport{Documents: 4, Chunks: 37, Batches: 2, Dimension: 1024})
	m.AddStep("build", 4*time.Second, nil)
	m.Finish()

	if !m.OK() {
		t.Fatalf("unexpected errors: %v", m.Errors)
	}

	var buf bytes.Buffer
	m.PrintSummary(&buf)
	out := buf.String()
	for _, want := range []string{"COURTSIDE INDEX REPORT", "Documents:   4", "Chunks:      37", "data.zip (4 files)", "build"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "ERRORS") {
		t.Error("summary shows an ERRORS section for a clean run")
	}
}

func TestIndexRun_Time(t *testing.T) {
	m := New("inputs", "memory", "m")

	if err := m.Time("load", func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("embedding provider down")
	if err := m.Time("build", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Time returned %v", err)
	}
	m.Finish()

	if m.OK() {
		t.Fatal("expected a failed run")
	}
	if len(m.Steps) != 2 || !m.Steps[0].OK || m.Steps[1].OK {
		t.Fatalf("steps = %+v", m.Steps)
	}
	if len(m.Errors) != 1 || !strings.HasPrefix(m.Errors[0], "build: ") {
		t.Fatalf("errors = %v", m.Errors)
	}

	var buf bytes.Buffer
	m.PrintSummary(&buf)
	if !strings.Contains(buf.String(), "FAILED") || !strings.Contains(buf.String(), "embedding provider down") {
		t.Errorf("summary does not show the failure:\n%s", buf.String())
	}
}

func TestIndexRun_JSON(t *testing.T) {
	m := New("inputs", "qdrant", "mistral-embed")
	m.AddStep("build", 2500*time.Millisecond, nil)
	m.CollectBuild(vector.BuildReport{Documents: 2, Chunks: 10, Batches: 1, Dimension: 8})
	m.Finish()
	m.Duration = 3 * time.Second

	data, err := m.JSON()
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["duration_ms"] != float64(3000) {
		t.Errorf("duration_ms = %v", got["duration_ms"])
	}
	if got["documents"] != float64(2) || got["chunks"] != float64(10) || got["store"] != "qdrant" {
		t.Errorf("json = %s", data)
	}
	steps, ok := got["steps"].([]any)
	if !ok || len(steps) != 1 {
		t.Fatalf("steps = %v", got["steps"])
	}
	if steps[0].(map[string]any)["duration_ms"] != float64(2500) {
		t.Errorf("step duration = %v", steps[0])
	}
	if _, ok := got["archive"]; ok {
		t.Error("archive should be omitted when no archive was fetched")
	}
}
