package observability

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounterAndGauge(t *testing.T) {
	r := NewMetricsRegistry()
	c := r.NewCounter("c_total", "c", nil)
	c.Inc()
	c.Add(2.5)
	if c.Value() != 3.5 {
		t.Fatalf("counter = %v", c.Value())
	}

	g := r.NewGauge("g", "g", nil)
	g.Set(10)
	g.Add(-4)
	if g.Value() != 6 {
		t.Fatalf("gauge = %v", g.Value())
	}
}

func TestHistogram_CumulativeExport(t *testing.T) {
	r := NewMetricsRegistry()
	h := r.NewHistogram("lat_seconds", "latency", nil, []float64{1, 5})
	h.Observe(0.5)
	h.Observe(3)
	h.Observe(30)

	var buf bytes.Buffer
	r.WritePrometheus(&buf)
	out := buf.String()

	for _, want := range []string{
		`lat_seconds_bucket{le="1"} 1`,
		`lat_seconds_bucket{le="5"} 2`,
		`lat_seconds_bucket{le="+Inf"} 3`,
		`lat_seconds_sum 33.5`,
		`lat_seconds_count 3`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestWritePrometheus_LabelsSorted(t *testing.T) {
	r := NewMetricsRegistry()
	r.NewCounter("x_total", "x", map[string]string{"mode": "SQL", "app": "courtside"}).Inc()

	var buf bytes.Buffer
	r.WritePrometheus(&buf)
	if !strings.Contains(buf.String(), `x_total{app="courtside",mode="SQL"} 1`) {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestCourtsideMetrics_RecordRoute(t *testing.T) {
	m := NewCourtsideMetrics()
	m.RecordRoute("SQL", false, false, 10*time.Millisecond)
	m.RecordRoute("RAG", true, false, 10*time.Millisecond)
	m.RecordRoute("RAG", false, true, 10*time.Millisecond)

	if m.QuestionsTotal.Value() != 3 || m.RouteStructuredTotal.Value() != 1 || m.RouteRetrievalTotal.Value() != 2 {
		t.Fatal("unexpected route counters")
	}
	if m.AmbiguousClassifications.Value() != 1 || m.RouteFailuresTotal.Value() != 1 {
		t.Fatal("unexpected ambiguity/failure counters")
	}
	if m.RouteDuration.Count() != 3 {
		t.Fatalf("expected 3 observations, got %d", m.RouteDuration.Count())
	}
}

func TestCourtsideMetrics_RecordIndexBuild(t *testing.T) {
	m := NewCourtsideMetrics()
	m.RecordIndexBuild(time.Second, 42, nil)
	m.RecordIndexBuild(time.Second, 0, errors.New("embedding failed"))

	if m.IndexChunks.Value() != 42 {
		t.Fatalf("failed build must not overwrite chunk gauge, got %v", m.IndexChunks.Value())
	}
	if m.IndexBuildFailures.Value() != 1 || m.IndexBuildsTotal.Value() != 2 {
		t.Fatal("unexpected build counters")
	}
}

func TestHandler_ContentType(t *testing.T) {
	m := NewCourtsideMetrics()
	m.RecordLLMRequest(time.Millisecond, 12, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "courtside_llm_tokens_total 12") {
		t.Fatalf("missing token counter:\n%s", rec.Body.String())
	}
}

func TestMetrics_Singleton(t *testing.T) {
	if Metrics() != Metrics() {
		t.Fatal("expected same instance")
	}
}
