package observability

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MetricsRegistry holds all registered metrics.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram
}

// Counter is a monotonically increasing metric.
type Counter struct {
	name   string
	help   string
	labels map[string]string
	value  float64
	mu     sync.Mutex
}

// Gauge is a metric that can go up or down.
type Gauge struct {
	name   string
	help   string
	labels map[string]string
	value  float64
	mu     sync.Mutex
}

// Histogram tracks distribution of values.
type Histogram struct {
	name    string
	help    string
	labels  map[string]string
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
	mu      sync.Mutex
}

// NewMetricsRegistry creates a new metrics registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		histos:   make(map[string]*Histogram),
	}
}

// NewCounter creates and registers a counter.
func (r *MetricsRegistry) NewCounter(name, help string, labels map[string]string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &Counter{name: name, help: help, labels: labels}
	r.counters[name] = c
	return c
}

// NewGauge creates and registers a gauge.
func (r *MetricsRegistry) NewGauge(name, help string, labels map[string]string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := &Gauge{name: name, help: help, labels: labels}
	r.gauges[name] = g
	return g
}

// NewHistogram creates and registers a histogram. Nil buckets use
// DefaultBuckets.
func (r *MetricsRegistry) NewHistogram(name, help string, labels map[string]string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	if buckets == nil {
		buckets = DefaultBuckets()
	}
	h := &Histogram{
		name:    name,
		help:    help,
		labels:  labels,
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
	r.histos[name] = h
	return h
}

// DefaultBuckets are latency buckets in seconds sized for LLM round trips.
func DefaultBuckets() []float64 {
	return []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60}
}

// Inc increments a counter by 1.
func (c *Counter) Inc() { c.Add(1) }

// Add adds a value to the counter.
func (c *Counter) Add(v float64) {
	c.mu.Lock()
	c.value += v
	c.mu.Unlock()
}

// Value returns the counter value.
func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set sets the gauge value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

// Add adds a value to the gauge.
func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	g.value += v
	g.mu.Unlock()
}

// Value returns the gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Observe records a value in the histogram. counts are per bucket and
// made cumulative on export.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
			break
		}
	}
}

// ObserveDuration records time since start in seconds.
func (h *Histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Handler serves the Prometheus text exposition format.
func (r *MetricsRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WritePrometheus(w)
	})
}

// WritePrometheus writes every metric, sorted by name.
func (r *MetricsRegistry) WritePrometheus(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.counters) {
		c := r.counters[name]
		writeScalar(w, c.name, "counter", c.help, c.labels, c.Value())
	}
	for _, name := range sortedKeys(r.gauges) {
		g := r.gauges[name]
		writeScalar(w, g.name, "gauge", g.help, g.labels, g.Value())
	}
	for _, name := range sortedKeys(r.histos) {
		writeHistogram(w, r.histos[name])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeScalar(w io.Writer, name, kind, help string, labels map[string]string, v float64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
	fmt.Fprintf(w, "%s%s %s\n", name, formatLabels(labels), formatFloat(v))
}

func writeHistogram(w io.Writer, h *Histogram) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
	var cumulative uint64
	for i, bound := range h.buckets {
		cumulative += h.counts[i]
		fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, formatLabels(withLabel(h.labels, "le", formatFloat(bound))), cumulative)
	}
	fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, formatLabels(withLabel(h.labels, "le", "+Inf")), h.count)
	fmt.Fprintf(w, "%s_sum%s %s\n", h.name, formatLabels(h.labels), formatFloat(h.sum))
	fmt.Fprintf(w, "%s_count%s %d\n", h.name, formatLabels(h.labels), h.count)
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, k := range sortedKeys(labels) {
		parts = append(parts, k+"="+strconv.Quote(labels[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func withLabel(labels map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for lk, lv := range labels {
		out[lk] = lv
	}
	out[k] = v
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// CourtsideMetrics groups the application metrics.
type CourtsideMetrics struct {
	Registry *MetricsRegistry

	QuestionsTotal           *Counter
	RouteStructuredTotal     *Counter
	RouteRetrievalTotal      *Counter
	AmbiguousClassifications *Counter
	RouteFailuresTotal       *Counter
	RouteDuration            *Histogram

	RetrievalEmptyTotal *Counter
	SQLRejectedTotal    *Counter
	SQLExecErrorsTotal  *Counter

	LLMRequestsTotal   *Counter
	LLMRequestDuration *Histogram
	LLMTokensTotal     *Counter
	LLMErrorsTotal     *Counter

	IndexBuildsTotal   *Counter
	IndexBuildFailures *Counter
	IndexBuildDuration *Histogram
	IndexChunks        *Gauge
}

// NewCourtsideMetrics creates the application metrics on a fresh registry.
func NewCourtsideMetrics() *CourtsideMetrics {
	r := NewMetricsRegistry()
	return &CourtsideMetrics{
		Registry: r,

		QuestionsTotal:           r.NewCounter("courtside_questions_total", "Questions routed", nil),
		RouteStructuredTotal:     r.NewCounter("courtside_route_structured_total", "Questions dispatched to the SQL pipeline", nil),
		RouteRetrievalTotal:      r.NewCounter("courtside_route_retrieval_total", "Questions dispatched to the retrieval pipeline", nil),
		AmbiguousClassifications: r.NewCounter("courtside_classification_ambiguous_total", "Classifier outputs that fell back to retrieval", nil),
		RouteFailuresTotal:       r.NewCounter("courtside_route_failures_total", "Questions answered with the generic failure text", nil),
		RouteDuration:            r.NewHistogram("courtside_route_duration_seconds", "End-to-end question latency", nil, nil),

		RetrievalEmptyTotal: r.NewCounter("courtside_retrieval_empty_total", "Retrieval questions with no matching chunk", nil),
		SQLRejectedTotal:    r.NewCounter("courtside_sql_rejected_total", "Generated statements rejected by the safety gate", nil),
		SQLExecErrorsTotal:  r.NewCounter("courtside_sql_exec_errors_total", "Generated statements that failed to execute", nil),

		LLMRequestsTotal:   r.NewCounter("courtside_llm_requests_total", "LLM completion requests", nil),
		LLMRequestDuration: r.NewHistogram("courtside_llm_request_duration_seconds", "LLM request duration", nil, nil),
		LLMTokensTotal:     r.NewCounter("courtside_llm_tokens_total", "Tokens reported by the provider", nil),
		LLMErrorsTotal:     r.NewCounter("courtside_llm_errors_total", "Failed LLM requests", nil),

		IndexBuildsTotal:   r.NewCounter("courtside_index_builds_total", "Index builds attempted", nil),
		IndexBuildFailures: r.NewCounter("courtside_index_build_failures_total", "Index builds that committed nothing", nil),
		IndexBuildDuration: r.NewHistogram("courtside_index_build_duration_seconds", "Index build duration", nil, []float64{1, 5, 15, 30, 60, 120, 300, 600}),
		IndexChunks:        r.NewGauge("courtside_index_chunks", "Chunks in the loaded index", nil),
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *CourtsideMetrics) Handler() http.Handler {
	return m.Registry.Handler()
}

// RecordLLMRequest records one completion call.
func (m *CourtsideMetrics) RecordLLMRequest(duration time.Duration, tokens int, err error) {
	m.LLMRequestsTotal.Inc()
	m.LLMRequestDuration.Observe(duration.Seconds())
	m.LLMTokensTotal.Add(float64(tokens))
	if err != nil {
		m.LLMErrorsTotal.Inc()
	}
}

// RecordRoute records one routed question. decision is "SQL" or "RAG".
func (m *CourtsideMetrics) RecordRoute(decision string, ambiguous, failed bool, duration time.Duration) {
	m.QuestionsTotal.Inc()
	m.RouteDuration.Observe(duration.Seconds())
	switch decision {
	case "SQL":
		m.RouteStructuredTotal.Inc()
	case "RAG":
		m.RouteRetrievalTotal.Inc()
	}
	if ambiguous {
		m.AmbiguousClassifications.Inc()
	}
	if failed {
		m.RouteFailuresTotal.Inc()
	}
}

// RecordIndexBuild records a build attempt and, on success, the new size.
func (m *CourtsideMetrics) RecordIndexBuild(duration time.Duration, chunks int, err error) {
	m.IndexBuildsTotal.Inc()
	m.IndexBuildDuration.Observe(duration.Seconds())
	if err != nil {
		m.IndexBuildFailures.Inc()
		return
	}
	m.IndexChunks.Set(float64(chunks))
}

var (
	globalMetrics *CourtsideMetrics
	metricsOnce   sync.Once
)

// Metrics returns the process-wide metrics instance.
func Metrics() *CourtsideMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewCourtsideMetrics()
	})
	return globalMetrics
}
