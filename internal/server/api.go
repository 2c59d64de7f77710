package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/efebarandurmaz/courtside/internal/answer"
	"github.com/efebarandurmaz/courtside/internal/observability"
	"github.com/efebarandurmaz/courtside/internal/vector"
)

// RequestIDHeader carries the caller's request ID. One is generated when
// absent and echoed back on the response.
const RequestIDHeader = "X-Request-ID"

// Asker answers a single question. router.Router satisfies it.
type Asker interface {
	RouteRequest(ctx context.Context, requestID, question string) answer.Response
}

// IndexStats reports the state of the vector index.
type IndexStats interface {
	Stats() vector.Stats
}

// RebuildFunc rebuilds the vector index from its configured input.
type RebuildFunc func(ctx context.Context) (vector.BuildReport, error)

// AskRequest is the body of POST /api/v1/ask.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// IndexResponse is the body of GET /api/v1/index.
type IndexResponse struct {
	Chunks    int       `json:"chunks"`
	Dimension int       `json:"dimension"`
	Model     string    `json:"model,omitempty"`
	BuiltAt   time.Time `json:"built_at,omitzero"`
}

// RebuildResponse is the body of POST /api/v1/index/rebuild.
type RebuildResponse struct {
	Documents  int   `json:"documents"`
	Chunks     int   `json:"chunks"`
	Batches    int   `json:"batches"`
	Dimension  int   `json:"dimension"`
	DurationMS int64 `json:"duration_ms"`
}

// API is the HTTP surface: question answering, index status, health probes
// and metrics on one gin engine.
type API struct {
	asker   Asker
	index   IndexStats
	health  *HealthServer
	rebuild RebuildFunc
	logger  *slog.Logger
	engine  *gin.Engine
	srv     *http.Server
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option { return func(a *API) { a.logger = l } }

// WithRebuild enables POST /api/v1/index/rebuild.
func WithRebuild(fn RebuildFunc) Option { return func(a *API) { a.rebuild = fn } }

// NewAPI builds the router. health may be nil, in which case a bare
// HealthServer with no checks is used.
func NewAPI(asker Asker, index IndexStats, health *HealthServer, opts ...Option) *API {
	if health == nil {
		health = NewHealthServer(nil)
	}
	a := &API{
		asker:  asker,
		index:  index,
		health: health,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), a.requestID(), a.logRequests(), cors())

	probes := gin.WrapH(health.Handler())
	for _, p := range HealthPaths {
		r.GET(p, probes)
	}
	r.GET("/metrics", gin.WrapH(observability.Metrics().Handler()))

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/ask", a.handleAsk)
		apiV1.GET("/index", a.handleIndex)
		if a.rebuild != nil {
			apiV1.POST("/index/rebuild", a.handleRebuild)
		}
	}

	a.engine = r
	return a
}

// Handler returns the gin engine as an http.Handler.
func (a *API) Handler() http.Handler { return a.engine }

// Health returns the health server behind the probe endpoints.
func (a *API) Health() *HealthServer { return a.health }

// ListenAndServe serves on addr until Shutdown. It returns nil after a
// graceful shutdown.
func (a *API) ListenAndServe(addr string) error {
	if addr == "" {
		addr = ":8080"
	}
	a.srv = &http.Server{
		Addr:              addr,
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Answers wait on two or three model calls.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	a.logger.Info("Starting API server", "addr", addr)
	a.health.SetReady(true)
	if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown marks the server not ready and drains in-flight requests.
func (a *API) Shutdown(ctx context.Context) error {
	a.health.SetReady(false)
	if a.srv == nil {
		return nil
	}
	return a.srv.Shutdown(ctx)
}

func (a *API) handleAsk(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	resp := a.asker.RouteRequest(c.Request.Context(), c.GetString("request_id"), req.Question)
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleIndex(c *gin.Context) {
	st := a.index.Stats()
	c.JSON(http.StatusOK, IndexResponse{
		Chunks:    st.Size,
		Dimension: st.Dimension,
		Model:     st.Model,
		BuiltAt:   st.BuiltAt,
	})
}

func (a *API) handleRebuild(c *gin.Context) {
	report, err := a.rebuild(c.Request.Context())
	if err != nil {
		a.logger.Error("Index rebuild failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, RebuildResponse{
		Documents:  report.Documents,
		Chunks:     report.Chunks,
		Batches:    report.Batches,
		Dimension:  report.Dimension,
		DurationMS: report.Duration.Milliseconds(),
	})
}

func (a *API) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (a *API) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString("request_id"),
		)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
