package temporal

import (
	"context"
	"errors"
	"net/http"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/efebarandurmaz/courtside/internal/ingest"
	"github.com/efebarandurmaz/courtside/internal/vector"
)

// BuildResult is the serializable result of BuildIndexActivity.
type BuildResult struct {
	Documents  int
	Chunks     int
	Batches    int
	Dimension  int
	DurationMS int64
}

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Loader     *ingest.Loader
	Index      *vector.Index
	HTTPClient *http.Client
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

var errNoDependencies = errors.New("temporal: activity dependencies not set")

// FetchArchiveActivity downloads input.DataURL and unpacks it into
// input.InputDir, returning the number of files written.
func FetchArchiveActivity(ctx context.Context, input IndexBuildInput) (int, error) {
	if deps == nil {
		return 0, temporal.NewNonRetryableApplicationError(errNoDependencies.Error(), "Config", errNoDependencies)
	}
	activity.GetLogger(ctx).Info("Fetching archive", "url", input.DataURL, "dir", input.InputDir)
	return ingest.FetchArchive(ctx, deps.HTTPClient, input.DataURL, input.InputDir)
}

// BuildIndexActivity loads every document under input.InputDir and rebuilds
// the index. An empty input directory is not retried.
func BuildIndexActivity(ctx context.Context, input IndexBuildInput) (BuildResult, error) {
	if deps == nil || deps.Loader == nil || deps.Index == nil {
		return BuildResult{}, temporal.NewNonRetryableApplicationError(errNoDependencies.Error(), "Config", errNoDependencies)
	}

	docs, err := deps.Loader.Load(ctx, input.InputDir)
	if err != nil {
		if errors.Is(err, ingest.ErrNoDocuments) {
			return BuildResult{}, temporal.NewNonRetryableApplicationError(err.Error(), "NoDocuments", err)
		}
		return BuildResult{}, err
	}
	activity.RecordHeartbeat(ctx, len(docs))

	report, err := deps.Index.Build(ctx, docs)
	if err != nil {
		return BuildResult{}, err
	}
	return BuildResult{
		Documents:  report.Documents,
		Chunks:     report.Chunks,
		Batches:    report.Batches,
		Dimension:  report.Dimension,
		DurationMS: report.Duration.Milliseconds(),
	}, nil
}
