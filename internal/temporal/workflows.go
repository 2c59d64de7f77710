package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// WorkflowIDPrefix prefixes the IDs of index build workflows.
const WorkflowIDPrefix = "courtside-index-"

// IndexBuildInput holds the workflow parameters.
type IndexBuildInput struct {
	InputDir string
	// DataURL, when set, names a zip archive unpacked into InputDir before
	// the build.
	DataURL string
}

// IndexBuildOutput holds the workflow result.
type IndexBuildOutput struct {
	ArchiveFiles int
	Documents    int
	Chunks       int
	Batches      int
	Dimension    int
	DurationMS   int64
}

// IndexBuildWorkflow fetches the optional archive, then rebuilds the index
// from InputDir. A failed build leaves the committed index untouched.
func IndexBuildWorkflow(ctx workflow.Context, input IndexBuildInput) (*IndexBuildOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	output := &IndexBuildOutput{}

	if input.DataURL != "" {
		if err := workflow.ExecuteActivity(ctx, FetchArchiveActivity, input).Get(ctx, &output.ArchiveFiles); err != nil {
			return nil, fmt.Errorf("fetch archive: %w", err)
		}
		logger.Info("Archive extracted", "files", output.ArchiveFiles)
	}

	var res BuildResult
	if err := workflow.ExecuteActivity(ctx, BuildIndexActivity, input).Get(ctx, &res); err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	output.Documents = res.Documents
	output.Chunks = res.Chunks
	output.Batches = res.Batches
	output.Dimension = res.Dimension
	output.DurationMS = res.DurationMS
	return output, nil
}
