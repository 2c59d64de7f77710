package temporal

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// StartWorker creates and starts a Temporal worker.
func StartWorker(c client.Client, taskQueue string) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflow(IndexBuildWorkflow)
	w.RegisterActivity(FetchArchiveActivity)
	w.RegisterActivity(BuildIndexActivity)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}

// RunIndexBuild starts IndexBuildWorkflow on taskQueue and waits for its
// result.
func RunIndexBuild(ctx context.Context, c client.Client, taskQueue string, input IndexBuildInput) (*IndexBuildOutput, error) {
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("%s%d", WorkflowIDPrefix, time.Now().UnixNano()),
		TaskQueue: taskQueue,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, IndexBuildWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("starting index build: %w", err)
	}

	var out IndexBuildOutput
	if err := run.Get(ctx, &out); err != nil {
		return nil, fmt.Errorf("index build %s: %w", run.GetID(), err)
	}
	return &out, nil
}
