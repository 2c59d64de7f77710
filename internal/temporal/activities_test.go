package temporal

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/efebarandurmaz/courtside/internal/ingest"
	"github.com/efebarandurmaz/courtside/internal/vector"
)

// vowelEmbedder maps a text to its a/e/i/o/u counts.
type vowelEmbedder struct{}

func (vowelEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, s := range texts {
		v := make([]float32, 5)
		for _, r := range strings.ToLower(s) {
			if j := strings.IndexRune("aeiou", r); j >= 0 {
				v[j]++
			}
		}
		out[i] = v
	}
	return out, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func setupDeps(t *testing.T) *vector.Index {
	t.Helper()
	ix := vector.NewIndex(vowelEmbedder{}, vector.NewMemoryStore(), vector.WithModel("vowels"), vector.WithLogger(quietLogger()))
	SetDependencies(&Dependencies{
		Loader: ingest.NewLoader(quietLogger()),
		Index:  ix,
	})
	t.Cleanup(func() { SetDependencies(nil) })
	return ix
}

func archiveServer(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIndexBuildWorkflow_WithArchive(t *testing.T) {
	ix := setupDeps(t)
	srv := archiveServer(t, map[string]string{
		"reports/denver.txt": "Denver Nuggets won the title after a long season.",
		"reports/boston.md":  "Boston Celtics opened the playoffs at home.",
	})

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(IndexBuildWorkflow)
	env.RegisterActivity(FetchArchiveActivity)
	env.RegisterActivity(BuildIndexActivity)

	dir := t.TempDir()
	env.ExecuteWorkflow(IndexBuildWorkflow, IndexBuildInput{InputDir: dir, DataURL: srv.URL + "/data.zip"})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow failed: %v", err)
	}

	var out IndexBuildOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatal(err)
	}
	if out.ArchiveFiles != 2 || out.Documents != 2 || out.Chunks != 2 || out.Dimension != 5 {
		t.Fatalf("output = %+v", out)
	}
	if ix.Size() != 2 {
		t.Fatalf("index size = %d, want 2", ix.Size())
	}
	if _, err := os.Stat(filepath.Join(dir, "reports", "denver.txt")); err != nil {
		t.Fatalf("archive not extracted: %v", err)
	}
}

func TestIndexBuildWorkflow_LocalInputOnly(t *testing.T) {
	setupDeps(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("Jokic triple double"), 0o644); err != nil {
		t.Fatal(err)
	}

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(IndexBuildWorkflow)
	env.RegisterActivity(FetchArchiveActivity)
	env.RegisterActivity(BuildIndexActivity)

	env.ExecuteWorkflow(IndexBuildWorkflow, IndexBuildInput{InputDir: dir})
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow failed: %v", err)
	}
	var out IndexBuildOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatal(err)
	}
	if out.ArchiveFiles != 0 || out.Documents != 1 || out.Chunks != 1 {
		t.Fatalf("output = %+v", out)
	}
}

func TestIndexBuildWorkflow_EmptyInputIsNotRetried(t *testing.T) {
	ix := setupDeps(t)

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(IndexBuildWorkflow)
	env.RegisterActivity(FetchArchiveActivity)
	env.RegisterActivity(BuildIndexActivity)

	builds := 0
	env.SetOnActivityStartedListener(func(info *activity.Info, _ context.Context, _ converter.EncodedValues) {
		if info.ActivityType.Name == "BuildIndexActivity" {
			builds++
		}
	})

	env.ExecuteWorkflow(IndexBuildWorkflow, IndexBuildInput{InputDir: t.TempDir()})

	err := env.GetWorkflowError()
	if err == nil {
		t.Fatal("expected workflow error")
	}
	// The workflow wraps the activity failure, so look below the
	// activity error for the application error it carries.
	var actErr *temporal.ActivityError
	if !errors.As(err, &actErr) {
		t.Fatalf("expected an activity error, got %T: %v", err, err)
	}
	var appErr *temporal.ApplicationError
	if !errors.As(actErr.Unwrap(), &appErr) {
		t.Fatalf("expected an application error under %v", actErr)
	}
	if appErr.Type() != "NoDocuments" || !appErr.NonRetryable() {
		t.Fatalf("type = %q non-retryable = %v", appErr.Type(), appErr.NonRetryable())
	}
	if builds != 1 {
		t.Fatalf("build activity ran %d times, want 1", builds)
	}
	if ix.Size() != 0 {
		t.Fatal("failed workflow must not change the index")
	}
}

func TestBuildIndexActivity(t *testing.T) {
	ix := setupDeps(t)
	dir := t.TempDir()
	long := strings.Repeat("a", ingest.DefaultChunkSize+500)
	if err := os.WriteFile(filepath.Join(dir, "long.txt"), []byte(long), 0o644); err != nil {
		t.Fatal(err)
	}

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(BuildIndexActivity)

	val, err := env.ExecuteActivity(BuildIndexActivity, IndexBuildInput{InputDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	var res BuildResult
	if err := val.Get(&res); err != nil {
		t.Fatal(err)
	}
	if res.Documents != 1 || res.Chunks != 2 || res.Batches != 1 {
		t.Fatalf("result = %+v", res)
	}
	if ix.Stats().Model != "vowels" {
		t.Fatalf("model = %q", ix.Stats().Model)
	}
}

func TestActivitiesWithoutDependencies(t *testing.T) {
	SetDependencies(nil)

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(BuildIndexActivity)
	env.RegisterActivity(FetchArchiveActivity)

	if _, err := env.ExecuteActivity(BuildIndexActivity, IndexBuildInput{InputDir: t.TempDir()}); err == nil {
		t.Fatal("expected error without dependencies")
	}
	if _, err := env.ExecuteActivity(FetchArchiveActivity, IndexBuildInput{InputDir: t.TempDir(), DataURL: "http://127.0.0.1:1/x.zip"}); err == nil {
		t.Fatal("expected error without dependencies")
	}
}
