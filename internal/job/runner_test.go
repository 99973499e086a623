package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filealchemy/converter-service/internal/artifact"
	"github.com/filealchemy/converter-service/internal/convert"
)

// fakeConverter writes a marker output file, failing for any input whose
// name matches a configured substring
type fakeConverter struct {
	mu        sync.Mutex
	failOn    []string
	panicOn   []string
	converted []string
}

func (f *fakeConverter) Convert(ctx context.Context, inputPath, outputPath, inputExt string, opts convert.Options) error {
	for _, name := range f.panicOn {
		if strings.Contains(inputPath, name) {
			panic("converter blew up on " + name)
		}
	}
	for _, name := range f.failOn {
		if strings.Contains(inputPath, name) {
			return fmt.Errorf("forced failure for %s", name)
		}
	}

	f.mu.Lock()
	f.converted = append(f.converted, filepath.Base(inputPath))
	f.mu.Unlock()

	return os.WriteFile(outputPath, []byte("converted"), 0o644)
}

type runnerFixture struct {
	registry *Registry
	runner   *Runner
	store    *artifact.Store
}

func newRunnerFixture(t *testing.T, fake *fakeConverter) *runnerFixture {
	t.Helper()

	base := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := artifact.NewStore(&artifact.Config{
		UploadDir:    filepath.Join(base, "uploads"),
		ConvertedDir: filepath.Join(base, "converted"),
		Logger:       logger,
	})
	require.NoError(t, err)

	registry := NewRegistry()
	runner := NewRunner(&RunnerConfig{
		Logger:      logger,
		Registry:    registry,
		Store:       store,
		Converters:  fake,
		Concurrency: 2,
		QueueSize:   16,
	})

	ctx, cancel := context.WithCancel(context.Background())
	runner.Start(ctx)
	t.Cleanup(func() {
		runner.Stop()
		cancel()
	})

	return &runnerFixture{registry: registry, runner: runner, store: store}
}

// stageFiles writes real upload files so the runner has inputs to point at
func (f *runnerFixture) stageFiles(t *testing.T, names ...string) []InputFile {
	t.Helper()

	inputs := make([]InputFile, len(names))
	for i, name := range names {
		art, err := f.store.Store(artifact.CategoryUpload, name, strings.NewReader("content of "+name))
		require.NoError(t, err)
		inputs[i] = InputFile{
			OriginalName: art.DisplayName,
			StoredPath:   art.Path,
			SizeBytes:    art.SizeBytes,
		}
	}
	return inputs
}

func (f *runnerFixture) waitTerminal(t *testing.T, jobID string) Job {
	t.Helper()

	var final Job
	require.Eventually(t, func() bool {
		got, err := f.registry.Get(jobID)
		if err != nil {
			return false
		}
		final = got
		return got.State.Terminal()
	}, 5*time.Second, 5*time.Millisecond)

	return final
}

func TestRunner_AllFilesSucceed(t *testing.T) {
	f := newRunnerFixture(t, &fakeConverter{})

	created := f.registry.Create(f.stageFiles(t, "a.txt", "b.txt", "c.txt"), "txt", "pdf")
	require.NoError(t, f.runner.Launch(created.ID))

	final := f.waitTerminal(t, created.ID)

	assert.Equal(t, StateCompleted, final.State)
	assert.Equal(t, 100, final.ProgressPercent)
	require.Len(t, final.Results, 3)

	for i, res := range final.Results {
		assert.True(t, res.Success, "result %d", i)
		assert.Empty(t, res.Error)
		assert.NotZero(t, res.SizeBytes)
		assert.True(t, strings.HasPrefix(res.DownloadReference, "/artifacts/"))
	}

	// Results stay in input order
	assert.Equal(t, "a.pdf", final.Results[0].ConvertedName)
	assert.Equal(t, "b.pdf", final.Results[1].ConvertedName)
	assert.Equal(t, "c.pdf", final.Results[2].ConvertedName)
}

func TestRunner_FailedFileDoesNotAbortBatch(t *testing.T) {
	f := newRunnerFixture(t, &fakeConverter{failOn: []string{"b.txt"}})

	created := f.registry.Create(f.stageFiles(t, "a.txt", "b.txt", "c.txt"), "txt", "pdf")
	require.NoError(t, f.runner.Launch(created.ID))

	final := f.waitTerminal(t, created.ID)

	// Per-file failure is recorded, the job itself still completes
	assert.Equal(t, StateCompleted, final.State)
	assert.Equal(t, 100, final.ProgressPercent)
	assert.Empty(t, final.ErrorMessage)
	require.Len(t, final.Results, 3)

	assert.True(t, final.Results[0].Success)
	assert.False(t, final.Results[1].Success)
	assert.True(t, final.Results[2].Success)

	assert.NotEmpty(t, final.Results[1].Error)
	assert.Empty(t, final.Results[1].DownloadReference)
}

func TestRunner_ExecutionFaultFailsJob(t *testing.T) {
	f := newRunnerFixture(t, &fakeConverter{panicOn: []string{"b.txt"}})

	created := f.registry.Create(f.stageFiles(t, "a.txt", "b.txt", "c.txt"), "txt", "pdf")
	require.NoError(t, f.runner.Launch(created.ID))

	final := f.waitTerminal(t, created.ID)

	assert.Equal(t, StateFailed, final.State)
	assert.Contains(t, final.ErrorMessage, "execution fault")
	// Partial results from before the fault are preserved
	require.Len(t, final.Results, 1)
	assert.True(t, final.Results[0].Success)
}

func TestRunner_ProgressIsMonotonic(t *testing.T) {
	f := newRunnerFixture(t, &fakeConverter{})

	created := f.registry.Create(f.stageFiles(t, "a.txt", "b.txt", "c.txt", "d.txt", "e.txt"), "txt", "pdf")
	require.NoError(t, f.runner.Launch(created.ID))

	last := -1
	require.Eventually(t, func() bool {
		got, err := f.registry.Get(created.ID)
		if err != nil {
			return false
		}

		assert.GreaterOrEqual(t, got.ProgressPercent, last)
		last = got.ProgressPercent

		// Finished percentage only shows together with the terminal state
		if got.State == StateProcessing {
			assert.Less(t, got.ProgressPercent, 100)
		}
		return got.State.Terminal()
	}, 5*time.Second, time.Millisecond)

	final := f.waitTerminal(t, created.ID)
	assert.Equal(t, 100, final.ProgressPercent)
}

func TestRunner_PDFToImageUsesZipContainer(t *testing.T) {
	f := newRunnerFixture(t, &fakeConverter{})

	created := f.registry.Create(f.stageFiles(t, "report.pdf"), "pdf", "png")
	require.NoError(t, f.runner.Launch(created.ID))

	final := f.waitTerminal(t, created.ID)

	require.Len(t, final.Results, 1)
	// Target format stays png, the physical container is a zip
	assert.Equal(t, "png", final.TargetFormat)
	assert.Equal(t, "report.zip", final.Results[0].ConvertedName)
}

func TestRunner_ConcurrentJobsDoNotCrossContaminate(t *testing.T) {
	f := newRunnerFixture(t, &fakeConverter{})

	const filesPerJob = 50

	namesA := make([]string, filesPerJob)
	namesB := make([]string, filesPerJob)
	for i := range namesA {
		namesA[i] = fmt.Sprintf("jobA-%02d.txt", i)
		namesB[i] = fmt.Sprintf("jobB-%02d.txt", i)
	}

	jobA := f.registry.Create(f.stageFiles(t, namesA...), "txt", "pdf")
	jobB := f.registry.Create(f.stageFiles(t, namesB...), "txt", "pdf")

	require.NoError(t, f.runner.Launch(jobA.ID))
	require.NoError(t, f.runner.Launch(jobB.ID))

	finalA := f.waitTerminal(t, jobA.ID)
	finalB := f.waitTerminal(t, jobB.ID)

	require.Len(t, finalA.Results, filesPerJob)
	require.Len(t, finalB.Results, filesPerJob)

	for i := 0; i < filesPerJob; i++ {
		assert.Equal(t, namesA[i], finalA.Results[i].OriginalName)
		assert.Equal(t, namesB[i], finalB.Results[i].OriginalName)
	}
}

func TestRunner_QueueFull(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	registry := NewRegistry()

	// Never started, so the queue only drains into its buffer
	runner := NewRunner(&RunnerConfig{
		Logger:      logger,
		Registry:    registry,
		Converters:  &fakeConverter{},
		Concurrency: 1,
		QueueSize:   1,
	})

	require.NoError(t, runner.Launch("first"))
	assert.ErrorIs(t, runner.Launch("second"), ErrQueueFull)
}
