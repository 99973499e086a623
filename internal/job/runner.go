package job

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"

	"github.com/filealchemy/converter-service/internal/artifact"
	"github.com/filealchemy/converter-service/internal/convert"
)

// ConverterService is the capability the runner needs from the converter
// registry. It never inspects why a conversion failed beyond the message.
type ConverterService interface {
	Convert(ctx context.Context, inputPath, outputPath, inputExt string, opts convert.Options) error
}

// RunnerConfig holds runner configuration
type RunnerConfig struct {
	Logger      *slog.Logger
	Registry    *Registry
	Store       *artifact.Store
	Converters  ConverterService
	Concurrency int
	QueueSize   int
}

// Runner executes jobs on a fixed pool of worker goroutines. A submitted
// job is claimed by exactly one worker, which processes the job's files in
// input order and is the sole writer of that job's record.
type Runner struct {
	logger      *slog.Logger
	registry    *Registry
	store       *artifact.Store
	converters  ConverterService
	concurrency int
	queue       chan string
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

// NewRunner creates a runner; call Start before launching jobs
func NewRunner(cfg *RunnerConfig) *Runner {
	return &Runner{
		logger:      cfg.Logger,
		registry:    cfg.Registry,
		store:       cfg.Store,
		converters:  cfg.Converters,
		concurrency: cfg.Concurrency,
		queue:       make(chan string, cfg.QueueSize),
		stopChan:    make(chan struct{}),
	}
}

// Start spawns the worker pool
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("Spawning job runner pool",
		slog.Int("concurrency", r.concurrency),
		slog.Int("queue_size", cap(r.queue)),
	)

	for i := 0; i < r.concurrency; i++ {
		r.wg.Add(1)
		go r.workerLoop(ctx, i)
	}
}

// Stop drains the pool and waits for in-flight jobs to finish
func (r *Runner) Stop() {
	close(r.stopChan)
	r.wg.Wait()
	r.logger.Info("Job runner stopped")
}

// Launch enqueues a job for asynchronous execution. The caller gets control
// back immediately; a full queue is reported as ErrQueueFull.
func (r *Runner) Launch(jobID string) error {
	select {
	case r.queue <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (r *Runner) workerLoop(ctx context.Context, workerNum int) {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		case jobID := <-r.queue:
			r.logger.Info("Worker picked up job",
				slog.Int("worker_num", workerNum),
				slog.String("job_id", jobID),
			)
			r.runJob(ctx, jobID)
		}
	}
}

// runJob drives one job through its state machine:
// pending -> processing -> completed, or -> failed on an execution fault.
// Per-file conversion failures are recorded in the results and never fail
// the job as a whole.
func (r *Runner) runJob(ctx context.Context, jobID string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Job execution fault",
				slog.String("job_id", jobID),
				slog.Any("panic", rec),
			)
			_ = r.registry.Transition(jobID, func(j *Job) {
				if j.State.Terminal() {
					return
				}
				j.State = StateFailed
				j.ErrorMessage = fmt.Sprintf("execution fault: %v", rec)
			})
		}
	}()

	current, err := r.registry.Get(jobID)
	if err != nil {
		r.logger.Warn("Job vanished before execution",
			slog.String("job_id", jobID),
		)
		return
	}

	if err := r.registry.Transition(jobID, func(j *Job) {
		j.State = StateProcessing
	}); err != nil {
		return
	}

	total := len(current.Files)
	for i, file := range current.Files {
		result := r.convertFile(ctx, &current, file)

		// Progress reaches 100 only together with the completed state,
		// so pollers never see a finished percentage on a running job.
		progress := int(math.Round(float64(i+1) / float64(total) * 100))
		if progress > 99 {
			progress = 99
		}

		if err := r.registry.Transition(jobID, func(j *Job) {
			j.Results = append(j.Results, result)
			j.ProgressPercent = progress
		}); err != nil {
			// Record evicted mid-flight; nothing left to report into
			return
		}
	}

	_ = r.registry.Transition(jobID, func(j *Job) {
		j.State = StateCompleted
		j.ProgressPercent = 100
	})

	r.logger.Info("Job completed",
		slog.String("job_id", jobID),
		slog.Int("files", total),
	)
}

// convertFile converts one input file and reports its outcome. The output
// artifact is keyed by job id plus converted name so batch outputs never
// collide across jobs.
func (r *Runner) convertFile(ctx context.Context, j *Job, file InputFile) FileResult {
	inputExt := convert.NormalizeFormat(filepath.Ext(file.OriginalName))
	target := j.TargetFormat

	// The physical container can differ from the target format (PDF pages
	// rendered to images ship as a ZIP); the two stay separate values.
	container := convert.ContainerExt(inputExt, target)

	stem := strings.TrimSuffix(file.OriginalName, filepath.Ext(file.OriginalName))
	convertedName := stem + "." + container
	key := j.ID + "_" + artifact.SanitizeName(convertedName)
	outputPath := r.store.Placeholder(artifact.CategoryConverted, key)

	err := r.converters.Convert(ctx, file.StoredPath, outputPath, inputExt, convert.Options{
		TargetFormat: target,
	})
	if err != nil {
		r.logger.Warn("File conversion failed",
			slog.String("job_id", j.ID),
			slog.String("file", file.OriginalName),
			slog.String("error", err.Error()),
		)
		return FileResult{
			OriginalName:  file.OriginalName,
			ConvertedName: convertedName,
			Error:         fmt.Sprintf("Failed to convert %s: %v", file.OriginalName, err),
		}
	}

	size, err := r.store.SizeOf(outputPath)
	if err != nil {
		return FileResult{
			OriginalName:  file.OriginalName,
			ConvertedName: convertedName,
			Error:         fmt.Sprintf("Failed to convert %s: output file missing", file.OriginalName),
		}
	}

	return FileResult{
		OriginalName:      file.OriginalName,
		ConvertedName:     convertedName,
		Success:           true,
		SizeBytes:         size,
		DownloadReference: "/artifacts/" + key,
	}
}
