// Package worker consumes the task queue and drives jobs through the
// execution engine. Workers share nothing with the API process except the
// database, the queue, and the blob store.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openprep/prepflow/pkg/blob"
	"github.com/openprep/prepflow/pkg/db/models"
	"github.com/openprep/prepflow/pkg/engine"
	"github.com/openprep/prepflow/pkg/lifecycle"
	"github.com/openprep/prepflow/pkg/plog"
	"github.com/openprep/prepflow/pkg/queue"
)

// ArtifactStore is the slice of artifact persistence the worker needs.
type ArtifactStore interface {
	Insert(ctx context.Context, a *models.DataArtifact) error
	// Get returns (nil, nil) when the id does not exist.
	Get(ctx context.Context, id uuid.UUID) (*models.DataArtifact, error)
}

// WorkflowStore resolves workflow definitions for jobs created before step
// snapshots were recorded, or when the snapshot is missing.
type WorkflowStore interface {
	// Get returns (nil, nil) when the id does not exist.
	Get(ctx context.Context, id uuid.UUID) (*models.Workflow, error)
}

// Options tune worker behavior. Zero values fall back to defaults.
type Options struct {
	// PollTimeout bounds each blocking dequeue.
	PollTimeout time.Duration

	// MaxJobRuntime bounds a single job run; exceeding it fails the job
	// with a timeout error.
	MaxJobRuntime time.Duration

	// CancelCheckInterval is how often a running job re-reads its status
	// to observe cancellation requested through the API.
	CancelCheckInterval time.Duration

	// InputLoadAttempts bounds retries when fetching the input artifact
	// from the blob store.
	InputLoadAttempts int

	// InputLoadBackoff is the pause between input load attempts.
	InputLoadBackoff time.Duration
}

func (o *Options) withDefaults() {
	if o.PollTimeout <= 0 {
		o.PollTimeout = 5 * time.Second
	}
	if o.MaxJobRuntime <= 0 {
		o.MaxJobRuntime = 10 * time.Minute
	}
	if o.CancelCheckInterval <= 0 {
		o.CancelCheckInterval = time.Second
	}
	if o.InputLoadAttempts <= 0 {
		o.InputLoadAttempts = 3
	}
	if o.InputLoadBackoff <= 0 {
		o.InputLoadBackoff = 500 * time.Millisecond
	}
}

const resultFilename = "result.dat"

// Worker pulls job ids off the queue and executes them one at a time.
type Worker struct {
	manager   *lifecycle.Manager
	artifacts ArtifactStore
	workflows WorkflowStore
	blobs     blob.Store
	consumer  queue.Consumer
	opts      Options
	logger    *plog.Logger
}

func New(manager *lifecycle.Manager, artifacts ArtifactStore, workflows WorkflowStore, blobs blob.Store, consumer queue.Consumer, opts Options, logger *plog.Logger) *Worker {
	opts.withDefaults()
	if logger == nil {
		logger = plog.NewDefault()
	}
	return &Worker{
		manager:   manager,
		artifacts: artifacts,
		workflows: workflows,
		blobs:     blobs,
		consumer:  consumer,
		opts:      opts,
		logger:    logger,
	}
}

// Run consumes the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "poll_timeout", w.opts.PollTimeout)

	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("worker stopping")
			return nil
		}

		raw, err := w.consumer.Dequeue(ctx, w.opts.PollTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) || errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Warn("dequeue failed", "error", err)
			continue
		}

		id, err := uuid.Parse(raw)
		if err != nil {
			w.logger.Warn("discarding malformed job id", "raw", raw)
			continue
		}

		w.Process(ctx, id)
	}
}

// Process executes one job end to end. Every outcome is recorded on the job
// itself, so Process never returns an error to the loop.
func (w *Worker) Process(ctx context.Context, id uuid.UUID) {
	job, err := w.manager.Start(ctx, id)
	if err != nil {
		// Lost the pickup race or the job was cancelled while queued.
		w.logger.Info("skipping job", "job_id", id, "reason", err)
		return
	}
	w.logger.Info("job started", "job_id", id)

	runCtx, cancel := context.WithTimeout(ctx, w.opts.MaxJobRuntime)
	defer cancel()
	stopWatch := w.watchCancellation(runCtx, cancel, id)
	defer stopWatch()

	logs := []string{"job picked up"}

	input, err := w.loadInput(runCtx, job)
	if err != nil {
		w.fail(ctx, id, err, logs)
		return
	}
	if job.InputDataID != nil {
		logs = append(logs, fmt.Sprintf("loaded input artifact %s (%d bytes)", job.InputDataID, len(input)))
	}

	steps, err := w.resolveSteps(runCtx, job)
	if err != nil {
		w.fail(ctx, id, err, logs)
		return
	}

	it := engine.New(w.globalConfig(job))
	output := input
	var stepResults []engine.StepResult

	for i, step := range steps {
		out, results, err := it.Run(runCtx, []engine.Step{step}, output)
		stepResults = append(stepResults, results...)
		if err != nil {
			logs = append(logs, fmt.Sprintf("step %d/%d (%s) failed: %v", i+1, len(steps), step.Type, err))
			w.fail(ctx, id, err, logs)
			return
		}
		output = out
		logs = append(logs, fmt.Sprintf("step %d/%d (%s) completed", i+1, len(steps), step.Type))

		percent := (i + 1) * 100 / len(steps)
		if err := w.manager.RecordProgress(runCtx, id, percent); err != nil {
			if errors.Is(err, lifecycle.ErrInvalidTransition) {
				// The job left the running state, which only
				// cancellation can cause mid-run.
				w.logger.Info("job cancelled mid-run", "job_id", id)
				return
			}
			w.fail(ctx, id, err, logs)
			return
		}
	}

	resultID, err := w.saveResult(ctx, output)
	if err != nil {
		w.fail(ctx, id, fmt.Errorf("failed to persist result: %w", err), logs)
		return
	}
	logs = append(logs, fmt.Sprintf("result artifact %s written", resultID))

	metadata := jobMetadata(job)
	metadata[lifecycle.MetaStepResults] = stepResults
	metadata[lifecycle.MetaContext] = it.ContextSnapshot()

	if _, err := w.manager.Complete(ctx, id, &resultID, metadata, logs); err != nil {
		// Cancel won the race; the terminal state already committed stands.
		w.logger.Info("completion superseded", "job_id", id, "reason", err)
	}
}

// watchCancellation polls the job status so an API-side cancel interrupts
// the run between engine operations. The returned func stops the watcher.
func (w *Worker) watchCancellation(ctx context.Context, cancel context.CancelFunc, id uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(w.opts.CancelCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			job, err := w.manager.Get(ctx, id)
			if err != nil {
				continue
			}
			if job.Status == models.JobStatusCancelled {
				cancel()
				return
			}
		}
	}()
	return func() { close(done) }
}

// loadInput fetches the job's input artifact bytes, retrying transient
// storage failures. Jobs without an input artifact run on empty input.
func (w *Worker) loadInput(ctx context.Context, job *models.Job) ([]byte, error) {
	if job.InputDataID == nil {
		return nil, nil
	}

	artifact, err := w.artifacts.Get(ctx, *job.InputDataID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up input artifact: %w", err)
	}
	if artifact == nil {
		return nil, fmt.Errorf("%w: input artifact %s", blob.ErrNotFound, job.InputDataID)
	}

	key := blob.ArtifactKey(artifact.ID.String(), artifact.Filename)
	var lastErr error
	for attempt := 0; attempt < w.opts.InputLoadAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(w.opts.InputLoadBackoff):
			}
		}
		data, err := w.blobs.Load(ctx, key)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if errors.Is(err, blob.ErrNotFound) {
			break
		}
	}
	return nil, fmt.Errorf("failed to load input artifact: %w", lastErr)
}

// resolveSteps prefers the snapshot taken at creation time, falling back to
// the current workflow definition for records that predate snapshots.
func (w *Worker) resolveSteps(ctx context.Context, job *models.Job) ([]engine.Step, error) {
	if raw, ok := job.Metadata[lifecycle.MetaSteps]; ok {
		steps, err := decodeSteps(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad step snapshot: %v", lifecycle.ErrValidation, err)
		}
		if len(steps) > 0 {
			return steps, nil
		}
	}

	if job.WorkflowID != nil {
		wf, err := w.workflows.Get(ctx, *job.WorkflowID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up workflow: %w", err)
		}
		if wf == nil {
			return nil, fmt.Errorf("%w: workflow %s no longer exists", lifecycle.ErrValidation, job.WorkflowID)
		}
		if len(wf.Steps) > 0 {
			return wf.Steps, nil
		}
	}

	return nil, fmt.Errorf("%w: job has no steps to execute", lifecycle.ErrValidation)
}

// decodeSteps converts the metadata snapshot back into typed steps. The
// value is []engine.Step when written in-process and generic JSON after a
// database round trip.
func decodeSteps(raw any) ([]engine.Step, error) {
	if steps, ok := raw.([]engine.Step); ok {
		return steps, nil
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var steps []engine.Step
	if err := json.Unmarshal(buf, &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

func (w *Worker) globalConfig(job *models.Job) map[string]any {
	params, ok := job.Metadata[lifecycle.MetaParameters].(map[string]any)
	if !ok {
		return nil
	}
	return params
}

func (w *Worker) saveResult(ctx context.Context, output []byte) (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, err
	}

	key := blob.ResultKey(id.String(), resultFilename)
	if _, err := w.blobs.Save(ctx, key, bytes.NewReader(output)); err != nil {
		return uuid.Nil, err
	}

	artifact := &models.DataArtifact{
		ID:          id,
		Filename:    resultFilename,
		StoragePath: key,
		SizeBytes:   int64(len(output)),
		ContentType: "application/octet-stream",
		Metadata:    map[string]any{"kind": "result"},
		CreatedAt:   time.Now().UTC(),
	}
	if err := w.artifacts.Insert(ctx, artifact); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (w *Worker) fail(ctx context.Context, id uuid.UUID, runErr error, logs []string) {
	kind := classify(runErr)
	if kind == lifecycle.ErrorKindCancelled {
		// Cancel already moved the job to its terminal state.
		w.logger.Info("job run aborted by cancel", "job_id", id)
		return
	}

	if _, err := w.manager.Fail(ctx, id, runErr.Error(), kind, nil, logs); err != nil {
		w.logger.Warn("failed to record job failure", "job_id", id, "error", err)
	}
}

// classify maps a run error onto the error kind taxonomy recorded in job
// metadata.
func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return lifecycle.ErrorKindTimeout
	case errors.Is(err, context.Canceled):
		return lifecycle.ErrorKindCancelled
	case errors.Is(err, engine.ErrValidationFailed),
		errors.Is(err, engine.ErrUnknownStepType),
		errors.Is(err, lifecycle.ErrValidation):
		return lifecycle.ErrorKindValidation
	case errors.Is(err, blob.ErrNotFound):
		return lifecycle.ErrorKindStorage
	default:
		return lifecycle.ErrorKindExecution
	}
}

// jobMetadata copies the job's metadata map so completion writes never
// mutate the snapshot read at pickup.
func jobMetadata(job *models.Job) map[string]any {
	out := make(map[string]any, len(job.Metadata)+2)
	for k, v := range job.Metadata {
		out[k] = v
	}
	return out
}
