package worker_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprep/prepflow/pkg/blob"
	"github.com/openprep/prepflow/pkg/db/models"
	"github.com/openprep/prepflow/pkg/engine"
	"github.com/openprep/prepflow/pkg/lifecycle"
	"github.com/openprep/prepflow/pkg/lifecycle/lifecycletest"
	"github.com/openprep/prepflow/pkg/worker"
)

type memArtifacts struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.DataArtifact
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{rows: make(map[uuid.UUID]*models.DataArtifact)}
}

func (m *memArtifacts) Insert(ctx context.Context, a *models.DataArtifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.rows[a.ID] = &cp
	return nil
}

func (m *memArtifacts) Get(ctx context.Context, id uuid.UUID) (*models.DataArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

type memWorkflows struct {
	rows map[uuid.UUID]*models.Workflow
}

func (m *memWorkflows) Get(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	wf, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *wf
	return &cp, nil
}

type fixture struct {
	manager   *lifecycle.Manager
	artifacts *memArtifacts
	workflows *memWorkflows
	blobs     *blob.LocalStore
	queue     *lifecycletest.MemQueue
	worker    *worker.Worker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := lifecycletest.NewMemStore()
	q := lifecycletest.NewMemQueue()
	manager := lifecycle.NewManager(store, q, nil)

	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	artifacts := newMemArtifacts()
	workflows := &memWorkflows{rows: make(map[uuid.UUID]*models.Workflow)}

	w := worker.New(manager, artifacts, workflows, blobs, q, worker.Options{
		PollTimeout:         10 * time.Millisecond,
		CancelCheckInterval: 5 * time.Millisecond,
		InputLoadBackoff:    time.Millisecond,
	}, nil)

	return &fixture{
		manager:   manager,
		artifacts: artifacts,
		workflows: workflows,
		blobs:     blobs,
		queue:     q,
		worker:    w,
	}
}

// seedInput stores artifact bytes and the matching record, returning the id.
func (f *fixture) seedInput(t *testing.T, data []byte) uuid.UUID {
	t.Helper()
	id := uuid.New()
	key := blob.ArtifactKey(id.String(), "input.csv")
	_, err := f.blobs.Save(context.Background(), key, bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, f.artifacts.Insert(context.Background(), &models.DataArtifact{
		ID:          id,
		Filename:    "input.csv",
		StoragePath: key,
		SizeBytes:   int64(len(data)),
		CreatedAt:   time.Now().UTC(),
	}))
	return id
}

var allSteps = []engine.Step{
	{Type: engine.StepLoading},
	{Type: engine.StepPreparing, Config: map[string]any{"target": "parquet"}},
	{Type: engine.StepValidation},
}

func TestProcessCompletesJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inputID := f.seedInput(t, []byte("col1,col2\n1,2\n"))
	job, err := f.manager.Create(ctx, lifecycle.CreateParams{
		InputDataID: &inputID,
		Steps:       allSteps,
	})
	require.NoError(t, err)

	f.worker.Process(ctx, job.ID)

	got, err := f.manager.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.ResultDataID)
	require.NotNil(t, got.CompletedAt)
	assert.NotEmpty(t, got.Logs)

	// Step metadata and the run context land in job metadata.
	results, ok := got.Metadata[lifecycle.MetaStepResults].([]engine.StepResult)
	require.True(t, ok)
	assert.Len(t, results, len(allSteps))
	runCtx, ok := got.Metadata[lifecycle.MetaContext].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "parquet", runCtx["prepared_target"])

	// The result artifact is retrievable with the bytes the engine produced.
	artifact, err := f.artifacts.Get(ctx, *got.ResultDataID)
	require.NoError(t, err)
	require.NotNil(t, artifact)
	data, err := f.blobs.Load(ctx, artifact.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("col1,col2\n1,2\n"), data)
}

func TestProcessFailsOnInvalidValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.manager.Create(ctx, lifecycle.CreateParams{
		Steps: []engine.Step{
			{Type: engine.StepLoading},
			{Type: engine.StepValidation, Config: map[string]any{"force_invalid": true}},
		},
	})
	require.NoError(t, err)

	f.worker.Process(ctx, job.ID)

	got, err := f.manager.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "validation reported invalid")
	assert.Equal(t, lifecycle.ErrorKindValidation, got.Metadata[lifecycle.MetaErrorKind])
	require.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.ResultDataID)
}

func TestProcessFailsWithoutSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.manager.Create(ctx, lifecycle.CreateParams{})
	require.NoError(t, err)

	f.worker.Process(ctx, job.ID)

	got, err := f.manager.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, lifecycle.ErrorKindValidation, got.Metadata[lifecycle.MetaErrorKind])
}

func TestProcessFailsOnMissingInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	missing := uuid.New()
	job, err := f.manager.Create(ctx, lifecycle.CreateParams{
		InputDataID: &missing,
		Steps:       allSteps,
	})
	require.NoError(t, err)

	f.worker.Process(ctx, job.ID)

	got, err := f.manager.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, lifecycle.ErrorKindStorage, got.Metadata[lifecycle.MetaErrorKind])
}

func TestProcessFailsOnTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w := worker.New(f.manager, f.artifacts, f.workflows, f.blobs, f.queue, worker.Options{
		PollTimeout:         10 * time.Millisecond,
		CancelCheckInterval: 5 * time.Millisecond,
		InputLoadBackoff:    time.Millisecond,
		MaxJobRuntime:       time.Nanosecond,
	}, nil)

	job, err := f.manager.Create(ctx, lifecycle.CreateParams{Steps: allSteps})
	require.NoError(t, err)

	w.Process(ctx, job.ID)

	got, err := f.manager.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "context deadline exceeded")
	assert.Equal(t, lifecycle.ErrorKindTimeout, got.Metadata[lifecycle.MetaErrorKind])
	require.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.ResultDataID)
}

func TestProcessFallsBackToWorkflowSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wfID := uuid.New()
	f.workflows.rows[wfID] = &models.Workflow{
		ID:    wfID,
		Name:  "legacy",
		Steps: []engine.Step{{Type: engine.StepLoading}},
	}

	// No step snapshot on the job; only the workflow reference.
	job, err := f.manager.Create(ctx, lifecycle.CreateParams{WorkflowID: &wfID})
	require.NoError(t, err)

	f.worker.Process(ctx, job.ID)

	got, err := f.manager.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
}

func TestProcessSkipsCancelledJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.manager.Create(ctx, lifecycle.CreateParams{Steps: allSteps})
	require.NoError(t, err)
	_, err = f.manager.Cancel(ctx, job.ID)
	require.NoError(t, err)

	f.worker.Process(ctx, job.ID)

	got, err := f.manager.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, got.Status)
	assert.Nil(t, got.StartedAt)
}

func TestRunDrainsQueue(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := f.manager.Create(ctx, lifecycle.CreateParams{Steps: allSteps})
	require.NoError(t, err)
	_, err = f.manager.Enqueue(ctx, job.ID)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.worker.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		got, err := f.manager.Get(ctx, job.ID)
		return err == nil && got.Status == models.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on context cancellation")
	}
}
