package lifecycle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprep/prepflow/pkg/db/models"
	"github.com/openprep/prepflow/pkg/lifecycle"
	"github.com/openprep/prepflow/pkg/lifecycle/lifecycletest"
)

func newManager(t *testing.T) (*lifecycle.Manager, *lifecycletest.MemStore, *lifecycletest.MemQueue) {
	t.Helper()
	store := lifecycletest.NewMemStore()
	q := lifecycletest.NewMemQueue()
	return lifecycle.NewManager(store, q, nil), store, q
}

func TestCreateStartsQueued(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	job, err := m.Create(ctx, lifecycle.CreateParams{
		Parameters: map[string]any{"a": 1},
	})
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)

	// Parameters round-trip through metadata.
	got, err := m.Get(ctx, job.ID)
	require.NoError(t, err)
	params, ok := got.Metadata[lifecycle.MetaParameters].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, params["a"])
}

func TestEnqueueHandsOffOnce(t *testing.T) {
	m, _, q := newManager(t)
	ctx := context.Background()

	job, err := m.Create(ctx, lifecycle.CreateParams{})
	require.NoError(t, err)

	_, err = m.Enqueue(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, q.Len())

	// Executing the same job twice must fail, not re-queue.
	_, err = m.Enqueue(ctx, job.ID)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
	assert.Equal(t, 1, q.Len())
}

// failingQueue rejects pushes until err is cleared, then delegates.
type failingQueue struct {
	err   error
	inner *lifecycletest.MemQueue
}

func (q *failingQueue) Enqueue(ctx context.Context, jobID string) error {
	if q.err != nil {
		return q.err
	}
	return q.inner.Enqueue(ctx, jobID)
}

func TestEnqueueRetriesAfterQueuePushFailure(t *testing.T) {
	store := lifecycletest.NewMemStore()
	fq := &failingQueue{err: errors.New("connection refused"), inner: lifecycletest.NewMemQueue()}
	m := lifecycle.NewManager(store, fq, nil)
	ctx := context.Background()

	job, err := m.Create(ctx, lifecycle.CreateParams{})
	require.NoError(t, err)

	_, err = m.Enqueue(ctx, job.ID)
	require.Error(t, err)

	// The hand-off marker is rolled back, so the job is not stuck.
	got, err := m.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, got.Status)
	assert.Nil(t, got.EnqueuedAt)

	fq.err = nil
	enqueued, err := m.Enqueue(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, enqueued.EnqueuedAt)
	assert.Equal(t, 1, fq.inner.Len())
}

func TestEnqueueUnknownJob(t *testing.T) {
	m, _, _ := newManager(t)

	_, err := m.Enqueue(context.Background(), uuid.New())
	require.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestCancelQueuedJob(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	job, err := m.Create(ctx, lifecycle.CreateParams{})
	require.NoError(t, err)

	cancelled, err := m.Cancel(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CompletedAt)
	assert.Nil(t, cancelled.StartedAt)

	// A cancelled job cannot be executed afterwards.
	_, err = m.Enqueue(ctx, job.ID)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestCancelRejectedOnTerminalStates(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	for _, finish := range []func(id uuid.UUID) error{
		func(id uuid.UUID) error {
			_, err := m.Complete(ctx, id, nil, nil, nil)
			return err
		},
		func(id uuid.UUID) error {
			_, err := m.Fail(ctx, id, "boom", lifecycle.ErrorKindExecution, nil, nil)
			return err
		},
	} {
		job, err := m.Create(ctx, lifecycle.CreateParams{})
		require.NoError(t, err)
		_, err = m.Start(ctx, job.ID)
		require.NoError(t, err)
		require.NoError(t, finish(job.ID))

		_, err = m.Cancel(ctx, job.ID)
		require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
	}

	// Cancelling a cancelled job is rejected too.
	job, err := m.Create(ctx, lifecycle.CreateParams{})
	require.NoError(t, err)
	_, err = m.Cancel(ctx, job.ID)
	require.NoError(t, err)
	_, err = m.Cancel(ctx, job.ID)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestStartSetsTimestampsOnce(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	job, err := m.Create(ctx, lifecycle.CreateParams{})
	require.NoError(t, err)

	started, err := m.Start(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, started.Status)
	require.NotNil(t, started.StartedAt)
	assert.Nil(t, started.CompletedAt)

	// Starting a running job is an invalid transition.
	_, err = m.Start(ctx, job.ID)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestRecordProgressGuards(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	job, err := m.Create(ctx, lifecycle.CreateParams{})
	require.NoError(t, err)

	// Not running yet.
	err = m.RecordProgress(ctx, job.ID, 10)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	_, err = m.Start(ctx, job.ID)
	require.NoError(t, err)

	require.NoError(t, m.RecordProgress(ctx, job.ID, 42))
	got, err := m.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, got.Progress)

	// Out-of-range values are rejected without touching the record.
	require.ErrorIs(t, m.RecordProgress(ctx, job.ID, -1), lifecycle.ErrValidation)
	require.ErrorIs(t, m.RecordProgress(ctx, job.ID, 101), lifecycle.ErrValidation)
	got, err = m.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, got.Progress)
}

func TestCompleteSetsResultAndProgress(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	job, err := m.Create(ctx, lifecycle.CreateParams{})
	require.NoError(t, err)
	_, err = m.Start(ctx, job.ID)
	require.NoError(t, err)

	resultID := uuid.New()
	done, err := m.Complete(ctx, job.ID, &resultID, map[string]any{"k": "v"}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	require.NotNil(t, done.ResultDataID)
	assert.Equal(t, resultID, *done.ResultDataID)
	require.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.StartedAt)
}

func TestFailKeepsLastProgress(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	job, err := m.Create(ctx, lifecycle.CreateParams{})
	require.NoError(t, err)
	_, err = m.Start(ctx, job.ID)
	require.NoError(t, err)
	require.NoError(t, m.RecordProgress(ctx, job.ID, 60))

	failed, err := m.Fail(ctx, job.ID, "agent exploded", lifecycle.ErrorKindExecution, map[string]any{}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusFailed, failed.Status)
	assert.Equal(t, "agent exploded", failed.Error)
	assert.Equal(t, 60, failed.Progress)
	assert.Equal(t, lifecycle.ErrorKindExecution, failed.Metadata[lifecycle.MetaErrorKind])
	require.NotNil(t, failed.CompletedAt)
	assert.Nil(t, failed.ResultDataID)
}

func TestGetResultRequiresCompleted(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	job, err := m.Create(ctx, lifecycle.CreateParams{})
	require.NoError(t, err)

	_, err = m.GetResult(ctx, job.ID)
	require.ErrorIs(t, err, lifecycle.ErrNotCompleted)

	got, err := m.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ResultDataID)

	_, err = m.Start(ctx, job.ID)
	require.NoError(t, err)
	resultID := uuid.New()
	_, err = m.Complete(ctx, job.ID, &resultID, nil, nil)
	require.NoError(t, err)

	res, err := m.GetResult(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, resultID, *res.ResultDataID)
}

func TestListFilters(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	wfA := uuid.New()
	wfB := uuid.New()

	jobA, err := m.Create(ctx, lifecycle.CreateParams{WorkflowID: &wfA})
	require.NoError(t, err)
	jobB, err := m.Create(ctx, lifecycle.CreateParams{WorkflowID: &wfB})
	require.NoError(t, err)
	_, err = m.Create(ctx, lifecycle.CreateParams{})
	require.NoError(t, err)

	_, err = m.Start(ctx, jobB.ID)
	require.NoError(t, err)

	byWorkflow, err := m.List(ctx, lifecycle.ListFilter{WorkflowID: &wfA})
	require.NoError(t, err)
	require.Len(t, byWorkflow, 1)
	assert.Equal(t, jobA.ID, byWorkflow[0].ID)

	running := models.JobStatusRunning
	byStatus, err := m.List(ctx, lifecycle.ListFilter{Status: &running})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, jobB.ID, byStatus[0].ID)

	all, err := m.List(ctx, lifecycle.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	// Newest first.
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt))
	}
}

func TestCancelWhileRunningWinsBeforeTerminalCommit(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	job, err := m.Create(ctx, lifecycle.CreateParams{})
	require.NoError(t, err)
	_, err = m.Start(ctx, job.ID)
	require.NoError(t, err)

	// Cancel lands while the worker is mid-run.
	_, err = m.Cancel(ctx, job.ID)
	require.NoError(t, err)

	// The worker's completion attempt loses the race.
	_, err = m.Complete(ctx, job.ID, nil, nil, nil)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	got, err := m.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, got.Status)
}
