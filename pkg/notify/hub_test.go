package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprep/prepflow/pkg/db/models"
	"github.com/openprep/prepflow/pkg/lifecycle"
	"github.com/openprep/prepflow/pkg/lifecycle/lifecycletest"
	"github.com/openprep/prepflow/pkg/notify"
)

const testInterval = 5 * time.Millisecond

func newHub(t *testing.T) (*notify.Hub, *lifecycle.Manager) {
	t.Helper()
	m := lifecycle.NewManager(lifecycletest.NewMemStore(), lifecycletest.NewMemQueue(), nil)
	return notify.NewHub(m, testInterval, nil), m
}

func recv(t *testing.T, ch <-chan notify.Message) notify.Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed before expected message")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return notify.Message{}
	}
}

// drain reads until the channel closes and returns every received message.
func drain(t *testing.T, ch <-chan notify.Message) []notify.Message {
	t.Helper()
	var msgs []notify.Message
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return msgs
			}
			msgs = append(msgs, msg)
		case <-deadline:
			t.Fatal("timed out draining channel")
		}
	}
}

func TestSubscribeSendsImmediateSnapshot(t *testing.T) {
	hub, m := newHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := m.Create(ctx, lifecycle.CreateParams{})
	require.NoError(t, err)

	ch, err := hub.Subscribe(ctx, job.ID)
	require.NoError(t, err)

	first := recv(t, ch)
	assert.Equal(t, notify.TypeStatus, first.Type)
	assert.Equal(t, job.ID, first.JobID)
	assert.Equal(t, models.JobStatusQueued, first.Status)
	assert.Equal(t, 0, first.Progress)
}

func TestSubscribeUnknownJob(t *testing.T) {
	hub, _ := newHub(t)

	_, err := hub.Subscribe(context.Background(), uuid.New())
	require.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestStreamEndsWithComplete(t *testing.T) {
	hub, m := newHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := m.Create(ctx, lifecycle.CreateParams{})
	require.NoError(t, err)
	_, err = m.Start(ctx, job.ID)
	require.NoError(t, err)

	ch, err := hub.Subscribe(ctx, job.ID)
	require.NoError(t, err)

	_, err = m.Complete(ctx, job.ID, nil, nil, nil)
	require.NoError(t, err)

	msgs := drain(t, ch)
	require.NotEmpty(t, msgs)

	last := msgs[len(msgs)-1]
	assert.Equal(t, notify.TypeComplete, last.Type)
	assert.Equal(t, models.JobStatusCompleted, last.Status)
	assert.Equal(t, 100, last.Progress)

	assert.Eventually(t, func() bool {
		return hub.Watchers(job.ID) == 0
	}, time.Second, testInterval)
}

func TestTerminalJobCompletesImmediately(t *testing.T) {
	hub, m := newHub(t)
	ctx := context.Background()

	job, err := m.Create(ctx, lifecycle.CreateParams{})
	require.NoError(t, err)
	_, err = m.Cancel(ctx, job.ID)
	require.NoError(t, err)

	ch, err := hub.Subscribe(ctx, job.ID)
	require.NoError(t, err)

	msgs := drain(t, ch)
	require.Len(t, msgs, 2)
	assert.Equal(t, notify.TypeStatus, msgs[0].Type)
	assert.Equal(t, models.JobStatusCancelled, msgs[0].Status)
	assert.Equal(t, notify.TypeComplete, msgs[1].Type)
	assert.Equal(t, 0, hub.Watchers(job.ID))
}

func TestSubscribersAreIndependent(t *testing.T) {
	hub, m := newHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := m.Create(ctx, lifecycle.CreateParams{})
	require.NoError(t, err)
	_, err = m.Start(ctx, job.ID)
	require.NoError(t, err)

	dropCtx, drop := context.WithCancel(ctx)
	chA, err := hub.Subscribe(dropCtx, job.ID)
	require.NoError(t, err)
	chB, err := hub.Subscribe(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Watchers(job.ID))

	// Dropping one subscriber must not disturb the other.
	drop()
	drain(t, chA)

	_, err = m.Fail(ctx, job.ID, "boom", lifecycle.ErrorKindExecution, nil, nil)
	require.NoError(t, err)

	msgs := drain(t, chB)
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, notify.TypeComplete, last.Type)
	assert.Equal(t, models.JobStatusFailed, last.Status)
	assert.Equal(t, "boom", last.Error)
}
