// Package notify pushes job status updates to subscribers. The API process
// and the workers only share the database, so the hub polls the job record
// and fans the snapshots out to every open subscription for that job.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openprep/prepflow/pkg/db/models"
	"github.com/openprep/prepflow/pkg/plog"
)

// Message types sent to subscribers.
const (
	TypeStatus   = "status"
	TypeComplete = "complete"
)

// Message is one status snapshot pushed to a subscriber. The stream ends
// with a TypeComplete message once the job reaches a terminal state.
type Message struct {
	Type     string           `json:"type"`
	JobID    uuid.UUID        `json:"job_id"`
	Status   models.JobStatus `json:"status"`
	Progress int              `json:"progress"`
	Error    string           `json:"error,omitempty"`
	SentAt   time.Time        `json:"sent_at"`
}

// JobGetter is the slice of the job manager the hub needs.
type JobGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// DefaultPollInterval matches the cadence clients expect between updates.
const DefaultPollInterval = time.Second

// Hub manages job status subscriptions. Each subscription polls
// independently, so one slow consumer never stalls another.
type Hub struct {
	jobs     JobGetter
	interval time.Duration
	logger   *plog.Logger

	mu       sync.Mutex
	watchers map[uuid.UUID]int
}

func NewHub(jobs JobGetter, interval time.Duration, logger *plog.Logger) *Hub {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = plog.NewDefault()
	}
	return &Hub{
		jobs:     jobs,
		interval: interval,
		logger:   logger,
		watchers: make(map[uuid.UUID]int),
	}
}

// Watchers returns the number of open subscriptions for a job.
func (h *Hub) Watchers(jobID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.watchers[jobID]
}

// Subscribe opens a status stream for a job. The first message is sent
// before Subscribe returns, so the subscriber always sees the current state
// immediately. The channel closes after the terminal TypeComplete message,
// or when ctx is cancelled.
func (h *Hub) Subscribe(ctx context.Context, jobID uuid.UUID) (<-chan Message, error) {
	job, err := h.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	ch := make(chan Message, 8)
	ch <- snapshot(job)

	h.mu.Lock()
	h.watchers[jobID]++
	h.mu.Unlock()

	if job.Status.Terminal() {
		ch <- complete(job)
		h.drop(jobID)
		close(ch)
		return ch, nil
	}

	go h.poll(ctx, jobID, ch)
	return ch, nil
}

func (h *Hub) poll(ctx context.Context, jobID uuid.UUID, ch chan Message) {
	defer func() {
		h.drop(jobID)
		close(ch)
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		job, err := h.jobs.Get(ctx, jobID)
		if err != nil {
			h.logger.Warn("status poll failed", "job_id", jobID, "error", err)
			return
		}

		if job.Status.Terminal() {
			h.send(ctx, ch, snapshot(job))
			h.send(ctx, ch, complete(job))
			return
		}

		// Drop intermediate updates a slow consumer has not drained;
		// the next tick carries fresher state anyway.
		select {
		case ch <- snapshot(job):
		default:
		}
	}
}

// send blocks until the message is delivered or ctx is cancelled. Terminal
// messages must not be dropped.
func (h *Hub) send(ctx context.Context, ch chan Message, msg Message) {
	select {
	case ch <- msg:
	case <-ctx.Done():
	}
}

func (h *Hub) drop(jobID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watchers[jobID] <= 1 {
		delete(h.watchers, jobID)
		return
	}
	h.watchers[jobID]--
}

func snapshot(job *models.Job) Message {
	return Message{
		Type:     TypeStatus,
		JobID:    job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		Error:    job.Error,
		SentAt:   time.Now().UTC(),
	}
}

func complete(job *models.Job) Message {
	msg := snapshot(job)
	msg.Type = TypeComplete
	return msg
}
