// Package engine interprets workflow step sequences. The shipped agents are
// mocks that return canned metadata; real agent implementations can be
// registered in their place without touching the job lifecycle code.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// StepType tags a workflow step with the agent that executes it.
type StepType string

const (
	StepLoading    StepType = "loading"
	StepPreparing  StepType = "preparing"
	StepValidation StepType = "validation"
)

// ErrUnknownStepType aborts a run when a step names no registered agent.
var ErrUnknownStepType = errors.New("unknown step type")

// ErrValidationFailed aborts a run when a validation step reports invalid.
var ErrValidationFailed = errors.New("validation failed")

// Step is one entry in a workflow's ordered step sequence.
type Step struct {
	Type            StepType       `json:"type"`
	Config          map[string]any `json:"config,omitempty"`
	RequireApproval bool           `json:"require_approval,omitempty"`
}

// StepResult is the metadata record an agent produces for one step.
type StepResult map[string]any

// Context carries values between steps of a single run. Agents may read and
// write it; the final snapshot is dumped into the job metadata.
type Context struct {
	mu   sync.Mutex
	data map[string]any
}

// NewContext returns an empty run context.
func NewContext() *Context {
	return &Context{data: make(map[string]any)}
}

// Get returns the value for key, or nil.
func (c *Context) Get(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key]
}

// Set stores a value under key.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// Snapshot returns a copy of the context data.
func (c *Context) Snapshot() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

// Agent executes a single step. Implementations transform the input bytes
// and report a metadata record for the step.
type Agent interface {
	Execute(ctx context.Context, input []byte, config map[string]any, rc *Context) ([]byte, StepResult, error)
}

// Interpreter dispatches steps to agents by step type and runs them in order.
type Interpreter struct {
	agents       map[StepType]Agent
	globalConfig map[string]any
	rc           *Context
}

// New builds an interpreter with the mock agent set registered.
func New(globalConfig map[string]any) *Interpreter {
	it := &Interpreter{
		agents:       make(map[StepType]Agent),
		globalConfig: globalConfig,
		rc:           NewContext(),
	}
	it.Register(StepLoading, &LoadingAgent{})
	it.Register(StepPreparing, &PreparingAgent{})
	it.Register(StepValidation, &ValidationAgent{})
	return it
}

// Register replaces the agent handling a step type.
func (it *Interpreter) Register(t StepType, a Agent) {
	it.agents[t] = a
}

// ContextSnapshot returns the run context accumulated so far.
func (it *Interpreter) ContextSnapshot() map[string]any {
	return it.rc.Snapshot()
}

// Run executes steps sequentially against input, threading each step's
// output into the next. It stops at the first failing or invalid step and at
// context cancellation, returning the per-step metadata records collected so
// far alongside the error.
func (it *Interpreter) Run(ctx context.Context, steps []Step, input []byte) ([]byte, []StepResult, error) {
	current := input
	results := make([]StepResult, 0, len(steps))

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, results, err
		}

		agent, ok := it.agents[step.Type]
		if !ok {
			return nil, results, fmt.Errorf("step %d: %w: %q", i, ErrUnknownStepType, step.Type)
		}

		out, result, err := agent.Execute(ctx, current, step.Config, it.rc)
		if err != nil {
			return nil, results, fmt.Errorf("step %d (%s): %w", i, step.Type, err)
		}

		current = out
		results = append(results, result)
	}

	return current, results, nil
}
