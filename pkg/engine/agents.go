package engine

import (
	"context"
	"fmt"
)

// The agents below are placeholders for the external agent engine. They pass
// data through and report canned metadata so the rest of the system can be
// exercised end to end.

// LoadingAgent resolves raw input into a working dataset.
type LoadingAgent struct{}

func (a *LoadingAgent) Execute(ctx context.Context, input []byte, config map[string]any, rc *Context) ([]byte, StepResult, error) {
	rc.Set("input_size", len(input))
	return input, StepResult{
		"agent":  "loading",
		"status": "success",
	}, nil
}

// PreparingAgent transforms a dataset toward a target format.
type PreparingAgent struct{}

func (a *PreparingAgent) Execute(ctx context.Context, input []byte, config map[string]any, rc *Context) ([]byte, StepResult, error) {
	target := "prepared"
	if t, ok := config["target"].(string); ok && t != "" {
		target = t
	}
	rc.Set("prepared_target", target)
	return input, StepResult{
		"agent":  "preparing",
		"target": target,
		"status": "success",
	}, nil
}

// ValidationAgent checks a dataset and aborts the run when it is invalid.
// The mock reports valid unless the step config sets force_invalid, which
// exists so failure paths can be exercised before a real validator lands.
type ValidationAgent struct{}

func (a *ValidationAgent) Execute(ctx context.Context, input []byte, config map[string]any, rc *Context) ([]byte, StepResult, error) {
	validationType := "schema"
	if v, ok := config["validation_type"].(string); ok && v != "" {
		validationType = v
	}

	if force, ok := config["force_invalid"].(bool); ok && force {
		return nil, nil, fmt.Errorf("%w: %s validation reported invalid", ErrValidationFailed, validationType)
	}

	return input, StepResult{
		"agent":           "validation",
		"validation_type": validationType,
		"status":          "valid",
	}, nil
}
