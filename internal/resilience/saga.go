// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// =============================================================================
// Saga Step
// =============================================================================

// SagaStep represents one step in a saga with its rollback action.
//
// # Description
//
// Each step consists of an Execute function and an optional Compensate
// function. The Execute function performs the forward action; the Compensate
// function undoes it if a later step fails.
//
// # Limitations
//
//   - Compensate should be idempotent (safe to call multiple times)
//   - Compensate should not fail on "already doesn't exist" scenarios
//
// # Assumptions
//
//   - Execute respects context cancellation
//   - Compensate can be nil if no cleanup is needed
type SagaStep struct {
	// Name identifies the step for logging and debugging.
	Name string

	// Execute performs the forward action.
	Execute func(ctx context.Context) error

	// Compensate undoes the Execute action. May be nil if no cleanup needed.
	Compensate func(ctx context.Context) error

	// Timeout overrides the default step timeout. Zero uses saga default.
	Timeout time.Duration
}

// =============================================================================
// Saga Configuration
// =============================================================================

// SagaConfig configures saga behavior.
type SagaConfig struct {
	// StepTimeout is the default timeout for each step.
	// Default: 60 seconds
	StepTimeout time.Duration

	// CompensationTimeout is the timeout for each compensation.
	// Default: 30 seconds
	CompensationTimeout time.Duration

	// Logger is used for step execution and compensation events.
	// Default: slog.Default()
	Logger *slog.Logger

	// OnCompensate is called after each compensation runs, with the
	// compensation error (nil on success).
	OnCompensate func(step SagaStep, err error)
}

// DefaultSagaConfig returns sensible defaults.
func DefaultSagaConfig() SagaConfig {
	return SagaConfig{
		StepTimeout:         60 * time.Second,
		CompensationTimeout: 30 * time.Second,
		Logger:              slog.Default(),
	}
}

// =============================================================================
// Saga
// =============================================================================

// Saga runs a sequence of steps that must be atomic as a group.
//
// # Description
//
// Steps are executed in the order they were added. If any step fails, all
// previously completed steps are compensated in reverse order and the
// original error is returned. Compensation errors are logged and reported
// through OnCompensate but never mask the step failure.
//
// # Thread Safety
//
// A Saga instance is built and executed from a single goroutine. It is not
// reusable; create a new instance per operation.
//
// # Example
//
//	saga := resilience.NewSaga(resilience.DefaultSagaConfig())
//	saga.AddStep(resilience.SagaStep{
//	    Name:       "create app record",
//	    Execute:    func(ctx context.Context) error { return apps.Create(ctx, app) },
//	    Compensate: func(ctx context.Context) error { return apps.Delete(ctx, app.ID) },
//	})
//	if err := saga.Execute(ctx); err != nil {
//	    return err
//	}
//
// # Limitations
//
//   - Steps execute sequentially (no parallel execution)
//   - Compensation may fail, leaving partial state
//   - No persistence; saga state is lost on process crash
type Saga struct {
	config    SagaConfig
	steps     []SagaStep
	completed []SagaStep
}

// NewSaga creates a new saga with the given configuration. Zero values in
// config are replaced with defaults.
func NewSaga(config SagaConfig) *Saga {
	if config.StepTimeout <= 0 {
		config.StepTimeout = 60 * time.Second
	}
	if config.CompensationTimeout <= 0 {
		config.CompensationTimeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Saga{config: config}
}

// AddStep adds a step to the saga. Steps execute in the order added.
func (s *Saga) AddStep(step SagaStep) {
	s.steps = append(s.steps, step)
}

// Execute runs all steps. If any fails, compensates completed steps in
// reverse order and returns the step's error.
func (s *Saga) Execute(ctx context.Context) error {
	s.completed = make([]SagaStep, 0, len(s.steps))

	for _, step := range s.steps {
		if ctx.Err() != nil {
			err := fmt.Errorf("saga cancelled: %w", ctx.Err())
			s.compensate()
			return err
		}

		timeout := step.Timeout
		if timeout <= 0 {
			timeout = s.config.StepTimeout
		}

		if err := s.executeStep(ctx, step, timeout); err != nil {
			s.compensate()
			return fmt.Errorf("saga failed at step %q: %w", step.Name, err)
		}

		s.completed = append(s.completed, step)
	}

	return nil
}

// CompletedSteps returns names of successfully completed steps.
func (s *Saga) CompletedSteps() []string {
	names := make([]string, len(s.completed))
	for i, step := range s.completed {
		names[i] = step.Name
	}
	return names
}

func (s *Saga) executeStep(ctx context.Context, step SagaStep, timeout time.Duration) error {
	s.config.Logger.Info("Executing step", "step", step.Name)
	start := time.Now()

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- step.Execute(stepCtx)
	}()

	select {
	case err := <-done:
		duration := time.Since(start)
		if err != nil {
			s.config.Logger.Error("Step failed", "step", step.Name, "duration", duration, "error", err)
			return err
		}
		s.config.Logger.Info("Step completed", "step", step.Name, "duration", duration)
		return nil

	case <-stepCtx.Done():
		return fmt.Errorf("step timed out after %v", timeout)
	}
}

// compensate runs compensation for completed steps in reverse order. It uses
// a fresh context so cleanup still runs when the parent was cancelled.
func (s *Saga) compensate() {
	if len(s.completed) == 0 {
		return
	}

	s.config.Logger.Info("Compensating completed steps", "count", len(s.completed))

	compensateCtx, cancel := context.WithTimeout(context.Background(),
		s.config.CompensationTimeout*time.Duration(len(s.completed)))
	defer cancel()

	for i := len(s.completed) - 1; i >= 0; i-- {
		step := s.completed[i]
		if step.Compensate == nil {
			continue
		}

		stepCtx, stepCancel := context.WithTimeout(compensateCtx, s.config.CompensationTimeout)
		err := step.Compensate(stepCtx)
		stepCancel()

		if err != nil {
			s.config.Logger.Warn("Compensation failed", "step", step.Name, "error", err)
		} else {
			s.config.Logger.Info("Compensated step", "step", step.Name)
		}
		if s.config.OnCompensate != nil {
			s.config.OnCompensate(step, err)
		}
	}
}
