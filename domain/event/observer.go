// Package event defines the stage lifecycle hooks observers receive while an
// analysis runs.
package event

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Stage names that do not correspond to a tool.
const (
	StageThinking = "agent_thinking"
	StageOther    = "other"
)

// Stage identifies one unit of work inside a run. Name is a tool name for tool
// stages or StageThinking for planner calls.
type Stage struct {
	RunID     string
	File      string
	Name      string
	Iteration int
}

// StageResult describes how a stage ended.
type StageResult struct {
	Duration time.Duration
	Err      error
	Cached   bool
}

// Failed reports whether the stage ended with an error.
func (r StageResult) Failed() bool {
	return r.Err != nil
}

// Observer receives stage lifecycle notifications. Returned errors are
// reported by the Notifier and never affect the run.
type Observer interface {
	StageEnter(ctx context.Context, stage Stage) error
	StageExit(ctx context.Context, stage Stage, result StageResult) error
}

// Funcs adapts plain functions to an Observer. Nil fields are no-ops.
type Funcs struct {
	OnEnter func(ctx context.Context, stage Stage) error
	OnExit  func(ctx context.Context, stage Stage, result StageResult) error
}

// StageEnter implements Observer.
func (f Funcs) StageEnter(ctx context.Context, stage Stage) error {
	if f.OnEnter == nil {
		return nil
	}
	return f.OnEnter(ctx, stage)
}

// StageExit implements Observer.
func (f Funcs) StageExit(ctx context.Context, stage Stage, result StageResult) error {
	if f.OnExit == nil {
		return nil
	}
	return f.OnExit(ctx, stage, result)
}

// Multi fans notifications out to several observers. Every observer is called
// even when an earlier one fails; the errors are joined.
type Multi []Observer

// StageEnter implements Observer.
func (m Multi) StageEnter(ctx context.Context, stage Stage) error {
	var errs []error
	for _, o := range m {
		if err := safeCall(func() error { return o.StageEnter(ctx, stage) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StageExit implements Observer.
func (m Multi) StageExit(ctx context.Context, stage Stage, result StageResult) error {
	var errs []error
	for _, o := range m {
		if err := safeCall(func() error { return o.StageExit(ctx, stage, result) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ErrorHandler is told about observer failures.
type ErrorHandler func(hook string, stage Stage, err error)

// Notifier delivers notifications best-effort: observer errors and panics
// are handed to the ErrorHandler and swallowed.
type Notifier struct {
	observer Observer
	onError  ErrorHandler
}

// NewNotifier creates a notifier. A nil observer makes every call a no-op.
func NewNotifier(observer Observer, onError ErrorHandler) *Notifier {
	return &Notifier{observer: observer, onError: onError}
}

// Enter notifies observers that a stage started.
func (n *Notifier) Enter(ctx context.Context, stage Stage) {
	if n == nil || n.observer == nil {
		return
	}
	err := safeCall(func() error { return n.observer.StageEnter(ctx, stage) })
	n.report("stage_enter", stage, err)
}

// Exit notifies observers that a stage ended.
func (n *Notifier) Exit(ctx context.Context, stage Stage, result StageResult) {
	if n == nil || n.observer == nil {
		return
	}
	err := safeCall(func() error { return n.observer.StageExit(ctx, stage, result) })
	n.report("stage_exit", stage, err)
}

func (n *Notifier) report(hook string, stage Stage, err error) {
	if err != nil && n.onError != nil {
		n.onError(hook, stage, err)
	}
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrObserverPanic, r)
		}
	}()
	return fn()
}
