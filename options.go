// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package flexsched

import (
	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger             *logiface.Logger[logiface.Event]
	taskFailureHandler func(error)
	metrics            bool
}

// schedulerOptions holds configuration options for Scheduler creation.
type schedulerOptions struct {
	logger *logiface.Logger[logiface.Event]
}

// --- Loop options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithTaskFailureHandler routes task failures (rejected task awaitables,
// recovered callback panics) to fn instead of the loop's own rate-limited
// error logging. fn may be invoked from the loop goroutine or from a task
// watcher goroutine, and must not panic.
func WithTaskFailureHandler(fn func(error)) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.taskFailureHandler = fn
		return nil
	}}
}

// WithMetrics enables counter collection on the Loop, exposed via
// Loop.Metrics(). Disabled by default; the counters are cheap atomics but
// the hot path stays allocation-free either way.
func WithMetrics(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.metrics = enabled
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue // skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// --- Scheduler options ---

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// schedulerOptionImpl implements Option.
type schedulerOptionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (s *schedulerOptionImpl) applyScheduler(opts *schedulerOptions) error {
	return s.applySchedulerFunc(opts)
}

// resolveSchedulerOptions applies Option instances to schedulerOptions.
func resolveSchedulerOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// --- Shared options ---

// dualOptionImpl implements both Option and LoopOption so a single option
// value can be passed to either constructor.
type dualOptionImpl struct {
	applyLoopFunc      func(*loopOptions) error
	applySchedulerFunc func(*schedulerOptions) error
}

func (d *dualOptionImpl) applyLoop(opts *loopOptions) error {
	return d.applyLoopFunc(opts)
}

func (d *dualOptionImpl) applyScheduler(opts *schedulerOptions) error {
	return d.applySchedulerFunc(opts)
}

// WithLogger attaches a logger. Accepted by both New and NewLoop; a nil
// logger (the default) disables logging entirely.
func WithLogger(logger *logiface.Logger[logiface.Event]) interface {
	Option
	LoopOption
} {
	return &dualOptionImpl{
		applyLoopFunc: func(opts *loopOptions) error {
			opts.logger = logger
			return nil
		},
		applySchedulerFunc: func(opts *schedulerOptions) error {
			opts.logger = logger
			return nil
		},
	}
}
