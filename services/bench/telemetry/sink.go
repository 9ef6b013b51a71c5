// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry exports finished benchmark results to metrics backends.
//
// Description:
//
//	Every backend implements Sink and receives whole bench.Result values
//	after a run completes, never while a routine is being timed.
//
//	┌──────────────┐   *bench.Result   ┌───────────────┐
//	│ engine.Run   │ ────────────────► │ CompositeSink │
//	└──────────────┘                   └───────┬───────┘
//	                                           │
//	              ┌────────────────────────────┼──────────────────────┐
//	              ▼                            ▼                      ▼
//	      ┌──────────────┐            ┌──────────────┐       ┌──────────────┐
//	      │PrometheusSink│            │   OTelSink   │       │  InfluxSink  │
//	      │ textfile     │            │ spans+meters │       │ line protocol│
//	      └──────────────┘            └──────────────┘       └──────────────┘
//
// Thread Safety: All sinks are safe for concurrent use.
package telemetry

import (
	"context"
	"errors"
	"sync"

	"github.com/AleutianAI/AleutianBench/services/bench"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNilContext is returned when a nil context is provided.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilResult is returned when a nil result is provided.
	ErrNilResult = errors.New("result must not be nil")

	// ErrSinkClosed is returned when attempting to use a closed sink.
	ErrSinkClosed = errors.New("sink has been closed")

	// ErrNoSinks is returned when creating a composite sink with no children.
	ErrNoSinks = errors.New("at least one sink is required")
)

// -----------------------------------------------------------------------------
// Interface
// -----------------------------------------------------------------------------

// Sink receives finished benchmark results.
//
// Description:
//
//	Implementations translate a bench.Result into their backend's data
//	model. Recording happens after analysis, so sinks may block on I/O.
//
// Thread Safety: All implementations must be safe for concurrent use.
type Sink interface {
	// RecordResult exports one result.
	//
	// Outputs:
	//   - error: ErrNilContext, ErrNilResult, ErrSinkClosed or a backend error.
	RecordResult(ctx context.Context, result *bench.Result) error

	// Flush forces export of anything the sink buffers.
	Flush(ctx context.Context) error

	// Close releases resources. Idempotent.
	Close() error
}

// checkArgs validates the common RecordResult arguments.
func checkArgs(ctx context.Context, result *bench.Result) error {
	if ctx == nil {
		return ErrNilContext
	}
	if result == nil {
		return ErrNilResult
	}
	return nil
}

// -----------------------------------------------------------------------------
// Composite Sink
// -----------------------------------------------------------------------------

// CompositeSink forwards every call to several sinks.
//
// Description:
//
//	Errors from individual sinks are joined; one failing backend does not
//	stop the others from receiving the result.
//
// Thread Safety: Safe for concurrent use.
//
// Example:
//
//	composite, err := telemetry.NewCompositeSink(promSink, influxSink)
//	if err != nil {
//	    return fmt.Errorf("create composite sink: %w", err)
//	}
//	defer composite.Close()
type CompositeSink struct {
	sinks  []Sink
	mu     sync.RWMutex
	closed bool
}

// NewCompositeSink creates a composite over the non-nil sinks.
//
// Outputs:
//   - *CompositeSink: Never nil on success.
//   - error: ErrNoSinks if no non-nil sink was given.
func NewCompositeSink(sinks ...Sink) (*CompositeSink, error) {
	valid := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoSinks
	}
	return &CompositeSink{sinks: valid}, nil
}

// RecordResult forwards the result to every child sink.
func (c *CompositeSink) RecordResult(ctx context.Context, result *bench.Result) error {
	if err := checkArgs(ctx, result); err != nil {
		return err
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrSinkClosed
	}
	sinks := c.sinks
	c.mu.RUnlock()

	var errs []error
	for _, sink := range sinks {
		if err := sink.RecordResult(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush flushes every child sink.
func (c *CompositeSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrSinkClosed
	}
	sinks := c.sinks
	c.mu.RUnlock()

	var errs []error
	for _, sink := range sinks {
		if err := sink.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every child sink. Idempotent.
func (c *CompositeSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for _, sink := range c.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// -----------------------------------------------------------------------------
// No-Op Sink
// -----------------------------------------------------------------------------

// NoOpSink accepts and discards results. It is the default when no
// backend is configured.
type NoOpSink struct{}

// NewNoOpSink creates a NoOpSink.
func NewNoOpSink() *NoOpSink {
	return &NoOpSink{}
}

// RecordResult validates its arguments and discards the result.
func (n *NoOpSink) RecordResult(ctx context.Context, result *bench.Result) error {
	return checkArgs(ctx, result)
}

// Flush does nothing.
func (n *NoOpSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// Close does nothing.
func (n *NoOpSink) Close() error {
	return nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// namedEstimate pairs a statistic label with its estimate.
type namedEstimate struct {
	name string
	est  bench.Estimate
}

// statistics lists the result's estimates under stable labels. Slope is
// present only for linear plans.
func statistics(e bench.Estimates) []namedEstimate {
	out := []namedEstimate{
		{"mean", e.Mean},
		{"median", e.Median},
		{"std_dev", e.StdDev},
		{"mad", e.MAD},
	}
	if e.Slope != nil {
		out = append(out, namedEstimate{"slope", *e.Slope})
	}
	return out
}

// totalIterations sums the iteration counts of a raw sample.
func totalIterations(s bench.RawSample) float64 {
	var n float64
	for _, it := range s.Iters {
		n += it
	}
	return n
}

// verdictLabel collapses a change report to one label: "none" without a
// baseline, "no_change" when not significant, else the verdict.
func verdictLabel(c *bench.ChangeReport) string {
	switch {
	case c == nil:
		return "none"
	case !c.Significant:
		return "no_change"
	default:
		return c.Verdict.String()
	}
}

// Verify interface compliance at compile time.
var (
	_ Sink = (*CompositeSink)(nil)
	_ Sink = (*NoOpSink)(nil)
)
