// Copyright 2026 Benoit Pereira da Silva
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package adkstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

var (
	// ErrTransport wraps failures of the underlying body reader.
	ErrTransport = errors.New("adkstream: transport failure")

	// ErrCanceled is returned when the caller abandons the exchange. No
	// result is produced in that case.
	ErrCanceled = errors.New("adkstream: canceled")

	// ErrAlreadyRun is returned when an Aggregator is used twice.
	ErrAlreadyRun = errors.New("adkstream: aggregator already used")
)

// DefaultReadSize is the size of each body read.
const DefaultReadSize = 4 * 1024

// Phase is the lifecycle position of an Aggregator.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStreaming
	PhaseEnded
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStreaming:
		return "streaming"
	case PhaseEnded:
		return "ended"
	case PhaseTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Observer receives every applied event together with the visible text it
// produced. It runs on the aggregating goroutine: no chunk is consumed
// while it runs.
type Observer func(ev Event, visibleText string)

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used by the aggregator and its stages.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithObserver registers fn for progressive display.
func WithObserver(fn Observer) Option {
	return func(a *Aggregator) { a.observer = fn }
}

// WithChartExtractor replaces the default chart extractor.
func WithChartExtractor(e *ChartExtractor) Option {
	return func(a *Aggregator) { a.extractor = e }
}

// WithReadSize sets the buffer size of each body read.
func WithReadSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.readSize = n
		}
	}
}

// Aggregator folds one streamed response body into a Result.
//
// The flow is strictly one way: chunks are framed into lines, lines are
// decoded into events, events are applied to a fresh State, and once the
// stream ends the chart extractor and the result builder run exactly once.
// An Aggregator serves a single exchange; build one per request.
type Aggregator struct {
	logger    *slog.Logger
	observer  Observer
	extractor *ChartExtractor
	readSize  int

	mu    sync.Mutex
	phase Phase
}

// NewAggregator returns an idle Aggregator.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		logger:   slog.Default(),
		readSize: DefaultReadSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.extractor == nil {
		v, err := DefaultChartValidator()
		if err != nil {
			a.logger.Warn("adkstream: chart schema unavailable, charts are not validated", "error", err)
		}
		a.extractor = NewChartExtractor(v, a.logger)
	}
	return a
}

// Phase returns the current lifecycle phase.
func (a *Aggregator) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

func (a *Aggregator) setPhase(p Phase) {
	a.mu.Lock()
	a.phase = p
	a.mu.Unlock()
}

type readResult struct {
	data []byte
	err  error
}

// Aggregate reads body until it ends, ctx is done, or a read fails. A
// "[DONE]" sentinel is skipped like any payload-free line.
//
//   - Clean end: the Result and a nil error.
//   - Read failure: FailureResult and an error wrapping ErrTransport.
//   - Cancellation: a zero Result and an error wrapping ErrCanceled and the
//     context cause. Charts are not extracted and no result is built.
//
// Cancellation is observed between every chunk. The body is owned by the
// caller: closing it (or cancelling the request that produced it) releases a
// read that is still blocked when Aggregate returns.
func (a *Aggregator) Aggregate(ctx context.Context, body io.Reader) (Result, error) {
	a.mu.Lock()
	if a.phase != PhaseIdle {
		a.mu.Unlock()
		return Result{}, ErrAlreadyRun
	}
	a.phase = PhaseStreaming
	a.mu.Unlock()

	if err := context.Cause(ctx); err != nil {
		a.setPhase(PhaseTerminal)
		return Result{}, fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	var (
		framer  = NewLineFramer(a.logger)
		decoder = NewDecoder(a.logger)
		state   = &State{}
		chunks  = make(chan readResult)
		done    = make(chan struct{})
		lines   int
	)
	defer close(done)
	go a.pump(body, chunks, done)

	for finished := false; !finished; {
		select {
		case <-ctx.Done():
			a.setPhase(PhaseTerminal)
			return Result{}, fmt.Errorf("%w: %w", ErrCanceled, context.Cause(ctx))
		case rr := <-chunks:
			if ctx.Err() != nil {
				a.setPhase(PhaseTerminal)
				return Result{}, fmt.Errorf("%w: %w", ErrCanceled, context.Cause(ctx))
			}
			for _, line := range framer.Feed(rr.data) {
				lines++
				a.apply(state, decoder.Decode(line))
			}
			if rr.err != nil {
				if !errors.Is(rr.err, io.EOF) {
					a.setPhase(PhaseTerminal)
					err := fmt.Errorf("%w: %w", ErrTransport, rr.err)
					a.logger.Error("adkstream: stream aborted", "error", rr.err, "lines", lines)
					return FailureResult(err), err
				}
				finished = true
			}
		}
	}

	a.setPhase(PhaseEnded)
	framer.Flush()
	text, charts := a.extractor.Extract(state.VisibleText)
	state.VisibleText = text
	state.Charts = append(state.Charts, charts...)
	result := state.Result()
	a.setPhase(PhaseTerminal)

	a.logger.Debug("adkstream: stream ended",
		"lines", lines,
		"dropped", decoder.Dropped(),
		"last_event_type", decoder.LastEventType(),
		"agent", result.AgentName,
		"charts", len(result.Charts))
	return result, nil
}

// apply folds events into state, notifying the observer after each one.
func (a *Aggregator) apply(state *State, events []Event) {
	for _, ev := range events {
		state.Apply(ev)
		if a.observer != nil {
			a.observer(ev, state.VisibleText)
		}
	}
}

// pump reads body on its own goroutine so the aggregating loop can select on
// the context at every chunk.
func (a *Aggregator) pump(body io.Reader, out chan<- readResult, done <-chan struct{}) {
	for {
		buf := make([]byte, a.readSize)
		n, err := body.Read(buf)
		if n == 0 && err == nil {
			continue
		}
		select {
		case out <- readResult{data: buf[:n], err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

// Aggregate is a shorthand for NewAggregator(opts...).Aggregate(ctx, body).
func Aggregate(ctx context.Context, body io.Reader, opts ...Option) (Result, error) {
	return NewAggregator(opts...).Aggregate(ctx, body)
}
