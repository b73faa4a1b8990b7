// Package stream bridges a blocking inference call to a pull-based sequence
// of fragments. Each generation runs on its own goroutine and feeds an
// unbounded queue; the HTTP handler pulls from that queue without ever
// waiting on another request's work.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cloudchase/chatstream/engine"
	"github.com/cloudchase/chatstream/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// State is the lifecycle position of a Stream.
type State int32

const (
	StateIdle State = iota
	StateLaunch
	StateStreaming
	StateCompletion
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunch:
		return "launch"
	case StateStreaming:
		return "streaming"
	case StateCompletion:
		return "completion"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Bridge launches generations against a shared engine.
type Bridge struct {
	engine engine.Engine
	slots  *semaphore.Weighted
	log    zerolog.Logger
}

// NewBridge returns a bridge over eng. maxConcurrent > 0 bounds the number of
// producers running at once; 0 leaves them unbounded.
func NewBridge(eng engine.Engine, maxConcurrent int, log zerolog.Logger) *Bridge {
	b := &Bridge{engine: eng, log: log}
	if maxConcurrent > 0 {
		b.slots = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return b
}

// Engine returns the engine generations run against.
func (b *Bridge) Engine() engine.Engine { return b.engine }

// Start launches generation of prompt and returns the consumer side. The
// producer stops early when ctx ends or the stream is closed. With a
// concurrency bound, Start waits for a free slot until ctx ends.
func (b *Bridge) Start(ctx context.Context, prompt string, params engine.Params) (*Stream, error) {
	if b.slots != nil {
		if err := b.slots.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("wait for generation slot: %w", err)
		}
	}

	pctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		id:      uuid.NewString(),
		q:       newQueue(),
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	s.state.Store(int32(StateLaunch))
	log := b.log.With().Str("stream_id", s.id).Logger()

	metrics.GenerationsInFlight.Inc()
	go b.produce(pctx, s, prompt, params, log)
	return s, nil
}

func (b *Bridge) produce(ctx context.Context, s *Stream, prompt string, params engine.Params, log zerolog.Logger) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("inference engine panic: %v", r)
		}
		s.q.close(err)
		s.state.Store(int32(StateCompletion))

		outcome := metrics.OutcomeComplete
		switch {
		case ctx.Err() != nil:
			outcome = metrics.OutcomeCancelled
		case err != nil:
			outcome = metrics.OutcomeError
			log.Error().Err(err).Int64("fragments", s.produced.Load()).Msg("generation failed")
		}
		metrics.ObserveGeneration(outcome, s.started)
		metrics.GenerationsInFlight.Dec()
		if b.slots != nil {
			b.slots.Release(1)
		}
		log.Debug().
			Str("outcome", outcome).
			Int64("fragments", s.produced.Load()).
			Dur("duration", time.Since(s.started)).
			Msg("producer exited")
		close(s.done)
	}()

	s.state.Store(int32(StateStreaming))
	log.Debug().
		Int("prompt_len", len(prompt)).
		Int("max_new_tokens", params.MaxNewTokens).
		Float64("temperature", params.Temperature).
		Float64("top_p", params.TopP).
		Msg("producer started")

	err = b.engine.GenerateStream(ctx, prompt, params, func(fragment string) bool {
		if ctx.Err() != nil {
			return false
		}
		s.q.push(fragment)
		s.produced.Add(1)
		metrics.FragmentsTotal.Inc()
		return true
	})
}

// Stream is the consumer side of one generation. It is read by exactly one
// goroutine and then discarded.
type Stream struct {
	id       string
	q        *queue
	cancel   context.CancelFunc
	done     chan struct{}
	started  time.Time
	state    atomic.Int32
	produced atomic.Int64
}

// ID identifies the stream in logs.
func (s *Stream) ID() string { return s.id }

// State reports the lifecycle position.
func (s *Stream) State() State { return State(s.state.Load()) }

// Next returns the next fragment in generation order. It returns false when
// the producer has finished and every fragment was delivered, or when ctx
// ends first.
func (s *Stream) Next(ctx context.Context) (string, bool) {
	return s.q.pop(ctx)
}

// Err is the producer's terminal error once the stream has ended. A
// cancelled producer reports the context error.
func (s *Stream) Err() error {
	_, err := s.q.result()
	return err
}

// Truncated reports whether the producer ended with an error.
func (s *Stream) Truncated() bool {
	closed, err := s.q.result()
	return closed && err != nil && !errors.Is(err, context.Canceled)
}

// Done is closed once the producer goroutine has exited.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Close stops the producer if it is still running and waits for it to exit.
func (s *Stream) Close() {
	s.cancel()
	<-s.done
	s.state.Store(int32(StateTerminal))
}
