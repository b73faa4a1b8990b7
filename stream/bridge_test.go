package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudchase/chatstream/engine"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedEngine emits a fixed fragment list, optionally failing after
// failAfter fragments.
type scriptedEngine struct {
	fragments []string
	delay     time.Duration
	failAfter int
	failErr   error
	panicMsg  string
}

func (e *scriptedEngine) Info() engine.Info { return engine.Info{Backend: "scripted"} }

func (e *scriptedEngine) GenerateStream(ctx context.Context, _ string, _ engine.Params, emit func(string) bool) error {
	for i, f := range e.fragments {
		if e.failErr != nil && i == e.failAfter {
			return e.failErr
		}
		if e.panicMsg != "" && i == e.failAfter {
			panic(e.panicMsg)
		}
		if e.delay > 0 {
			time.Sleep(e.delay)
		}
		if !emit(f) {
			return nil
		}
	}
	if e.failErr != nil && e.failAfter >= len(e.fragments) {
		return e.failErr
	}
	return nil
}

// blockingEngine emits one fragment and then waits for its context.
type blockingEngine struct {
	started chan struct{}
	once    sync.Once
}

func newBlockingEngine() *blockingEngine { return &blockingEngine{started: make(chan struct{})} }

func (e *blockingEngine) Info() engine.Info { return engine.Info{Backend: "blocking"} }

func (e *blockingEngine) GenerateStream(ctx context.Context, _ string, _ engine.Params, emit func(string) bool) error {
	emit("first")
	e.once.Do(func() { close(e.started) })
	<-ctx.Done()
	return ctx.Err()
}

func drain(t *testing.T, s *Stream) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var got []string
	for {
		f, ok := s.Next(ctx)
		if !ok {
			require.NoError(t, ctx.Err(), "stream did not end in time")
			return got
		}
		got = append(got, f)
	}
}

func TestStreamDeliversFragmentsInOrder(t *testing.T) {
	b := NewBridge(&scriptedEngine{fragments: []string{"A", "B", "C"}, delay: 10 * time.Millisecond}, 0, zerolog.Nop())

	s, err := b.Start(context.Background(), "p", engine.Params{})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"A", "B", "C"}, drain(t, s))
	assert.NoError(t, s.Err())
	assert.False(t, s.Truncated())

	s.Close()
	assert.Equal(t, StateTerminal, s.State())
}

func TestStreamProducerErrorEndsStream(t *testing.T) {
	var logs bytes.Buffer
	boom := errors.New("cuda out of memory")
	b := NewBridge(&scriptedEngine{fragments: []string{"A", "B"}, failAfter: 1, failErr: boom}, 0, zerolog.New(&logs))

	s, err := b.Start(context.Background(), "p", engine.Params{})
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, drain(t, s))
	s.Close()

	assert.ErrorIs(t, s.Err(), boom)
	assert.True(t, s.Truncated())
	assert.Equal(t, 1, strings.Count(logs.String(), "generation failed"))
}

func TestStreamRecoversProducerPanic(t *testing.T) {
	b := NewBridge(&scriptedEngine{fragments: []string{"A", "B"}, failAfter: 1, panicMsg: "index out of range"}, 0, zerolog.Nop())

	s, err := b.Start(context.Background(), "p", engine.Params{})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"A"}, drain(t, s))
	require.Error(t, s.Err())
	assert.Contains(t, s.Err().Error(), "index out of range")
}

func TestStreamBuffersWithoutConsumer(t *testing.T) {
	want := make([]string, 5000)
	for i := range want {
		want[i] = fmt.Sprintf("t%d ", i)
	}
	b := NewBridge(&scriptedEngine{fragments: want}, 0, zerolog.Nop())

	s, err := b.Start(context.Background(), "p", engine.Params{})
	require.NoError(t, err)

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("producer blocked on an unread queue")
	}
	assert.Equal(t, StateCompletion, s.State())
	assert.Equal(t, want, drain(t, s))
	s.Close()
}

func TestConcurrentStreamsStayIndependent(t *testing.T) {
	first := []string{"a1", "a2", "a3", "a4"}
	second := []string{"b1", "b2", "b3"}
	b1 := NewBridge(&scriptedEngine{fragments: first, delay: 5 * time.Millisecond}, 0, zerolog.Nop())
	b2 := NewBridge(&scriptedEngine{fragments: second, delay: 7 * time.Millisecond}, 0, zerolog.Nop())

	var wg sync.WaitGroup
	results := make([][]string, 2)
	for i, b := range []*Bridge{b1, b2} {
		wg.Add(1)
		go func(i int, b *Bridge) {
			defer wg.Done()
			s, err := b.Start(context.Background(), "p", engine.Params{})
			if !assert.NoError(t, err) {
				return
			}
			defer s.Close()
			results[i] = drain(t, s)
		}(i, b)
	}
	wg.Wait()

	assert.Equal(t, first, results[0])
	assert.Equal(t, second, results[1])
}

func TestSharedBridgeConcurrentStreams(t *testing.T) {
	b := NewBridge(engine.NewEcho(engine.LoadOptions{EchoDelay: time.Millisecond}), 0, zerolog.Nop())

	var wg sync.WaitGroup
	prompts := []string{"[USER]\none two three\n\n[ASSISTANT]", "[USER]\nfour five\n\n[ASSISTANT]"}
	want := [][]string{{"one ", "two ", "three"}, {"four ", "five"}}
	results := make([][]string, len(prompts))
	for i, p := range prompts {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			s, err := b.Start(context.Background(), p, engine.Params{MaxNewTokens: 10})
			if !assert.NoError(t, err) {
				return
			}
			defer s.Close()
			results[i] = drain(t, s)
		}(i, p)
	}
	wg.Wait()

	assert.Equal(t, want, results)
}

func TestConsumerCancellationStopsProducer(t *testing.T) {
	eng := newBlockingEngine()
	b := NewBridge(eng, 0, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	s, err := b.Start(ctx, "p", engine.Params{})
	require.NoError(t, err)

	f, ok := s.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, "first", f)

	cancel()
	_, ok = s.Next(ctx)
	assert.False(t, ok)

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("producer kept running after the consumer went away")
	}
	s.Close()
	assert.ErrorIs(t, s.Err(), context.Canceled)
	assert.False(t, s.Truncated())
}

func TestCloseStopsRunningProducer(t *testing.T) {
	eng := newBlockingEngine()
	b := NewBridge(eng, 0, zerolog.Nop())

	s, err := b.Start(context.Background(), "p", engine.Params{})
	require.NoError(t, err)
	<-eng.started

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not join the producer")
	}
	assert.Equal(t, StateTerminal, s.State())
}

func TestConcurrencyBound(t *testing.T) {
	eng := newBlockingEngine()
	b := NewBridge(eng, 1, zerolog.Nop())

	first, err := b.Start(context.Background(), "p", engine.Params{})
	require.NoError(t, err)
	<-eng.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = b.Start(ctx, "p", engine.Params{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	first.Close()

	// the slot held by the first stream is free again
	third, err := b.Start(context.Background(), "p", engine.Params{})
	require.NoError(t, err)
	third.Close()
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "unknown", State(42).String())
}
