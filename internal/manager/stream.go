package manager

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"promai/internal/metrics"
	"promai/pkg/types"
)

// StreamState is the lifecycle of one generation.
type StreamState string

const (
	StreamIdle      StreamState = "idle"
	StreamStreaming StreamState = "streaming"
	StreamCompleted StreamState = "completed"
	StreamCancelled StreamState = "cancelled"
	StreamFailed    StreamState = "failed"
)

// Terminal reports whether no further chunks can follow.
func (s StreamState) Terminal() bool {
	return s == StreamCompleted || s == StreamCancelled || s == StreamFailed
}

// Outcome is the terminal result of a stream.
type Outcome struct {
	State StreamState
	// Err is a *GenerationError for Failed streams, nil otherwise.
	Err error
	// Text is every chunk yielded so far, in order.
	Text string
	// Chunks counts text chunks, excluding the closing Final chunk.
	Chunks int
}

// Stream is a lazy sequence of text chunks. The runtime runs on a worker
// goroutine and hands over one token at a time, so production never runs
// more than one token ahead of consumption. A Stream is consumed by one
// goroutine; Outcome, State and Close may be called from any goroutine.
type Stream struct {
	ctx     context.Context
	cancel  *types.CancelFlag
	runCtx  context.Context
	stopRun context.CancelFunc
	tokens  chan string
	done    chan struct{}
	runErr  error
	aborted atomic.Bool
	release func()
	onDone  func(Outcome)

	// next serializes consumers.
	next    sync.Mutex
	mu      sync.Mutex
	state   StreamState
	index   int
	text    strings.Builder
	outcome Outcome
}

func newStream(ctx context.Context, cancel *types.CancelFlag, release func()) *Stream {
	runCtx, stop := context.WithCancel(ctx)
	return &Stream{
		ctx:     ctx,
		cancel:  cancel,
		runCtx:  runCtx,
		stopRun: stop,
		tokens:  make(chan string),
		done:    make(chan struct{}),
		release: release,
		state:   StreamIdle,
	}
}

func (st *Stream) start(h Handle, prompt string, params InferParams) {
	st.mu.Lock()
	st.state = StreamStreaming
	st.mu.Unlock()
	go st.run(h, prompt, params)
}

func (st *Stream) run(h Handle, prompt string, params InferParams) {
	defer close(st.done)
	defer func() {
		if r := recover(); r != nil {
			st.runErr = panicError(r)
		}
	}()
	st.runErr = h.Generate(st.runCtx, prompt, params, st.handOff)
}

// handOff blocks until the consumer takes tok or the stream stops.
func (st *Stream) handOff(tok string) error {
	if tok == "" {
		return nil
	}
	if st.stopRequested() {
		return errStopped
	}
	select {
	case st.tokens <- tok:
		return nil
	case <-st.runCtx.Done():
		return errStopped
	}
}

func (st *Stream) stopRequested() bool {
	return st.cancel.Cancelled() || st.aborted.Load() || st.ctx.Err() != nil
}

// abort stops the worker without waiting for the consumer.
func (st *Stream) abort() {
	st.aborted.Store(true)
	st.stopRun()
}

// Next returns the next chunk. It returns false once the stream reached a
// terminal state; Outcome then describes how it ended. The cancel flag and
// ctx are checked before each chunk, so a stop requested after k chunks
// yields exactly k chunks.
func (st *Stream) Next() (types.TextChunk, bool) {
	st.next.Lock()
	defer st.next.Unlock()
	if st.State() != StreamStreaming {
		return types.TextChunk{}, false
	}
	if st.stopRequested() {
		st.finish(StreamCancelled, nil)
		return types.TextChunk{}, false
	}
	select {
	case tok := <-st.tokens:
		st.mu.Lock()
		c := types.TextChunk{Index: st.index, Text: tok}
		st.index++
		st.text.WriteString(tok)
		st.mu.Unlock()
		metrics.IncChunks()
		return c, true
	case <-st.done:
		if st.stopRequested() || errors.Is(st.runErr, errStopped) {
			st.finish(StreamCancelled, nil)
			return types.TextChunk{}, false
		}
		if st.runErr != nil {
			st.finish(StreamFailed, &GenerationError{Kind: GenRuntimeFault, Err: st.runErr})
			return types.TextChunk{}, false
		}
		st.mu.Lock()
		c := types.TextChunk{Index: st.index, Final: true}
		st.mu.Unlock()
		st.finish(StreamCompleted, nil)
		return c, true
	case <-st.ctx.Done():
		st.finish(StreamCancelled, nil)
		return types.TextChunk{}, false
	}
}

// All ranges over the remaining chunks. Breaking out of the loop cancels
// the stream.
func (st *Stream) All() iter.Seq[types.TextChunk] {
	return func(yield func(types.TextChunk) bool) {
		for {
			c, ok := st.Next()
			if !ok {
				return
			}
			if !yield(c) {
				st.Close()
				return
			}
		}
	}
}

// Close cancels a stream that has not finished and releases the session.
// Closing a finished stream is a no-op.
func (st *Stream) Close() {
	if st.State().Terminal() {
		return
	}
	st.abort()
	st.next.Lock()
	defer st.next.Unlock()
	if !st.State().Terminal() {
		st.finish(StreamCancelled, nil)
	}
}

// State returns the current lifecycle state.
func (st *Stream) State() StreamState {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

// Outcome returns the terminal result, or the partial state while streaming.
func (st *Stream) Outcome() Outcome {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.state.Terminal() {
		return st.outcome
	}
	return Outcome{State: st.state, Text: st.text.String(), Chunks: st.index}
}

// finish records the terminal state, waits for the worker to return so the
// handle is free, then releases the session. Called with next held.
func (st *Stream) finish(state StreamState, err error) {
	st.stopRun()
	<-st.done
	st.mu.Lock()
	st.state = state
	st.outcome = Outcome{State: state, Err: err, Text: st.text.String(), Chunks: st.index}
	out := st.outcome
	st.mu.Unlock()
	st.release()
	if st.onDone != nil {
		st.onDone(out)
	}
}
