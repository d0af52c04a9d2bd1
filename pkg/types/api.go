package types

import "sync/atomic"

// CancelFlag is a stop signal shared between the interaction surface and a
// running generation. The zero value is ready to use.
type CancelFlag struct {
	set atomic.Bool
}

// NewCancelFlag returns an unset flag.
func NewCancelFlag() *CancelFlag { return &CancelFlag{} }

// Cancel requests a stop at the next chunk boundary.
func (f *CancelFlag) Cancel() {
	if f != nil {
		f.set.Store(true)
	}
}

// Cancelled reports whether a stop was requested. A nil flag is never set.
func (f *CancelFlag) Cancelled() bool {
	return f != nil && f.set.Load()
}

// GenerationRequest is one user send.
type GenerationRequest struct {
	// Fully rendered prompt text.
	Prompt string
	// Prior turns the prompt was built from.
	Context []Turn
	// Stop signal polled between chunks; may be nil.
	Cancel *CancelFlag
}

// TextChunk is an incremental fragment of generated text.
type TextChunk struct {
	// Position of the chunk within its stream, starting at 0.
	Index int
	Text  string
	// Final marks the closing chunk of a completed generation.
	Final bool
}
