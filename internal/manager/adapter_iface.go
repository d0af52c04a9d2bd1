package manager

import (
	"context"

	"promai/pkg/types"
)

// Runtime abstracts the model runtime used by the Manager.
// Concrete implementations (e.g., llama.cpp) should satisfy this interface.
type Runtime interface {
	// Open loads the weights at modelPath configured by profile. It may block
	// for a long time.
	Open(modelPath string, profile types.Profile) (Handle, error)
}

// Handle is a loaded model. It is not reentrant: the Manager guarantees at
// most one Generate call at a time.
type Handle interface {
	// Generate streams tokens for prompt. onToken is invoked once per token;
	// when it returns an error the implementation must stop and return.
	// Implementations must return when ctx is canceled.
	Generate(ctx context.Context, prompt string, params InferParams, onToken func(string) error) error
	// Close releases the weights.
	Close() error
}

// InferParams captures sampling parameters passed to the runtime.
type InferParams struct {
	Temperature   float32
	TopP          float32
	TopK          int
	MaxTokens     int
	Stop          []string
	Seed          int
	RepeatPenalty float32
}

// DefaultInferParams favours focused, code-friendly answers.
func DefaultInferParams() InferParams {
	return InferParams{
		Temperature:   0.2,
		TopP:          0.9,
		TopK:          40,
		MaxTokens:     4096,
		RepeatPenalty: 1.1,
		Stop:          []string{"\n\nUser:", "###"},
	}
}
