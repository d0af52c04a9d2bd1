//go:build !llama

package manager

// No-CGO stub for the llama runtime, compiled when the 'llama' build tag
// is NOT set. The real runtime lives in adapter_llama.go.

import (
	"context"

	"promai/pkg/types"
)

var llamaBuilt = false

type llamaRuntime struct{}

// NewLlamaRuntime returns a runtime whose Open always fails with a
// dependency-unavailable error.
func NewLlamaRuntime() Runtime { return llamaRuntime{} }

func (llamaRuntime) Open(string, types.Profile) (Handle, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

type llamaHandle struct{}

func (llamaHandle) Generate(ctx context.Context, _ string, _ InferParams, _ func(string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

func (llamaHandle) Close() error { return nil }

var _ Handle = llamaHandle{}
