//go:build llama

package manager

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"

	"promai/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaRuntime loads GGUF weights in-process through go-llama.cpp.
type llamaRuntime struct{}

// NewLlamaRuntime returns the in-process llama.cpp runtime.
func NewLlamaRuntime() Runtime { return llamaRuntime{} }

// llamaHandle owns the loaded model
type llamaHandle struct {
	model   *llama.LLama
	profile types.Profile
}

func (llamaRuntime) Open(modelPath string, profile types.Profile) (Handle, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{
		llama.SetContext(profile.ContextLength),
		llama.SetNBatch(profile.BatchSize),
		llama.SetGPULayers(profile.GPULayers),
		llama.SetMMap(true),
	}
	m, err := llama.New(modelPath, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaHandle{model: m, profile: profile}, nil
}

func (h *llamaHandle) Generate(ctx context.Context, prompt string, params InferParams, onToken func(string) error) error {
	if h.model == nil {
		return errors.New("llama model not initialized")
	}

	// Bridge token streaming to onToken and respect cancellation
	var cbErr error
	h.model.SetTokenCallback(func(tok string) bool {
		if ctx.Err() != nil {
			return false
		}
		if err := onToken(tok); err != nil {
			cbErr = err
			return false
		}
		return true
	})
	defer h.model.SetTokenCallback(nil)

	_, err := h.model.Predict(prompt, predictOptions(params, h.profile)...)
	if cbErr != nil {
		return cbErr
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (h *llamaHandle) Close() error {
	if h.model != nil {
		h.model.Free()
		h.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts sampling params into go-llama.cpp options.
func predictOptions(params InferParams, profile types.Profile) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, params.MaxTokens)),
		llama.SetThreads(max(1, profile.Threads)),
		llama.SetBatch(max(1, profile.BatchSize)),
		llama.SetTopP(zf(params.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(params.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(params.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(zf(params.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if params.Seed != 0 {
		po = append(po, llama.SetSeed(params.Seed))
	}
	if len(params.Stop) > 0 {
		po = append(po, llama.SetStopWords(params.Stop...))
	}
	return po
}
