package types

// Model represents a loadable weight file discovered on disk.
type Model struct {
	// Stable identifier for the model (the file name).
	// example: tinyllama-q4.gguf
	ID string `json:"id"`
	// Human-friendly name.
	Name string `json:"name"`
	// Absolute path to the weight file or archive.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path"`
	// Container format: "gguf" or "zip".
	Format string `json:"format"`
	// Size on disk in bytes.
	SizeBytes int64 `json:"size_bytes"`
}

// Profile is the runtime configuration derived from probing the host.
// It is copied into a session at load time and never mutated afterwards.
type Profile struct {
	// Number of CPU threads used for evaluation.
	Threads int `json:"threads" yaml:"threads" toml:"threads"`
	// Context window in tokens.
	ContextLength int `json:"context_length" yaml:"context_length" toml:"context_length"`
	// Prompt evaluation batch size.
	BatchSize int `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	// Layers offloaded to the GPU; 0 means CPU only.
	GPULayers int `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
}

// Safe defaults used when a profile field is invalid.
const (
	FallbackThreads       = 1
	FallbackContextLength = 2048
	FallbackBatchSize     = 128
)

// Valid reports whether every field holds a usable value.
func (p Profile) Valid() bool {
	return p.Threads > 0 && p.ContextLength > 0 && p.BatchSize > 0 && p.GPULayers >= 0
}

// Normalize replaces invalid fields with safe defaults.
func (p Profile) Normalize() Profile {
	if p.Threads <= 0 {
		p.Threads = FallbackThreads
	}
	if p.ContextLength <= 0 {
		p.ContextLength = FallbackContextLength
	}
	if p.BatchSize <= 0 {
		p.BatchSize = FallbackBatchSize
	}
	if p.GPULayers < 0 {
		p.GPULayers = 0
	}
	return p
}

// Status is the lifecycle state of a model session.
type Status string

const (
	StatusUnloaded Status = "unloaded"
	StatusLoading  Status = "loading"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

// Stage is a coarse marker reported while a model loads.
type Stage string

const (
	StageProbing    Stage = "probing"
	StageExtracting Stage = "extracting"
	StageReading    Stage = "reading weights"
	StageFinalizing Stage = "finalizing"
	StageReady      Stage = "ready"
)
