package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"promai/pkg/types"
)

// Prompt templates understood by the chat layer.
const (
	TemplatePlain  = "plain"
	TemplateChatML = "chatml"
)

// Config holds runtime parameters for promai.
// Zero values mean "unspecified" and are replaced by Defaults in Resolve.
type Config struct {
	ModelsDir        string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	ConversationsDir string `json:"conversations_dir" yaml:"conversations_dir" toml:"conversations_dir"`
	DefaultModel     string `json:"default_model" yaml:"default_model" toml:"default_model"`
	LogLevel         string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFile          string `json:"log_file" yaml:"log_file" toml:"log_file"`
	MetricsFile      string `json:"metrics_file" yaml:"metrics_file" toml:"metrics_file"`
	// HistoryTurns is how many prior turns are replayed into the prompt.
	HistoryTurns   int    `json:"history_turns" yaml:"history_turns" toml:"history_turns"`
	PromptTemplate string `json:"prompt_template" yaml:"prompt_template" toml:"prompt_template"`
	SystemPrompt   string `json:"system_prompt" yaml:"system_prompt" toml:"system_prompt"`
	// Profile overrides probed values field by field; zero keeps the probe.
	// A negative gpu_layers forces CPU only.
	Profile  types.Profile `json:"profile" yaml:"profile" toml:"profile"`
	Sampling Sampling      `json:"sampling" yaml:"sampling" toml:"sampling"`
}

// Sampling parameters for generation.
type Sampling struct {
	Temperature   float32  `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP          float32  `json:"top_p" yaml:"top_p" toml:"top_p"`
	TopK          int      `json:"top_k" yaml:"top_k" toml:"top_k"`
	RepeatPenalty float32  `json:"repeat_penalty" yaml:"repeat_penalty" toml:"repeat_penalty"`
	MaxTokens     int      `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Stop          []string `json:"stop" yaml:"stop" toml:"stop"`
	Seed          int      `json:"seed" yaml:"seed" toml:"seed"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		ModelsDir:        "~/.promai/models",
		ConversationsDir: "~/.promai/conversations",
		LogLevel:         "info",
		LogFile:          "~/.promai/promai.log",
		HistoryTurns:     6,
		PromptTemplate:   TemplatePlain,
		SystemPrompt:     "You are a helpful assistant. Answer clearly and concisely.",
		Sampling: Sampling{
			Temperature:   0.2,
			TopP:          0.9,
			TopK:          40,
			RepeatPenalty: 1.1,
			MaxTokens:     4096,
			Stop:          []string{"\n\nUser:", "###"},
		},
	}
}

// Merge returns base with every non-zero field of over applied.
func Merge(base, over Config) Config {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	str(&base.ModelsDir, over.ModelsDir)
	str(&base.ConversationsDir, over.ConversationsDir)
	str(&base.DefaultModel, over.DefaultModel)
	str(&base.LogLevel, over.LogLevel)
	str(&base.LogFile, over.LogFile)
	str(&base.MetricsFile, over.MetricsFile)
	str(&base.PromptTemplate, over.PromptTemplate)
	str(&base.SystemPrompt, over.SystemPrompt)
	if over.HistoryTurns != 0 {
		base.HistoryTurns = over.HistoryTurns
	}
	if over.Profile.Threads != 0 {
		base.Profile.Threads = over.Profile.Threads
	}
	if over.Profile.ContextLength != 0 {
		base.Profile.ContextLength = over.Profile.ContextLength
	}
	if over.Profile.BatchSize != 0 {
		base.Profile.BatchSize = over.Profile.BatchSize
	}
	if over.Profile.GPULayers != 0 {
		base.Profile.GPULayers = over.Profile.GPULayers
	}
	s, o := &base.Sampling, over.Sampling
	if o.Temperature != 0 {
		s.Temperature = o.Temperature
	}
	if o.TopP != 0 {
		s.TopP = o.TopP
	}
	if o.TopK != 0 {
		s.TopK = o.TopK
	}
	if o.RepeatPenalty != 0 {
		s.RepeatPenalty = o.RepeatPenalty
	}
	if o.MaxTokens != 0 {
		s.MaxTokens = o.MaxTokens
	}
	if len(o.Stop) > 0 {
		s.Stop = o.Stop
	}
	if o.Seed != 0 {
		s.Seed = o.Seed
	}
	return base
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	if c.HistoryTurns < 0 {
		return fmt.Errorf("history_turns must be >= 0, got %d", c.HistoryTurns)
	}
	switch c.PromptTemplate {
	case TemplatePlain, TemplateChatML:
	default:
		return fmt.Errorf("unknown prompt_template %q (want %q or %q)", c.PromptTemplate, TemplatePlain, TemplateChatML)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.Sampling.Temperature < 0 || c.Sampling.TopP < 0 || c.Sampling.TopP > 1 {
		return fmt.Errorf("sampling out of range: temperature=%v top_p=%v", c.Sampling.Temperature, c.Sampling.TopP)
	}
	return nil
}
