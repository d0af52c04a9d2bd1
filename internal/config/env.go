package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"promai/internal/common/fsutil"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PROMAI_"

// DefaultPath is where Resolve looks when no config path is given.
const DefaultPath = "~/.promai/config.yaml"

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// Resolve builds the effective configuration. Precedence, lowest first:
// Defaults, the config file, the .env file, the process environment.
// An empty path falls back to DefaultPath when that file exists; a missing
// envFile is ignored.
func Resolve(path, envFile string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		if p, err := fsutil.ExpandHome(DefaultPath); err == nil && fsutil.PathExists(p) {
			path = p
		}
	}
	if path != "" {
		fileCfg, err := Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = Merge(cfg, fileCfg)
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, fs.ErrNotExist):
		default:
			return cfg, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	cfg, err := ApplyEnv(cfg, lookup)
	if err != nil {
		return cfg, err
	}
	if cfg, err = expandPaths(cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides cfg from PROMAI_* variables.
func ApplyEnv(cfg Config, lookup LookupFunc) (Config, error) {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float32) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = float32(f)
		}
	}
	str("MODELS_DIR", &cfg.ModelsDir)
	str("CONVERSATIONS_DIR", &cfg.ConversationsDir)
	str("DEFAULT_MODEL", &cfg.DefaultModel)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FILE", &cfg.LogFile)
	str("METRICS_FILE", &cfg.MetricsFile)
	str("PROMPT_TEMPLATE", &cfg.PromptTemplate)
	str("SYSTEM_PROMPT", &cfg.SystemPrompt)
	num("HISTORY_TURNS", &cfg.HistoryTurns)
	num("THREADS", &cfg.Profile.Threads)
	num("CONTEXT_LENGTH", &cfg.Profile.ContextLength)
	num("BATCH_SIZE", &cfg.Profile.BatchSize)
	num("GPU_LAYERS", &cfg.Profile.GPULayers)
	num("TOP_K", &cfg.Sampling.TopK)
	num("MAX_TOKENS", &cfg.Sampling.MaxTokens)
	num("SEED", &cfg.Sampling.Seed)
	float("TEMPERATURE", &cfg.Sampling.Temperature)
	float("TOP_P", &cfg.Sampling.TopP)
	float("REPEAT_PENALTY", &cfg.Sampling.RepeatPenalty)
	return cfg, errors.Join(errs...)
}

func expandPaths(cfg Config) (Config, error) {
	for _, p := range []*string{&cfg.ModelsDir, &cfg.ConversationsDir, &cfg.DefaultModel, &cfg.LogFile, &cfg.MetricsFile} {
		if *p == "" {
			continue
		}
		v, err := fsutil.ExpandHome(*p)
		if err != nil {
			return cfg, err
		}
		*p = v
	}
	return cfg, nil
}
