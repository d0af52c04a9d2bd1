package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Precedence(t *testing.T) {
	d := t.TempDir()
	cfgPath := writeTempFile(t, d, "cfg.yaml", "models_dir: /from-file\nconversations_dir: /conv-file\nhistory_turns: 3\n")
	envPath := writeTempFile(t, d, ".env", "PROMAI_CONVERSATIONS_DIR=/conv-dotenv\nPROMAI_HISTORY_TURNS=5\nPROMAI_THREADS=2\n")
	t.Setenv("PROMAI_HISTORY_TURNS", "9")

	cfg, err := Resolve(cfgPath, envPath)
	require.NoError(t, err)
	assert.Equal(t, "/from-file", cfg.ModelsDir, "file beats defaults")
	assert.Equal(t, "/conv-dotenv", cfg.ConversationsDir, ".env beats file")
	assert.Equal(t, 9, cfg.HistoryTurns, "environment beats .env")
	assert.Equal(t, 2, cfg.Profile.Threads)
	// Untouched fields keep defaults.
	assert.Equal(t, float32(0.2), cfg.Sampling.Temperature)
	assert.Equal(t, TemplatePlain, cfg.PromptTemplate)
}

func TestResolve_MissingEnvFileIgnored(t *testing.T) {
	d := t.TempDir()
	cfgPath := writeTempFile(t, d, "cfg.json", `{"models_dir":"/m"}`)
	cfg, err := Resolve(cfgPath, filepath.Join(d, "nope.env"))
	require.NoError(t, err)
	assert.Equal(t, "/m", cfg.ModelsDir)
}

func TestResolve_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	d := t.TempDir()
	cfgPath := writeTempFile(t, d, "cfg.yaml", "conversations_dir: ~/chats\n")
	cfg, err := Resolve(cfgPath, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "chats"), cfg.ConversationsDir)
}

func TestResolve_InvalidValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	d := t.TempDir()
	cfgPath := writeTempFile(t, d, "cfg.yaml", "prompt_template: mystery\n")
	_, err := Resolve(cfgPath, "")
	assert.Error(t, err)

	t.Setenv("PROMAI_THREADS", "many")
	_, err = Resolve("", filepath.Join(d, "none.env"))
	assert.ErrorContains(t, err, "PROMAI_THREADS")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PROMAI_TEMPERATURE": "0.5",
		"PROMAI_GPU_LAYERS":  "-1",
		"PROMAI_LOG_LEVEL":   "debug",
	}
	cfg, err := ApplyEnv(Defaults(), func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), cfg.Sampling.Temperature)
	assert.Equal(t, -1, cfg.Profile.GPULayers)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestMerge_ZeroKeepsBase(t *testing.T) {
	base := Defaults()
	got := Merge(base, Config{})
	assert.Equal(t, base, got)
	got = Merge(base, Config{Sampling: Sampling{Stop: []string{"END"}}, Profile: base.Profile})
	assert.Equal(t, []string{"END"}, got.Sampling.Stop)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Defaults().Validate())
	c := Defaults()
	c.HistoryTurns = -1
	assert.Error(t, c.Validate())
	c = Defaults()
	c.LogLevel = "loud"
	assert.Error(t, c.Validate())
	c = Defaults()
	c.Sampling.TopP = 1.5
	assert.Error(t, c.Validate())
}
