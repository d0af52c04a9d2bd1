package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"promai/pkg/types"
)

func TestScanner_ScanFiltersModels(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"a.gguf",
		"b.GGUF", // case-insensitive
		"c.zip",
		"not-model.txt",
		"model.bin",
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("data"), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.gguf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	models, err := NewScanner().Scan(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 3 {
		t.Fatalf("expected 3 models, got %+v", models)
	}
	if models[0].ID != "a.gguf" || models[1].ID != "b.GGUF" || models[2].ID != "c.zip" {
		t.Fatalf("unexpected order: %+v", models)
	}
	if models[2].Format != "zip" || models[2].Name != "c" || models[2].SizeBytes != 4 {
		t.Fatalf("unexpected metadata: %+v", models[2])
	}
	if !filepath.IsAbs(models[0].Path) {
		t.Fatalf("path not absolute: %s", models[0].Path)
	}
}

func TestScanner_HidesExtractedWeights(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"bundle.zip", "bundle_extracted.gguf", "other_extracted.gguf"} {
		if err := os.WriteFile(filepath.Join(dir, f), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var ids []string
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	if strings.Join(ids, ",") != "bundle.zip,other_extracted.gguf" {
		t.Fatalf("ids=%v", ids)
	}
}

func TestScanner_ExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir on this platform: %v", err)
	}
	hTmp, err := os.MkdirTemp(home, "promai-registry-*")
	if err != nil {
		t.Skipf("cannot create temp under home: %v", err)
	}
	defer os.RemoveAll(hTmp)
	if err := os.WriteFile(filepath.Join(hTmp, "x.gguf"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var tildePath string
	if runtime.GOOS == "windows" {
		tildePath = filepath.Join("~", filepath.Base(hTmp))
	} else {
		tildePath = "~/" + filepath.Base(hTmp)
	}
	models, err := NewScanner().Scan(tildePath)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 1 || models[0].ID != "x.gguf" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestLoadDir_MissingDir(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestFind(t *testing.T) {
	models := []types.Model{
		{ID: "llama-3-8b.gguf", Name: "llama-3-8b"},
		{ID: "llama-3-70b.gguf", Name: "llama-3-70b"},
		{ID: "phi-2.zip", Name: "phi-2"},
	}
	if m, ok := Find(models, "PHI-2"); !ok || m.ID != "phi-2.zip" {
		t.Fatalf("name match failed: %+v %v", m, ok)
	}
	if m, ok := Find(models, "llama-3-70b.gguf"); !ok || m.Name != "llama-3-70b" {
		t.Fatalf("id match failed: %+v %v", m, ok)
	}
	if _, ok := Find(models, "llama"); ok {
		t.Fatalf("ambiguous prefix should not match")
	}
	if m, ok := Find(models, "ph"); !ok || m.ID != "phi-2.zip" {
		t.Fatalf("unique prefix failed: %+v %v", m, ok)
	}
	if _, ok := Find(models, " "); ok {
		t.Fatalf("empty query should not match")
	}
}
