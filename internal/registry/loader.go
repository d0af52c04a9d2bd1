package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"promai/internal/common/fsutil"
	"promai/pkg/types"
)

const extractedSuffix = "_extracted.gguf"

// Scanner finds loadable weight files in a directory.
type Scanner struct {
	// Exts are the accepted extensions, lower case with the leading dot.
	Exts []string
}

// NewScanner accepts GGUF weights and zip archives.
func NewScanner() *Scanner {
	return &Scanner{Exts: []string{".gguf", ".zip"}}
}

// Scan lists candidate models in dir, sorted by name. ID is the full
// filename; Path is absolute. A weight file extracted from an archive in the
// same directory is listed once, as the archive.
func (s *Scanner) Scan(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	archives := make(map[string]bool)
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !s.accepts(ext) {
			continue
		}
		m := types.Model{
			ID:     name,
			Name:   strings.TrimSuffix(name, filepath.Ext(name)),
			Path:   filepath.Join(abs, name),
			Format: strings.TrimPrefix(ext, "."),
		}
		if fi, err := e.Info(); err == nil {
			m.SizeBytes = fi.Size()
		}
		if m.Format == "zip" {
			archives[m.Name] = true
		}
		models = append(models, m)
	}
	out := models[:0]
	for _, m := range models {
		if stem, ok := strings.CutSuffix(strings.ToLower(m.ID), extractedSuffix); ok && hasFold(archives, stem) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].ID) < strings.ToLower(out[j].ID) })
	return out, nil
}

func (s *Scanner) accepts(ext string) bool {
	for _, e := range s.Exts {
		if e == ext {
			return true
		}
	}
	return false
}

func hasFold(set map[string]bool, key string) bool {
	for k := range set {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// LoadDir scans dir with the default scanner.
func LoadDir(dir string) ([]types.Model, error) {
	return NewScanner().Scan(dir)
}

// Find returns the model whose ID or name matches query, case-insensitively.
// A unique prefix match is accepted when there is no exact match.
func Find(models []types.Model, query string) (types.Model, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return types.Model{}, false
	}
	var prefix []types.Model
	for _, m := range models {
		id, name := strings.ToLower(m.ID), strings.ToLower(m.Name)
		if id == q || name == q {
			return m, true
		}
		if strings.HasPrefix(id, q) {
			prefix = append(prefix, m)
		}
	}
	if len(prefix) == 1 {
		return prefix[0], true
	}
	return types.Model{}, false
}
