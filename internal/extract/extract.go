// Package extract turns attachment files into plain text for prompts.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupported is returned for file types that have no reader, including
// formats whose optional reader is not built in.
var ErrUnsupported = errors.New("unsupported attachment type")

// DefaultMaxBytes caps how much text one attachment contributes.
const DefaultMaxBytes = 256 * 1024

// Extractor reads the text content of a file.
type Extractor interface {
	ExtractText(path string) (string, error)
}

// Func adapts a function to Extractor.
type Func func(path string) (string, error)

func (f Func) ExtractText(path string) (string, error) { return f(path) }

var textExts = []string{
	".txt", ".text", ".md", ".markdown", ".rst", ".csv", ".tsv", ".log",
	".json", ".yaml", ".yml", ".toml", ".ini", ".cfg", ".conf", ".xml",
	".go", ".py", ".js", ".ts", ".java", ".c", ".h", ".cpp", ".hpp",
	".rs", ".rb", ".sh", ".sql", ".css",
}

// Registry dispatches on file extension.
type Registry struct {
	byExt map[string]Extractor
}

// New returns a Registry with the built-in readers: plain text and source
// files, HTML and DOCX.
func New() *Registry {
	return NewWithLimit(DefaultMaxBytes)
}

// NewWithLimit is New with a custom per-file text cap.
func NewWithLimit(maxBytes int) *Registry {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	r := &Registry{byExt: make(map[string]Extractor)}
	text := textReader{maxBytes: maxBytes}
	for _, ext := range textExts {
		r.Register(ext, text)
	}
	html := htmlReader{maxBytes: maxBytes}
	r.Register(".html", html)
	r.Register(".htm", html)
	r.Register(".docx", docxReader{maxBytes: maxBytes})
	return r
}

// Register binds ext (with or without the leading dot) to e.
func (r *Registry) Register(ext string, e Extractor) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.byExt[ext] = e
}

// Supported reports whether path has a registered reader.
func (r *Registry) Supported(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions lists registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// ExtractText reads path with the reader registered for its extension.
func (r *Registry) ExtractText(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.byExt[ext]
	if !ok {
		if ext == "" {
			ext = "(no extension)"
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	return e.ExtractText(path)
}

const truncatedNote = "\n[truncated]"

// clip bounds s to maxBytes without splitting a rune.
func clip(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncatedNote
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
