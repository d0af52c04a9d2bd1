package manager

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"promai/internal/common/fsutil"
	"promai/pkg/types"
)

var (
	ggufMagic = []byte("GGUF")
	zipMagic  = []byte("PK")
)

const extractedSuffix = "_extracted.gguf"

// prepareWeights validates path and returns the weight file to open.
// Archives must hold exactly one non-empty .gguf entry, which is extracted.
func (m *Manager) prepareWeights(ctx context.Context, path string, progress ProgressFunc) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", loadErr(LoadNotFound, path, nil)
		}
		return "", loadErr(LoadNotFound, path, err)
	}
	if fi.IsDir() {
		return "", loadErr(LoadUnsupportedFormat, path, errors.New("path is a directory"))
	}
	magic, err := readMagic(path)
	if err != nil {
		return "", loadErr(LoadUnsupportedFormat, path, err)
	}
	switch {
	case bytes.Equal(magic, ggufMagic):
		return path, nil
	case bytes.HasPrefix(magic, zipMagic):
		progress.report(types.StageExtracting, 30)
		return m.extractArchive(ctx, path)
	default:
		return "", loadErr(LoadUnsupportedFormat, path, fmt.Errorf("unrecognized file header %q", magic))
	}
}

func readMagic(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, len(ggufMagic))
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("file is empty")
		}
		return nil, err
	}
	if n < len(zipMagic) {
		return nil, errors.New("file too short")
	}
	return buf[:n], nil
}

// extractArchive writes the archive's single .gguf entry to
// <dir>/<stem>_extracted.gguf, reusing an earlier extraction of equal size.
func (m *Manager) extractArchive(ctx context.Context, path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", loadErr(LoadUnsupportedFormat, path, fmt.Errorf("invalid archive: %w", err))
	}
	defer zr.Close()

	var candidates []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || f.UncompressedSize64 == 0 {
			continue
		}
		if strings.EqualFold(filepath.Ext(f.Name), ".gguf") {
			candidates = append(candidates, f)
		}
	}
	switch len(candidates) {
	case 0:
		return "", loadErr(LoadUnsupportedFormat, path, errors.New("archive holds no .gguf file"))
	case 1:
	default:
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Name
		}
		return "", loadErr(LoadAmbiguousArchive, path, fmt.Errorf("found %d: %s", len(names), strings.Join(names, ", ")))
	}
	entry := candidates[0]

	dir := m.extractDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(dir, stem+extractedSuffix)
	if fi, err := os.Stat(out); err == nil && uint64(fi.Size()) == entry.UncompressedSize64 {
		m.log.Debug().Str("path", out).Msg("reusing extracted weights")
		return out, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", loadErr(LoadRuntimeFault, path, err)
	}

	rc, err := entry.Open()
	if err != nil {
		return "", loadErr(LoadUnsupportedFormat, path, err)
	}
	defer rc.Close()
	err = fsutil.WriteAtomic(out, 0o644, func(w io.Writer) error {
		_, err := io.Copy(w, ctxReader{ctx: ctx, r: rc})
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", loadErr(LoadRuntimeFault, path, ctx.Err())
		}
		return "", loadErr(LoadUnsupportedFormat, path, fmt.Errorf("extract %s: %w", entry.Name, err))
	}
	magic, err := readMagic(out)
	if err != nil || !bytes.Equal(magic, ggufMagic) {
		_ = os.Remove(out)
		return "", loadErr(LoadUnsupportedFormat, path, fmt.Errorf("%s is not a GGUF file", entry.Name))
	}
	m.log.Info().Str("archive", path).Str("entry", entry.Name).Str("path", out).Msg("extracted weights")
	return out, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
