package extract

import (
	"bytes"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type textReader struct {
	maxBytes int
}

func (t textReader) ExtractText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	// Read a little past the cap so clip can mark truncation.
	raw, err := io.ReadAll(io.LimitReader(f, int64(t.maxBytes)+utf8.UTFMax))
	if err != nil {
		return "", err
	}
	if len(raw) > t.maxBytes {
		raw = trimPartialRune(raw)
	}
	text, err := decodeText(raw)
	if err != nil {
		return "", err
	}
	return clip(text, t.maxBytes), nil
}

// decodeText honours UTF-8 and UTF-16 byte order marks. Input that is not
// valid UTF-8 and carries no BOM is read as Windows-1252.
func decodeText(raw []byte) (string, error) {
	hasBOM := bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) ||
		bytes.HasPrefix(raw, []byte{0xFE, 0xFF})
	var dec transform.Transformer
	switch {
	case hasBOM:
		dec = unicode.BOMOverride(unicode.UTF8.NewDecoder())
	case utf8.Valid(raw):
		return normalize(string(raw)), nil
	default:
		dec = charmap.Windows1252.NewDecoder()
	}
	out, _, err := transform.Bytes(dec, raw)
	if err != nil {
		return "", err
	}
	return normalize(string(out)), nil
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return norm.NFC.String(strings.ToValidUTF8(s, "�"))
}

// trimPartialRune drops an incomplete UTF-8 sequence left by a size limit.
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		r, size := utf8.DecodeLastRune(b)
		if r != utf8.RuneError || size > 1 {
			break
		}
		b = b[:len(b)-1]
	}
	return b
}
