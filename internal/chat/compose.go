package chat

import (
	"errors"
	"path/filepath"
	"strings"

	"promai/internal/extract"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".webp": true,
}

// ComposeMessage appends each attachment to text as an "[Attached file: name]"
// block followed by its extracted content. Attachments that cannot be read
// get a short note instead; composing never fails.
func ComposeMessage(ex extract.Extractor, text string, attachments []string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(text))
	for _, p := range attachments {
		name := filepath.Base(p)
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("[Attached file: ")
		sb.WriteString(name)
		sb.WriteString("]\n")
		if imageExts[strings.ToLower(filepath.Ext(p))] {
			sb.WriteString("(image content cannot be read by a text model)")
			continue
		}
		if ex == nil {
			sb.WriteString("(file type not supported)")
			continue
		}
		body, err := ex.ExtractText(p)
		switch {
		case errors.Is(err, extract.ErrUnsupported):
			sb.WriteString("(file type not supported)")
		case err != nil:
			sb.WriteString("(file could not be read)")
		case strings.TrimSpace(body) == "":
			sb.WriteString("(file is empty)")
		default:
			sb.WriteString(body)
		}
	}
	return sb.String()
}
