package chat

import (
	"fmt"
	"strings"
)

// Rendered is the display form of an entry. Text entries carry only Text;
// plot entries carry the caption in Text and the decoded image.
type Rendered struct {
	Role  Role
	Text  string
	Image []byte
}

// Render projects an entry for display. Text is returned literally, with no
// markup interpretation.
func Render(e Entry) (Rendered, error) {
	r := Rendered{Role: e.Role, Text: e.Text}
	if e.Kind != KindPlot {
		return r, nil
	}

	img, err := e.ImageBytes()
	if err != nil {
		return r, fmt.Errorf("decode plot image: %w", err)
	}
	if len(img) == 0 {
		return r, fmt.Errorf("plot entry %s has no image data", e.ID)
	}
	r.Image = img
	return r, nil
}

// FormatTranscript renders entries as plain text, one "role: text" line per
// entry. Plot entries are followed by imageNote(entry) when it is non-nil.
func FormatTranscript(entries []Entry, imageNote func(Entry) string) string {
	if len(entries) == 0 {
		return "No messages yet"
	}

	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s: %s\n", e.Role, e.Text)
		if e.Kind == KindPlot && imageNote != nil {
			if note := imageNote(e); note != "" {
				fmt.Fprintf(&sb, "  %s\n", note)
			}
		}
	}
	return sb.String()
}
