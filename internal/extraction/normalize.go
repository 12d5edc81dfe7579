package extraction

import "strings"

// Line is one non-blank line of OCR text.
type Line struct {
	// Number is the 1-based position of the line in the raw text.
	Number int

	// Text is the trimmed line in its original casing. Values are captured from here.
	Text string

	// Folded is the lowercased line with whitespace runs collapsed. Markers are matched here.
	Folded string
}

// Normalize splits raw OCR text into analyzable lines.
// Blank lines are dropped, so empty or whitespace-only input yields no lines.
func Normalize(raw string) []Line {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	parts := strings.Split(raw, "\n")
	lines := make([]Line, 0, len(parts))
	for i, part := range parts {
		text := strings.TrimSpace(part)
		if text == "" {
			continue
		}
		lines = append(lines, Line{
			Number: i + 1,
			Text:   text,
			Folded: strings.Join(strings.Fields(strings.ToLower(text)), " "),
		})
	}

	return lines
}
