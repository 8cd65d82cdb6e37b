package pipeline

import (
	"strings"
	"unicode"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
)

// Normalize collapses runs of spaces and tabs within lines, strips control
// characters, and reduces blank-line runs to a single paragraph break. The
// result is the canonical text the chunker operates on.
func Normalize(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := true // swallow leading blank lines

	for _, line := range lines {
		line = strings.Join(strings.FieldsFunc(line, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsControl(r)
		}), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
				blank = true
			}
			continue
		}
		out = append(out, line)
		blank = false
	}

	// Drop a trailing paragraph break.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

// DetectSections finds Markdown-style ATX headings in normalized text and
// groups the body under each one. It returns the detected sections plus the
// text with heading lines removed (the chunker carries headings as
// annotations, not content). Text without headings yields nil sections and
// the input unchanged.
func DetectSections(text string) ([]analysis.Section, string) {
	lines := strings.Split(text, "\n")

	var sections []analysis.Section
	var cur strings.Builder
	var curHeading string
	sawHeading := false

	flush := func() {
		body := strings.TrimSpace(cur.String())
		if body != "" || curHeading != "" {
			sections = append(sections, analysis.Section{Heading: curHeading, Text: body})
		}
		cur.Reset()
	}

	for _, line := range lines {
		if heading, ok := parseHeading(line); ok {
			flush()
			curHeading = heading
			sawHeading = true
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	flush()

	if !sawHeading {
		return nil, text
	}

	var body strings.Builder
	for i, sec := range sections {
		if i > 0 {
			body.WriteString("\n\n")
		}
		body.WriteString(sec.Text)
	}
	return sections, body.String()
}

// parseHeading recognizes ATX headings: 1-6 '#' characters followed by a
// space and the heading text.
func parseHeading(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level > 6 || level == len(trimmed) || trimmed[level] != ' ' {
		return "", false
	}
	heading := strings.TrimSpace(strings.TrimRight(trimmed[level:], "#"))
	if heading == "" {
		return "", false
	}
	return heading, true
}
