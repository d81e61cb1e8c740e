package assistant

import (
	"io"
	"strings"
	"unicode"
)

// markers are removed from model output before display.
var markers = []string{"```", "---"}

// Clean removes code fences and horizontal rules from s and trims
// surrounding whitespace.
func Clean(s string) string {
	return strings.TrimSpace(stripMarkers(s))
}

func stripMarkers(s string) string {
	for _, m := range markers {
		s = strings.ReplaceAll(s, m, "")
	}
	return s
}

// cleanWriter applies Clean incrementally to streamed chunks. A trailing run
// of whitespace, backticks, or dashes is held back until the next chunk shows
// whether it starts a marker or ends the answer.
type cleanWriter struct {
	w       io.Writer
	pending string
	started bool
	out     strings.Builder
}

func newCleanWriter(w io.Writer) *cleanWriter {
	return &cleanWriter{w: w}
}

// WriteString accepts the next chunk of model output.
func (c *cleanWriter) WriteString(chunk string) error {
	text := stripMarkers(c.pending + chunk)
	cut := len(strings.TrimRightFunc(text, isHoldable))
	c.pending = text[cut:]
	return c.emit(text[:cut])
}

// Flush writes whatever is still held back, minus trailing whitespace.
func (c *cleanWriter) Flush() error {
	tail := strings.TrimRightFunc(stripMarkers(c.pending), unicode.IsSpace)
	c.pending = ""
	return c.emit(tail)
}

// Text returns everything written so far.
func (c *cleanWriter) Text() string { return c.out.String() }

func (c *cleanWriter) emit(s string) error {
	if !c.started {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
	}
	if s == "" {
		return nil
	}
	c.started = true
	c.out.WriteString(s)
	_, err := io.WriteString(c.w, s)
	return err
}

func isHoldable(r rune) bool {
	return r == '`' || r == '-' || unicode.IsSpace(r)
}
