package debug

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// TreeWriter produces indented human readable dumps of parsed structures for
// debug reports.
type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

func (tw TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}

func (tw TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

func (tw TreeWriter) TextBlock(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(value))
	tw.w.WriteByte('\n')
}

// Field is TextBlock which skips empty values.
func (tw TreeWriter) Field(depth int, label, value string) {
	if value == "" {
		return
	}
	tw.TextBlock(depth, label, value)
}

// Excerpt writes at most limit runes of value followed by the number of
// omitted runes. Chapter bodies are too long to be dumped in full.
func (tw TreeWriter) Excerpt(depth int, label, value string, limit int) {
	if value == "" {
		return
	}
	n := utf8.RuneCountInString(value)
	if limit <= 0 || n <= limit {
		tw.TextBlock(depth, label, value)
		return
	}
	cut := value
	for i := range value {
		if limit == 0 {
			cut = value[:i]
			break
		}
		limit--
	}
	tw.indent(depth)
	fmt.Fprintf(tw.w, "%s: %s (+%d runes)\n", label, encodeText(cut), n-utf8.RuneCountInString(cut))
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
