// Package debug produces indented text dumps of internal structures for
// debug reports.
package debug

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/maruel/natural"
)

const indent = "  "

// TreeWriter accumulates indented lines, depth 0 is the left margin.
type TreeWriter struct {
	w strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{}
}

func (tw *TreeWriter) String() string {
	return tw.w.String()
}

func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.pad(depth)
	fmt.Fprintf(&tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// TextBlock writes quoted value, so whitespace and control characters of
// document text stay visible.
func (tw *TreeWriter) TextBlock(depth int, label, value string) {
	tw.pad(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(value))
	tw.w.WriteByte('\n')
}

// List writes label with item count followed by items in natural order one
// level deeper.
func (tw *TreeWriter) List(depth int, label string, items []string) {
	tw.Line(depth, "%s: %d", label, len(items))
	for _, item := range Sorted(items) {
		tw.Line(depth+1, "%s", item)
	}
}

func (tw *TreeWriter) pad(depth int) {
	tw.w.WriteString(strings.Repeat(indent, max(depth, 0)))
}

// Sorted returns copy of items in natural order ("H2" before "H10").
func Sorted(items []string) []string {
	out := slices.Clone(items)
	sort.Sort(natural.StringSlice(out))
	return out
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
