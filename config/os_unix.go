//go:build !windows

package config

import (
	"os"
	"strings"

	"golang.org/x/term"
)

const badFileName = "_unnamed_"

// CleanFileName drops path and list separators from a file name, leading
// dots are removed to avoid hidden files.
func CleanFileName(in string) string {
	out := strings.Map(func(sym rune) rune {
		if sym == os.PathSeparator || sym == os.PathListSeparator {
			return -1
		}
		return sym
	}, in)
	if out = strings.TrimLeft(out, "."); len(out) == 0 {
		return badFileName
	}
	return out
}

// EnableColorOutput checks if colorized output is possible.
func EnableColorOutput(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}
