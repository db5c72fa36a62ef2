package client

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// stripControl removes C0/C1 control bytes (other than tab, newline and
// carriage return) from adapter-supplied text. Some adapters wrap a raw
// PTY and forward ANSI escape sequences straight through in "output"
// events and evaluate results; a GUI or log consuming these strings
// should not have to defend against stray escape codes itself.
var stripControl = runes.Remove(runes.Predicate(func(r rune) bool {
	switch r {
	case '\n', '\t', '\r':
		return false
	}
	return unicode.IsControl(r)
}))

func sanitizeText(s string) string {
	out, _, err := transform.String(stripControl, s)
	if err != nil {
		return s
	}
	return out
}
