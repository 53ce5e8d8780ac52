// Package textrepair undoes UTF-8 text that was decoded as Windows-1252
// and stored, a corruption that turns Arabic into strings like "Ù…Ø­Ø§".
package textrepair

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var markers = []string{"Ø", "Ù", "Ã", "Â", "â"}

// LooksBroken reports whether text carries typical mojibake markers
func LooksBroken(text string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// Repair returns the original text of a mis-decoded string. Text that does
// not look broken, or does not re-encode cleanly, is returned unchanged.
func Repair(text string) string {
	if text == "" || !LooksBroken(text) {
		return text
	}

	raw, err := charmap.Windows1252.NewEncoder().String(text)
	if err != nil || !utf8.ValidString(raw) {
		return text
	}
	if LooksBroken(raw) {
		return text
	}
	return raw
}
