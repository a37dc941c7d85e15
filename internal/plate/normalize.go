// Package plate normalizes OCR text and classifies it against plate grammars.
package plate

import "strings"

// misreads maps digits that OCR commonly returns for letters.
var misreads = strings.NewReplacer(
	"0", "O",
	"1", "I",
	"5", "S",
	"8", "B",
)

// Normalize keeps ASCII letters, digits and '-', uppercases, then replaces
// 0, 1, 5 and 8 with O, I, S and B everywhere. The substitution is applied
// even inside digit groups. Normalize is idempotent.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	return misreads.Replace(b.String())
}
