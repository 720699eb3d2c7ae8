package whitelist

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize returns the key under which identity is stored: NFC composed and
// lower-cased. Identities that differ only by case share one entry.
func Normalize(identity string) string {
	return strings.ToLower(norm.NFC.String(identity))
}
