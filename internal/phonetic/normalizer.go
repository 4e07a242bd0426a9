// Package phonetic converts names into canonical phonetic keys for
// approximate matching.
//
// A phonetic key is a tone-less, lowercase pinyin romanization of the input:
// Han runes become their pinyin syllables (first pronunciation for
// polyphones, matching how teachers read out roster names), ASCII letters
// and digits pass through lowercased, and every other rune — whitespace,
// punctuation, unrecognized scripts — is dropped. The resulting alphabet is
// [a-z0-9], which makes [Key] idempotent: applying it to its own output is
// the identity.
//
// Both functions are pure and total; they never fail and are safe for
// concurrent use.
package phonetic

import (
	"strings"

	"github.com/mozillazg/go-pinyin"
)

// keyArgs configures go-pinyin for key generation: normal style (no tone
// marks) with a fallback that keeps ASCII letters and digits and drops
// everything else. Read-only after init.
var keyArgs = func() pinyin.Args {
	a := pinyin.NewArgs()
	a.Fallback = func(r rune, _ pinyin.Args) []string {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return []string{string(r)}
		case r >= 'A' && r <= 'Z':
			return []string{string(r + ('a' - 'A'))}
		}
		return nil
	}
	return a
}()

// Key returns the canonical phonetic key for raw.
//
// Key is deterministic and idempotent: Key(Key(s)) == Key(s) for all s.
// The empty string maps to the empty string.
func Key(raw string) string {
	return strings.Join(pinyin.LazyPinyin(raw, keyArgs), "")
}

// Display returns the display form of raw: leading and trailing whitespace
// removed and interior runs of whitespace collapsed to a single space.
func Display(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
