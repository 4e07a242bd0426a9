package match

import "github.com/antzucaro/matchr"

// Distance returns the Levenshtein edit distance between two phonetic keys:
// the minimum number of single-rune insertions, deletions, and substitutions
// (unit cost each) transforming a into b.
//
// Distance is pure and total. It is symmetric — Distance(a, b) ==
// Distance(b, a) — and zero exactly when a == b. The computation always runs
// the full O(|a|·|b|) dynamic program; there are no early-exit shortcuts.
func Distance(a, b string) int {
	return matchr.Levenshtein(a, b)
}
