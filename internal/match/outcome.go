// Package match implements the name resolution engine: a deterministic,
// tiered pipeline that maps a noisy transcribed name to a roster entry, an
// explicit ambiguity report, or a diagnosed non-match.
//
// Tiers are evaluated strictly in order — exact display name, exact phonetic
// key, symmetric phonetic containment, then fuzzy edit distance — and the
// first tier producing a non-empty result terminates the pipeline. A tie at
// any tier is reported as ambiguous rather than resolved by a weaker tier:
// silently picking one of two equally plausible students would credit the
// wrong one.
//
// Resolution is stateless per call and reads only the immutable
// [roster.Index], so any number of calls may run concurrently.
package match

import "github.com/mingshi/voicemark/internal/roster"

// Kind discriminates the three resolution outcomes.
type Kind string

const (
	// KindMatched means exactly one roster entry was selected.
	KindMatched Kind = "matched"

	// KindAmbiguous means two or more entries tied at the winning tier's
	// criterion. Callers must not auto-resolve the tie.
	KindAmbiguous Kind = "ambiguous"

	// KindUnmatched means no entry came close enough to accept.
	KindUnmatched Kind = "unmatched"
)

// Tier identifies the matching strategy that produced an outcome.
type Tier string

const (
	TierExact            Tier = "exact"
	TierPhoneticExact    Tier = "phonetic_exact"
	TierPhoneticContains Tier = "phonetic_substring"
	TierFuzzy            Tier = "fuzzy"
)

// Candidate pairs a roster entry with its edit distance from the input's
// phonetic key. Candidates are transient scoring evidence; they are never
// persisted.
type Candidate struct {
	Entry    roster.Entry `json:"entry"`
	Distance int          `json:"distance"`
}

// Outcome is the tagged result of one resolution call. Exactly one variant
// holds, selected by Kind; an Outcome is immutable once returned.
//
// Field population per variant:
//
//	KindMatched    — Tier and Entry are set. Candidates carries the full
//	                 distance-sorted roster only for TierFuzzy (evidence for
//	                 downstream analysis); it is empty for earlier tiers.
//	KindAmbiguous  — Candidates holds every tied entry, TiedDistance their
//	                 shared distance (0 for phonetic ties).
//	KindUnmatched  — Candidates holds the up-to-three closest entries as
//	                 diagnostic evidence.
type Outcome struct {
	Kind Kind `json:"kind"`

	// Input is the display form of the name being resolved; InputKey is its
	// canonical phonetic key.
	Input    string `json:"input"`
	InputKey string `json:"input_key"`

	Tier         Tier         `json:"tier,omitempty"`
	Entry        roster.Entry `json:"entry,omitzero"`
	Candidates   []Candidate  `json:"candidates,omitempty"`
	TiedDistance int          `json:"tied_distance,omitempty"`
}
