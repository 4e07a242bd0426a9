package match

import (
	"errors"
	"slices"

	"github.com/mingshi/voicemark/internal/phonetic"
	"github.com/mingshi/voicemark/internal/roster"
)

// DefaultThreshold is the default fuzzy acceptance threshold: the largest
// edit distance at which a lone best candidate is still accepted.
const DefaultThreshold = 2

// DefaultCandidateCap bounds the diagnostic candidate list on an unmatched
// outcome.
const DefaultCandidateCap = 3

// ErrEmptyInput is returned by [Resolver.Resolve] when the input name is
// empty or whitespace-only. This is a caller contract violation — it never
// reaches tier logic.
var ErrEmptyInput = errors.New("match: input name is empty")

// DistanceFunc computes the edit distance between two phonetic keys.
type DistanceFunc func(a, b string) int

// Option is a functional option for configuring a [Resolver].
type Option func(*Resolver)

// WithThreshold sets the fuzzy acceptance threshold. A best distance greater
// than threshold yields an unmatched outcome. Default: [DefaultThreshold].
func WithThreshold(threshold int) Option {
	return func(r *Resolver) {
		r.threshold = threshold
	}
}

// WithCandidateCap sets how many nearest-miss candidates an unmatched
// outcome carries as diagnostic evidence. Zero disables the list. Default:
// [DefaultCandidateCap].
func WithCandidateCap(n int) Option {
	return func(r *Resolver) {
		r.candidateCap = n
	}
}

// WithDistanceFunc replaces the edit-distance implementation. The function
// must be pure and symmetric. Default: [Distance]. Intended for
// instrumentation in tests.
func WithDistanceFunc(fn DistanceFunc) Option {
	return func(r *Resolver) {
		r.distance = fn
	}
}

// WithKeyFunc replaces the phonetic key function applied to the input name.
// It must agree with the key function the roster was built with, or phonetic
// tiers will never hit. Default: [phonetic.Key].
func WithKeyFunc(fn roster.KeyFunc) Option {
	return func(r *Resolver) {
		r.key = fn
	}
}

// Resolver runs the four-tier resolution pipeline. It is stateless across
// calls and safe for concurrent use — it only reads the immutable index
// passed to each Resolve call.
type Resolver struct {
	threshold    int
	candidateCap int
	distance     DistanceFunc
	key          roster.KeyFunc
}

// New returns a [Resolver] configured with the supplied options.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		threshold:    DefaultThreshold,
		candidateCap: DefaultCandidateCap,
		distance:     Distance,
		key:          phonetic.Key,
	}
	for _, o := range opts {
		o(r)
	}
	if r.candidateCap < 0 {
		r.candidateCap = 0
	}
	return r
}

// tierFunc is one matching strategy. It reports (outcome, true) when the
// tier terminates the pipeline and (zero, false) when the pipeline should
// fall through to the next tier.
type tierFunc func(idx *roster.Index, input, key string) (Outcome, bool)

// Resolve maps rawName to exactly one [Outcome] against the given roster
// snapshot. Identical input against an unchanged roster always yields an
// identical outcome.
//
// Returns [ErrEmptyInput] when rawName is empty or whitespace-only; no other
// error is possible for well-formed input.
func (r *Resolver) Resolve(idx *roster.Index, rawName string) (Outcome, error) {
	input := phonetic.Display(rawName)
	if input == "" {
		return Outcome{}, ErrEmptyInput
	}
	key := r.key(input)

	tiers := []tierFunc{
		r.tierExact,
		r.tierPhoneticExact,
		r.tierPhoneticContains,
		r.tierFuzzy, // always terminates
	}

	for _, tier := range tiers {
		if out, done := tier(idx, input, key); done {
			return out, nil
		}
	}

	// Unreachable: the fuzzy tier always terminates. Kept as a guard so a
	// future tier reordering cannot fall off the end silently.
	return Outcome{Kind: KindUnmatched, Input: input, InputKey: key}, nil
}

// tierExact matches the display name literally (case/whitespace-insensitive).
// Display names are unique, so no ambiguity is possible here.
func (r *Resolver) tierExact(idx *roster.Index, input, key string) (Outcome, bool) {
	e, ok := idx.FindExact(input)
	if !ok {
		return Outcome{}, false
	}
	return Outcome{
		Kind:     KindMatched,
		Tier:     TierExact,
		Input:    input,
		InputKey: key,
		Entry:    e,
	}, true
}

// tierPhoneticExact matches on identical phonetic keys. A homophone tie is
// terminal: two students whose names sound identical cannot be told apart by
// any weaker tier, so the pipeline stops with an ambiguous outcome.
func (r *Resolver) tierPhoneticExact(idx *roster.Index, input, key string) (Outcome, bool) {
	hits := idx.FindPhoneticExact(key)
	switch len(hits) {
	case 0:
		return Outcome{}, false
	case 1:
		return Outcome{
			Kind:     KindMatched,
			Tier:     TierPhoneticExact,
			Input:    input,
			InputKey: key,
			Entry:    hits[0],
		}, true
	default:
		return Outcome{
			Kind:         KindAmbiguous,
			Input:        input,
			InputKey:     key,
			Candidates:   zeroDistanceCandidates(hits),
			TiedDistance: 0,
		}, true
	}
}

// tierPhoneticContains matches on symmetric key containment. Containment
// ties are reported as distance-0 ties.
func (r *Resolver) tierPhoneticContains(idx *roster.Index, input, key string) (Outcome, bool) {
	hits := idx.FindPhoneticContains(key)
	switch len(hits) {
	case 0:
		return Outcome{}, false
	case 1:
		return Outcome{
			Kind:     KindMatched,
			Tier:     TierPhoneticContains,
			Input:    input,
			InputKey: key,
			Entry:    hits[0],
		}, true
	default:
		return Outcome{
			Kind:         KindAmbiguous,
			Input:        input,
			InputKey:     key,
			Candidates:   zeroDistanceCandidates(hits),
			TiedDistance: 0,
		}, true
	}
}

// tierFuzzy scores every roster entry by edit distance and always terminates
// the pipeline: matched on a lone in-threshold winner, ambiguous on a tie,
// unmatched otherwise.
func (r *Resolver) tierFuzzy(idx *roster.Index, input, key string) (Outcome, bool) {
	entries := idx.All()
	if len(entries) == 0 {
		return Outcome{Kind: KindUnmatched, Input: input, InputKey: key}, true
	}

	candidates := make([]Candidate, len(entries))
	for i, e := range entries {
		candidates[i] = Candidate{Entry: e, Distance: r.distance(key, e.Key)}
	}

	// Ascending by distance; the stable sort preserves roster order within
	// equal distances, which is the tie-break contract.
	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		return a.Distance - b.Distance
	})

	best := candidates[0].Distance
	if best > r.threshold {
		return Outcome{
			Kind:       KindUnmatched,
			Input:      input,
			InputKey:   key,
			Candidates: slices.Clone(candidates[:min(r.candidateCap, len(candidates))]),
		}, true
	}

	tied := 1
	for tied < len(candidates) && candidates[tied].Distance == best {
		tied++
	}
	if tied > 1 {
		return Outcome{
			Kind:         KindAmbiguous,
			Input:        input,
			InputKey:     key,
			Candidates:   candidates[:tied],
			TiedDistance: best,
		}, true
	}

	return Outcome{
		Kind:       KindMatched,
		Tier:       TierFuzzy,
		Input:      input,
		InputKey:   key,
		Entry:      candidates[0].Entry,
		Candidates: candidates, // full sorted list, required downstream
	}, true
}

// zeroDistanceCandidates wraps phonetic-tier hits as distance-0 candidates
// for uniform ambiguity reporting.
func zeroDistanceCandidates(hits []roster.Entry) []Candidate {
	out := make([]Candidate, len(hits))
	for i, e := range hits {
		out[i] = Candidate{Entry: e, Distance: 0}
	}
	return out
}

// Threshold reports the configured fuzzy acceptance threshold.
func (r *Resolver) Threshold() int { return r.threshold }
