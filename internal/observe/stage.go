// Package observe provides the diagnostic surface of the resolution
// pipeline: stage tags, structured log records, OpenTelemetry metrics and
// tracing.
//
// Every resolution and gradebook update emits exactly one [Record] tagged
// with a [Stage]. Records are self-contained JSON objects — a log stream of
// them is enough to reconstruct what the resolver decided and why, without
// consulting any other output.
package observe

import (
	"log/slog"

	"github.com/mingshi/voicemark/internal/match"
)

// Stage tags one pipeline event in the structured log stream.
type Stage string

// Resolution stages, one per terminal outcome of the matching pipeline.
const (
	StageMatchExact          Stage = "NAME_MATCH_EXACT"
	StageMatchPinyinExact    Stage = "NAME_MATCH_PINYIN_EXACT"
	StageMatchPinyinContains Stage = "NAME_MATCH_PINYIN_CONTAINS"
	StageMatchFuzzy          Stage = "NAME_MATCH_FUZZY"
	StageMatchAmbiguous      Stage = "NAME_MATCH_AMBIGUOUS"
	StageMatchFail           Stage = "NAME_MATCH_FAIL"
)

// Gradebook and roster lifecycle stages.
const (
	StageGradeUpdateSuccess Stage = "GRADE_UPDATE_SUCCESS"
	StageGradeUpdateFail    Stage = "GRADE_UPDATE_FAIL"
	StageRosterReload       Stage = "ROSTER_RELOAD"
)

// StageFor maps a resolution outcome to its log stage.
func StageFor(o match.Outcome) Stage {
	switch o.Kind {
	case match.KindAmbiguous:
		return StageMatchAmbiguous
	case match.KindUnmatched:
		return StageMatchFail
	}
	switch o.Tier {
	case match.TierExact:
		return StageMatchExact
	case match.TierPhoneticExact:
		return StageMatchPinyinExact
	case match.TierPhoneticContains:
		return StageMatchPinyinContains
	default:
		return StageMatchFuzzy
	}
}

// Level returns the log level a record with this stage is emitted at.
// Ambiguity and match failure are operator-actionable, so they warn;
// a failed gradebook update is an error.
func (s Stage) Level() slog.Level {
	switch s {
	case StageMatchAmbiguous, StageMatchFail:
		return slog.LevelWarn
	case StageGradeUpdateFail:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
