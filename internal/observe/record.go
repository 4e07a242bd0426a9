package observe

import (
	"context"
	"log/slog"
	"time"

	"github.com/mingshi/voicemark/internal/match"
)

// CandidateRecord is one roster candidate as it appears in a log record.
type CandidateRecord struct {
	Name     string `json:"name"`
	Key      string `json:"key"`
	Distance int    `json:"distance"`
}

// Record is one structured log event. It is self-contained: every field
// needed to understand the event is embedded, so a single log line can be
// read (or replayed) without any surrounding context.
//
// Pointer fields distinguish "absent" from "zero" — an ambiguous homophone
// tie really does have tied_distance 0, and that must serialize.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     Stage     `json:"stage"`

	// Resolution fields.
	InputName    string            `json:"input_name,omitempty"`
	InputKey     string            `json:"input_key,omitempty"`
	MatchedName  string            `json:"matched_name,omitempty"`
	MatchedKey   string            `json:"matched_key,omitempty"`
	Tier         string `json:"tier,omitempty"`
	TiedDistance *int   `json:"tied_distance,omitempty"`

	// Candidates carries matched/ambiguous evidence; TopCandidates carries
	// the nearest-miss diagnostics of a NAME_MATCH_FAIL record. They are
	// separate keys because a fail record's list answers a different
	// question ("what came closest?") than a match record's ("what was
	// considered?").
	Candidates    []CandidateRecord `json:"candidates,omitempty"`
	TopCandidates []CandidateRecord `json:"top_candidates,omitempty"`

	// Gradebook update fields.
	StudentName  string `json:"student_name,omitempty"`
	CorrectDelta *int   `json:"correct_delta,omitempty"`
	WrongDelta   *int   `json:"wrong_delta,omitempty"`
	NewCorrect   *int   `json:"new_correct,omitempty"`
	NewWrong     *int   `json:"new_wrong,omitempty"`
	Reason       string `json:"reason,omitempty"`

	// Roster lifecycle fields.
	RosterSize *int `json:"roster_size,omitempty"`
}

// NewRecord builds the log record for a resolution outcome. Nothing the
// resolver computed is dropped: the full candidate list, keys, and distances
// all carry over.
func NewRecord(o match.Outcome) Record {
	r := Record{
		Timestamp: time.Now().UTC(),
		Stage:     StageFor(o),
		InputName: o.Input,
		InputKey:  o.InputKey,
	}

	if o.Kind == match.KindMatched {
		r.MatchedName = o.Entry.Name
		r.MatchedKey = o.Entry.Key
		r.Tier = string(o.Tier)
	}
	if o.Kind == match.KindAmbiguous {
		tied := o.TiedDistance
		r.TiedDistance = &tied
	}
	if len(o.Candidates) > 0 {
		list := make([]CandidateRecord, len(o.Candidates))
		for i, c := range o.Candidates {
			list[i] = CandidateRecord{
				Name:     c.Entry.Name,
				Key:      c.Entry.Key,
				Distance: c.Distance,
			}
		}
		if o.Kind == match.KindUnmatched {
			r.TopCandidates = list
		} else {
			r.Candidates = list
		}
	}
	return r
}

// NewGradeUpdateRecord builds the log record for a gradebook counter update.
// An empty reason marks success; a non-empty reason marks failure with the
// new totals left unset.
func NewGradeUpdateRecord(student string, correctDelta, wrongDelta, newCorrect, newWrong int, reason string) Record {
	r := Record{
		Timestamp:    time.Now().UTC(),
		Stage:        StageGradeUpdateSuccess,
		StudentName:  student,
		CorrectDelta: &correctDelta,
		WrongDelta:   &wrongDelta,
	}
	if reason != "" {
		r.Stage = StageGradeUpdateFail
		r.Reason = reason
		return r
	}
	r.NewCorrect = &newCorrect
	r.NewWrong = &newWrong
	return r
}

// NewRosterReloadRecord builds the log record for a published roster
// snapshot.
func NewRosterReloadRecord(size int) Record {
	return Record{
		Timestamp:  time.Now().UTC(),
		Stage:      StageRosterReload,
		RosterSize: &size,
	}
}

// Emit writes the record to logger at its stage's level. The whole record is
// attached as a single "record" group so JSON log lines stay machine-parseable.
func (r Record) Emit(ctx context.Context, logger *slog.Logger) {
	logger.LogAttrs(ctx, r.Stage.Level(), string(r.Stage), slog.Any("record", r))
}
