package ai

import (
	"context"
	"encoding/json"
)

// Outcome classifies how a grading attempt ended.
type Outcome string

const (
	// OutcomeGraded means the model reply parsed on the first attempt.
	OutcomeGraded Outcome = "graded"
	// OutcomeRepaired means the reply parsed after a recovery heuristic.
	OutcomeRepaired Outcome = "repaired"
	// OutcomeUngradeable means no heuristic could recover a valid grade.
	OutcomeUngradeable Outcome = "ungradeable"
	// OutcomeUnavailable means the API call itself failed or timed out.
	OutcomeUnavailable Outcome = "unavailable"
)

// GradeResult is the structured feedback produced for a submission.
type GradeResult struct {
	Score       float64  `json:"score"`
	Feedback    string   `json:"feedback"`
	Suggestions []string `json:"suggestions"`
	Outcome     Outcome  `json:"-"`
	Repair      string   `json:"-"`
	Raw         string   `json:"-"`
}

// Gradeable reports whether the result carries a real grade rather than a fallback.
func (r GradeResult) Gradeable() bool {
	return r.Outcome == OutcomeGraded || r.Outcome == OutcomeRepaired
}

// JSON renders the {score, feedback, suggestions} object.
func (r GradeResult) JSON() string {
	suggestions := r.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	payload, _ := json.Marshal(struct {
		Score       float64  `json:"score"`
		Feedback    string   `json:"feedback"`
		Suggestions []string `json:"suggestions"`
	}{r.Score, r.Feedback, suggestions})
	return string(payload)
}

// Grader scores a document. It never fails: transport and parsing problems are
// reported through GradeResult.Outcome with a zero-score fallback.
type Grader interface {
	Grade(ctx context.Context, content string) GradeResult
}

// Responder answers free-form chat messages.
type Responder interface {
	Reply(ctx context.Context, message string) (string, error)
}
