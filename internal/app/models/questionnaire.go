package models

import (
	"fmt"
	"time"

	"github.com/geclass/geclass/internal/app/survey"
)

// Phase tells a pre survey from a post survey.
type Phase int

const (
	PhasePre  Phase = 1
	PhasePost Phase = 2
)

// String returns "pre" or "post".
func (p Phase) String() string {
	switch p {
	case PhasePre:
		return "pre"
	case PhasePost:
		return "post"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ParsePhase parses "pre" or "post".
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "pre":
		return PhasePre, nil
	case "post":
		return PhasePost, nil
	}
	return 0, fmt.Errorf("unknown survey phase %q, should be 'pre' or 'post'", s)
}

// Instrument is one of the three fixed questionnaires.
type Instrument string

const (
	InstrumentYou    Instrument = "you"
	InstrumentExpert Instrument = "expert"
	InstrumentMark   Instrument = "mark"
)

// Items returns the number of questions of the instrument.
func (i Instrument) Items() int {
	if i == InstrumentMark {
		return survey.ImportanceItems
	}
	return survey.BeliefItems
}

// AnswerSet is the raw answer vector of one instrument. Missing answers
// hold survey.Missing.
type AnswerSet struct {
	ID         int64      `json:"id" db:"id"`
	Instrument Instrument `json:"instrument"`
	Answers    []int      `json:"answers"`
}

// SurveyAttempt is one student's completion of a pre or post survey.
type SurveyAttempt struct {
	ID              int64     `json:"id" db:"id"`
	StudentID       int64     `json:"studentId" db:"student_id"`
	QuestionnaireID int64     `json:"questionnaireId"`
	Phase           Phase     `json:"phase"`
	StartTime       time.Time `json:"startTime" db:"start_time"`
	EndTime         time.Time `json:"endTime" db:"end_time"`
	ValidControl    bool      `json:"validControl" db:"valid_control"`
	ValidTime       bool      `json:"validTime" db:"valid_time"`
}

// MatchCandidate is the result of joining a student's valid pre and post
// attempts. Pairs counts the joined rows; only Pairs == 1 is a match.
type MatchCandidate struct {
	StudentID           int64
	Pairs               int
	PreQuestionnaireID  int64
	PostQuestionnaireID int64
}

// MatchedBundle pairs exactly one valid pre and one valid post attempt of
// a student in a course. It is derived and never stored.
type MatchedBundle struct {
	CourseID            int64
	StudentID           int64
	PreQuestionnaireID  int64
	PostQuestionnaireID int64
	Raw                 survey.RawAnswers
	Responses           *survey.Responses
}
