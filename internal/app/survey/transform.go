package survey

import (
	"errors"
	"fmt"
)

// Missing is the canonical "no answer" marker carried through every transform.
const Missing = -998

// Legacy synonyms of Missing found in older exports.
const (
	missingLegacyLow  = -997
	missingLegacyHigh = -999
)

// Instrument lengths.
const (
	BeliefItems     = 30
	ImportanceItems = 23
)

var (
	// ErrInvalidAnswer is returned for a value that is neither a Likert answer nor a sentinel.
	ErrInvalidAnswer = errors.New("invalid likert answer")
	// ErrInstrumentLength is returned when an answer vector has the wrong number of items.
	ErrInstrumentLength = errors.New("answer vector has wrong length")
)

// Mode selects how a reduced answer is compared against the expert key.
type Mode int

const (
	// ModeAgreement encodes 1 for agreement with the expert and 0 otherwise.
	ModeAgreement Mode = iota
	// ModeDisagreement encodes the signed product of answer and expert direction (-1, 0, 1).
	ModeDisagreement
)

// ParseMode maps the configuration value to a Mode.
func ParseMode(disagreement bool) Mode {
	if disagreement {
		return ModeDisagreement
	}
	return ModeAgreement
}

// IsMissing reports whether v is one of the no-answer sentinels.
func IsMissing(v int) bool {
	return v == Missing || v == missingLegacyLow || v == missingLegacyHigh
}

// ReduceLikert reduces a 5-point answer to -1, 0 or 1.
func ReduceLikert(v int) (int, error) {
	switch {
	case IsMissing(v):
		return Missing, nil
	case v == 1 || v == 2:
		return -1, nil
	case v == 3:
		return 0, nil
	case v == 4 || v == 5:
		return 1, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrInvalidAnswer, v)
}

// CompareExpert compares a reduced answer with the expert direction.
func CompareExpert(reduced, expert int, mode Mode) int {
	if reduced == Missing {
		return Missing
	}
	if mode == ModeDisagreement {
		return reduced * expert
	}
	if reduced == expert {
		return 1
	}
	return 0
}

// CompareVector reduces and compares a whole answer vector against key.
func CompareVector(answers, key []int, mode Mode) ([]int, error) {
	if len(answers) != len(key) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInstrumentLength, len(answers), len(key))
	}
	out := make([]int, len(answers))
	for i, raw := range answers {
		reduced, err := ReduceLikert(raw)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		out[i] = CompareExpert(reduced, key[i], mode)
	}
	return out, nil
}

// RawAnswers holds one matched student's untransformed answer vectors.
type RawAnswers struct {
	YouPre     []int
	YouPost    []int
	ExpertPre  []int
	ExpertPost []int
	Mark       []int
}

// Responses holds one student's answers compared against the expert key.
type Responses struct {
	YouPre     []int
	YouPost    []int
	ExpertPre  []int
	ExpertPost []int
	Mark       []int
}

// NewResponses transforms every instrument vector of a matched student.
func NewResponses(raw RawAnswers, mode Mode) (*Responses, error) {
	var (
		r   Responses
		err error
	)
	if r.YouPre, err = CompareVector(raw.YouPre, ExpertKey, mode); err != nil {
		return nil, fmt.Errorf("you pre: %w", err)
	}
	if r.YouPost, err = CompareVector(raw.YouPost, ExpertKey, mode); err != nil {
		return nil, fmt.Errorf("you post: %w", err)
	}
	if r.ExpertPre, err = CompareVector(raw.ExpertPre, ExpertKey, mode); err != nil {
		return nil, fmt.Errorf("expert pre: %w", err)
	}
	if r.ExpertPost, err = CompareVector(raw.ExpertPost, ExpertKey, mode); err != nil {
		return nil, fmt.Errorf("expert post: %w", err)
	}
	if r.Mark, err = CompareVector(raw.Mark, ExpertMarkKey, mode); err != nil {
		return nil, fmt.Errorf("mark: %w", err)
	}
	return &r, nil
}
