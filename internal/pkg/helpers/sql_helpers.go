package helpers

import "github.com/geclass/geclass/internal/app/survey"

// AnswerToNullable converts an answer to its column value.
// Any no-answer sentinel is stored as NULL.
func AnswerToNullable(v int) *int16 {
	if survey.IsMissing(v) {
		return nil
	}
	n := int16(v)
	return &n
}

// NullableToAnswer converts a column value back to an answer.
// NULL becomes survey.Missing.
func NullableToAnswer(v *int16) int {
	if v == nil {
		return survey.Missing
	}
	return int(*v)
}

// AnswersToArgs converts an answer vector to query arguments.
func AnswersToArgs(answers []int) []interface{} {
	args := make([]interface{}, len(answers))
	for i, v := range answers {
		args[i] = AnswerToNullable(v)
	}
	return args
}
