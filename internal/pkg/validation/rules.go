package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validation rule patterns
var (
	// IdentifierPattern is the shape of a generated course identifier.
	IdentifierPattern = `^[a-z]{5}$`

	// Likert answers range from 1 to 5
	LikertMin = 1
	LikertMax = 5
)

// CompiledPatterns caches compiled regex patterns
var CompiledPatterns = struct {
	Identifier *regexp.Regexp
}{
	Identifier: regexp.MustCompile(IdentifierPattern),
}

// New returns a validator with the survey specific tags registered:
//
//	course_identifier  five lowercase letters
//	likert             an answer between 1 and 5
func New() *validator.Validate {
	v := validator.New()
	// Registration only fails for empty tags or nil functions.
	_ = v.RegisterValidation("course_identifier", func(fl validator.FieldLevel) bool {
		return CompiledPatterns.Identifier.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("likert", func(fl validator.FieldLevel) bool {
		n := fl.Field().Int()
		return n >= int64(LikertMin) && n <= int64(LikertMax)
	})
	return v
}

// Describe turns validator errors into one readable line.
func Describe(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, describeField(e))
	}
	return strings.Join(msgs, "; ")
}

func describeField(e validator.FieldError) string {
	field := e.Field()
	if field == "" {
		field = "value"
	}
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "min", "gte":
		return field + " must be at least " + e.Param()
	case "max", "lte":
		return field + " must be at most " + e.Param()
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return field + " must be one of: " + e.Param()
	case "gtfield":
		return field + " must be after " + e.Param()
	case "course_identifier":
		return field + " must be five lowercase letters"
	case "likert":
		return field + " must be a likert answer 1-5"
	default:
		return field + " validation failed: " + e.Tag()
	}
}
