package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/pkg/apperrors"
	"github.com/geclass/geclass/internal/pkg/email"
	"github.com/geclass/geclass/internal/pkg/validation"
)

const (
	identifierLength   = 5
	identifierAlphabet = "abcdefghijklmnopqrstuvwxyz"
	// maxIdentifierAttempts bounds the search for a free identifier.
	maxIdentifierAttempts = 20
)

const registrationTemplate = `Vielen Dank, dass Sie den Kurs %s bei der GEclass registriert haben.
Die ID des Kurses lautet: %s.
Die Prä-Befragung startet am %s. Sie werden an diesem Tag auch eine Erinnerungsemail erhalten.

Vielen Dank für die Teilnahme an diesem Projekt.`

// CourseService registers courses and applies operator overrides
type CourseService interface {
	AddCourse(ctx context.Context, ownerEmail string, input models.CourseInput) (*models.Course, error)
	ValidateTime(ctx context.Context, identifier string, phase models.Phase) (int64, error)
}

type courseServiceImpl struct {
	courses        CourseStore
	users          UserStore
	questionnaires QuestionnaireStore
	notifier       email.Notifier
	validate       *validator.Validate
	random         io.Reader
	logger         zerolog.Logger
}

// NewCourseService creates a new course service
func NewCourseService(courses CourseStore, users UserStore, questionnaires QuestionnaireStore, notifier email.Notifier, logger zerolog.Logger) CourseService {
	return &courseServiceImpl{
		courses:        courses,
		users:          users,
		questionnaires: questionnaires,
		notifier:       notifier,
		validate:       validation.New(),
		random:         rand.Reader,
		logger:         logger,
	}
}

// AddCourse stores a new course under a fresh random identifier and tells
// the owner about it. The owner account is created on first use.
func (s *courseServiceImpl) AddCourse(ctx context.Context, ownerEmail string, input models.CourseInput) (*models.Course, error) {
	if err := s.validate.Var(ownerEmail, "required,email"); err != nil {
		return nil, apperrors.ValidationError{Field: "owner", Value: ownerEmail, Message: "must be an email address"}
	}
	if err := s.validate.StructExcept(input, "UserID"); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrValidationFailed, validation.Describe(err))
	}

	userID, err := s.users.Ensure(ctx, ownerEmail)
	if err != nil {
		return nil, err
	}

	course := &models.Course{
		UserID:         userID,
		Name:           input.Name,
		UniversityID:   input.UniversityID,
		ProgramID:      input.ProgramID,
		ExperienceID:   input.ExperienceID,
		CourseTypeID:   input.CourseTypeID,
		TraditionalID:  input.TraditionalID,
		NumberStudents: input.NumberStudents,
		StartDatePre:   input.StartDatePre,
		StartDatePost:  input.StartDatePost,
	}

	for attempt := 0; attempt < maxIdentifierAttempts; attempt++ {
		identifier, err := s.newIdentifier()
		if err != nil {
			return nil, err
		}
		exists, err := s.courses.IdentifierExists(ctx, identifier)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		course.Identifier = identifier
		err = s.courses.Create(ctx, course)
		if errors.Is(err, apperrors.ErrCourseIdentifierExists) {
			// Taken between the check and the insert.
			continue
		}
		if err != nil {
			return nil, err
		}

		s.logger.Info().Str("course", identifier).Str("name", course.Name).Int64("user_id", userID).Msg("Course registered")
		body := fmt.Sprintf(registrationTemplate, course.Name, identifier, course.StartDatePre.Format("2006-01-02"))
		if err := s.notifier.Send(ownerEmail, "Kurs Registrierung GEclass", body); err != nil {
			s.logger.Error().Err(err).Str("course", identifier).Msg("Failed to send registration email")
		}
		return course, nil
	}

	return nil, apperrors.ErrIdentifierSpaceExceeded
}

func (s *courseServiceImpl) newIdentifier() (string, error) {
	size := big.NewInt(int64(len(identifierAlphabet)))
	b := make([]byte, identifierLength)
	for i := range b {
		n, err := rand.Int(s.random, size)
		if err != nil {
			return "", fmt.Errorf("failed to generate identifier: %w", err)
		}
		b[i] = identifierAlphabet[n.Int64()]
	}
	return string(b), nil
}

// ValidateTime marks every attempt of the given phase in a course as inside
// the survey window. It returns the number of updated attempts.
func (s *courseServiceImpl) ValidateTime(ctx context.Context, identifier string, phase models.Phase) (int64, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if err := s.validate.Var(identifier, "course_identifier"); err != nil {
		return 0, apperrors.ValidationError{Field: "identifier", Value: identifier, Message: "must be five letters"}
	}
	course, err := s.courses.GetByIdentifier(ctx, identifier)
	if err != nil {
		return 0, err
	}
	n, err := s.questionnaires.ValidateTime(ctx, course.ID, phase)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Str("course", identifier).Stringer("phase", phase).Int64("attempts", n).Msg("Time validity overridden")
	return n, nil
}
