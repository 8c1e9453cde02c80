package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/pkg/email"
	"github.com/geclass/geclass/internal/pkg/helpers"
)

const reminderTemplate = `Guten Tag,
heute beginnt die GEclass %s-Befragung für Ihren Kurs %s. Die Befragung
kann in den nächsten %d Tagen abgeschlossen werden. Für die Teilnahme
benötigen die Studierenden die folgenden zwei Informationen:
Kurs-ID: %s
URL: %s

Vielen Dank für die Teilnahme an diesem Projekt!`

// ReminderResult counts the reminders of one day.
type ReminderResult struct {
	Pre    int
	Post   int
	Sent   int
	Failed int
}

// ReminderOptions configures the reminder texts and recipients.
type ReminderOptions struct {
	SurveyURL  string
	WindowDays int
	Operators  []string
	Location   *time.Location
}

// ReminderService notifies course owners when one of their surveys starts
type ReminderService interface {
	SendReminders(ctx context.Context, now time.Time) (*ReminderResult, error)
}

type reminderServiceImpl struct {
	courses  CourseStore
	notifier email.Notifier
	opts     ReminderOptions
	logger   zerolog.Logger
}

// NewReminderService creates a new reminder service
func NewReminderService(courses CourseStore, notifier email.Notifier, opts ReminderOptions, logger zerolog.Logger) ReminderService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &reminderServiceImpl{
		courses:  courses,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
	}
}

func phaseLabel(p models.Phase) string {
	if p == models.PhasePost {
		return "Post"
	}
	return "Prä"
}

// SendReminders emails the owner of every course whose pre or post survey
// starts on the day of now, then sends the operators an overview.
// A failed delivery is logged and counted.
func (s *reminderServiceImpl) SendReminders(ctx context.Context, now time.Time) (*ReminderResult, error) {
	day := helpers.DateOf(now, s.opts.Location)
	starts, err := s.courses.GetSurveysStarting(ctx, day)
	if err != nil {
		return nil, err
	}

	result := &ReminderResult{}
	for _, start := range starts {
		if start.Phase == models.PhasePost {
			result.Post++
		} else {
			result.Pre++
		}

		body := fmt.Sprintf(reminderTemplate, phaseLabel(start.Phase), start.Name, s.opts.WindowDays, start.Identifier, s.opts.SurveyURL)
		if err := s.notifier.Send(start.OwnerEmail, "Erinnerung GEclass", body); err != nil {
			s.logger.Error().Err(err).Str("course", start.Identifier).Msg("Failed to send reminder")
			result.Failed++
			continue
		}
		result.Sent++
	}

	overview := fmt.Sprintf("Heute finden %d Prä- und %d Post-Surveys statt.", result.Pre, result.Post)
	if err := email.NotifyAll(s.notifier, s.opts.Operators, "GEclass: Täglicher Report", overview); err != nil {
		s.logger.Error().Err(err).Msg("Failed to send reminder overview")
	}

	s.logger.Info().
		Time("day", day).
		Int("pre", result.Pre).
		Int("post", result.Post).
		Int("failed", result.Failed).
		Msg("Reminders sent")
	return result, nil
}
