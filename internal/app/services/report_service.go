package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/app/report"
	"github.com/geclass/geclass/internal/app/survey"
	"github.com/geclass/geclass/internal/pkg/apperrors"
	"github.com/geclass/geclass/internal/pkg/email"
	"github.com/geclass/geclass/internal/pkg/helpers"
)

// ReportCourses is the course access of the report pipeline.
type ReportCourses interface {
	GetPostSurveysStartingBefore(ctx context.Context, cutoff time.Time) ([]*models.Course, error)
	GetReportInfo(ctx context.Context, courseID int64) (*models.CourseReportInfo, error)
}

// AttemptCounter counts the pre and post attempts of a course.
type AttemptCounter interface {
	CountAttempts(ctx context.Context, courseID int64) (pre, post int, err error)
}

// ReportStorage manages report directories. An existing directory means the
// report of that course is final.
type ReportStorage interface {
	Exists(identifier string) (bool, error)
	Stage() (string, error)
	Commit(stageDir, identifier string) (string, error)
	Discard(stageDir string)
	MarkTerminal(identifier, status string) error
}

// ReportRenderer produces the report artifacts in a directory.
type ReportRenderer interface {
	Render(ctx context.Context, dir string, data report.Data) error
}

// ReportPublisher copies a finished report elsewhere.
type ReportPublisher interface {
	Publish(ctx context.Context, dir, identifier string) error
}

// ReportServiceConfig wires the report pipeline.
type ReportServiceConfig struct {
	Courses    ReportCourses
	Counter    AttemptCounter
	Matcher    MatchService
	Similar    SimilarCourses
	Aggregator AggregationService
	Storage    ReportStorage
	Renderer   ReportRenderer
	// Publisher is optional.
	Publisher ReportPublisher
	Notifier  email.Notifier
	Operators []string
	DueAfter  time.Duration
	Location  *time.Location
	Now       func() time.Time
	Logger    zerolog.Logger
}

// ReportService is the batch driver for course reports
type ReportService interface {
	GenerateReports(ctx context.Context) ([]models.CourseOutcome, error)
}

type reportServiceImpl struct {
	cfg ReportServiceConfig
}

// NewReportService creates a new report service
func NewReportService(cfg ReportServiceConfig) ReportService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &reportServiceImpl{cfg: cfg}
}

// GenerateReports handles every due course on its own. A failing course is
// reported and skipped; only an unreachable store ends the run early.
func (s *reportServiceImpl) GenerateReports(ctx context.Context) ([]models.CourseOutcome, error) {
	runID := uuid.New().String()
	lgr := s.cfg.Logger.With().Str("run_id", runID).Logger()

	cutoff := helpers.DateOf(s.cfg.Now().Add(-s.cfg.DueAfter), s.cfg.Location)
	courses, err := s.cfg.Courses.GetPostSurveysStartingBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	lgr.Info().Int("due", len(courses)).Time("cutoff", cutoff).Msg("Report run started")

	var outcomes []models.CourseOutcome
	for _, course := range courses {
		outcome := s.generate(ctx, runID, lgr.With().Str("course", course.Identifier).Logger(), course)
		outcomes = append(outcomes, outcome)
		if apperrors.IsFatal(outcome.Err) {
			return outcomes, outcome.Err
		}
	}

	lgr.Info().Int("courses", len(outcomes)).Msg("Report run finished")
	return outcomes, nil
}

func (s *reportServiceImpl) generate(ctx context.Context, runID string, lgr zerolog.Logger, course *models.Course) models.CourseOutcome {
	outcome := models.CourseOutcome{CourseID: course.ID, Identifier: course.Identifier, State: models.ReportDue}

	exists, err := s.cfg.Storage.Exists(course.Identifier)
	if err != nil {
		return s.fail(lgr, outcome, err)
	}
	if exists {
		lgr.Debug().Msg("Report already exists, skipping")
		outcome.State = models.ReportDone
		return outcome
	}

	outcome.State = models.ReportGenerating
	matched, err := s.cfg.Matcher.MatchCourse(ctx, course.ID)
	if err != nil {
		return s.fail(lgr, outcome, err)
	}
	outcome.Matched = matched.Size()

	if matched.Size() == 0 {
		if err := s.cfg.Storage.MarkTerminal(course.Identifier, string(models.ReportSkippedEmpty)); err != nil {
			return s.fail(lgr, outcome, err)
		}
		outcome.State = models.ReportSkippedEmpty
		lgr.Warn().Msg("No matched responses, report skipped")
		s.notify(lgr, fmt.Sprintf("GEclass: Kein Bericht für %s", course.Identifier),
			fmt.Sprintf("Für den Kurs %s (%s) gibt es keine zugeordneten Prä-/Post-Befragungen. Es wurde kein Bericht erstellt.",
				course.Name, course.Identifier))
		return outcome
	}

	pool, err := s.similarPool(ctx, lgr, course.ID, matched.Cohort)
	if err != nil {
		return s.fail(lgr, outcome, err)
	}

	info, err := s.cfg.Courses.GetReportInfo(ctx, course.ID)
	if err != nil {
		return s.fail(lgr, outcome, err)
	}

	stats := s.cfg.Aggregator.Build(matched.Cohort, pool)
	if stats.Counts, err = s.counts(ctx, course.ID, info, matched.Size(), pool.Size()); err != nil {
		return s.fail(lgr, outcome, err)
	}

	dir, err := s.render(ctx, runID, course, info, stats)
	if err != nil {
		return s.fail(lgr, outcome, err)
	}

	outcome.State = models.ReportDone
	lgr.Info().Int("matched", matched.Size()).Int("similar", pool.Size()).Str("path", dir).Msg("Report generated")

	if s.cfg.Publisher != nil {
		if err := s.cfg.Publisher.Publish(ctx, dir, course.Identifier); err != nil {
			lgr.Error().Err(err).Msg("Failed to publish report")
			s.notify(lgr, fmt.Sprintf("GEclass: Veröffentlichung fehlgeschlagen (%s)", course.Identifier),
				fmt.Sprintf("Der Bericht für %s liegt unter %s, konnte aber nicht hochgeladen werden:\n%v", course.Identifier, dir, err))
		}
	}
	return outcome
}

// similarPool is a copy of the course cohort extended by every similar course's cohort.
func (s *reportServiceImpl) similarPool(ctx context.Context, lgr zerolog.Logger, courseID int64, cohort *survey.CohortAggregate) (*survey.CohortAggregate, error) {
	pool := cohort.Clone()
	if s.cfg.Similar == nil {
		return pool, nil
	}

	ids, err := s.cfg.Similar.GetSimilarCourseIDs(ctx, courseID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		m, err := s.cfg.Matcher.MatchCourse(ctx, id)
		if err != nil {
			if apperrors.IsFatal(err) {
				return nil, err
			}
			lgr.Warn().Err(err).Int64("similar_course_id", id).Msg("Similar course left out of the pool")
			continue
		}
		pool.Append(m.Cohort)
	}
	return pool, nil
}

func (s *reportServiceImpl) counts(ctx context.Context, courseID int64, info *models.CourseReportInfo, matched, similar int) (models.ReportCounts, error) {
	pre, post, err := s.cfg.Counter.CountAttempts(ctx, courseID)
	if err != nil {
		return models.ReportCounts{}, err
	}
	c := models.ReportCounts{
		Pre:            pre,
		Post:           post,
		Matched:        matched,
		Reported:       info.NumberStudents,
		SimilarMatched: similar,
	}
	if info.NumberStudents > 0 {
		c.Ratio = float64(matched) / float64(info.NumberStudents)
	}
	return c, nil
}

// render builds the report in a staging directory and moves it into place on success.
func (s *reportServiceImpl) render(ctx context.Context, runID string, course *models.Course, info *models.CourseReportInfo, stats *models.ReportStatistics) (string, error) {
	stage, err := s.cfg.Storage.Stage()
	if err != nil {
		return "", err
	}

	data := report.Data{
		RunID:       runID,
		Identifier:  course.Identifier,
		Name:        info.Name,
		GeneratedAt: s.cfg.Now(),
		Statistics:  stats,
	}
	if err := s.cfg.Renderer.Render(ctx, stage, data); err != nil {
		s.cfg.Storage.Discard(stage)
		return "", err
	}

	dir, err := s.cfg.Storage.Commit(stage, course.Identifier)
	if err != nil {
		s.cfg.Storage.Discard(stage)
		return "", err
	}
	return dir, nil
}

func (s *reportServiceImpl) fail(lgr zerolog.Logger, outcome models.CourseOutcome, err error) models.CourseOutcome {
	outcome.Err = err
	if apperrors.IsFatal(err) {
		return outcome
	}
	outcome.State = models.ReportFailed
	lgr.Error().Err(err).Msg("Report generation failed")
	s.notify(lgr, fmt.Sprintf("GEclass: Bericht für %s fehlgeschlagen", outcome.Identifier),
		fmt.Sprintf("Der Bericht für den Kurs %s konnte nicht erstellt werden:\n%v", outcome.Identifier, err))
	return outcome
}

func (s *reportServiceImpl) notify(lgr zerolog.Logger, subject, body string) {
	if s.cfg.Notifier == nil || len(s.cfg.Operators) == 0 {
		return
	}
	if err := email.NotifyAll(s.cfg.Notifier, s.cfg.Operators, subject, body); err != nil {
		lgr.Error().Err(err).Msg("Failed to notify operators")
	}
}
