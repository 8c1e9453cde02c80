package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/app/survey"
	"github.com/geclass/geclass/internal/pkg/apperrors"
)

// MatchResult is the matched cohort of one course.
type MatchResult struct {
	CourseID  int64
	Bundles   []models.MatchedBundle
	Cohort    *survey.CohortAggregate
	Ambiguous int
	Skipped   int
}

// Size is the number of matched students.
func (r *MatchResult) Size() int {
	return len(r.Bundles)
}

// MatchService pairs valid pre and post attempts
type MatchService interface {
	MatchCourse(ctx context.Context, courseID int64) (*MatchResult, error)
}

type matchServiceImpl struct {
	questionnaires QuestionnaireStore
	mode           survey.Mode
	logger         zerolog.Logger
}

// NewMatchService creates a new match service
func NewMatchService(questionnaires QuestionnaireStore, mode survey.Mode, logger zerolog.Logger) MatchService {
	return &matchServiceImpl{
		questionnaires: questionnaires,
		mode:           mode,
		logger:         logger,
	}
}

// MatchCourse returns one bundle per student of the course with exactly one
// valid pre and exactly one valid post attempt, ordered by student id.
// It only reads, so repeated calls return the same bundles.
func (s *matchServiceImpl) MatchCourse(ctx context.Context, courseID int64) (*MatchResult, error) {
	candidates, err := s.questionnaires.FindMatchCandidates(ctx, courseID)
	if err != nil {
		return nil, err
	}

	lgr := s.logger.With().Int64("course_id", courseID).Logger()
	result := &MatchResult{CourseID: courseID}
	var responses []*survey.Responses

	for _, c := range candidates {
		if c.Pairs != 1 {
			lgr.Info().Int64("student_id", c.StudentID).Int("pairs", c.Pairs).Msg("Ambiguous pre/post match dropped")
			result.Ambiguous++
			continue
		}

		bundle, err := s.loadBundle(ctx, courseID, c)
		if err != nil {
			if apperrors.IsFatal(err) {
				return nil, err
			}
			lgr.Warn().Err(err).Int64("student_id", c.StudentID).Msg("Matched student skipped")
			result.Skipped++
			continue
		}
		result.Bundles = append(result.Bundles, *bundle)
		responses = append(responses, bundle.Responses)
	}

	result.Cohort = survey.NewCohortAggregate(responses)
	lgr.Debug().Int("matched", result.Size()).Int("ambiguous", result.Ambiguous).Msg("Course matched")
	return result, nil
}

func (s *matchServiceImpl) loadBundle(ctx context.Context, courseID int64, c models.MatchCandidate) (*models.MatchedBundle, error) {
	var raw survey.RawAnswers
	loads := []struct {
		dst        *[]int
		phase      models.Phase
		instrument models.Instrument
		id         int64
	}{
		{&raw.YouPre, models.PhasePre, models.InstrumentYou, c.PreQuestionnaireID},
		{&raw.ExpertPre, models.PhasePre, models.InstrumentExpert, c.PreQuestionnaireID},
		{&raw.YouPost, models.PhasePost, models.InstrumentYou, c.PostQuestionnaireID},
		{&raw.ExpertPost, models.PhasePost, models.InstrumentExpert, c.PostQuestionnaireID},
		{&raw.Mark, models.PhasePost, models.InstrumentMark, c.PostQuestionnaireID},
	}
	for _, l := range loads {
		answers, err := s.questionnaires.GetAnswers(ctx, l.phase, l.instrument, l.id)
		if err != nil {
			return nil, err
		}
		*l.dst = answers
	}

	responses, err := survey.NewResponses(raw, s.mode)
	if err != nil {
		return nil, fmt.Errorf("student %d: %w", c.StudentID, err)
	}
	return &models.MatchedBundle{
		CourseID:            courseID,
		StudentID:           c.StudentID,
		PreQuestionnaireID:  c.PreQuestionnaireID,
		PostQuestionnaireID: c.PostQuestionnaireID,
		Raw:                 raw,
		Responses:           responses,
	}, nil
}
