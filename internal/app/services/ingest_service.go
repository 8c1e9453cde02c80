package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/pkg/apperrors"
)

// IngestService stores cleaned rows and resolves student identities
type IngestService interface {
	Store(ctx context.Context, rows []models.CleanRow) (*models.IngestSummary, error)
}

type ingestServiceImpl struct {
	tx     Transactor
	logger zerolog.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(tx Transactor, logger zerolog.Logger) IngestService {
	return &ingestServiceImpl{
		tx:     tx,
		logger: logger,
	}
}

// Store writes every row in its own transaction. A failing row is rolled back,
// logged and counted; only a store connectivity failure stops the batch.
func (s *ingestServiceImpl) Store(ctx context.Context, rows []models.CleanRow) (*models.IngestSummary, error) {
	summary := &models.IngestSummary{}

	for i := range rows {
		row := &rows[i]
		var resolved bool
		err := s.tx.InTx(ctx, func(ctx context.Context, tx TxStores) error {
			var err error
			resolved, err = s.storeRow(ctx, tx, row)
			return err
		})
		if err != nil {
			if apperrors.IsFatal(err) {
				return summary, err
			}
			s.logger.Error().Err(err).Int("row", row.Number).Msg("Failed to store survey row")
			summary.Failed++
			continue
		}
		summary.Inserted++
		if !resolved {
			summary.Unresolved++
		}
	}

	s.logger.Info().
		Int("inserted", summary.Inserted).
		Int("unresolved", summary.Unresolved).
		Int("failed", summary.Failed).
		Msg("Stored survey rows")
	return summary, nil
}

func (s *ingestServiceImpl) storeRow(ctx context.Context, tx TxStores, row *models.CleanRow) (bool, error) {
	studentID, resolved, err := s.resolveStudent(ctx, tx, row)
	if err != nil {
		return false, err
	}

	questionnaireID, err := s.storeAnswers(ctx, tx.Questionnaires, row)
	if err != nil {
		return false, err
	}

	attempt := &models.SurveyAttempt{
		StudentID:       studentID,
		QuestionnaireID: questionnaireID,
		Phase:           row.Phase,
		StartTime:       row.Start,
		EndTime:         row.End,
		ValidControl:    row.ValidControl,
		ValidTime:       row.ValidTime,
	}
	if err := tx.Questionnaires.InsertAttempt(ctx, attempt); err != nil {
		return false, err
	}
	return resolved, nil
}

// resolveStudent finds or creates the student of a row. A course code must
// match exactly one course to be resolved; otherwise a fresh student keeps
// the raw code as an unknown course.
func (s *ingestServiceImpl) resolveStudent(ctx context.Context, tx TxStores, row *models.CleanRow) (int64, bool, error) {
	courseIDs, err := tx.Courses.FindIDsByIdentifier(ctx, row.CourseCode)
	if err != nil {
		return 0, false, err
	}

	if len(courseIDs) != 1 {
		studentID, err := tx.Students.Create(ctx, row.PersonalCode)
		if err != nil {
			return 0, false, err
		}
		if err := tx.Students.AddUnknownCourse(ctx, studentID, row.CourseCode); err != nil {
			return 0, false, err
		}
		s.logger.Debug().Int("row", row.Number).Str("course", row.CourseCode).Int("matches", len(courseIDs)).
			Msg("Course code not resolved")
		return studentID, false, nil
	}

	courseID := courseIDs[0]
	var existing []int64
	// A blank code identifies nobody; every such row is its own student.
	if row.PersonalCode != "" {
		existing, err = tx.Students.FindInCourse(ctx, row.PersonalCode, courseID)
		if err != nil {
			return 0, false, err
		}
	}
	if len(existing) > 0 {
		if len(existing) > 1 {
			s.logger.Warn().Str("code", row.PersonalCode).Int64("course_id", courseID).Int("students", len(existing)).
				Msg("Several students share a code in one course, using the oldest")
		}
		return existing[0], true, nil
	}

	studentID, err := tx.Students.Create(ctx, row.PersonalCode)
	if err != nil {
		return 0, false, err
	}
	if err := tx.Students.AddCourse(ctx, studentID, courseID); err != nil {
		return 0, false, err
	}
	return studentID, true, nil
}

// storeAnswers inserts the answer sets of a row and links them to a pre or post questionnaire.
func (s *ingestServiceImpl) storeAnswers(ctx context.Context, q QuestionnaireStore, row *models.CleanRow) (int64, error) {
	youID, err := q.InsertAnswerSet(ctx, models.InstrumentYou, row.You)
	if err != nil {
		return 0, err
	}
	expertID, err := q.InsertAnswerSet(ctx, models.InstrumentExpert, row.Expert)
	if err != nil {
		return 0, err
	}

	switch row.Phase {
	case models.PhasePre:
		return q.InsertPre(ctx, youID, expertID)
	case models.PhasePost:
		markID, err := q.InsertAnswerSet(ctx, models.InstrumentMark, row.Mark)
		if err != nil {
			return 0, err
		}
		return q.InsertPost(ctx, youID, expertID, markID)
	default:
		return 0, apperrors.ValidationError{Field: "pre_post", Value: int(row.Phase), Message: "must be 1 or 2"}
	}
}

