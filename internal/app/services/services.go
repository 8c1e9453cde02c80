package services

import (
	"context"
	"time"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/app/repositories"
)

// Services defined in this package:
// - CleanerService: validates and normalizes raw survey export rows
// - IngestService: resolves student identities and stores cleaned rows
// - MatchService: pairs valid pre and post attempts per course
// - AggregationService: turns matched cohorts into report statistics
// - ReportService: batch driver for course reports
// - ExportService: CSV exports of matched, unmatched and unknown data
// - ReminderService: survey start reminders
// - CourseService: course registration and time validity overrides

// CourseLookup is the read-only course access the cleaner needs.
type CourseLookup interface {
	FindIDsByIdentifier(ctx context.Context, identifier string) ([]int64, error)
	GetByID(ctx context.Context, id int64) (*models.Course, error)
}

// CourseStore is the course access used by the services.
type CourseStore interface {
	CourseLookup
	GetByIdentifier(ctx context.Context, identifier string) (*models.Course, error)
	GetAll(ctx context.Context) ([]*models.Course, error)
	GetPostSurveysStartingBefore(ctx context.Context, cutoff time.Time) ([]*models.Course, error)
	GetReportInfo(ctx context.Context, courseID int64) (*models.CourseReportInfo, error)
	GetSurveysStarting(ctx context.Context, day time.Time) ([]models.SurveyStart, error)
	IdentifierExists(ctx context.Context, identifier string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
}

// SimilarCourses selects the courses a course is compared against.
type SimilarCourses interface {
	GetSimilarCourseIDs(ctx context.Context, courseID int64) ([]int64, error)
}

// StudentStore is the student access used by the services.
type StudentStore interface {
	FindInCourse(ctx context.Context, code string, courseID int64) ([]int64, error)
	Create(ctx context.Context, code string) (int64, error)
	AddCourse(ctx context.Context, studentID, courseID int64) error
	AddUnknownCourse(ctx context.Context, studentID int64, courseCode string) error
	GetUnknownCourseCodes(ctx context.Context) ([]string, error)
}

// QuestionnaireStore is the answer and attempt access used by the services.
type QuestionnaireStore interface {
	InsertAnswerSet(ctx context.Context, instrument models.Instrument, answers []int) (int64, error)
	InsertPre(ctx context.Context, youID, expertID int64) (int64, error)
	InsertPost(ctx context.Context, youID, expertID, markID int64) (int64, error)
	InsertAttempt(ctx context.Context, attempt *models.SurveyAttempt) error
	FindMatchCandidates(ctx context.Context, courseID int64) ([]models.MatchCandidate, error)
	GetAnswers(ctx context.Context, phase models.Phase, instrument models.Instrument, questionnaireID int64) ([]int, error)
	CountAttempts(ctx context.Context, courseID int64) (pre, post int, err error)
	GetUnmatched(ctx context.Context, courseID int64, phase models.Phase) ([]string, error)
	ValidateTime(ctx context.Context, courseID int64, phase models.Phase) (int64, error)
}

// UserStore is the course owner access used by the services.
type UserStore interface {
	Ensure(ctx context.Context, email string) (int64, error)
}

// TxStores are stores bound to one transaction.
type TxStores struct {
	Courses        CourseStore
	Students       StudentStore
	Questionnaires QuestionnaireStore
}

// Transactor runs a unit of work in a single transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx TxStores) error) error
}

type storeTransactor struct {
	store *repositories.Store
}

// NewTransactor adapts the repository store to a Transactor.
func NewTransactor(store *repositories.Store) Transactor {
	return &storeTransactor{store: store}
}

func (t *storeTransactor) InTx(ctx context.Context, fn func(ctx context.Context, tx TxStores) error) error {
	return t.store.InTx(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		return fn(ctx, TxStores{
			Courses:        repos.CourseRepository,
			Students:       repos.StudentRepository,
			Questionnaires: repos.QuestionnaireRepository,
		})
	})
}
