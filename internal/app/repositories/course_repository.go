package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/pkg/apperrors"
	"github.com/geclass/geclass/internal/pkg/dberrors"
)

const courseIdentifierConstraint = "course_identifier_key"

var courseColumns = []string{
	"id", "user_id", "identifier", "name",
	"university_id", "program_id", "experience_id", "course_type_id", "traditional_id",
	"number_students", "start_date_pre", "start_date_post",
}

// CourseRepository handles database operations for courses
type CourseRepository struct {
	db DBTX
	sb squirrel.StatementBuilderType
}

// NewCourseRepository creates a new course repository
func NewCourseRepository(db DBTX) *CourseRepository {
	return &CourseRepository{
		db: db,
		sb: newBuilder(),
	}
}

func scanCourse(row pgx.Row) (*models.Course, error) {
	var c models.Course
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Identifier,
		&c.Name,
		&c.UniversityID,
		&c.ProgramID,
		&c.ExperienceID,
		&c.CourseTypeID,
		&c.TraditionalID,
		&c.NumberStudents,
		&c.StartDatePre,
		&c.StartDatePost,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CourseRepository) queryCourses(ctx context.Context, q squirrel.SelectBuilder) ([]*models.Course, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr(err, "error querying courses")
	}
	defer rows.Close()

	var courses []*models.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, wrapErr(err, "error scanning course")
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "error iterating courses")
	}
	return courses, nil
}

// FindIDsByIdentifier returns the ids of all courses registered under identifier.
func (r *CourseRepository) FindIDsByIdentifier(ctx context.Context, identifier string) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM course WHERE identifier = $1 ORDER BY id`, identifier)
	if err != nil {
		return nil, wrapErr(err, "error looking up course identifier")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr(err, "error scanning course id")
		}
		ids = append(ids, id)
	}
	return ids, wrapErr(rows.Err(), "error iterating course ids")
}

// GetByID retrieves a course by ID
func (r *CourseRepository) GetByID(ctx context.Context, id int64) (*models.Course, error) {
	sql, args, err := r.sb.Select(courseColumns...).
		From("course").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	c, err := scanCourse(r.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrCourseNotFound
	}
	if err != nil {
		return nil, wrapErr(err, "error retrieving course")
	}
	return c, nil
}

// GetByIdentifier retrieves a course by its public identifier
func (r *CourseRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.Course, error) {
	sql, args, err := r.sb.Select(courseColumns...).
		From("course").
		Where(squirrel.Eq{"identifier": identifier}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	c, err := scanCourse(r.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrCourseNotFound
	}
	if err != nil {
		return nil, wrapErr(err, "error retrieving course")
	}
	return c, nil
}

// GetAll retrieves all courses ordered by id
func (r *CourseRepository) GetAll(ctx context.Context) ([]*models.Course, error) {
	return r.queryCourses(ctx, r.sb.Select(courseColumns...).From("course").OrderBy("id"))
}

// GetPostSurveysStartingBefore returns the courses whose post survey started on or before cutoff.
func (r *CourseRepository) GetPostSurveysStartingBefore(ctx context.Context, cutoff time.Time) ([]*models.Course, error) {
	return r.queryCourses(ctx, r.sb.Select(courseColumns...).
		From("course").
		Where(squirrel.LtOrEq{"start_date_post": cutoff}).
		OrderBy("id"))
}

// GetSimilarCourseIDs returns the courses sharing program and experience level with courseID.
func (r *CourseRepository) GetSimilarCourseIDs(ctx context.Context, courseID int64) ([]int64, error) {
	sql, args, err := r.sb.Select("other.id").
		From("course AS other").
		Join("course AS self ON self.id = ?", courseID).
		Where("other.id <> self.id").
		Where("other.program_id IS NOT DISTINCT FROM self.program_id").
		Where("other.experience_id IS NOT DISTINCT FROM self.experience_id").
		OrderBy("other.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr(err, "error querying similar courses")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr(err, "error scanning similar course")
		}
		ids = append(ids, id)
	}
	return ids, wrapErr(rows.Err(), "error iterating similar courses")
}

// GetReportInfo returns the name and reported class size of a course.
func (r *CourseRepository) GetReportInfo(ctx context.Context, courseID int64) (*models.CourseReportInfo, error) {
	var info models.CourseReportInfo
	err := r.db.QueryRow(ctx, `SELECT name, number_students FROM course WHERE id = $1`, courseID).
		Scan(&info.Name, &info.NumberStudents)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrCourseNotFound
	}
	if err != nil {
		return nil, wrapErr(err, "error retrieving course report info")
	}
	return &info, nil
}

// GetSurveysStarting returns the pre and post surveys starting on day, with owner emails.
func (r *CourseRepository) GetSurveysStarting(ctx context.Context, day time.Time) ([]models.SurveyStart, error) {
	query := `
		SELECT course.id, course.identifier, course.name, users.email, 1
		FROM course JOIN users ON users.id = course.user_id
		WHERE course.start_date_pre = $1
		UNION ALL
		SELECT course.id, course.identifier, course.name, users.email, 2
		FROM course JOIN users ON users.id = course.user_id
		WHERE course.start_date_post = $1
		ORDER BY 5, 1
	`
	rows, err := r.db.Query(ctx, query, day)
	if err != nil {
		return nil, wrapErr(err, "error querying surveys starting today")
	}
	defer rows.Close()

	var starts []models.SurveyStart
	for rows.Next() {
		var s models.SurveyStart
		var phase int
		if err := rows.Scan(&s.CourseID, &s.Identifier, &s.Name, &s.OwnerEmail, &phase); err != nil {
			return nil, wrapErr(err, "error scanning survey start")
		}
		s.Phase = models.Phase(phase)
		starts = append(starts, s)
	}
	return starts, wrapErr(rows.Err(), "error iterating survey starts")
}

// IdentifierExists checks if a course identifier is already taken
func (r *CourseRepository) IdentifierExists(ctx context.Context, identifier string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM course WHERE identifier = $1)`, identifier).Scan(&exists)
	if err != nil {
		return false, wrapErr(err, "error checking course identifier")
	}
	return exists, nil
}

// Create inserts a course and fills in its id
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	sql, args, err := r.sb.Insert("course").
		Columns(courseColumns[1:]...).
		Values(
			course.UserID,
			course.Identifier,
			course.Name,
			course.UniversityID,
			course.ProgramID,
			course.ExperienceID,
			course.CourseTypeID,
			course.TraditionalID,
			course.NumberStudents,
			course.StartDatePre,
			course.StartDatePost,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	err = r.db.QueryRow(ctx, sql, args...).Scan(&course.ID)
	if dberrors.IsDuplicateConstraintError(err, courseIdentifierConstraint) {
		return apperrors.ErrCourseIdentifierExists
	}
	return wrapErr(err, "error creating course")
}
