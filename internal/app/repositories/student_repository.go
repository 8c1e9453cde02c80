package repositories

import (
	"context"
)

// StudentRepository handles database operations for students and their course links
type StudentRepository struct {
	db DBTX
}

// NewStudentRepository creates a new student repository
func NewStudentRepository(db DBTX) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindInCourse returns the ids of students with code that belong to courseID, lowest first.
func (r *StudentRepository) FindInCourse(ctx context.Context, code string, courseID int64) ([]int64, error) {
	query := `
		SELECT student.id
		FROM student
		JOIN student_course ON student_course.student_id = student.id
		WHERE student_course.course_id = $1
		  AND student.code = $2
		ORDER BY student.id
	`
	rows, err := r.db.Query(ctx, query, courseID, code)
	if err != nil {
		return nil, wrapErr(err, "error looking up student")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr(err, "error scanning student id")
		}
		ids = append(ids, id)
	}
	return ids, wrapErr(rows.Err(), "error iterating students")
}

// Create inserts a student and returns its id
func (r *StudentRepository) Create(ctx context.Context, code string) (int64, error) {
	var id int64
	if err := r.db.QueryRow(ctx, `INSERT INTO student (code) VALUES ($1) RETURNING id`, code).Scan(&id); err != nil {
		return 0, wrapErr(err, "error creating student")
	}
	return id, nil
}

// AddCourse links a student to a course
func (r *StudentRepository) AddCourse(ctx context.Context, studentID, courseID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO student_course (student_id, course_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, studentID, courseID)
	return wrapErr(err, "error linking student to course")
}

// AddUnknownCourse records the unresolved course code of a student
func (r *StudentRepository) AddUnknownCourse(ctx context.Context, studentID int64, courseCode string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO student_unknown_course (student_id, course_code)
		VALUES ($1, $2)`, studentID, courseCode)
	return wrapErr(err, "error recording unknown course")
}

// GetUnknownCourseCodes returns the non-blank unresolved course codes in insertion order.
func (r *StudentRepository) GetUnknownCourseCodes(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT course_code
		FROM student_unknown_course
		WHERE btrim(course_code) <> ''
		ORDER BY student_id`)
	if err != nil {
		return nil, wrapErr(err, "error querying unknown courses")
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, wrapErr(err, "error scanning unknown course")
		}
		codes = append(codes, code)
	}
	return codes, wrapErr(rows.Err(), "error iterating unknown courses")
}
