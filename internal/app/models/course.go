package models

import "time"

// Course is a registered course with its two survey start dates.
type Course struct {
	ID             int64     `json:"id" db:"id"`
	UserID         int64     `json:"userId" db:"user_id"`
	Identifier     string    `json:"identifier" db:"identifier"`
	Name           string    `json:"name" db:"name"`
	UniversityID   *int64    `json:"universityId,omitempty" db:"university_id"`
	ProgramID      *int64    `json:"programId,omitempty" db:"program_id"`
	ExperienceID   *int64    `json:"experienceId,omitempty" db:"experience_id"`
	CourseTypeID   *int64    `json:"courseTypeId,omitempty" db:"course_type_id"`
	TraditionalID  *int64    `json:"traditionalId,omitempty" db:"traditional_id"`
	NumberStudents int       `json:"numberStudents" db:"number_students"`
	StartDatePre   time.Time `json:"startDatePre" db:"start_date_pre"`
	StartDatePost  time.Time `json:"startDatePost" db:"start_date_post"`
}

// StartDate returns the survey start date of the given phase.
func (c *Course) StartDate(phase Phase) time.Time {
	if phase == PhasePost {
		return c.StartDatePost
	}
	return c.StartDatePre
}

// CourseReportInfo is what the report header needs about a course.
type CourseReportInfo struct {
	Name           string `json:"name"`
	NumberStudents int    `json:"numberStudents"`
}

// SurveyStart is a course whose pre or post survey starts on a given day.
type SurveyStart struct {
	CourseID   int64  `json:"courseId"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	OwnerEmail string `json:"ownerEmail"`
	Phase      Phase  `json:"phase"`
}

// CourseInput holds the fields of a new course; the identifier is generated.
type CourseInput struct {
	UserID         int64     `validate:"required,gt=0"`
	Name           string    `validate:"required,max=255"`
	UniversityID   *int64    `validate:"omitempty,gt=0"`
	ProgramID      *int64    `validate:"omitempty,gt=0"`
	ExperienceID   *int64    `validate:"omitempty,gt=0"`
	CourseTypeID   *int64    `validate:"omitempty,gt=0"`
	TraditionalID  *int64    `validate:"omitempty,gt=0"`
	NumberStudents int       `validate:"gte=0"`
	StartDatePre   time.Time `validate:"required"`
	StartDatePost  time.Time `validate:"required,gtfield=StartDatePre"`
}
