package models

// Student is an identity scoped by its lower-cased personal code.
type Student struct {
	ID   int64  `json:"id" db:"id"`
	Code string `json:"code" db:"code"`
}

// UnknownCourse keeps the raw course code of a student whose course
// could not be resolved, for manual reconciliation.
type UnknownCourse struct {
	StudentID  int64  `json:"studentId" db:"student_id"`
	CourseCode string `json:"courseCode" db:"course_code"`
}
