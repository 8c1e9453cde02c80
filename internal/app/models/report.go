package models

import "github.com/geclass/geclass/internal/app/survey"

// ReportState is the lifecycle state of a course report.
type ReportState string

const (
	ReportNotDue       ReportState = "NOT_DUE"
	ReportDue          ReportState = "DUE"
	ReportGenerating   ReportState = "GENERATING"
	ReportDone         ReportState = "DONE"
	ReportSkippedEmpty ReportState = "SKIPPED_EMPTY"
	ReportFailed       ReportState = "FAILED"
)

// Terminal reports whether no further run changes the state.
func (s ReportState) Terminal() bool {
	return s == ReportDone || s == ReportSkippedEmpty
}

// CourseOutcome is the result of one course in a report run.
type CourseOutcome struct {
	CourseID   int64
	Identifier string
	State      ReportState
	Matched    int
	Err        error
}

// InstrumentStatistics holds the per-question estimates of one instrument
// for the course and for the similar-course pool.
type InstrumentStatistics struct {
	Course  []survey.Estimate `json:"course"`
	Similar []survey.Estimate `json:"similar"`
}

// OverallStatistics is the expert-like fraction over all questions.
type OverallStatistics struct {
	CourseMean    survey.Value `json:"course_mean"`
	CourseStdErr  survey.Value `json:"course_stderr"`
	SimilarMean   survey.Value `json:"similar_mean"`
	SimilarStdErr survey.Value `json:"similar_stderr"`
}

// ShiftStatistics is the per-question change from pre to post.
type ShiftStatistics struct {
	Course  []survey.Value `json:"course"`
	Similar []survey.Value `json:"similar"`
}

// ReportCounts are the headline numbers printed in the report.
type ReportCounts struct {
	Pre            int     `json:"pre"`
	Post           int     `json:"post"`
	Matched        int     `json:"matched"`
	Reported       int     `json:"reported"`
	Ratio          float64 `json:"ratio"`
	SimilarMatched int     `json:"similar_matched"`
}

// ReportStatistics is everything the renderer consumes for one course.
type ReportStatistics struct {
	Significance float64                         `json:"significance"`
	CourseSize   int                             `json:"course_size"`
	SimilarSize  int                             `json:"similar_size"`
	Instruments  map[string]InstrumentStatistics `json:"instruments"`
	Overall      map[string]OverallStatistics    `json:"overall"`
	YouShift     ShiftStatistics                 `json:"you_shift"`
	ExpertShift  ShiftStatistics                 `json:"expert_shift"`
	Counts       ReportCounts                    `json:"counts"`
}
