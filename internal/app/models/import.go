package models

import "time"

// RawRow is one exported survey row keyed by column header.
type RawRow struct {
	Number int
	Cells  map[string]string
}

// Get returns the trimmed cell of a column, empty when absent.
func (r RawRow) Get(column string) string {
	return r.Cells[column]
}

// CleanRow is an import row that passed cleaning, ready to be stored.
type CleanRow struct {
	Number       int
	PersonalCode string
	CourseCode   string
	Phase        Phase `validate:"oneof=1 2"`
	Start        time.Time
	End          time.Time
	You          []int
	Expert       []int
	// Mark is only filled for post surveys.
	Mark         []int
	ValidControl bool
	ValidTime    bool
}

// RowRejection explains why an import row was dropped.
type RowRejection struct {
	Number int
	Reason string
}

// IngestSummary counts the outcome of storing cleaned rows.
type IngestSummary struct {
	Inserted   int
	Unresolved int
	Failed     int
}
