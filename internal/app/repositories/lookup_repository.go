package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/geclass/geclass/internal/pkg/apperrors"
)

// Lookup is one of the course metadata tables.
type Lookup string

const (
	LookupUniversity  Lookup = "university"
	LookupProgram     Lookup = "program"
	LookupExperience  Lookup = "experience"
	LookupCourseType  Lookup = "course_type"
	LookupTraditional Lookup = "traditional"
)

var lookupColumns = map[Lookup]string{
	LookupUniversity:  "university_name",
	LookupProgram:     "program_name",
	LookupExperience:  "experience_level",
	LookupCourseType:  "course_type_name",
	LookupTraditional: "traditional_name",
}

// LookupRepository handles the course metadata tables
type LookupRepository struct {
	db DBTX
	sb squirrel.StatementBuilderType
}

// NewLookupRepository creates a new lookup repository
func NewLookupRepository(db DBTX) *LookupRepository {
	return &LookupRepository{
		db: db,
		sb: newBuilder(),
	}
}

// Ensure returns the id of value in the lookup table, inserting it when absent.
func (r *LookupRepository) Ensure(ctx context.Context, lookup Lookup, value string) (int64, error) {
	column, ok := lookupColumns[lookup]
	if !ok {
		return 0, apperrors.NewBadRequestError(fmt.Sprintf("unknown lookup table %q", lookup))
	}

	sql, args, err := r.sb.Insert(string(lookup)).
		Columns(column).
		Values(value).
		Suffix(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s = EXCLUDED.%s RETURNING id", column, column, column)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("error building SQL: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, wrapErr(err, "error ensuring "+string(lookup))
	}
	return id, nil
}
