package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/app/survey"
	"github.com/geclass/geclass/internal/pkg/apperrors"
	"github.com/geclass/geclass/internal/pkg/helpers"
	"github.com/geclass/geclass/internal/pkg/spreadsheet"
	"github.com/geclass/geclass/internal/pkg/validation"
)

// Survey tool bookkeeping columns that carry no answers.
var adminColumns = []string{
	"data_id",
	"survey_key",
	"is_test",
	"last_position",
	"history",
	"media",
	"language",
	"invitation",
	"user",
	"user_agent",
}

// CleanResult holds the rows that passed cleaning and why the others did not.
type CleanResult struct {
	Rows     []models.CleanRow
	Rejected []models.RowRejection
}

// CleanerOptions configures the validity checks.
type CleanerOptions struct {
	ControlAnswer int
	WindowDays    int
	Location      *time.Location
}

// CleanerService validates and normalizes raw export rows
type CleanerService interface {
	Clean(ctx context.Context, rows []models.RawRow) (*CleanResult, error)
}

type cleanerServiceImpl struct {
	courses  CourseLookup
	opts     CleanerOptions
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewCleanerService creates a new cleaner
func NewCleanerService(courses CourseLookup, opts CleanerOptions, logger zerolog.Logger) CleanerService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &cleanerServiceImpl{
		courses:  courses,
		opts:     opts,
		validate: validation.New(),
		logger:   logger,
	}
}

// Clean checks every row on its own. A rejected row never stops the others;
// only an unreachable store does.
func (s *cleanerServiceImpl) Clean(ctx context.Context, rows []models.RawRow) (*CleanResult, error) {
	result := &CleanResult{}
	courses := make(map[string]*models.Course)

	for _, raw := range rows {
		row, err := s.cleanRow(raw)
		if err != nil {
			s.logger.Debug().Int("row", raw.Number).Err(err).Msg("Row rejected")
			result.Rejected = append(result.Rejected, models.RowRejection{Number: raw.Number, Reason: err.Error()})
			continue
		}

		course, err := s.resolveCourse(ctx, row.CourseCode, courses)
		if err != nil {
			if apperrors.IsFatal(err) {
				return result, err
			}
			s.logger.Warn().Int("row", raw.Number).Str("course", row.CourseCode).Err(err).Msg("Course lookup failed")
		}
		row.ValidTime = course != nil &&
			helpers.WithinDays(row.End, course.StartDate(row.Phase), s.opts.WindowDays, s.opts.Location)

		result.Rows = append(result.Rows, *row)
	}

	s.logger.Info().
		Int("rows", len(rows)).
		Int("accepted", len(result.Rows)).
		Int("rejected", len(result.Rejected)).
		Msg("Cleaned survey export")
	return result, nil
}

// resolveCourse returns the course of a code, or nil unless exactly one course matches.
func (s *cleanerServiceImpl) resolveCourse(ctx context.Context, code string, cache map[string]*models.Course) (*models.Course, error) {
	if c, ok := cache[code]; ok {
		return c, nil
	}
	ids, err := s.courses.FindIDsByIdentifier(ctx, code)
	if err != nil {
		return nil, err
	}
	var course *models.Course
	if len(ids) == 1 {
		if course, err = s.courses.GetByID(ctx, ids[0]); err != nil {
			return nil, err
		}
	}
	cache[code] = course
	return course, nil
}

func (s *cleanerServiceImpl) cleanRow(raw models.RawRow) (*models.CleanRow, error) {
	cells := dropAdminColumns(raw.Cells)

	if privacy, err := parseInteger(cells["privacy"]); err != nil || privacy != 1 {
		return nil, fmt.Errorf("unfinished: privacy consent missing")
	}
	if cells["end"] == "" {
		return nil, fmt.Errorf("unfinished: no end time")
	}

	row := &models.CleanRow{
		Number:       raw.Number,
		PersonalCode: strings.ToLower(strings.TrimSpace(cells["personal_code"])),
		CourseCode:   strings.ToLower(strings.TrimSpace(cells["course_id"])),
	}
	if row.PersonalCode == "" && row.CourseCode == "" {
		return nil, fmt.Errorf("neither personal code nor course code given")
	}

	var err error
	if row.Start, err = spreadsheet.ParseTimestamp(cells["start"], s.opts.Location); err != nil {
		return nil, apperrors.ValidationError{Field: "start", Value: cells["start"], Message: err.Error()}
	}
	if row.End, err = spreadsheet.ParseTimestamp(cells["end"], s.opts.Location); err != nil {
		return nil, apperrors.ValidationError{Field: "end", Value: cells["end"], Message: err.Error()}
	}

	phase, err := parseInteger(cells["pre_post"])
	if err == nil {
		err = s.validate.Var(phase, "oneof=1 2")
	}
	if err != nil {
		return nil, apperrors.ValidationError{Field: "pre_post", Value: cells["pre_post"], Message: "must be 1 or 2"}
	}
	row.Phase = models.Phase(phase)

	if row.You, err = s.answers(cells, "q%d_1", survey.BeliefItems); err != nil {
		return nil, err
	}
	if row.Expert, err = s.answers(cells, "q%d_2", survey.BeliefItems); err != nil {
		return nil, err
	}
	if row.Phase == models.PhasePost {
		if row.Mark, err = s.answers(cells, "post_%d", survey.ImportanceItems); err != nil {
			return nil, err
		}
	}

	control, err := parseInteger(cells["qcontrol"])
	row.ValidControl = err == nil && control == s.opts.ControlAnswer

	return row, nil
}

// answers reads the items of one instrument. Empty cells and sentinels become survey.Missing.
func (s *cleanerServiceImpl) answers(cells map[string]string, pattern string, n int) ([]int, error) {
	out := make([]int, n)
	for i := range out {
		column := fmt.Sprintf(pattern, i+1)
		cell := cells[column]
		if cell == "" {
			out[i] = survey.Missing
			continue
		}
		v, err := parseInteger(cell)
		if err == nil && survey.IsMissing(v) {
			out[i] = survey.Missing
			continue
		}
		if err == nil {
			err = s.validate.Var(v, "likert")
		}
		if err != nil {
			return nil, apperrors.ValidationError{Field: column, Value: cell, Message: "must be a likert answer 1-5"}
		}
		out[i] = v
	}
	return out, nil
}

func dropAdminColumns(cells map[string]string) map[string]string {
	out := make(map[string]string, len(cells))
	for k, v := range cells {
		out[k] = v
	}
	for _, col := range adminColumns {
		delete(out, col)
	}
	return out
}

// parseInteger accepts "4" as well as spreadsheet renderings like "4.0".
func parseInteger(s string) (int, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}
