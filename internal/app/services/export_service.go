package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/app/survey"
)

// ExportStores is the data the exports read.
type ExportStores struct {
	Courses        CourseStore
	Students       StudentStore
	Questionnaires QuestionnaireStore
}

// ExportService writes CSV exports of the stored survey data
type ExportService interface {
	ExportMatched(ctx context.Context, w io.Writer) (int, error)
	ExportUnmatched(ctx context.Context, w io.Writer) (int, error)
	ExportUnknown(ctx context.Context, w io.Writer) (int, error)
}

type exportServiceImpl struct {
	stores  ExportStores
	matcher MatchService
	rnd     *rand.Rand
	logger  zerolog.Logger
}

// NewExportService creates a new export service. A nil rnd seeds one from the clock.
func NewExportService(stores ExportStores, matcher MatchService, rnd *rand.Rand, logger zerolog.Logger) ExportService {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &exportServiceImpl{
		stores:  stores,
		matcher: matcher,
		rnd:     rnd,
		logger:  logger,
	}
}

func matchedHeader() []string {
	header := []string{"course_id", "experience_id", "program_id", "course_type_id", "traditional_id"}
	for _, prefix := range []string{"q_you_pre_", "q_you_post_", "q_expert_pre_", "q_expert_post_"} {
		for i := 1; i <= survey.BeliefItems; i++ {
			header = append(header, prefix+strconv.Itoa(i))
		}
	}
	for i := 1; i <= survey.ImportanceItems; i++ {
		header = append(header, "q_mark_"+strconv.Itoa(i))
	}
	return header
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func appendInts(record []string, values []int) []string {
	for _, v := range values {
		record = append(record, strconv.Itoa(v))
	}
	return record
}

// ExportMatched writes the transformed responses of every matched student with
// the metadata of their course. Rows are shuffled so the file carries no order
// that could identify students.
func (s *exportServiceImpl) ExportMatched(ctx context.Context, w io.Writer) (int, error) {
	courses, err := s.stores.Courses.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	var records [][]string
	for _, course := range courses {
		result, err := s.matcher.MatchCourse(ctx, course.ID)
		if err != nil {
			return 0, fmt.Errorf("match course %s: %w", course.Identifier, err)
		}
		for _, b := range result.Bundles {
			record := []string{
				strconv.FormatInt(course.ID, 10),
				optionalID(course.ExperienceID),
				optionalID(course.ProgramID),
				optionalID(course.CourseTypeID),
				optionalID(course.TraditionalID),
			}
			record = appendInts(record, b.Responses.YouPre)
			record = appendInts(record, b.Responses.YouPost)
			record = appendInts(record, b.Responses.ExpertPre)
			record = appendInts(record, b.Responses.ExpertPost)
			record = appendInts(record, b.Responses.Mark)
			records = append(records, record)
		}
	}

	s.rnd.Shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})

	if err := writeCSV(w, matchedHeader(), records); err != nil {
		return 0, err
	}
	s.logger.Info().Int("rows", len(records)).Int("courses", len(courses)).Msg("Exported matched responses")
	return len(records), nil
}

// ExportUnmatched lists per course the codes of valid attempts whose student
// never answered the other phase.
func (s *exportServiceImpl) ExportUnmatched(ctx context.Context, w io.Writer) (int, error) {
	courses, err := s.stores.Courses.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	var records [][]string
	for _, course := range courses {
		id := strconv.FormatInt(course.ID, 10)
		for _, phase := range []models.Phase{models.PhasePre, models.PhasePost} {
			codes, err := s.stores.Questionnaires.GetUnmatched(ctx, course.ID, phase)
			if err != nil {
				return 0, err
			}
			for _, code := range codes {
				if phase == models.PhasePre {
					records = append(records, []string{id, code, ""})
				} else {
					records = append(records, []string{id, "", code})
				}
			}
		}
	}

	if err := writeCSV(w, []string{"course_id", "pre", "post"}, records); err != nil {
		return 0, err
	}
	s.logger.Info().Int("rows", len(records)).Msg("Exported unmatched attempts")
	return len(records), nil
}

// ExportUnknown lists the known course identifiers next to the course codes
// students entered that matched no single course.
func (s *exportServiceImpl) ExportUnknown(ctx context.Context, w io.Writer) (int, error) {
	courses, err := s.stores.Courses.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	codes, err := s.stores.Students.GetUnknownCourseCodes(ctx)
	if err != nil {
		return 0, err
	}

	records := make([][]string, 0, len(courses)+len(codes))
	for _, course := range courses {
		records = append(records, []string{course.Identifier, ""})
	}
	for _, code := range codes {
		records = append(records, []string{"", code})
	}

	if err := writeCSV(w, []string{"known_courses", "unknown_courses"}, records); err != nil {
		return 0, err
	}
	s.logger.Info().Int("known", len(courses)).Int("unknown", len(codes)).Msg("Exported course codes")
	return len(records), nil
}

func writeCSV(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}
