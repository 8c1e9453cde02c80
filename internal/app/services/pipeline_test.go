package services

import (
	"context"
	"reflect"
	"testing"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/app/survey"
	"github.com/geclass/geclass/internal/pkg/apperrors"
)

type pipeline struct {
	store   *memStore
	course  *models.Course
	cleaner CleanerService
	ingest  IngestService
	matcher MatchService
}

func newPipeline() *pipeline {
	store := newMemStore()
	course := store.addCourse(models.Course{
		Identifier:     "abcde",
		Name:           "Physik I",
		NumberStudents: 20,
		StartDatePre:   date("2024-03-01"),
		StartDatePost:  date("2024-06-01"),
	})
	return &pipeline{
		store:   store,
		course:  course,
		cleaner: NewCleanerService(store, cleanerOptions, testLogger),
		ingest:  NewIngestService(store, testLogger),
		matcher: NewMatchService(store, survey.ModeAgreement, testLogger),
	}
}

func (p *pipeline) load(t *testing.T, rows ...models.RawRow) *models.IngestSummary {
	t.Helper()
	ctx := context.Background()
	cleaned, err := p.cleaner.Clean(ctx, rows)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	summary, err := p.ingest.Store(ctx, cleaned.Rows)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	return summary
}

func TestSinglePreAndPostMatch(t *testing.T) {
	p := newPipeline()
	summary := p.load(t,
		surveyRow(2, "Anna", "abcde", models.PhasePre, "2024-03-05 10:00:00", 5),
		surveyRow(3, "anna", "ABCDE", models.PhasePost, "2024-06-03 10:00:00", 4),
	)
	if summary.Inserted != 2 || summary.Unresolved != 0 || summary.Failed != 0 {
		t.Fatalf("summary=%+v", summary)
	}
	if len(p.store.students) != 1 {
		t.Fatalf("students=%d, the post row must reuse the pre student", len(p.store.students))
	}

	res, err := p.matcher.MatchCourse(context.Background(), p.course.ID)
	if err != nil {
		t.Fatalf("MatchCourse: %v", err)
	}
	if res.Size() != 1 {
		t.Fatalf("matched=%d, want 1", res.Size())
	}
	b := res.Bundles[0]
	if len(b.Raw.YouPre) != survey.BeliefItems || len(b.Raw.Mark) != survey.ImportanceItems {
		t.Fatalf("bundle vectors have wrong length")
	}
	if b.Responses.YouPre[0] != 1 {
		t.Fatalf("agreeing answer on item 1 transformed to %d", b.Responses.YouPre[0])
	}
	if res.Cohort.Size() != 1 {
		t.Fatalf("cohort size=%d", res.Cohort.Size())
	}
}

func TestSecondValidPostMakesStudentAmbiguous(t *testing.T) {
	p := newPipeline()
	p.load(t,
		surveyRow(2, "anna", "abcde", models.PhasePre, "2024-03-05 10:00:00", 5),
		surveyRow(3, "anna", "abcde", models.PhasePost, "2024-06-03 10:00:00", 5),
		surveyRow(4, "anna", "abcde", models.PhasePost, "2024-06-04 10:00:00", 5),
	)

	res, err := p.matcher.MatchCourse(context.Background(), p.course.ID)
	if err != nil {
		t.Fatalf("MatchCourse: %v", err)
	}
	if res.Size() != 0 || res.Ambiguous != 1 {
		t.Fatalf("matched=%d ambiguous=%d, want 0/1", res.Size(), res.Ambiguous)
	}
}

func TestInvalidAttemptsDoNotCountTowardsMatch(t *testing.T) {
	p := newPipeline()
	late := surveyRow(4, "anna", "abcde", models.PhasePost, "2024-07-30 10:00:00", 5)
	careless := surveyRow(5, "anna", "abcde", models.PhasePost, "2024-06-04 10:00:00", 5)
	careless.Cells["qcontrol"] = "1"
	p.load(t,
		surveyRow(2, "anna", "abcde", models.PhasePre, "2024-03-05 10:00:00", 5),
		surveyRow(3, "anna", "abcde", models.PhasePost, "2024-06-03 10:00:00", 5),
		late, careless,
	)

	res, err := p.matcher.MatchCourse(context.Background(), p.course.ID)
	if err != nil {
		t.Fatalf("MatchCourse: %v", err)
	}
	if res.Size() != 1 {
		t.Fatalf("matched=%d, want 1", res.Size())
	}
}

func TestUnknownCourseCodeIsKept(t *testing.T) {
	p := newPipeline()
	summary := p.load(t, surveyRow(2, "ben", "zzzzz", models.PhasePre, "2024-03-05 10:00:00", 5))

	if summary.Inserted != 1 || summary.Unresolved != 1 {
		t.Fatalf("summary=%+v", summary)
	}
	if len(p.store.unknown) != 1 || p.store.unknown[0].CourseCode != "zzzzz" {
		t.Fatalf("unknown=%+v", p.store.unknown)
	}
	if len(p.store.studentCourse) != 0 {
		t.Fatalf("student_course=%v, want none", p.store.studentCourse)
	}
}

func TestDuplicateIdentifierIsUnresolved(t *testing.T) {
	p := newPipeline()
	p.store.addCourse(models.Course{Identifier: "abcde", StartDatePre: date("2024-03-01"), StartDatePost: date("2024-06-01")})

	summary := p.load(t, surveyRow(2, "anna", "abcde", models.PhasePre, "2024-03-05 10:00:00", 5))
	if summary.Unresolved != 1 || len(p.store.studentCourse) != 0 {
		t.Fatalf("summary=%+v student_course=%v", summary, p.store.studentCourse)
	}
}

func TestFailingRowDoesNotStopBatch(t *testing.T) {
	p := newPipeline()
	cleaned, err := p.cleaner.Clean(context.Background(), []models.RawRow{
		surveyRow(2, "anna", "abcde", models.PhasePre, "2024-03-05 10:00:00", 5),
		surveyRow(3, "anna", "abcde", models.PhasePost, "2024-06-03 10:00:00", 5),
	})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}

	p.store.failInserts[string(models.InstrumentMark)] = true
	summary, err := p.ingest.Store(context.Background(), cleaned.Rows)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if summary.Inserted != 1 || summary.Failed != 1 {
		t.Fatalf("summary=%+v, want 1 inserted and 1 failed", summary)
	}
}

func TestStoreStopsWhenStoreIsDown(t *testing.T) {
	p := newPipeline()
	cleaned, err := p.cleaner.Clean(context.Background(), []models.RawRow{
		surveyRow(2, "anna", "abcde", models.PhasePre, "2024-03-05 10:00:00", 5),
	})
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}

	p.store.down = true
	if _, err := p.ingest.Store(context.Background(), cleaned.Rows); !apperrors.IsFatal(err) {
		t.Fatalf("err=%v, want a fatal store error", err)
	}
}

func TestMatchIsRepeatable(t *testing.T) {
	p := newPipeline()
	p.load(t,
		surveyRow(2, "anna", "abcde", models.PhasePre, "2024-03-05 10:00:00", 5),
		surveyRow(3, "anna", "abcde", models.PhasePost, "2024-06-03 10:00:00", 4),
		surveyRow(4, "ben", "abcde", models.PhasePre, "2024-03-06 10:00:00", 1),
		surveyRow(5, "ben", "abcde", models.PhasePost, "2024-06-05 10:00:00", 2),
	)

	ctx := context.Background()
	first, err := p.matcher.MatchCourse(ctx, p.course.ID)
	if err != nil {
		t.Fatalf("MatchCourse: %v", err)
	}
	second, err := p.matcher.MatchCourse(ctx, p.course.ID)
	if err != nil {
		t.Fatalf("MatchCourse: %v", err)
	}
	if !reflect.DeepEqual(first.Bundles, second.Bundles) {
		t.Fatal("matching twice returned different bundles")
	}
	if first.Size() != 2 {
		t.Fatalf("matched=%d, want 2", first.Size())
	}
}

func TestMatchedNeverExceedsStudents(t *testing.T) {
	p := newPipeline()
	codes := []string{"a1", "b2", "c3", "d4", "e5"}
	var rows []models.RawRow
	for i, code := range codes {
		rows = append(rows, surveyRow(2*i+2, code, "abcde", models.PhasePre, "2024-03-05 10:00:00", 5))
		if i%2 == 0 {
			rows = append(rows, surveyRow(2*i+3, code, "abcde", models.PhasePost, "2024-06-03 10:00:00", 5))
		}
	}
	p.load(t, rows...)

	res, err := p.matcher.MatchCourse(context.Background(), p.course.ID)
	if err != nil {
		t.Fatalf("MatchCourse: %v", err)
	}
	students := len(p.store.courseStudents(p.course.ID))
	if res.Size() > students {
		t.Fatalf("matched=%d exceeds students=%d", res.Size(), students)
	}
	if res.Size() != 3 {
		t.Fatalf("matched=%d, want 3", res.Size())
	}
}

func TestBlankCodesNeverShareAStudent(t *testing.T) {
	p := newPipeline()
	summary := p.load(t,
		surveyRow(2, "", "abcde", models.PhasePre, "2024-03-05 10:00:00", 5),
		surveyRow(3, "", "abcde", models.PhasePost, "2024-06-03 10:00:00", 5),
	)
	if summary.Inserted != 2 {
		t.Fatalf("summary=%+v", summary)
	}
	if len(p.store.students) != 2 {
		t.Fatalf("students=%d, each blank-code row needs its own student", len(p.store.students))
	}

	res, err := p.matcher.MatchCourse(context.Background(), p.course.ID)
	if err != nil {
		t.Fatalf("MatchCourse: %v", err)
	}
	if res.Size() != 0 {
		t.Fatalf("matched=%d, attempts of different respondents were paired", res.Size())
	}
}
