package repositories

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/geclass/geclass/internal/pkg/apperrors"
)

// recordingDB captures the statements it receives and fails every call with err.
type recordingDB struct {
	sql  []string
	args [][]any
	err  error
}

func (d *recordingDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.sql, d.args = append(d.sql, sql), append(d.args, args)
	return pgconn.CommandTag{}, d.err
}

func (d *recordingDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.sql, d.args = append(d.sql, sql), append(d.args, args)
	return nil, d.err
}

func (d *recordingDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	d.sql, d.args = append(d.sql, sql), append(d.args, args)
	return errRow{d.err}
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

var spaces = regexp.MustCompile(`\s+`)

func TestFindMatchCandidatesQuery(t *testing.T) {
	db := &recordingDB{err: &pgconn.PgError{Code: "08006"}}
	repo := NewQuestionnaireRepository(db)

	_, err := repo.FindMatchCandidates(context.Background(), 42)
	if !apperrors.IsFatal(err) {
		t.Fatalf("err=%v, want a fatal store error", err)
	}
	if len(db.sql) != 1 {
		t.Fatalf("statements=%d", len(db.sql))
	}
	sql := spaces.ReplaceAllString(db.sql[0], " ")

	// Pairs counts the joined valid pre x valid post rows of one student.
	for _, part := range []string{
		"SELECT student_course.student_id, COUNT(*),",
		"JOIN student_pre ON student_pre.student_id = student_course.student_id AND student_pre.valid_control AND student_pre.valid_time",
		"JOIN student_post ON student_post.student_id = student_course.student_id AND student_post.valid_control AND student_post.valid_time",
		"WHERE student_course.course_id = $1",
		"GROUP BY student_course.student_id",
	} {
		if !strings.Contains(sql, part) {
			t.Errorf("query lacks %q:\n%s", part, sql)
		}
	}
	if got := db.args[0]; len(got) != 1 || got[0] != int64(42) {
		t.Fatalf("args=%v", got)
	}
}
