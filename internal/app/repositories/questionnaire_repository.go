package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/pkg/apperrors"
	"github.com/geclass/geclass/internal/pkg/helpers"
)

// phaseTables names the tables of one survey phase.
type phaseTables struct {
	attempt       string
	questionnaire string
	foreignKey    string
}

var phases = map[models.Phase]phaseTables{
	models.PhasePre:  {attempt: "student_pre", questionnaire: "questionnaire_pre", foreignKey: "questionnaire_pre_id"},
	models.PhasePost: {attempt: "student_post", questionnaire: "questionnaire_post", foreignKey: "questionnaire_post_id"},
}

var instrumentTables = map[models.Instrument]string{
	models.InstrumentYou:    "questionnaire_you",
	models.InstrumentExpert: "questionnaire_expert",
	models.InstrumentMark:   "questionnaire_mark",
}

func tablesFor(phase models.Phase) (phaseTables, error) {
	t, ok := phases[phase]
	if !ok {
		return phaseTables{}, apperrors.NewBadRequestError(fmt.Sprintf("unknown survey phase %d", phase))
	}
	return t, nil
}

func answerColumns(prefix string, n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("%sq%d", prefix, i+1)
	}
	return cols
}

// QuestionnaireRepository handles answer sets and survey attempts
type QuestionnaireRepository struct {
	db DBTX
	sb squirrel.StatementBuilderType
}

// NewQuestionnaireRepository creates a new questionnaire repository
func NewQuestionnaireRepository(db DBTX) *QuestionnaireRepository {
	return &QuestionnaireRepository{
		db: db,
		sb: newBuilder(),
	}
}

// InsertAnswerSet stores one answer vector and returns its id. Missing answers become NULL.
func (r *QuestionnaireRepository) InsertAnswerSet(ctx context.Context, instrument models.Instrument, answers []int) (int64, error) {
	table, ok := instrumentTables[instrument]
	if !ok {
		return 0, apperrors.NewBadRequestError(fmt.Sprintf("unknown instrument %q", instrument))
	}
	if len(answers) != instrument.Items() {
		return 0, apperrors.NewBadRequestError(
			fmt.Sprintf("%s answer set needs %d items, got %d", instrument, instrument.Items(), len(answers)))
	}

	sql, args, err := r.sb.Insert(table).
		Columns(answerColumns("", len(answers))...).
		Values(helpers.AnswersToArgs(answers)...).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("error building SQL: %w", err)
	}

	var id int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, wrapErr(err, "error inserting "+table)
	}
	return id, nil
}

// InsertPre links the you and expert answer sets of a pre survey.
func (r *QuestionnaireRepository) InsertPre(ctx context.Context, youID, expertID int64) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO questionnaire_pre (questionnaire_you_id, questionnaire_expert_id)
		VALUES ($1, $2)
		RETURNING id`, youID, expertID).Scan(&id)
	if err != nil {
		return 0, wrapErr(err, "error inserting questionnaire_pre")
	}
	return id, nil
}

// InsertPost links the you, expert and mark answer sets of a post survey.
func (r *QuestionnaireRepository) InsertPost(ctx context.Context, youID, expertID, markID int64) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO questionnaire_post (questionnaire_you_id, questionnaire_expert_id, questionnaire_mark_id)
		VALUES ($1, $2, $3)
		RETURNING id`, youID, expertID, markID).Scan(&id)
	if err != nil {
		return 0, wrapErr(err, "error inserting questionnaire_post")
	}
	return id, nil
}

// InsertAttempt stores a survey attempt and fills in its id.
func (r *QuestionnaireRepository) InsertAttempt(ctx context.Context, attempt *models.SurveyAttempt) error {
	t, err := tablesFor(attempt.Phase)
	if err != nil {
		return err
	}

	sql, args, err := r.sb.Insert(t.attempt).
		Columns("student_id", t.foreignKey, "start_time", "end_time", "valid_control", "valid_time").
		Values(attempt.StudentID, attempt.QuestionnaireID, attempt.StartTime, attempt.EndTime,
			attempt.ValidControl, attempt.ValidTime).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building SQL: %w", err)
	}

	if err := r.db.QueryRow(ctx, sql, args...).Scan(&attempt.ID); err != nil {
		return wrapErr(err, "error inserting "+t.attempt)
	}
	return nil
}

// FindMatchCandidates joins, per student of the course, every valid pre with
// every valid post attempt. Pairs is the number of joined rows.
func (r *QuestionnaireRepository) FindMatchCandidates(ctx context.Context, courseID int64) ([]models.MatchCandidate, error) {
	query := `
		SELECT
			student_course.student_id,
			COUNT(*),
			MIN(student_pre.questionnaire_pre_id),
			MIN(student_post.questionnaire_post_id)
		FROM student_course
		JOIN student_pre ON student_pre.student_id = student_course.student_id
			AND student_pre.valid_control
			AND student_pre.valid_time
		JOIN student_post ON student_post.student_id = student_course.student_id
			AND student_post.valid_control
			AND student_post.valid_time
		WHERE student_course.course_id = $1
		GROUP BY student_course.student_id
		ORDER BY student_course.student_id
	`
	rows, err := r.db.Query(ctx, query, courseID)
	if err != nil {
		return nil, wrapErr(err, "error matching attempts")
	}
	defer rows.Close()

	var candidates []models.MatchCandidate
	for rows.Next() {
		var c models.MatchCandidate
		if err := rows.Scan(&c.StudentID, &c.Pairs, &c.PreQuestionnaireID, &c.PostQuestionnaireID); err != nil {
			return nil, wrapErr(err, "error scanning match candidate")
		}
		candidates = append(candidates, c)
	}
	return candidates, wrapErr(rows.Err(), "error iterating match candidates")
}

// GetAnswers loads the raw answers of one instrument of a pre or post questionnaire.
// NULL answers are returned as survey.Missing.
func (r *QuestionnaireRepository) GetAnswers(ctx context.Context, phase models.Phase, instrument models.Instrument, questionnaireID int64) ([]int, error) {
	t, err := tablesFor(phase)
	if err != nil {
		return nil, err
	}
	table, ok := instrumentTables[instrument]
	if !ok || (instrument == models.InstrumentMark && phase != models.PhasePost) {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("no %s answers in %s survey", instrument, phase))
	}

	sql, args, err := r.sb.Select(answerColumns("a.", instrument.Items())...).
		From(table + " AS a").
		Join(fmt.Sprintf("%s AS q ON q.%s_id = a.id", t.questionnaire, table)).
		Where(squirrel.Eq{"q.id": questionnaireID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	values := make([]*int16, instrument.Items())
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}
	err = r.db.QueryRow(ctx, sql, args...).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewResourceNotFoundError(fmt.Sprintf("%s questionnaire %d not found", phase, questionnaireID))
	}
	if err != nil {
		return nil, wrapErr(err, "error loading answers")
	}

	answers := make([]int, len(values))
	for i, v := range values {
		answers[i] = helpers.NullableToAnswer(v)
	}
	return answers, nil
}

// CountAttempts returns the number of pre and post attempts of a course's students.
func (r *QuestionnaireRepository) CountAttempts(ctx context.Context, courseID int64) (pre, post int, err error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM student_pre
				JOIN student_course ON student_course.student_id = student_pre.student_id
				WHERE student_course.course_id = $1),
			(SELECT COUNT(*) FROM student_post
				JOIN student_course ON student_course.student_id = student_post.student_id
				WHERE student_course.course_id = $1)
	`
	if err := r.db.QueryRow(ctx, query, courseID).Scan(&pre, &post); err != nil {
		return 0, 0, wrapErr(err, "error counting attempts")
	}
	return pre, post, nil
}

// GetUnmatched returns the codes of students with a valid attempt in phase
// but no attempt at all in the other phase.
func (r *QuestionnaireRepository) GetUnmatched(ctx context.Context, courseID int64, phase models.Phase) ([]string, error) {
	t, err := tablesFor(phase)
	if err != nil {
		return nil, err
	}
	other := phases[models.PhasePost]
	if phase == models.PhasePost {
		other = phases[models.PhasePre]
	}

	sql, args, err := r.sb.Select("student.code").
		From("student").
		Join(t.attempt + " AS a ON a.student_id = student.id").
		Join("student_course ON student_course.student_id = student.id").
		Where(squirrel.Eq{"student_course.course_id": courseID}).
		Where("a.valid_control AND a.valid_time").
		Where(fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s AS o WHERE o.student_id = student.id)", other.attempt)).
		OrderBy("student.id", "a.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr(err, "error querying unmatched attempts")
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, wrapErr(err, "error scanning unmatched attempt")
		}
		codes = append(codes, code)
	}
	return codes, wrapErr(rows.Err(), "error iterating unmatched attempts")
}

// ValidateTime marks every attempt of phase by a student of the course as on time.
func (r *QuestionnaireRepository) ValidateTime(ctx context.Context, courseID int64, phase models.Phase) (int64, error) {
	t, err := tablesFor(phase)
	if err != nil {
		return 0, err
	}

	sql, args, err := r.sb.Update(t.attempt).
		Set("valid_time", true).
		Where("student_id IN (SELECT student_id FROM student_course WHERE course_id = ?)", courseID).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("error building SQL: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, wrapErr(err, "error validating attempt times")
	}
	return tag.RowsAffected(), nil
}
