package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/pkg/apperrors"
)

// memStore is an in-memory stand-in for the postgres repositories.
type memStore struct {
	seq           int64
	courses       []*models.Course
	users         map[int64]string
	students      []models.Student
	studentCourse [][2]int64
	unknown       []models.UnknownCourse
	answerSets    map[int64][]int
	pre           map[int64][2]int64
	post          map[int64][3]int64
	attempts      []models.SurveyAttempt

	// down makes every call fail like an unreachable database.
	down        bool
	failInserts map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[int64]string{},
		answerSets:  map[int64][]int{},
		pre:         map[int64][2]int64{},
		post:        map[int64][3]int64{},
		failInserts: map[string]bool{},
	}
}

var errConnRefused = errors.New("connection refused")

func (m *memStore) check() error {
	if m.down {
		return apperrors.NewStoreError(errConnRefused, "query failed")
	}
	return nil
}

func (m *memStore) next() int64 {
	m.seq++
	return m.seq
}

func (m *memStore) addCourse(c models.Course) *models.Course {
	if c.ID == 0 {
		c.ID = m.next()
	}
	cc := c
	m.courses = append(m.courses, &cc)
	return &cc
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx TxStores) error) error {
	if err := m.check(); err != nil {
		return err
	}
	return fn(ctx, TxStores{Courses: m, Students: studentStore{m}, Questionnaires: m})
}

// CourseStore

func (m *memStore) FindIDsByIdentifier(ctx context.Context, identifier string) ([]int64, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	var ids []int64
	for _, c := range m.courses {
		if c.Identifier == identifier {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (m *memStore) GetByID(ctx context.Context, id int64) (*models.Course, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	for _, c := range m.courses {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, apperrors.ErrCourseNotFound
}

func (m *memStore) GetByIdentifier(ctx context.Context, identifier string) (*models.Course, error) {
	ids, err := m.FindIDsByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, apperrors.ErrCourseNotFound
	}
	return m.GetByID(ctx, ids[0])
}

func (m *memStore) GetAll(ctx context.Context) ([]*models.Course, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	return append([]*models.Course(nil), m.courses...), nil
}

func (m *memStore) GetPostSurveysStartingBefore(ctx context.Context, cutoff time.Time) ([]*models.Course, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	var out []*models.Course
	for _, c := range m.courses {
		if !c.StartDatePost.After(cutoff) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) GetSimilarCourseIDs(ctx context.Context, courseID int64) ([]int64, error) {
	self, err := m.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	same := func(a, b *int64) bool { return (a == nil && b == nil) || (a != nil && b != nil && *a == *b) }
	var ids []int64
	for _, c := range m.courses {
		if c.ID != self.ID && same(c.ProgramID, self.ProgramID) && same(c.ExperienceID, self.ExperienceID) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (m *memStore) GetReportInfo(ctx context.Context, courseID int64) (*models.CourseReportInfo, error) {
	c, err := m.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return &models.CourseReportInfo{Name: c.Name, NumberStudents: c.NumberStudents}, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (m *memStore) GetSurveysStarting(ctx context.Context, day time.Time) ([]models.SurveyStart, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	var out []models.SurveyStart
	for _, phase := range []models.Phase{models.PhasePre, models.PhasePost} {
		for _, c := range m.courses {
			if sameDay(c.StartDate(phase), day) {
				out = append(out, models.SurveyStart{
					CourseID: c.ID, Identifier: c.Identifier, Name: c.Name,
					OwnerEmail: m.users[c.UserID], Phase: phase,
				})
			}
		}
	}
	return out, nil
}

func (m *memStore) IdentifierExists(ctx context.Context, identifier string) (bool, error) {
	ids, err := m.FindIDsByIdentifier(ctx, identifier)
	return len(ids) > 0, err
}

func (m *memStore) Create(ctx context.Context, course *models.Course) error {
	if err := m.check(); err != nil {
		return err
	}
	if exists, _ := m.IdentifierExists(ctx, course.Identifier); exists {
		return apperrors.ErrCourseIdentifierExists
	}
	course.ID = m.next()
	cc := *course
	m.courses = append(m.courses, &cc)
	return nil
}

// UserStore

func (m *memStore) Ensure(ctx context.Context, email string) (int64, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	for id, e := range m.users {
		if e == email {
			return id, nil
		}
	}
	id := m.next()
	m.users[id] = email
	return id, nil
}

// StudentStore

func (m *memStore) inCourse(studentID, courseID int64) bool {
	for _, sc := range m.studentCourse {
		if sc[0] == studentID && sc[1] == courseID {
			return true
		}
	}
	return false
}

func (m *memStore) courseStudents(courseID int64) []int64 {
	var ids []int64
	for _, sc := range m.studentCourse {
		if sc[1] == courseID {
			ids = append(ids, sc[0])
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *memStore) FindInCourse(ctx context.Context, code string, courseID int64) ([]int64, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	var ids []int64
	for _, s := range m.students {
		if s.Code == code && m.inCourse(s.ID, courseID) {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (m *memStore) CreateStudent(code string) int64 {
	id := m.next()
	m.students = append(m.students, models.Student{ID: id, Code: code})
	return id
}

func (m *memStore) AddCourse(ctx context.Context, studentID, courseID int64) error {
	if err := m.check(); err != nil {
		return err
	}
	if !m.inCourse(studentID, courseID) {
		m.studentCourse = append(m.studentCourse, [2]int64{studentID, courseID})
	}
	return nil
}

func (m *memStore) AddUnknownCourse(ctx context.Context, studentID int64, courseCode string) error {
	if err := m.check(); err != nil {
		return err
	}
	m.unknown = append(m.unknown, models.UnknownCourse{StudentID: studentID, CourseCode: courseCode})
	return nil
}

func (m *memStore) GetUnknownCourseCodes(ctx context.Context) ([]string, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	var codes []string
	for _, u := range m.unknown {
		if u.CourseCode != "" {
			codes = append(codes, u.CourseCode)
		}
	}
	return codes, nil
}

// QuestionnaireStore

func (m *memStore) InsertAnswerSet(ctx context.Context, instrument models.Instrument, answers []int) (int64, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	if m.failInserts[string(instrument)] {
		return 0, errors.New("check constraint violated")
	}
	id := m.next()
	m.answerSets[id] = append([]int(nil), answers...)
	return id, nil
}

func (m *memStore) InsertPre(ctx context.Context, youID, expertID int64) (int64, error) {
	id := m.next()
	m.pre[id] = [2]int64{youID, expertID}
	return id, m.check()
}

func (m *memStore) InsertPost(ctx context.Context, youID, expertID, markID int64) (int64, error) {
	id := m.next()
	m.post[id] = [3]int64{youID, expertID, markID}
	return id, m.check()
}

func (m *memStore) InsertAttempt(ctx context.Context, attempt *models.SurveyAttempt) error {
	if err := m.check(); err != nil {
		return err
	}
	attempt.ID = m.next()
	m.attempts = append(m.attempts, *attempt)
	return nil
}

func (m *memStore) FindMatchCandidates(ctx context.Context, courseID int64) ([]models.MatchCandidate, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	var out []models.MatchCandidate
	for _, sid := range m.courseStudents(courseID) {
		var pres, posts []int64
		for _, a := range m.attempts {
			if a.StudentID != sid || !a.ValidControl || !a.ValidTime {
				continue
			}
			if a.Phase == models.PhasePre {
				pres = append(pres, a.QuestionnaireID)
			} else {
				posts = append(posts, a.QuestionnaireID)
			}
		}
		if len(pres) == 0 || len(posts) == 0 {
			continue
		}
		sort.Slice(pres, func(i, j int) bool { return pres[i] < pres[j] })
		sort.Slice(posts, func(i, j int) bool { return posts[i] < posts[j] })
		out = append(out, models.MatchCandidate{
			StudentID:           sid,
			Pairs:               len(pres) * len(posts),
			PreQuestionnaireID:  pres[0],
			PostQuestionnaireID: posts[0],
		})
	}
	return out, nil
}

func (m *memStore) GetAnswers(ctx context.Context, phase models.Phase, instrument models.Instrument, questionnaireID int64) ([]int, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	var setID int64
	idx := map[models.Instrument]int{models.InstrumentYou: 0, models.InstrumentExpert: 1, models.InstrumentMark: 2}[instrument]
	if phase == models.PhasePre {
		q, ok := m.pre[questionnaireID]
		if !ok || idx > 1 {
			return nil, apperrors.NewResourceNotFoundError("questionnaire not found")
		}
		setID = q[idx]
	} else {
		q, ok := m.post[questionnaireID]
		if !ok {
			return nil, apperrors.NewResourceNotFoundError("questionnaire not found")
		}
		setID = q[idx]
	}
	return append([]int(nil), m.answerSets[setID]...), nil
}

func (m *memStore) CountAttempts(ctx context.Context, courseID int64) (int, int, error) {
	if err := m.check(); err != nil {
		return 0, 0, err
	}
	pre, post := 0, 0
	for _, a := range m.attempts {
		if !m.inCourse(a.StudentID, courseID) {
			continue
		}
		if a.Phase == models.PhasePre {
			pre++
		} else {
			post++
		}
	}
	return pre, post, nil
}

func (m *memStore) GetUnmatched(ctx context.Context, courseID int64, phase models.Phase) ([]string, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	hasOther := map[int64]bool{}
	for _, a := range m.attempts {
		if a.Phase != phase {
			hasOther[a.StudentID] = true
		}
	}
	var codes []string
	for _, s := range m.students {
		if !m.inCourse(s.ID, courseID) || hasOther[s.ID] {
			continue
		}
		for _, a := range m.attempts {
			if a.StudentID == s.ID && a.Phase == phase && a.ValidControl && a.ValidTime {
				codes = append(codes, s.Code)
			}
		}
	}
	return codes, nil
}

func (m *memStore) ValidateTime(ctx context.Context, courseID int64, phase models.Phase) (int64, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	var n int64
	for i := range m.attempts {
		if m.attempts[i].Phase == phase && m.inCourse(m.attempts[i].StudentID, courseID) {
			m.attempts[i].ValidTime = true
			n++
		}
	}
	return n, nil
}

// studentStore adapts memStore.CreateStudent to the StudentStore Create signature,
// which collides with the course Create method on the same type.
type studentStore struct{ *memStore }

func (s studentStore) Create(ctx context.Context, code string) (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	return s.CreateStudent(code), nil
}
