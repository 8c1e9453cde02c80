package survey

// ResponseAggregate holds one instrument's transformed vectors for many students.
// Column access and Len skip Missing answers; Size counts students.
type ResponseAggregate struct {
	rows [][]int
}

// NewResponseAggregate copies rows into a new aggregate.
func NewResponseAggregate(rows [][]int) *ResponseAggregate {
	return &ResponseAggregate{rows: copyRows(rows)}
}

// Column returns every student's answer to question k, without Missing entries.
func (a *ResponseAggregate) Column(k int) []int {
	col := make([]int, 0, len(a.rows))
	for _, row := range a.rows {
		if k < len(row) && row[k] != Missing {
			col = append(col, row[k])
		}
	}
	return col
}

// Len is the number of non-missing answers in the whole matrix.
func (a *ResponseAggregate) Len() int {
	n := 0
	for _, row := range a.rows {
		for _, v := range row {
			if v != Missing {
				n++
			}
		}
	}
	return n
}

// Size is the number of contributing students.
func (a *ResponseAggregate) Size() int {
	return len(a.rows)
}

// Items is the number of questions per student, 0 for an empty aggregate.
func (a *ResponseAggregate) Items() int {
	if len(a.rows) == 0 {
		return 0
	}
	return len(a.rows[0])
}

// Rows returns a copy of the underlying matrix.
func (a *ResponseAggregate) Rows() [][]int {
	return copyRows(a.rows)
}

func (a *ResponseAggregate) append(other *ResponseAggregate) {
	if other == nil || len(other.rows) == 0 {
		return
	}
	a.rows = append(a.rows, copyRows(other.rows)...)
}

func copyRows(rows [][]int) [][]int {
	out := make([][]int, len(rows))
	for i, row := range rows {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// CohortAggregate bundles the five instrument aggregates of a cohort.
type CohortAggregate struct {
	YouPre     *ResponseAggregate
	YouPost    *ResponseAggregate
	ExpertPre  *ResponseAggregate
	ExpertPost *ResponseAggregate
	Mark       *ResponseAggregate
}

// NewCohortAggregate builds a cohort from per-student responses.
func NewCohortAggregate(responses []*Responses) *CohortAggregate {
	var youPre, youPost, expertPre, expertPost, mark [][]int
	for _, r := range responses {
		youPre = append(youPre, r.YouPre)
		youPost = append(youPost, r.YouPost)
		expertPre = append(expertPre, r.ExpertPre)
		expertPost = append(expertPost, r.ExpertPost)
		mark = append(mark, r.Mark)
	}
	return &CohortAggregate{
		YouPre:     NewResponseAggregate(youPre),
		YouPost:    NewResponseAggregate(youPost),
		ExpertPre:  NewResponseAggregate(expertPre),
		ExpertPost: NewResponseAggregate(expertPost),
		Mark:       NewResponseAggregate(mark),
	}
}

// Size is the number of students in the cohort.
func (c *CohortAggregate) Size() int {
	return c.Mark.Size()
}

// Append concatenates other's students onto c, instrument by instrument.
func (c *CohortAggregate) Append(other *CohortAggregate) {
	if other == nil {
		return
	}
	c.YouPre.append(other.YouPre)
	c.YouPost.append(other.YouPost)
	c.ExpertPre.append(other.ExpertPre)
	c.ExpertPost.append(other.ExpertPost)
	c.Mark.append(other.Mark)
}

// Clone returns a deep copy of c.
func (c *CohortAggregate) Clone() *CohortAggregate {
	return &CohortAggregate{
		YouPre:     NewResponseAggregate(c.YouPre.rows),
		YouPost:    NewResponseAggregate(c.YouPost.rows),
		ExpertPre:  NewResponseAggregate(c.ExpertPre.rows),
		ExpertPost: NewResponseAggregate(c.ExpertPost.rows),
		Mark:       NewResponseAggregate(c.Mark.rows),
	}
}
