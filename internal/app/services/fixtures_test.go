package services

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/app/survey"
)

var testLogger = zerolog.Nop()

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// surveyRow builds a finished raw export row answering every item with answer.
func surveyRow(number int, code, course string, phase models.Phase, end string, answer int) models.RawRow {
	cells := map[string]string{
		"data_id":       strconv.Itoa(number),
		"personal_code": code,
		"course_id":     course,
		"pre_post":      strconv.Itoa(int(phase)),
		"start":         end,
		"end":           end,
		"privacy":       "1",
		"qcontrol":      "4",
	}
	for i := 1; i <= survey.BeliefItems; i++ {
		cells[fmt.Sprintf("q%d_1", i)] = strconv.Itoa(answer)
		cells[fmt.Sprintf("q%d_2", i)] = strconv.Itoa(answer)
	}
	if phase == models.PhasePost {
		for i := 1; i <= survey.ImportanceItems; i++ {
			cells[fmt.Sprintf("post_%d", i)] = strconv.Itoa(answer)
		}
	}
	return models.RawRow{Number: number, Cells: cells}
}

var cleanerOptions = CleanerOptions{ControlAnswer: 4, WindowDays: 14, Location: time.UTC}

type sentMail struct {
	To, Subject, Body string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	fail map[string]bool
}

func (f *fakeNotifier) Send(recipient, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[recipient] {
		return fmt.Errorf("mailbox %s unavailable", recipient)
	}
	f.sent = append(f.sent, sentMail{To: recipient, Subject: subject, Body: body})
	return nil
}

func (f *fakeNotifier) to(recipient string) []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMail
	for _, m := range f.sent {
		if m.To == recipient {
			out = append(out, m)
		}
	}
	return out
}
