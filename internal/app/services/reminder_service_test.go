package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/geclass/geclass/internal/app/models"
)

func TestSendReminders(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	alice, _ := store.Ensure(ctx, "alice@example.org")
	bob, _ := store.Ensure(ctx, "bob@example.org")
	store.addCourse(models.Course{UserID: alice, Identifier: "abcde", Name: "Physik I", StartDatePre: date("2024-03-01"), StartDatePost: date("2024-06-01")})
	store.addCourse(models.Course{UserID: bob, Identifier: "fghij", Name: "Optik", StartDatePre: date("2024-01-10"), StartDatePost: date("2024-03-01")})
	store.addCourse(models.Course{UserID: bob, Identifier: "klmno", Name: "Mechanik", StartDatePre: date("2024-03-02"), StartDatePost: date("2024-06-02")})

	notifier := &fakeNotifier{fail: map[string]bool{"bob@example.org": true}}
	svc := NewReminderService(store, notifier, ReminderOptions{
		SurveyURL:  "https://survey.example.org/s/1",
		WindowDays: 14,
		Operators:  []string{operator},
		Location:   time.UTC,
	}, testLogger)

	res, err := svc.SendReminders(ctx, time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("SendReminders: %v", err)
	}
	if res.Pre != 1 || res.Post != 1 || res.Sent != 1 || res.Failed != 1 {
		t.Fatalf("result=%+v", res)
	}

	mails := notifier.to("alice@example.org")
	if len(mails) != 1 || !strings.Contains(mails[0].Body, "abcde") || !strings.Contains(mails[0].Body, "Prä") {
		t.Fatalf("owner mails=%+v", mails)
	}
	overview := notifier.to(operator)
	if len(overview) != 1 || !strings.Contains(overview[0].Body, "1 Prä- und 1 Post") {
		t.Fatalf("overview=%+v", overview)
	}
}

func TestSendRemindersStoreDown(t *testing.T) {
	store := newMemStore()
	store.down = true
	svc := NewReminderService(store, &fakeNotifier{}, ReminderOptions{}, testLogger)
	if _, err := svc.SendReminders(context.Background(), time.Now()); err == nil {
		t.Fatal("expected an error")
	}
}
