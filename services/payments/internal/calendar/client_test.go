package calendar_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diagnosis/expertbook/pkg/logger"
	"github.com/diagnosis/expertbook/services/payments/internal/calendar"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
)

func TestCreateCalendarEvent(t *testing.T) {
	var got domain.CalendarEventRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/calendar/events" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"event_id":"gcal_1","conference_url":"https://meet.example.com/abc"}`))
	}))
	defer srv.Close()

	c := calendar.NewClient(srv.URL, time.Second)
	ctx := logger.WithValue(context.Background(), logger.RequestIDKey, "req-1")

	evt, err := c.CreateCalendarEvent(ctx, domain.CalendarEventRequest{
		MeetingID: "m1",
		ExpertID:  "e1",
		GuestName: "Ana",
		Start:     time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
		Duration:  60,
		EventName: "Strategy call",
		Timezone:  "Europe/Lisbon",
	})
	if err != nil {
		t.Fatal(err)
	}

	if evt.ConferenceURL != "https://meet.example.com/abc" {
		t.Errorf("conference url = %q", evt.ConferenceURL)
	}
	if got.MeetingID != "m1" || got.Duration != 60 || got.Timezone != "Europe/Lisbon" {
		t.Errorf("request body = %+v", got)
	}
	if headers.Get("X-Request-ID") != "req-1" || headers.Get("Idempotency-Key") != "calendar-m1" {
		t.Errorf("headers = %v", headers)
	}
}

func TestCreateCalendarEvent_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := calendar.NewClient(srv.URL, time.Second)
	if _, err := c.CreateCalendarEvent(context.Background(), domain.CalendarEventRequest{MeetingID: "m1"}); err == nil {
		t.Fatal("want error for 502")
	}
}
