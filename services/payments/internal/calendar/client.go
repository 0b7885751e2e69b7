package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/diagnosis/expertbook/pkg/logger"
	"github.com/diagnosis/expertbook/pkg/tracing"
	"github.com/diagnosis/expertbook/services/payments/internal/domain"
)

// Client talks to the calendar service, which owns the expert's calendar
// provider credentials.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client: tracing.WrapHTTPClient(&http.Client{
			Timeout: timeout,
		}, "payments/calendar"),
	}
}

func (c *Client) CreateCalendarEvent(ctx context.Context, in domain.CalendarEventRequest) (*domain.CalendarEvent, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode calendar request: %w", err)
	}

	url := c.baseURL + "/calendar/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "calendar-"+in.MeetingID)
	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok && requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	} else {
		req.Header.Set("X-Request-ID", uuid.NewString())
	}

	logger.DebugContext(ctx, "Creating calendar event", "url", url, "meeting_id", in.MeetingID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("calendar service returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out domain.CalendarEvent
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode calendar response: %w", err)
	}
	return &out, nil
}
