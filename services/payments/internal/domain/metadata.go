package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/expertbook/pkg/logger"
)

// Payment intent metadata keys. Each value is a JSON document.
const (
	MetadataMeetingKey  = "meeting"
	MetadataTransferKey = "transfer"
	MetadataPaymentKey  = "payment"
)

type MeetingMetadata struct {
	ID        string    `json:"id"`
	Expert    string    `json:"expert"`
	Guest     string    `json:"guest"`
	GuestName string    `json:"guestName"`
	Start     time.Time `json:"start"`
	Dur       float64   `json:"dur"`
	Notes     string    `json:"notes,omitempty"`
}

func (m *MeetingMetadata) Validate() error {
	if m == nil {
		return ErrInvalidMetadata
	}
	if m.ID == "" || m.Expert == "" {
		return fmt.Errorf("%w: meeting id and expert are required", ErrInvalidMetadata)
	}
	if m.Start.IsZero() {
		return fmt.Errorf("%w: meeting start is required", ErrInvalidMetadata)
	}
	if _, err := MinutesToDuration(m.Dur); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return nil
}

func (m *MeetingMetadata) Duration() time.Duration {
	d, _ := MinutesToDuration(m.Dur)
	return d
}

func (m *MeetingMetadata) End() time.Time {
	return m.Start.Add(m.Duration())
}

type TransferMetadata struct {
	Status    string     `json:"status"`
	Account   string     `json:"account"`
	Country   string     `json:"country"`
	Delay     int        `json:"delay"`
	Scheduled *time.Time `json:"scheduled,omitempty"`
}

func (t *TransferMetadata) Validate() error {
	if t == nil {
		return ErrInvalidMetadata
	}
	if t.Account == "" {
		return ErrMissingAccount
	}
	if t.Delay < 0 {
		return fmt.Errorf("%w: negative transfer delay", ErrInvalidMetadata)
	}
	return nil
}

// PaymentMetadata carries amounts in minor units.
type PaymentMetadata struct {
	Amount int64 `json:"amount"`
	Fee    int64 `json:"fee"`
	Expert int64 `json:"expert"`
}

func (p *PaymentMetadata) Validate() error {
	if p == nil {
		return ErrInvalidMetadata
	}
	if p.Amount < 0 || p.Fee < 0 || p.Expert < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvalidMetadata)
	}
	if p.Fee+p.Expert > p.Amount {
		return fmt.Errorf("%w: fee and expert share exceed amount", ErrInvalidMetadata)
	}
	return nil
}

type validator interface {
	Validate() error
}

// DecodeMetadata parses raw into T. Absent metadata returns fallback
// silently; malformed or invalid metadata returns fallback with a warning.
// It never fails.
func DecodeMetadata[T any](ctx context.Context, key, raw string, fallback T) T {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		logger.WarnContext(ctx, "Failed to parse payment metadata",
			"key", key,
			"error", err,
		)
		return fallback
	}

	v, ok := any(out).(validator)
	if !ok {
		v, ok = any(&out).(validator)
	}
	if ok {
		if err := v.Validate(); err != nil {
			logger.WarnContext(ctx, "Rejected invalid payment metadata",
				"key", key,
				"error", err,
			)
			return fallback
		}
	}

	return out
}

// Metadata is the decoded view of a payment intent's metadata map. Any
// field may be nil.
type Metadata struct {
	Meeting  *MeetingMetadata
	Transfer *TransferMetadata
	Payment  *PaymentMetadata
}

func ParseMetadata(ctx context.Context, md map[string]string) Metadata {
	return Metadata{
		Meeting:  DecodeMetadata[*MeetingMetadata](ctx, MetadataMeetingKey, md[MetadataMeetingKey], nil),
		Transfer: DecodeMetadata[*TransferMetadata](ctx, MetadataTransferKey, md[MetadataTransferKey], nil),
		Payment:  DecodeMetadata[*PaymentMetadata](ctx, MetadataPaymentKey, md[MetadataPaymentKey], nil),
	}
}
