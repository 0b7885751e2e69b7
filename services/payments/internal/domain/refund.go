package domain

import "time"

// RefundPolicyVersion tags refunds with the policy that produced them.
// v3.0 always refunds 100% of the captured amount.
const RefundPolicyVersion = "v3.0-customer-first"

type RefundRecordStatus string

const (
	RefundIssued RefundRecordStatus = "issued"
	RefundFailed RefundRecordStatus = "failed"
)

type Refund struct {
	ID              string `json:"id"`
	PaymentIntentID string `json:"payment_intent_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
}

// RefundRecord is the audit row written for every conflict refund attempt.
type RefundRecord struct {
	ID              string
	PaymentIntentID string
	MeetingID       string
	RefundID        *string
	Amount          int64
	Currency        string
	ConflictType    ConflictType
	Reason          string
	Status          RefundRecordStatus
	Error           *string
	CreatedAt       time.Time
}

// RefundRequest is what the payment provider needs to issue a refund.
type RefundRequest struct {
	PaymentIntentID string
	Amount          int64
	IdempotencyKey  string
	Metadata        map[string]string
}
