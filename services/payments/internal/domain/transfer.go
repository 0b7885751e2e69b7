package domain

import "time"

type TransferStatus string

const (
	TransferPending  TransferStatus = "PENDING"
	TransferReady    TransferStatus = "READY"
	TransferFailed   TransferStatus = "FAILED"
	TransferRefunded TransferStatus = "REFUNDED"
	TransferDisputed TransferStatus = "DISPUTED"
)

func (s TransferStatus) IsTerminal() bool {
	switch s {
	case TransferFailed, TransferRefunded, TransferDisputed:
		return true
	default:
		return false
	}
}

// TransferSourcesFor lists the statuses from which target is reachable.
func TransferSourcesFor(target TransferStatus) []TransferStatus {
	switch target {
	case TransferReady:
		return []TransferStatus{TransferPending, TransferReady}
	case TransferFailed, TransferRefunded, TransferDisputed:
		return []TransferStatus{TransferPending, TransferReady}
	default:
		return nil
	}
}

func CanTransition(from, to TransferStatus) bool {
	for _, s := range TransferSourcesFor(to) {
		if s == from {
			return true
		}
	}
	return false
}

// PaymentTransfer is the scheduled payout of the expert's share.
type PaymentTransfer struct {
	ID                     string         `json:"id"`
	PaymentIntentID        string         `json:"payment_intent_id"`
	ExpertConnectAccountID string         `json:"expert_connect_account_id"`
	Amount                 int64          `json:"amount"`
	PlatformFee            int64          `json:"platform_fee"`
	Currency               string         `json:"currency"`
	SessionStartTime       time.Time      `json:"session_start_time"`
	ScheduledTransferTime  time.Time      `json:"scheduled_transfer_time"`
	Status                 TransferStatus `json:"status"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}
