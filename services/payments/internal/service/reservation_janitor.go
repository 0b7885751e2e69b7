package service

import (
	"context"
	"time"

	"github.com/diagnosis/expertbook/pkg/logger"
	"github.com/diagnosis/expertbook/services/payments/internal/repository"
)

// ReservationJanitor drops slot holds whose voucher expired unpaid.
type ReservationJanitor struct {
	reservations repository.ReservationRepository
	interval     time.Duration
}

func NewReservationJanitor(reservations repository.ReservationRepository, interval time.Duration) *ReservationJanitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ReservationJanitor{reservations: reservations, interval: interval}
}

// Run sweeps until ctx is cancelled.
func (j *ReservationJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

func (j *ReservationJanitor) Sweep(ctx context.Context) int64 {
	n, err := j.reservations.DeleteExpired(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to delete expired slot reservations", "error", err)
		return 0
	}
	if n > 0 {
		logger.InfoContext(ctx, "Expired slot reservations deleted", "count", n)
	}
	return n
}
