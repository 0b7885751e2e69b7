package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/diagnosis/expertbook/services/payments/internal/domain"
	"github.com/diagnosis/expertbook/services/payments/internal/service"
)

func TestReservationJanitor_Sweep(t *testing.T) {
	s := newMemStore()
	s.reservations["pi_old"] = &domain.SlotReservation{PaymentIntentID: "pi_old", ExpiresAt: time.Now().Add(-time.Hour)}
	s.reservations["pi_live"] = &domain.SlotReservation{PaymentIntentID: "pi_live", ExpiresAt: time.Now().Add(time.Hour)}

	j := service.NewReservationJanitor(reservationRepo{s}, time.Minute)
	if n := j.Sweep(context.Background()); n != 1 {
		t.Fatalf("deleted = %d, want 1", n)
	}
	if s.hasReservation("pi_old") || !s.hasReservation("pi_live") {
		t.Fatal("only the expired reservation should be deleted")
	}
}
