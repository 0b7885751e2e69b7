package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/diagnosis/expertbook/services/payments/internal/domain"
)

// ---------- In-memory store ----------

type memStore struct {
	mu           sync.Mutex
	meetings     map[string]*domain.Meeting
	transfers    map[string]*domain.PaymentTransfer
	reservations map[string]*domain.SlotReservation
	refunds      []domain.RefundRecord
	disputes     map[string]domain.DisputeEvent
	accounts     map[string]string

	blocked  []domain.BlockedDate
	settings map[string]*domain.SchedulingSettings
	events   map[string]float64

	availabilityErr error
	statusErr       error
}

func newMemStore() *memStore {
	return &memStore{
		meetings:     make(map[string]*domain.Meeting),
		transfers:    make(map[string]*domain.PaymentTransfer),
		reservations: make(map[string]*domain.SlotReservation),
		disputes:     make(map[string]domain.DisputeEvent),
		accounts:     make(map[string]string),
		settings:     make(map[string]*domain.SchedulingSettings),
		events:       make(map[string]float64),
	}
}

func (s *memStore) addMeeting(m domain.Meeting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := m
	s.meetings[m.ID] = &cp
	if m.EventID != "" {
		s.events[m.EventID] = m.DurationMinutes
	}
}

func (s *memStore) meeting(id string) domain.Meeting {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.meetings[id]
}

func (s *memStore) transfer(pi string) *domain.PaymentTransfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[pi]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

func (s *memStore) hasReservation(pi string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reservations[pi]
	return ok
}

// MeetingRepository

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) GetByPaymentIntent(_ context.Context, pi string) (*domain.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.meetings {
		if m.PaymentIntentID == pi {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func allowed[T comparable](from T, sources []T) bool {
	for _, s := range sources {
		if s == from {
			return true
		}
	}
	return false
}

func (s *memStore) UpdatePaymentStatus(_ context.Context, id string, status domain.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statusErr != nil {
		return false, s.statusErr
	}
	m, ok := s.meetings[id]
	if !ok || !allowed(m.PaymentStatus, domain.MeetingSourcesFor(status)) {
		return false, nil
	}
	m.PaymentStatus = status
	return true, nil
}

func (s *memStore) MarkConflict(_ context.Context, id string, status domain.PaymentStatus, ct domain.ConflictType, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok || !allowed(m.PaymentStatus, domain.MeetingSourcesFor(status)) {
		return false, nil
	}
	t := string(ct)
	m.PaymentStatus = status
	m.ConflictType = &t
	m.ConflictReason = &reason
	return true, nil
}

func (s *memStore) TryClaimCalendar(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok || m.CalendarCreationClaimed {
		return false, nil
	}
	m.CalendarCreationClaimed = true
	return true, nil
}

func (s *memStore) ReleaseCalendarClaim(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.meetings[id]; ok && m.CalendarURL == nil {
		m.CalendarCreationClaimed = false
	}
	return nil
}

func (s *memStore) SetCalendarURL(_ context.Context, id, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok || m.CalendarURL != nil {
		return false, nil
	}
	m.CalendarURL = &url
	return true, nil
}

func (s *memStore) ListPendingReview(_ context.Context, limit, offset int) ([]domain.ReviewItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ReviewItem
	for _, m := range s.meetings {
		if m.PaymentStatus == domain.PaymentRefundPendingReview {
			out = append(out, domain.ReviewItem{MeetingID: m.ID, ExpertID: m.ExpertID, PaymentIntentID: m.PaymentIntentID})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MeetingID < out[j].MeetingID })
	return out, nil
}

// TransferRepository (GetByPaymentIntent is shared by name, so transfers
// are exposed through transferRepo below)

type transferRepo struct{ s *memStore }

func (r transferRepo) GetByPaymentIntent(_ context.Context, pi string) (*domain.PaymentTransfer, error) {
	return r.s.transfer(pi), nil
}

func (r transferRepo) CreatePending(_ context.Context, t *domain.PaymentTransfer) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.transfers[t.PaymentIntentID]; ok {
		return false, nil
	}
	cp := *t
	cp.Status = domain.TransferPending
	r.s.transfers[t.PaymentIntentID] = &cp
	return true, nil
}

func (r transferRepo) EnsureReady(_ context.Context, t *domain.PaymentTransfer, reschedule bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.transfers[t.PaymentIntentID]
	if !ok {
		cp := *t
		cp.Status = domain.TransferReady
		r.s.transfers[t.PaymentIntentID] = &cp
		return true, nil
	}
	if cur.Status.IsTerminal() {
		return false, nil
	}
	cur.Status = domain.TransferReady
	cur.SessionStartTime = t.SessionStartTime
	if reschedule {
		cur.ScheduledTransferTime = t.ScheduledTransferTime
	}
	return true, nil
}

func (r transferRepo) Transition(_ context.Context, pi string, status domain.TransferStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.transfers[pi]
	if !ok || !domain.CanTransition(cur.Status, status) {
		return false, nil
	}
	cur.Status = status
	return true, nil
}

// ReservationRepository

type reservationRepo struct{ s *memStore }

func (r reservationRepo) Create(_ context.Context, res *domain.SlotReservation) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.reservations[res.PaymentIntentID]; ok {
		return false, nil
	}
	cp := *res
	r.s.reservations[res.PaymentIntentID] = &cp
	return true, nil
}

func (r reservationRepo) DeleteByPaymentIntent(_ context.Context, pi string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.reservations[pi]; !ok {
		return 0, nil
	}
	delete(r.s.reservations, pi)
	return 1, nil
}

func (r reservationRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for pi, res := range r.s.reservations {
		if res.ExpiresAt.Before(time.Now()) {
			delete(r.s.reservations, pi)
			n++
		}
	}
	return n, nil
}

// AvailabilityRepository

func (s *memStore) ListBlockedDates(_ context.Context, expertID string) ([]domain.BlockedDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.availabilityErr != nil {
		return nil, s.availabilityErr
	}
	var out []domain.BlockedDate
	for _, b := range s.blocked {
		if b.ExpertID == expertID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memStore) ListBusyIntervals(_ context.Context, expertID string, from, to time.Time, exclude string) ([]domain.BusyInterval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.availabilityErr != nil {
		return nil, s.availabilityErr
	}
	var out []domain.BusyInterval
	for _, m := range s.meetings {
		if m.ExpertID != expertID || m.PaymentStatus != domain.PaymentSucceeded {
			continue
		}
		if m.PaymentIntentID == exclude || m.StartTime.Before(from) || !m.StartTime.Before(to) {
			continue
		}
		out = append(out, domain.BusyInterval{
			MeetingID:       m.ID,
			PaymentIntentID: m.PaymentIntentID,
			Start:           m.StartTime,
			DurationMinutes: m.DurationMinutes,
		})
	}
	return out, nil
}

func (s *memStore) GetSchedulingSettings(_ context.Context, expertID string) (*domain.SchedulingSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings[expertID], nil
}

func (s *memStore) GetEventDuration(_ context.Context, eventID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[eventID], nil
}

func (s *memStore) GetConnectAccount(_ context.Context, expertID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[expertID], nil
}

// DisputeRepository

type disputeRepo struct{ s *memStore }

func (r disputeRepo) Record(_ context.Context, dp *domain.DisputeEvent) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.disputes[dp.ID]; ok {
		return false, nil
	}
	r.s.disputes[dp.ID] = *dp
	return true, nil
}

// RefundRecordRepository

func (s *memStore) Record(_ context.Context, rec *domain.RefundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refunds = append(s.refunds, *rec)
	return nil
}

// ---------- Collaborators ----------

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockCalendar struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (c *mockCalendar) CreateCalendarEvent(_ context.Context, req domain.CalendarEventRequest) (*domain.CalendarEvent, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, c.err
	}
	return &domain.CalendarEvent{ConferenceURL: "https://meet.example.com/" + req.MeetingID}, nil
}

type notification struct {
	userID  string
	typ     string
	payload map[string]any
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *mockNotifier) Notify(_ context.Context, userID, typ string, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{userID, typ, payload})
}

func (n *mockNotifier) count(typ string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.typ == typ {
			c++
		}
	}
	return c
}

type mockEmailer struct {
	mu   sync.Mutex
	sent []domain.Email
}

func (e *mockEmailer) SendEmail(_ context.Context, email domain.Email) domain.EmailResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, email)
	return domain.EmailResult{Success: true}
}

func (e *mockEmailer) emails() []domain.Email {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Email(nil), e.sent...)
}

type mockRefunder struct {
	mu       sync.Mutex
	requests []domain.RefundRequest
	err      error
}

func (r *mockRefunder) CreateRefund(_ context.Context, req domain.RefundRequest) (*domain.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return &domain.Refund{ID: "re_" + req.PaymentIntentID, PaymentIntentID: req.PaymentIntentID, Amount: req.Amount, Status: "succeeded"}, nil
}

type mockPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *mockPublisher) Publish(_ context.Context, subject string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *mockPublisher) Close() error { return nil }

var errStoreDown = errors.New("connection refused")
