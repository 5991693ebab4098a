package payment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"lessonhub/models"
	"lessonhub/services/booking"
	"lessonhub/services/notification"

	"go.uber.org/zap"
)

var engineNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

// fakePaymentRepo is an in-memory BookingRepository scoped to what the
// workflow engine touches.
type fakePaymentRepo struct {
	mu        sync.Mutex
	bookings  map[string]*models.Booking
	details   map[string]*models.PaymentDetail
	holds     map[string]*models.PaymentHold
	disputes  map[string]*models.Dispute
	transfers map[string]*models.Transfer
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		bookings:  make(map[string]*models.Booking),
		details:   make(map[string]*models.PaymentDetail),
		holds:     make(map[string]*models.PaymentHold),
		disputes:  make(map[string]*models.Dispute),
		transfers: make(map[string]*models.Transfer),
	}
}

func (f *fakePaymentRepo) put(b *models.Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *b
	f.bookings[b.ID] = &cp
}

func (f *fakePaymentRepo) CreateBookingGuarded(_ context.Context, b *models.Booking) error {
	f.put(b)
	return nil
}

func (f *fakePaymentRepo) GetByID(_ context.Context, id string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (f *fakePaymentRepo) UpdateBooking(_ context.Context, b *models.Booking) error {
	f.put(b)
	return nil
}

func (f *fakePaymentRepo) SetStatus(_ context.Context, id string, from []models.BookingStatus, to models.BookingStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return false, nil
	}
	if len(from) == 0 {
		b.Status = to
		return true, nil
	}
	for _, s := range from {
		if b.Status == s {
			b.Status = to
			if to == models.BookingCompleted {
				now := engineNow
				b.CompletedAt = &now
			}
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePaymentRepo) SetPaymentStatus(_ context.Context, id string, from []models.PaymentStatus, to models.PaymentStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if b.PaymentStatus == s {
			b.PaymentStatus = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePaymentRepo) DeleteBookingCascade(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bookings, id)
	delete(f.details, id)
	delete(f.holds, id)
	return nil
}

func (f *fakePaymentRepo) FindOverlapping(_ context.Context, _, _ string, _, _ int) ([]models.Booking, error) {
	return nil, nil
}

func (f *fakePaymentRepo) selectBookings(limit int, match func(*models.Booking) bool) []models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.bookings {
		if match(b) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *fakePaymentRepo) FindScheduledForAuthorization(_ context.Context, startsBefore time.Time, limit int) ([]models.Booking, error) {
	return f.selectBookings(limit, func(b *models.Booking) bool {
		return b.Status == models.BookingConfirmed &&
			b.PaymentStatus == models.PaymentScheduled &&
			!b.StartUTC.After(startsBefore)
	}), nil
}

func (f *fakePaymentRepo) FindAuthFailed(_ context.Context, limit int) ([]models.Booking, error) {
	return f.selectBookings(limit, func(b *models.Booking) bool {
		return b.Status == models.BookingConfirmed && b.PaymentStatus == models.PaymentAuthFailed
	}), nil
}

func (f *fakePaymentRepo) FindCapturable(_ context.Context, completedBefore time.Time, limit int) ([]models.Booking, error) {
	return f.selectBookings(limit, func(b *models.Booking) bool {
		return b.Status == models.BookingCompleted &&
			b.PaymentStatus == models.PaymentAuthorized &&
			b.CompletedAt != nil && !b.CompletedAt.After(completedBefore)
	}), nil
}

func (f *fakePaymentRepo) FindElapsedConfirmed(_ context.Context, endedBefore time.Time, limit int) ([]models.Booking, error) {
	return f.selectBookings(limit, func(b *models.Booking) bool {
		return b.Status == models.BookingConfirmed && !b.EndUTC.After(endedBefore)
	}), nil
}

func (f *fakePaymentRepo) GetPaymentDetail(_ context.Context, bookingID string) (*models.PaymentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.details[bookingID]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (f *fakePaymentRepo) UpsertPaymentDetail(_ context.Context, detail *models.PaymentDetail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *detail
	f.details[detail.BookingID] = &cp
	return nil
}

func (f *fakePaymentRepo) CreateHold(_ context.Context, hold *models.PaymentHold) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *hold
	f.holds[hold.BookingID] = &cp
	return nil
}

func (f *fakePaymentRepo) ResolveHold(_ context.Context, bookingID, resolution string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.holds[bookingID]; ok {
		h.Resolution = resolution
	}
	return nil
}

func (f *fakePaymentRepo) CreateDispute(_ context.Context, dispute *models.Dispute) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *dispute
	f.disputes[dispute.BookingID] = &cp
	return nil
}

func (f *fakePaymentRepo) GetDisputeByBooking(_ context.Context, bookingID string) (*models.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.disputes[bookingID]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (f *fakePaymentRepo) ResolveDispute(_ context.Context, bookingID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.disputes[bookingID]; ok {
		d.Status = status
	}
	return nil
}

func (f *fakePaymentRepo) UpsertTransfer(_ context.Context, transfer *models.Transfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *transfer
	f.transfers[transfer.BookingID] = &cp
	return nil
}

func (f *fakePaymentRepo) EnsureIndexes() error { return nil }

// fakeGateway succeeds or fails per configured booking/intent.
type fakeGateway struct {
	authorizeErr map[string]error
	captureErr   map[string]error
	releaseErr   map[string]error
	authorized   []string
	captured     []string
	released     []string
	refunded     []string
}

func (g *fakeGateway) Authorize(_ context.Context, req AuthorizeRequest) (*models.AuthorizationResult, error) {
	if err := g.authorizeErr[req.BookingID]; err != nil {
		return nil, err
	}
	g.authorized = append(g.authorized, req.BookingID)
	return &models.AuthorizationResult{PaymentIntentID: "pi_" + req.BookingID, AmountCents: req.AmountCents}, nil
}

func (g *fakeGateway) Capture(_ context.Context, paymentIntentID string, amountCents int64) (*models.CaptureResult, error) {
	if err := g.captureErr[paymentIntentID]; err != nil {
		return nil, err
	}
	g.captured = append(g.captured, paymentIntentID)
	return &models.CaptureResult{ChargeID: "ch_" + paymentIntentID, AmountCents: amountCents}, nil
}

func (g *fakeGateway) Release(_ context.Context, paymentIntentID string) error {
	if err := g.releaseErr[paymentIntentID]; err != nil {
		return err
	}
	g.released = append(g.released, paymentIntentID)
	return nil
}

func (g *fakeGateway) Refund(_ context.Context, paymentIntentID string, amountCents int64) (*models.RefundResult, error) {
	g.refunded = append(g.refunded, paymentIntentID)
	return &models.RefundResult{RefundID: "re_" + paymentIntentID, AmountCents: amountCents}, nil
}

// fakeLocker grants every lock unless a key is marked held.
type fakeLocker struct {
	held map[string]bool
}

func (f *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	if f.held != nil && f.held[key] {
		return nil, false, nil
	}
	return func() {}, true, nil
}

type engineFixture struct {
	engine  *WorkflowEngine
	repo    *fakePaymentRepo
	gateway *fakeGateway
	locker  *fakeLocker
}

func newEngineFixture() *engineFixture {
	repo := newFakePaymentRepo()
	gateway := &fakeGateway{authorizeErr: map[string]error{}, captureErr: map[string]error{}}
	locker := &fakeLocker{}
	engine := &WorkflowEngine{
		Repo:                repo,
		Gateway:             gateway,
		Locker:              locker,
		Dispatcher:          &notification.NopDispatcher{},
		Logger:              zap.NewNop(),
		AuthorizationWindow: 24 * time.Hour,
		RetryDeadline:       12 * time.Hour,
		CaptureHold:         24 * time.Hour,
		MaxAuthAttempts:     5,
		BatchSize:           100,
		Now:                 func() time.Time { return engineNow },
	}
	return &engineFixture{engine: engine, repo: repo, gateway: gateway, locker: locker}
}

func (fx *engineFixture) seedBooking(id string, status models.BookingStatus, payment models.PaymentStatus, startUTC time.Time) *models.Booking {
	b := &models.Booking{
		ID:              id,
		StudentID:       "stud-1",
		InstructorID:    "inst-1",
		Status:          status,
		PaymentStatus:   payment,
		StartUTC:        startUTC,
		EndUTC:          startUTC.Add(time.Hour),
		TotalPriceCents: 9000,
	}
	fx.repo.put(b)
	return b
}

func (fx *engineFixture) seedDetail(bookingID, methodID, intentID string, failures int, updatedAt time.Time) {
	fx.repo.details[bookingID] = &models.PaymentDetail{
		BookingID:        bookingID,
		PaymentMethodID:  methodID,
		PaymentIntentID:  intentID,
		AuthFailureCount: failures,
		UpdatedAt:        updatedAt,
	}
}

func TestProcessScheduledAuthorizations(t *testing.T) {
	fx := newEngineFixture()
	// Inside the window: picked up.
	fx.seedBooking("bk-due", models.BookingConfirmed, models.PaymentScheduled, engineNow.Add(6*time.Hour))
	fx.seedDetail("bk-due", "pm_1", "", 0, engineNow)
	// Outside the window: untouched.
	fx.seedBooking("bk-later", models.BookingConfirmed, models.PaymentScheduled, engineNow.Add(72*time.Hour))
	fx.seedDetail("bk-later", "pm_2", "", 0, engineNow)
	// Missing payment method: labeled skip.
	fx.seedBooking("bk-nomethod", models.BookingConfirmed, models.PaymentScheduled, engineNow.Add(6*time.Hour))

	summary := fx.engine.ProcessScheduledAuthorizations(context.Background())
	if summary.Succeeded != 1 {
		t.Fatalf("expected 1 success, got %+v", summary)
	}
	if summary.SkipReasons[SkipNoMethod] != 1 {
		t.Fatalf("expected no_payment_method skip, got %+v", summary.SkipReasons)
	}

	due, _ := fx.repo.GetByID(context.Background(), "bk-due")
	if due.PaymentStatus != models.PaymentAuthorized {
		t.Fatalf("expected authorized, got %s", due.PaymentStatus)
	}
	detail, _ := fx.repo.GetPaymentDetail(context.Background(), "bk-due")
	if detail.PaymentIntentID != "pi_bk-due" {
		t.Fatalf("payment intent not persisted: %+v", detail)
	}
	if fx.repo.holds["bk-due"] == nil || fx.repo.holds["bk-due"].HeldAmountCents != 9000 {
		t.Fatalf("hold not recorded: %+v", fx.repo.holds["bk-due"])
	}
	later, _ := fx.repo.GetByID(context.Background(), "bk-later")
	if later.PaymentStatus != models.PaymentScheduled {
		t.Fatalf("booking outside window must stay scheduled, got %s", later.PaymentStatus)
	}
}

func TestAuthorizationFailureMarksAuthFailed(t *testing.T) {
	fx := newEngineFixture()
	fx.seedBooking("bk-1", models.BookingConfirmed, models.PaymentScheduled, engineNow.Add(6*time.Hour))
	fx.seedDetail("bk-1", "pm_1", "", 0, engineNow)
	fx.gateway.authorizeErr["bk-1"] = errors.New("card declined")

	summary := fx.engine.ProcessScheduledAuthorizations(context.Background())
	if summary.Failed != 1 {
		t.Fatalf("expected 1 failure, got %+v", summary)
	}
	b, _ := fx.repo.GetByID(context.Background(), "bk-1")
	if b.PaymentStatus != models.PaymentAuthFailed {
		t.Fatalf("expected auth_failed, got %s", b.PaymentStatus)
	}
	detail, _ := fx.repo.GetPaymentDetail(context.Background(), "bk-1")
	if detail.AuthFailureCount != 1 {
		t.Fatalf("expected failure count 1, got %d", detail.AuthFailureCount)
	}
}

func TestRetryCancelsAtDeadline(t *testing.T) {
	cases := []struct {
		name       string
		hoursAway  time.Duration
		wantCancel bool
	}{
		{"inside deadline", 6 * time.Hour, true},
		{"exactly at deadline", 12 * time.Hour, true},
		{"just outside deadline", 12*time.Hour + time.Minute, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newEngineFixture()
			fx.seedBooking("bk-1", models.BookingConfirmed, models.PaymentAuthFailed, engineNow.Add(tc.hoursAway))
			// Old enough that backoff does not defer the retry.
			fx.seedDetail("bk-1", "pm_1", "", 1, engineNow.Add(-2*time.Hour))

			summary := fx.engine.RetryFailedAuthorizations(context.Background())
			b, _ := fx.repo.GetByID(context.Background(), "bk-1")
			if tc.wantCancel {
				if summary.Cancelled != 1 || b.Status != models.BookingCancelled {
					t.Fatalf("expected cancellation, got summary %+v status %s", summary, b.Status)
				}
				if len(fx.gateway.authorized) != 0 {
					t.Fatal("must never retry at or inside the deadline")
				}
			} else {
				if summary.Succeeded != 1 || b.PaymentStatus != models.PaymentAuthorized {
					t.Fatalf("expected successful retry, got summary %+v status %s", summary, b.PaymentStatus)
				}
			}
		})
	}
}

func TestRetryRespectsBackoffAndAttemptCap(t *testing.T) {
	fx := newEngineFixture()
	fx.seedBooking("bk-backoff", models.BookingConfirmed, models.PaymentAuthFailed, engineNow.Add(48*time.Hour))
	// Failed seconds ago: still inside the backoff window.
	fx.seedDetail("bk-backoff", "pm_1", "", 3, engineNow.Add(-time.Second))

	fx.seedBooking("bk-exhausted", models.BookingConfirmed, models.PaymentAuthFailed, engineNow.Add(48*time.Hour))
	fx.seedDetail("bk-exhausted", "pm_2", "", 5, engineNow.Add(-2*time.Hour))

	summary := fx.engine.RetryFailedAuthorizations(context.Background())
	if summary.SkipReasons[SkipBackoff] != 1 {
		t.Fatalf("expected backoff skip, got %+v", summary.SkipReasons)
	}
	if summary.Cancelled != 1 {
		t.Fatalf("expected exhausted booking cancelled, got %+v", summary)
	}
	exhausted, _ := fx.repo.GetByID(context.Background(), "bk-exhausted")
	if exhausted.Status != models.BookingCancelled {
		t.Fatalf("expected cancelled, got %s", exhausted.Status)
	}
}

func TestCaptureCompletedLessons(t *testing.T) {
	fx := newEngineFixture()
	completedLongAgo := engineNow.Add(-30 * time.Hour)
	completedRecently := engineNow.Add(-1 * time.Hour)

	eligible := fx.seedBooking("bk-eligible", models.BookingCompleted, models.PaymentAuthorized, engineNow.Add(-40*time.Hour))
	eligible.CompletedAt = &completedLongAgo
	fx.repo.put(eligible)
	fx.seedDetail("bk-eligible", "pm_1", "pi_1", 0, engineNow)
	fx.repo.holds["bk-eligible"] = &models.PaymentHold{BookingID: "bk-eligible", HeldAmountCents: 9000}

	recent := fx.seedBooking("bk-recent", models.BookingCompleted, models.PaymentAuthorized, engineNow.Add(-3*time.Hour))
	recent.CompletedAt = &completedRecently
	fx.repo.put(recent)
	fx.seedDetail("bk-recent", "pm_2", "pi_2", 0, engineNow)

	summary := fx.engine.CaptureCompletedLessons(context.Background())
	if summary.Succeeded != 1 {
		t.Fatalf("expected 1 capture, got %+v", summary)
	}
	b, _ := fx.repo.GetByID(context.Background(), "bk-eligible")
	if b.PaymentStatus != models.PaymentSettled {
		t.Fatalf("expected settled, got %s", b.PaymentStatus)
	}
	if fx.repo.holds["bk-eligible"] == nil || fx.repo.holds["bk-eligible"].Resolution != "captured" {
		t.Fatalf("hold not resolved: %+v", fx.repo.holds["bk-eligible"])
	}
	if fx.repo.transfers["bk-eligible"] == nil {
		t.Fatal("transfer not recorded")
	}
	stillHeld, _ := fx.repo.GetByID(context.Background(), "bk-recent")
	if stillHeld.PaymentStatus != models.PaymentAuthorized {
		t.Fatalf("lesson inside the hold window must not settle, got %s", stillHeld.PaymentStatus)
	}
}

// staleCandidateRepo returns a fixed candidate set from the selection query so
// tests can model bookings whose state changed between the select and the
// locked fresh read.
type staleCandidateRepo struct {
	*fakePaymentRepo
	candidates []string
}

func (s *staleCandidateRepo) FindCapturable(_ context.Context, _ time.Time, _ int) ([]models.Booking, error) {
	var out []models.Booking
	for _, id := range s.candidates {
		out = append(out, models.Booking{ID: id})
	}
	return out, nil
}

func TestCaptureSkipsTerminalAndDisputedStates(t *testing.T) {
	fx := newEngineFixture()
	completedLongAgo := engineNow.Add(-30 * time.Hour)
	seed := []struct {
		id      string
		status  models.BookingStatus
		payment models.PaymentStatus
		reason  string
	}{
		{"bk-cancelled", models.BookingCancelled, models.PaymentAuthorized, SkipCancelled},
		{"bk-settled", models.BookingCompleted, models.PaymentSettled, SkipSettled},
		{"bk-review", models.BookingCompleted, models.PaymentManualReview, SkipManualReview},
		{"bk-pending-auth", models.BookingCompleted, models.PaymentAuthorizing, SkipStateChanged},
	}
	stale := &staleCandidateRepo{fakePaymentRepo: fx.repo}
	for _, s := range seed {
		b := fx.seedBooking(s.id, s.status, s.payment, engineNow.Add(-40*time.Hour))
		b.CompletedAt = &completedLongAgo
		fx.repo.put(b)
		fx.seedDetail(s.id, "pm", "pi_"+s.id, 0, engineNow)
		stale.candidates = append(stale.candidates, s.id)
	}
	fx.engine.Repo = stale

	summary := fx.engine.CaptureCompletedLessons(context.Background())
	for _, s := range seed {
		if summary.SkipReasons[s.reason] < 1 {
			t.Fatalf("%s: expected skip %s, got %+v", s.id, s.reason, summary.SkipReasons)
		}
	}
	if summary.Succeeded != 0 {
		t.Fatalf("nothing should settle, got %+v", summary)
	}
	if len(fx.gateway.captured) != 0 {
		t.Fatalf("no capture should reach the gateway, got %v", fx.gateway.captured)
	}
}

func TestCaptureLateCancellation(t *testing.T) {
	fx := newEngineFixture()
	fx.seedBooking("bk-1", models.BookingCancelled, models.PaymentAuthorized, engineNow.Add(3*time.Hour))
	fx.seedDetail("bk-1", "pm_1", "pi_1", 0, engineNow)
	fx.repo.holds["bk-1"] = &models.PaymentHold{BookingID: "bk-1", HeldAmountCents: 9000}

	summary := fx.engine.CaptureLateCancellation(context.Background(), "bk-1")
	if summary.Succeeded != 1 {
		t.Fatalf("expected capture, got %+v", summary)
	}
	b, _ := fx.repo.GetByID(context.Background(), "bk-1")
	if b.PaymentStatus != models.PaymentSettled {
		t.Fatalf("expected settled, got %s", b.PaymentStatus)
	}
	if fx.repo.holds["bk-1"].Resolution != "late_cancellation" {
		t.Fatalf("expected late_cancellation resolution, got %+v", fx.repo.holds["bk-1"])
	}

	// Replaying the task is harmless: the state guard skips it.
	again := fx.engine.CaptureLateCancellation(context.Background(), "bk-1")
	if again.SkipReasons[SkipStateChanged] != 1 {
		t.Fatalf("expected state_changed skip on replay, got %+v", again)
	}
}

func TestContendedLockSkipsWithoutBlocking(t *testing.T) {
	fx := newEngineFixture()
	fx.seedBooking("bk-1", models.BookingConfirmed, models.PaymentScheduled, engineNow.Add(6*time.Hour))
	fx.seedDetail("bk-1", "pm_1", "", 0, engineNow)
	fx.locker.held = map[string]bool{"lock:booking:bk-1": true}

	summary := fx.engine.ProcessScheduledAuthorizations(context.Background())
	if summary.SkipReasons[SkipLockContended] != 1 {
		t.Fatalf("expected lock_contended skip, got %+v", summary)
	}
	if len(fx.gateway.authorized) != 0 {
		t.Fatal("no gateway call under a contended lock")
	}
	b, _ := fx.repo.GetByID(context.Background(), "bk-1")
	if b.PaymentStatus != models.PaymentScheduled {
		t.Fatalf("state must be untouched, got %s", b.PaymentStatus)
	}
}

func TestCompleteElapsedLessons(t *testing.T) {
	fx := newEngineFixture()
	fx.seedBooking("bk-elapsed", models.BookingConfirmed, models.PaymentAuthorized, engineNow.Add(-3*time.Hour))
	fx.seedBooking("bk-upcoming", models.BookingConfirmed, models.PaymentAuthorized, engineNow.Add(3*time.Hour))

	summary := fx.engine.CompleteElapsedLessons(context.Background())
	if summary.Succeeded != 1 {
		t.Fatalf("expected 1 completion, got %+v", summary)
	}
	elapsed, _ := fx.repo.GetByID(context.Background(), "bk-elapsed")
	if elapsed.Status != models.BookingCompleted {
		t.Fatalf("expected completed, got %s", elapsed.Status)
	}
	upcoming, _ := fx.repo.GetByID(context.Background(), "bk-upcoming")
	if upcoming.Status != models.BookingConfirmed {
		t.Fatalf("future lesson must stay confirmed, got %s", upcoming.Status)
	}
}

func TestOpenAndResolveDispute(t *testing.T) {
	fx := newEngineFixture()
	fx.seedBooking("bk-1", models.BookingCompleted, models.PaymentAuthorized, engineNow.Add(-30*time.Hour))

	if err := fx.engine.OpenDispute(context.Background(), "bk-1", "dp_1", 9000); err != nil {
		t.Fatalf("OpenDispute: %v", err)
	}
	b, _ := fx.repo.GetByID(context.Background(), "bk-1")
	if b.PaymentStatus != models.PaymentManualReview {
		t.Fatalf("expected manual_review, got %s", b.PaymentStatus)
	}
	if fx.repo.disputes["bk-1"] == nil {
		t.Fatal("dispute record not created")
	}

	if err := fx.engine.ResolveDispute(context.Background(), "bk-1", "won"); err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}
	b, _ = fx.repo.GetByID(context.Background(), "bk-1")
	if b.PaymentStatus != models.PaymentSettled {
		t.Fatalf("won dispute should settle, got %s", b.PaymentStatus)
	}
}

// staleAuthReadRepo serves the authorize path a snapshot taken before the
// payment settled, forcing the guarded transition to decide.
type staleAuthReadRepo struct {
	*fakePaymentRepo
}

func (r *staleAuthReadRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	b, err := r.fakePaymentRepo.GetByID(ctx, id)
	if b != nil && b.PaymentStatus == models.PaymentSettled {
		stale := *b
		stale.PaymentStatus = models.PaymentAuthorizing
		return &stale, nil
	}
	return b, err
}

func TestAuthorizeSkipsWhenPaymentStateMoves(t *testing.T) {
	fx := newEngineFixture()
	fx.seedBooking("bk-1", models.BookingConfirmed, models.PaymentSettled, engineNow.Add(6*time.Hour))
	fx.seedDetail("bk-1", "pm_1", "pi_1", 0, engineNow)
	fx.engine.Repo = &staleAuthReadRepo{fakePaymentRepo: fx.repo}

	summary := fx.engine.AuthorizeBooking(context.Background(), "bk-1")
	if summary.SkipReasons[SkipStateChanged] != 1 {
		t.Fatalf("expected state_changed skip, got %+v", summary)
	}
	if len(fx.gateway.authorized) != 0 {
		t.Fatal("must not reach the gateway once the payment state moved")
	}
	b, _ := fx.repo.GetByID(context.Background(), "bk-1")
	if b.PaymentStatus != models.PaymentSettled {
		t.Fatalf("settled payment regressed to %s", b.PaymentStatus)
	}
}

func (fx *engineFixture) seedNoShowCandidate(id string, completedAgo time.Duration) {
	b := fx.seedBooking(id, models.BookingCompleted, models.PaymentAuthorized, engineNow.Add(-completedAgo-time.Hour))
	completedAt := engineNow.Add(-completedAgo)
	b.CompletedAt = &completedAt
	fx.repo.put(b)
	fx.seedDetail(id, "pm_1", "pi_"+id, 0, engineNow)
	fx.repo.holds[id] = &models.PaymentHold{BookingID: id, HeldAmountCents: 9000}
}

func TestReportNoShowReleasesHold(t *testing.T) {
	fx := newEngineFixture()
	fx.seedNoShowCandidate("bk-1", time.Hour)

	if err := fx.engine.ReportNoShow(context.Background(), "bk-1", "stud-1"); err != nil {
		t.Fatalf("ReportNoShow: %v", err)
	}
	b, _ := fx.repo.GetByID(context.Background(), "bk-1")
	if b.Status != models.BookingNoShow {
		t.Fatalf("expected no_show, got %s", b.Status)
	}
	if b.PaymentStatus != models.PaymentRefunded {
		t.Fatalf("expected refunded, got %s", b.PaymentStatus)
	}
	if len(fx.gateway.released) != 1 || fx.gateway.released[0] != "pi_bk-1" {
		t.Fatalf("expected authorization release, got %v", fx.gateway.released)
	}
	if fx.repo.holds["bk-1"].Resolution != "released" {
		t.Fatalf("expected released resolution, got %+v", fx.repo.holds["bk-1"])
	}

	// The reported booking must be invisible to the capture job.
	summary := fx.engine.CaptureCompletedLessons(context.Background())
	if summary.Processed != 0 || len(fx.gateway.captured) != 0 {
		t.Fatalf("no-show booking leaked into capture: %+v", summary)
	}
}

func TestReportNoShowGuards(t *testing.T) {
	fx := newEngineFixture()

	// Hold window already elapsed.
	fx.seedNoShowCandidate("bk-late", 30*time.Hour)
	if err := fx.engine.ReportNoShow(context.Background(), "bk-late", "stud-1"); booking.CodeOf(err) != booking.CodeBusinessRule {
		t.Fatalf("expected businessRule after the hold window, got %v", err)
	}

	// Funds already captured.
	fx.seedNoShowCandidate("bk-settled", time.Hour)
	fx.repo.SetPaymentStatus(context.Background(), "bk-settled",
		[]models.PaymentStatus{models.PaymentAuthorized}, models.PaymentSettled)
	if err := fx.engine.ReportNoShow(context.Background(), "bk-settled", "stud-1"); booking.CodeOf(err) != booking.CodeBusinessRule {
		t.Fatalf("expected businessRule for settled payment, got %v", err)
	}

	if err := fx.engine.ReportNoShow(context.Background(), "missing", "stud-1"); booking.CodeOf(err) != booking.CodeNotFound {
		t.Fatalf("expected notFound, got %v", err)
	}

	if len(fx.gateway.released) != 0 {
		t.Fatalf("rejected reports must not release funds, got %v", fx.gateway.released)
	}
	late, _ := fx.repo.GetByID(context.Background(), "bk-late")
	if late.Status != models.BookingCompleted {
		t.Fatalf("rejected report changed status to %s", late.Status)
	}
}
