package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/reservd/internal/clock"
	"github.com/md-rashed-zaman/reservd/internal/model"
	"github.com/md-rashed-zaman/reservd/internal/payment"
	"github.com/md-rashed-zaman/reservd/internal/store"
)

type stubProvider struct {
	mu    sync.Mutex
	url   string
	err   error
	calls int
}

func (p *stubProvider) CreateIntent(_ context.Context, _ payment.Intent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.url, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *store.MemStore, *clock.Fixed, *stubProvider) {
	t.Helper()
	st := store.NewMemStore()
	clk := clock.NewFixed(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC))
	provider := &stubProvider{url: "https://pay.example/checkout/123"}
	e := NewEngine(st, provider, clk, testLogger(), opts...)
	return e, st, clk, provider
}

func TestCreateBooking_ReturnsRedirectURL(t *testing.T) {
	e, st, _, _ := newTestEngine(t)

	url, err := e.CreateBooking(context.Background(), Request{Name: "Ana", Date: "2099-01-10", Time: "10:00", Service: "corte"})
	if err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}
	if url != "https://pay.example/checkout/123" {
		t.Fatalf("unexpected redirect url: %s", url)
	}

	doc, err := st.LoadHolds(context.Background())
	if err != nil {
		t.Fatalf("LoadHolds failed: %v", err)
	}
	if _, ok := doc.Holds[model.SlotKey("2099-01-10", "10:00")]; !ok {
		t.Fatal("expected a live hold for the booked pair")
	}
}

func TestCreateBooking_SingleWinnerUnderContention(t *testing.T) {
	e, st, _, _ := newTestEngine(t)

	const n = 25
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.CreateBooking(context.Background(), Request{Name: "Ana", Date: "2099-01-10", Time: "10:00", Service: "corte"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, occupied int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrSlotOccupied):
			occupied++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly 1 success, got %d", successes)
	}
	if occupied != n-1 {
		t.Fatalf("expected %d occupied failures, got %d", n-1, occupied)
	}

	doc, err := st.LoadHolds(context.Background())
	if err != nil {
		t.Fatalf("LoadHolds failed: %v", err)
	}
	if len(doc.Holds) != 1 {
		t.Fatalf("expected a single hold, got %d", len(doc.Holds))
	}
}

func TestCreateBooking_PastDateRejected(t *testing.T) {
	e, st, _, _ := newTestEngine(t)

	for _, date := range []string{"2020-01-01", "2026-08-31", "not-a-date"} {
		_, err := e.CreateBooking(context.Background(), Request{Name: "Ana", Date: date, Time: "10:00", Service: "corte"})
		if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("date %q: expected ErrInvalidDate, got %v", date, err)
		}
	}

	doc, _ := st.LoadHolds(context.Background())
	if len(doc.Holds) != 0 {
		t.Fatalf("invalid dates must not create holds, got %d", len(doc.Holds))
	}
}

func TestCreateBooking_SameDayAccepted(t *testing.T) {
	// The date comparison ignores time-of-day: booking today for an hour
	// that already passed is still accepted at this layer.
	e, _, _, _ := newTestEngine(t)

	_, err := e.CreateBooking(context.Background(), Request{Name: "Ana", Date: "2026-09-01", Time: "08:00", Service: "corte"})
	if err != nil {
		t.Fatalf("same-day booking rejected: %v", err)
	}
}

func TestCreateBooking_MissingFields(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	reqs := []Request{
		{Date: "2099-01-10", Time: "10:00", Service: "corte"},
		{Name: "Ana", Time: "10:00", Service: "corte"},
		{Name: "Ana", Date: "2099-01-10", Service: "corte"},
		{Name: "Ana", Date: "2099-01-10", Time: "10:00"},
		{Name: "   ", Date: "2099-01-10", Time: "10:00", Service: "corte"},
	}
	for i, req := range reqs {
		if _, err := e.CreateBooking(context.Background(), req); !errors.Is(err, ErrMissingFields) {
			t.Fatalf("request %d: expected ErrMissingFields, got %v", i, err)
		}
	}
}

func TestCreateBooking_PaymentFailureReleasesHold(t *testing.T) {
	e, st, _, provider := newTestEngine(t)
	provider.err = errors.New("gateway timeout")

	_, err := e.CreateBooking(context.Background(), Request{Name: "Ana", Date: "2099-01-10", Time: "10:00", Service: "corte"})
	if !errors.Is(err, ErrPaymentIntentFailed) {
		t.Fatalf("expected ErrPaymentIntentFailed, got %v", err)
	}

	doc, _ := st.LoadHolds(context.Background())
	if len(doc.Holds) != 0 {
		t.Fatalf("hold must be rolled back after provider failure, got %d holds", len(doc.Holds))
	}

	// The pair is immediately bookable again.
	provider.err = nil
	if _, err := e.CreateBooking(context.Background(), Request{Name: "Bea", Date: "2099-01-10", Time: "10:00", Service: "corte"}); err != nil {
		t.Fatalf("rebooking after rollback failed: %v", err)
	}
}

func TestHoldExpiryWindow(t *testing.T) {
	e, _, clk, _ := newTestEngine(t)
	req := Request{Name: "Ana", Date: "2099-01-10", Time: "09:00", Service: "corte"}

	if _, err := e.CreateBooking(context.Background(), req); err != nil {
		t.Fatalf("initial booking failed: %v", err)
	}

	clk.Advance(29 * time.Minute)
	if _, err := e.CreateBooking(context.Background(), req); !errors.Is(err, ErrSlotOccupied) {
		t.Fatalf("at 29 min the hold must still occupy the slot, got %v", err)
	}

	clk.Advance(2 * time.Minute) // 31 min total
	if _, err := e.CreateBooking(context.Background(), req); err != nil {
		t.Fatalf("at 31 min the hold must have expired, got %v", err)
	}
}

func TestHoldExpiry_ExactBoundary(t *testing.T) {
	e, _, clk, _ := newTestEngine(t, WithExpiration(10*time.Minute))
	req := Request{Name: "Ana", Date: "2099-01-10", Time: "09:00", Service: "corte"}

	if _, err := e.CreateBooking(context.Background(), req); err != nil {
		t.Fatalf("initial booking failed: %v", err)
	}

	clk.Advance(10 * time.Minute)
	if _, err := e.CreateBooking(context.Background(), req); err != nil {
		t.Fatalf("a hold is free at exactly creation+window, got %v", err)
	}
}

func TestSweep_MalformedTimestampTreatedAsExpired(t *testing.T) {
	e, st, _, _ := newTestEngine(t)

	doc := model.NewHoldDocument()
	doc.Holds[model.SlotKey("2099-01-10", "10:00")] = model.Hold{ID: "h1", CreatedAt: "garbage"}
	if err := st.SaveHolds(context.Background(), doc); err != nil {
		t.Fatalf("SaveHolds failed: %v", err)
	}

	if _, err := e.CreateBooking(context.Background(), Request{Name: "Ana", Date: "2099-01-10", Time: "10:00", Service: "corte"}); err != nil {
		t.Fatalf("corrupt hold must be dropped, not block the slot: %v", err)
	}
}

func TestConfirmBooking_Idempotent(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	req := Request{Name: "Ana", Date: "2099-01-10", Time: "10:00", Service: "corte"}

	if _, err := e.CreateBooking(context.Background(), req); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	first, err := e.ConfirmBooking(context.Background(), "success", req)
	if err != nil {
		t.Fatalf("first confirmation failed: %v", err)
	}
	if !first.Confirmed || !first.Promoted {
		t.Fatalf("first confirmation should promote: %+v", first)
	}

	second, err := e.ConfirmBooking(context.Background(), "success", req)
	if err != nil {
		t.Fatalf("replayed confirmation failed: %v", err)
	}
	if !second.Confirmed {
		t.Fatal("replayed confirmation must still report success")
	}
	if second.Promoted {
		t.Fatal("replayed confirmation must not promote again")
	}

	slots, _ := st.LoadSlots(context.Background())
	if len(slots) != 1 {
		t.Fatalf("expected exactly one slot, got %d", len(slots))
	}
	if slots[0].Status != model.SlotStatusConfirmed {
		t.Fatalf("unexpected slot status: %s", slots[0].Status)
	}

	doc, _ := st.LoadHolds(context.Background())
	if len(doc.Holds) != 0 {
		t.Fatalf("hold must be deleted on promotion, got %d", len(doc.Holds))
	}
	if !doc.Confirmed[model.SlotKey("2099-01-10", "10:00")] {
		t.Fatal("confirmed marker must be set")
	}
}

func TestConfirmBooking_NonSuccessHasNoSideEffects(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	req := Request{Name: "Ana", Date: "2099-01-10", Time: "10:00", Service: "corte"}

	for _, status := range []string{"failure", "pending", ""} {
		conf, err := e.ConfirmBooking(context.Background(), status, req)
		if err != nil {
			t.Fatalf("status %q: unexpected error: %v", status, err)
		}
		if conf.Confirmed {
			t.Fatalf("status %q must not confirm", status)
		}
	}

	slots, _ := st.LoadSlots(context.Background())
	doc, _ := st.LoadHolds(context.Background())
	if len(slots) != 0 || len(doc.Holds) != 0 || len(doc.Confirmed) != 0 {
		t.Fatal("non-success callbacks must not touch the stores")
	}
}

func TestConfirmBooking_ExistingSlotNotDuplicated(t *testing.T) {
	e, st, _, _ := newTestEngine(t)
	key := model.SlotKey("2099-01-10", "10:00")

	// A slot for the pair already exists (retried callback after a partial
	// failure that persisted the slot but not the marker).
	if err := st.SaveSlots(context.Background(), []model.Slot{{
		Name: "Ana", Date: "2099-01-10", Time: "10:00", Service: "corte",
		Status: model.SlotStatusConfirmed, HoldKey: key,
	}}); err != nil {
		t.Fatalf("SaveSlots failed: %v", err)
	}

	conf, err := e.ConfirmBooking(context.Background(), "success", Request{Name: "Ana", Date: "2099-01-10", Time: "10:00", Service: "corte"})
	if err != nil {
		t.Fatalf("ConfirmBooking failed: %v", err)
	}
	if !conf.Confirmed || !conf.Promoted {
		t.Fatalf("expected first-time confirmation, got %+v", conf)
	}

	slots, _ := st.LoadSlots(context.Background())
	if len(slots) != 1 {
		t.Fatalf("slot must not be duplicated, got %d", len(slots))
	}
	doc, _ := st.LoadHolds(context.Background())
	if !doc.Confirmed[key] {
		t.Fatal("marker must still be set when the slot pre-existed")
	}
}

func TestRoundTrip_BookConfirmOccupied(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	req := Request{Name: "Ana", Date: "2099-01-10", Time: "10:00", Service: "corte"}

	if _, err := e.CreateBooking(context.Background(), req); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}
	if _, err := e.ConfirmBooking(context.Background(), "success", req); err != nil {
		t.Fatalf("ConfirmBooking failed: %v", err)
	}

	times, err := e.OccupiedTimes(context.Background(), "2099-01-10")
	if err != nil {
		t.Fatalf("OccupiedTimes failed: %v", err)
	}
	if len(times) != 1 || times[0] != "10:00" {
		t.Fatalf("expected [10:00], got %v", times)
	}
}

func TestOccupiedTimes_UnionOfSlotsAndLiveHolds(t *testing.T) {
	e, _, clk, _ := newTestEngine(t)

	// Confirmed slot at 09:00.
	slotReq := Request{Name: "Ana", Date: "2099-01-10", Time: "09:00", Service: "corte"}
	if _, err := e.CreateBooking(context.Background(), slotReq); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}
	if _, err := e.ConfirmBooking(context.Background(), "success", slotReq); err != nil {
		t.Fatalf("ConfirmBooking failed: %v", err)
	}

	// Live hold at 10:00, expired hold at 11:00.
	if _, err := e.CreateBooking(context.Background(), Request{Name: "Bea", Date: "2099-01-10", Time: "11:00", Service: "color"}); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}
	clk.Advance(31 * time.Minute)
	if _, err := e.CreateBooking(context.Background(), Request{Name: "Cleo", Date: "2099-01-10", Time: "10:00", Service: "corte"}); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	times, err := e.OccupiedTimes(context.Background(), "2099-01-10")
	if err != nil {
		t.Fatalf("OccupiedTimes failed: %v", err)
	}
	want := []string{"09:00", "10:00"}
	if len(times) != len(want) {
		t.Fatalf("expected %v, got %v", want, times)
	}
	for i := range want {
		if times[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, times)
		}
	}

	// Other dates are unaffected.
	other, err := e.OccupiedTimes(context.Background(), "2099-01-11")
	if err != nil {
		t.Fatalf("OccupiedTimes failed: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no occupied times for another date, got %v", other)
	}
}

func TestIndependentEnginesShareStoreState(t *testing.T) {
	// Two engines over the same store still converge on the store's view:
	// the gate protects a single process, persistence carries the state.
	st := store.NewMemStore()
	clk := clock.NewFixed(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC))
	provider := &stubProvider{url: "https://pay.example/x"}
	a := NewEngine(st, provider, clk, testLogger())
	b := NewEngine(st, provider, clk, testLogger())

	req := Request{Name: "Ana", Date: "2099-01-10", Time: "10:00", Service: "corte"}
	if _, err := a.CreateBooking(context.Background(), req); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}
	if _, err := b.CreateBooking(context.Background(), req); !errors.Is(err, ErrSlotOccupied) {
		t.Fatalf("second engine must see the persisted hold, got %v", err)
	}
}
