// Package booking holds the reservation lifecycle engine: the serialized
// check-hold-confirm state machine that prevents double-booking.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/reservd/internal/clock"
	"github.com/md-rashed-zaman/reservd/internal/model"
	"github.com/md-rashed-zaman/reservd/internal/payment"
	"github.com/md-rashed-zaman/reservd/internal/store"
)

var (
	// ErrMissingFields means one of name/date/time/service was empty.
	ErrMissingFields = errors.New("missing required fields")
	// ErrInvalidDate means the date failed to parse or lies in the past.
	ErrInvalidDate = errors.New("invalid date")
	// ErrSlotOccupied means a slot, live hold, or confirmed marker already
	// claims the (date,time) pair.
	ErrSlotOccupied = errors.New("slot occupied")
	// ErrPaymentIntentFailed means the provider did not produce a payable
	// redirect; the hold created for the attempt has been rolled back.
	ErrPaymentIntentFailed = errors.New("payment intent failed")
)

const DefaultExpiration = 30 * time.Minute

// Engine owns the mutual-exclusion gate over the two snapshot stores. All
// read-modify-write sequences run with the gate held; the payment provider
// call deliberately does not, so a slow provider never blocks other
// bookings.
type Engine struct {
	mu         sync.Mutex
	store      store.Store
	provider   payment.Provider
	clock      clock.Clock
	logger     *slog.Logger
	expiration time.Duration
}

type Option func(*Engine)

// WithExpiration overrides the hold expiration window.
func WithExpiration(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.expiration = d
		}
	}
}

func NewEngine(st store.Store, provider payment.Provider, clk clock.Clock, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:      st,
		provider:   provider,
		clock:      clk,
		logger:     logger,
		expiration: DefaultExpiration,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request carries the four booking fields as received from the client.
type Request struct {
	Name    string
	Date    string
	Time    string
	Service string
}

func (r *Request) trim() {
	r.Name = strings.TrimSpace(r.Name)
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	r.Service = strings.TrimSpace(r.Service)
}

// Confirmation is the outcome of a payment callback.
type Confirmation struct {
	Confirmed bool
	// Promoted is false on idempotent replays of an already-confirmed key.
	Promoted bool
	Slot     model.Slot
}

// CreateBooking validates the request, places a hold on the slot under the
// gate, then asks the payment provider for a redirect URL. A provider
// failure rolls the hold back before the error is reported, so the slot is
// immediately bookable again.
func (e *Engine) CreateBooking(ctx context.Context, req Request) (string, error) {
	req.trim()
	if req.Name == "" || req.Date == "" || req.Time == "" || req.Service == "" {
		return "", ErrMissingFields
	}

	reqDate, err := time.ParseInLocation(model.DateLayout, req.Date, time.UTC)
	if err != nil {
		return "", ErrInvalidDate
	}
	now := e.clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	// Time-of-day is ignored here: a same-day booking for a past hour still
	// passes this layer.
	if reqDate.Before(today) {
		return "", ErrInvalidDate
	}

	key := model.SlotKey(req.Date, req.Time)
	if err := e.placeHold(ctx, key); err != nil {
		return "", err
	}

	// Provider round-trip happens with the gate released.
	redirectURL, err := e.provider.CreateIntent(ctx, payment.Intent{
		Name:    req.Name,
		Date:    req.Date,
		Time:    req.Time,
		Service: req.Service,
	})
	if err != nil {
		e.logger.Warn("payment intent failed, releasing hold", "key", key, "err", err)
		if relErr := e.releaseHold(ctx, key); relErr != nil {
			e.logger.Error("hold release failed", "key", key, "err", relErr)
		}
		return "", fmt.Errorf("%w: %v", ErrPaymentIntentFailed, err)
	}
	return redirectURL, nil
}

// placeHold runs the gated admission sequence: sweep, occupancy check,
// hold creation, persist.
func (e *Engine) placeHold(ctx context.Context, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.store.LoadHolds(ctx)
	if err != nil {
		return err
	}
	now := e.clock.Now()
	e.sweep(&doc, now)

	if doc.Confirmed[key] {
		return ErrSlotOccupied
	}
	if _, held := doc.Holds[key]; held {
		return ErrSlotOccupied
	}

	slots, err := e.store.LoadSlots(ctx)
	if err != nil {
		return err
	}
	date, timeLabel, _ := model.SplitSlotKey(key)
	for _, sl := range slots {
		if sl.Date == date && sl.Time == timeLabel {
			return ErrSlotOccupied
		}
	}

	doc.Holds[key] = model.Hold{
		ID:        uuid.NewString(),
		CreatedAt: now.Format(time.RFC3339),
	}
	return e.store.SaveHolds(ctx, doc)
}

// releaseHold is the compensating delete after a failed provider call. It
// re-acquires the gate; the failed attempt must not keep the slot blocked.
func (e *Engine) releaseHold(ctx context.Context, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.store.LoadHolds(ctx)
	if err != nil {
		return err
	}
	if _, held := doc.Holds[key]; !held {
		return nil
	}
	delete(doc.Holds, key)
	return e.store.SaveHolds(ctx, doc)
}

// ConfirmBooking promotes a hold into a confirmed slot exactly once. A
// status other than "success" touches nothing. Replayed callbacks for an
// already-confirmed key succeed without creating a second slot.
func (e *Engine) ConfirmBooking(ctx context.Context, status string, req Request) (Confirmation, error) {
	if status != "success" {
		return Confirmation{}, nil
	}
	req.trim()
	key := model.SlotKey(req.Date, req.Time)

	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.store.LoadHolds(ctx)
	if err != nil {
		return Confirmation{}, err
	}
	now := e.clock.Now()
	e.sweep(&doc, now)

	if doc.Confirmed[key] {
		return Confirmation{Confirmed: true}, nil
	}

	slots, err := e.store.LoadSlots(ctx)
	if err != nil {
		return Confirmation{}, err
	}

	// A slot for this exact pair may already exist if a retried callback
	// got here after a partial failure; skip creation but still set the
	// marker and drop the hold so the state converges.
	slot, exists := findSlot(slots, req.Date, req.Time)
	if !exists {
		slot = model.Slot{
			Name:      req.Name,
			Date:      req.Date,
			Time:      req.Time,
			Service:   req.Service,
			Status:    model.SlotStatusConfirmed,
			HoldKey:   key,
			CreatedAt: now,
		}
		slots = append(slots, slot)
		if err := e.store.SaveSlots(ctx, slots); err != nil {
			return Confirmation{}, err
		}
	}

	doc.Confirmed[key] = true
	delete(doc.Holds, key)
	if err := e.store.SaveHolds(ctx, doc); err != nil {
		return Confirmation{}, err
	}

	return Confirmation{Confirmed: true, Promoted: true, Slot: slot}, nil
}

// OccupiedTimes returns the union of confirmed slot times and live hold
// times for a date. It runs under the gate; the stores are local snapshots,
// so strict consistency is cheap here.
func (e *Engine) OccupiedTimes(ctx context.Context, date string) ([]string, error) {
	date = strings.TrimSpace(date)

	e.mu.Lock()
	defer e.mu.Unlock()

	slots, err := e.store.LoadSlots(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := e.store.LoadHolds(ctx)
	if err != nil {
		return nil, err
	}
	// Sweep in memory only; a read does not need to persist the cleanup.
	e.sweep(&doc, e.clock.Now())

	seen := map[string]bool{}
	for _, sl := range slots {
		if sl.Date == date {
			seen[sl.Time] = true
		}
	}
	for key := range doc.Holds {
		d, timeLabel, ok := model.SplitSlotKey(key)
		if ok && d == date {
			seen[timeLabel] = true
		}
	}

	times := make([]string, 0, len(seen))
	for t := range seen {
		times = append(times, t)
	}
	sort.Strings(times)
	return times, nil
}

// sweep drops every hold whose age reaches the expiration window. A
// timestamp that does not parse counts as expired: dropping a hold early is
// recoverable, keeping a dead one blocks the slot forever.
func (e *Engine) sweep(doc *model.HoldDocument, now time.Time) {
	for key, hold := range doc.Holds {
		created, err := time.Parse(time.RFC3339, hold.CreatedAt)
		if err != nil || now.Sub(created) >= e.expiration {
			delete(doc.Holds, key)
		}
	}
}

func findSlot(slots []model.Slot, date, timeLabel string) (model.Slot, bool) {
	for _, sl := range slots {
		if sl.Date == date && sl.Time == timeLabel {
			return sl, true
		}
	}
	return model.Slot{}, false
}
