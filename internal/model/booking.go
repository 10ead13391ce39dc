package model

import (
	"strings"
	"time"
)

const (
	// DateLayout is the calendar-date wire format for bookings.
	DateLayout = "2006-01-02"

	SlotStatusConfirmed = "CONFIRMED"
)

// Slot is a confirmed appointment. At most one slot may exist per (date,
// time) pair; slots are created only by confirming a hold and are never
// mutated afterwards.
type Slot struct {
	Name      string    `json:"name"`
	Date      string    `json:"date"` // DateLayout
	Time      string    `json:"time"` // slot label, e.g. "14:30"
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	HoldKey   string    `json:"hold_key"`
	CreatedAt time.Time `json:"created_at"`
}

// Hold is a temporary claim on a (date,time) pair while payment is pending.
// CreatedAt is kept as an RFC 3339 string so that a corrupt value read back
// from storage can be detected and the hold dropped as expired.
type Hold struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

// HoldDocument is the whole-document snapshot of in-flight reservation
// state: live holds plus the permanent confirmed markers that make the
// payment callback idempotent.
type HoldDocument struct {
	Holds     map[string]Hold `json:"holds"`
	Confirmed map[string]bool `json:"confirmed"`
}

func NewHoldDocument() HoldDocument {
	return HoldDocument{
		Holds:     map[string]Hold{},
		Confirmed: map[string]bool{},
	}
}

// Normalize ensures both maps are non-nil after a load from storage.
func (d *HoldDocument) Normalize() {
	if d.Holds == nil {
		d.Holds = map[string]Hold{}
	}
	if d.Confirmed == nil {
		d.Confirmed = map[string]bool{}
	}
}

// SlotKey builds the canonical hold/marker key for a (date,time) pair.
func SlotKey(date, timeLabel string) string {
	return date + "|" + timeLabel
}

// SplitSlotKey is the inverse of SlotKey. ok is false for malformed keys.
func SplitSlotKey(key string) (date, timeLabel string, ok bool) {
	parts := strings.SplitN(key, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
