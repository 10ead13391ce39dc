package model

import "testing"

func TestSlotKeyRoundTrip(t *testing.T) {
	key := SlotKey("2099-01-10", "10:00")
	if key != "2099-01-10|10:00" {
		t.Fatalf("unexpected key: %s", key)
	}

	date, timeLabel, ok := SplitSlotKey(key)
	if !ok || date != "2099-01-10" || timeLabel != "10:00" {
		t.Fatalf("round trip failed: %q %q %v", date, timeLabel, ok)
	}
}

func TestSplitSlotKey_Malformed(t *testing.T) {
	for _, raw := range []string{"", "nodelimiter", "|10:00", "2099-01-10|"} {
		if _, _, ok := SplitSlotKey(raw); ok {
			t.Fatalf("key %q should be rejected", raw)
		}
	}
}

func TestHoldDocumentNormalize(t *testing.T) {
	var doc HoldDocument
	doc.Normalize()
	if doc.Holds == nil || doc.Confirmed == nil {
		t.Fatal("Normalize must initialize both maps")
	}
}
