package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/reservd/internal/booking"
	"github.com/md-rashed-zaman/reservd/internal/clock"
	"github.com/md-rashed-zaman/reservd/internal/payment"
	"github.com/md-rashed-zaman/reservd/internal/store"
)

type fixedProvider struct {
	url string
}

func (p fixedProvider) CreateIntent(_ context.Context, _ payment.Intent) (string, error) {
	return p.url, nil
}

func newTestHandler(t *testing.T) *BookingHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := booking.NewEngine(
		store.NewMemStore(),
		fixedProvider{url: "https://pay.example/checkout/abc"},
		clock.NewFixed(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)),
		logger,
	)
	return NewBookingHandler(engine, nil, logger)
}

func postBooking(t *testing.T, h *BookingHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/bookings", strings.NewReader(body))
	rw := httptest.NewRecorder()
	h.Create(rw, req)
	return rw
}

func TestCreate_ReturnsRedirectURL(t *testing.T) {
	h := newTestHandler(t)

	rw := postBooking(t, h, `{"name":"Ana","date":"2099-01-10","time":"10:00","service":"corte"}`)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}

	var resp createBookingResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	if resp.RedirectURL != "https://pay.example/checkout/abc" {
		t.Fatalf("unexpected redirect url: %s", resp.RedirectURL)
	}
}

func TestCreate_SentinelOutcomes(t *testing.T) {
	h := newTestHandler(t)

	// First booking takes the slot.
	if rw := postBooking(t, h, `{"name":"Ana","date":"2099-01-10","time":"10:00","service":"corte"}`); rw.Code != http.StatusOK {
		t.Fatalf("setup booking failed: %d", rw.Code)
	}

	cases := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"occupied", `{"name":"Bea","date":"2099-01-10","time":"10:00","service":"corte"}`, http.StatusConflict, "slot_occupied"},
		{"past date", `{"name":"Bea","date":"2020-01-01","time":"10:00","service":"corte"}`, http.StatusUnprocessableEntity, "invalid_date"},
		{"bad date", `{"name":"Bea","date":"10/01/2099","time":"10:00","service":"corte"}`, http.StatusUnprocessableEntity, "invalid_date"},
		{"missing fields", `{"name":"","date":"2099-01-10","time":"10:00","service":"corte"}`, http.StatusBadRequest, "missing_fields"},
		{"bad json", `{not json`, http.StatusBadRequest, "missing_fields"},
	}
	for _, tc := range cases {
		rw := postBooking(t, h, tc.body)
		if rw.Code != tc.wantCode {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.wantCode, rw.Code, rw.Body.String())
		}
		var resp map[string]string
		if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: invalid error json: %v", tc.name, err)
		}
		if resp["error"] != tc.wantErr {
			t.Fatalf("%s: expected error code %q, got %q", tc.name, tc.wantErr, resp["error"])
		}
	}
}

func TestCreate_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/bookings", nil)
	rw := httptest.NewRecorder()
	h.Create(rw, req)
	if rw.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rw.Code)
	}
}

func TestConfirm_SuccessRendersConfirmation(t *testing.T) {
	h := newTestHandler(t)

	if rw := postBooking(t, h, `{"name":"Ana","date":"2099-01-10","time":"10:00","service":"corte"}`); rw.Code != http.StatusOK {
		t.Fatalf("setup booking failed: %d", rw.Code)
	}

	confirmURL := "/confirm?status=success&name=Ana&date=2099-01-10&time=10:00&service=corte"
	req := httptest.NewRequest(http.MethodGet, confirmURL, nil)
	rw := httptest.NewRecorder()
	h.Confirm(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	body := rw.Body.String()
	if !strings.Contains(body, "Ana") || !strings.Contains(body, "2099-01-10") {
		t.Fatalf("confirmation page missing booking details: %s", body)
	}

	// Replayed callback renders the same success page.
	replay := httptest.NewRecorder()
	h.Confirm(replay, httptest.NewRequest(http.MethodGet, confirmURL, nil))
	if replay.Code != http.StatusOK {
		t.Fatalf("replay expected 200, got %d", replay.Code)
	}
	if !strings.Contains(replay.Body.String(), "Ana") {
		t.Fatal("replayed confirmation must render the success page")
	}

	// And the slot shows up as occupied.
	occ := httptest.NewRecorder()
	h.Occupied(occ, httptest.NewRequest(http.MethodGet, "/api/v1/public/occupied?date=2099-01-10", nil))
	if occ.Code != http.StatusOK {
		t.Fatalf("occupied expected 200, got %d", occ.Code)
	}
	var times []string
	if err := json.Unmarshal(occ.Body.Bytes(), &times); err != nil {
		t.Fatalf("invalid occupied json: %v", err)
	}
	if len(times) != 1 || times[0] != "10:00" {
		t.Fatalf("expected [10:00], got %v", times)
	}
}

func TestConfirm_NonSuccessRendersNotConfirmed(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/confirm?status=failure", nil)
	rw := httptest.NewRecorder()
	h.Confirm(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if !strings.Contains(rw.Body.String(), "not confirmed") {
		t.Fatalf("expected the not-confirmed page, got: %s", rw.Body.String())
	}
}

func TestConfirm_EscapesUserInput(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/confirm?status=success&name=%3Cscript%3E&date=2099-01-10&time=10:00&service=corte", nil)
	rw := httptest.NewRecorder()
	h.Confirm(rw, req)

	if strings.Contains(rw.Body.String(), "<script>") {
		t.Fatal("unescaped user input in confirmation page")
	}
}

func TestOccupied_RequiresDate(t *testing.T) {
	h := newTestHandler(t)

	rw := httptest.NewRecorder()
	h.Occupied(rw, httptest.NewRequest(http.MethodGet, "/api/v1/public/occupied", nil))
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestOccupied_EmptyDateReturnsEmptyList(t *testing.T) {
	h := newTestHandler(t)

	rw := httptest.NewRecorder()
	h.Occupied(rw, httptest.NewRequest(http.MethodGet, "/api/v1/public/occupied?date=2099-03-03", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var times []string
	if err := json.Unmarshal(rw.Body.Bytes(), &times); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(times) != 0 {
		t.Fatalf("expected empty list, got %v", times)
	}
}
