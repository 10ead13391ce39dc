package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/reservd/internal/booking"
	"github.com/md-rashed-zaman/reservd/internal/events"
)

type BookingHandler struct {
	engine    *booking.Engine
	publisher *events.Publisher
	logger    *slog.Logger
}

func NewBookingHandler(engine *booking.Engine, publisher *events.Publisher, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		engine:    engine,
		publisher: publisher,
		logger:    logger,
	}
}

type createBookingRequest struct {
	Name    string `json:"name"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Service string `json:"service"`
}

type createBookingResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// Error codes are the machine-readable sentinels of the booking API; a
// caller distinguishes them from a redirect URL by the presence of "error".
const (
	codeMissingFields    = "missing_fields"
	codeInvalidDate      = "invalid_date"
	codeSlotOccupied     = "slot_occupied"
	codePaymentFailed    = "payment_failed"
	codeStoreUnavailable = "store_unavailable"
)

// Create handles POST /api/v1/public/bookings.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeMissingFields, "invalid json body")
		return
	}

	redirectURL, err := h.engine.CreateBooking(r.Context(), booking.Request{
		Name:    req.Name,
		Date:    req.Date,
		Time:    req.Time,
		Service: req.Service,
	})
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrMissingFields):
			writeError(w, http.StatusBadRequest, codeMissingFields, "name, date, time and service are required")
		case errors.Is(err, booking.ErrInvalidDate):
			writeError(w, http.StatusUnprocessableEntity, codeInvalidDate, "date must be today or later (YYYY-MM-DD)")
		case errors.Is(err, booking.ErrSlotOccupied):
			writeError(w, http.StatusConflict, codeSlotOccupied, "slot already taken")
		case errors.Is(err, booking.ErrPaymentIntentFailed):
			writeError(w, http.StatusBadGateway, codePaymentFailed, "payment could not be started, slot released")
		default:
			h.logger.Error("booking create failed", "err", err)
			writeError(w, http.StatusInternalServerError, codeStoreUnavailable, "temporary storage failure")
		}
		return
	}

	writeJSON(w, http.StatusOK, createBookingResponse{RedirectURL: redirectURL})
}

// Confirm handles GET /confirm, the payment provider's redirect target. It
// renders HTML because the end user lands here in a browser.
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	status := strings.TrimSpace(q.Get("status"))
	req := booking.Request{
		Name:    q.Get("name"),
		Date:    q.Get("date"),
		Time:    q.Get("time"),
		Service: q.Get("service"),
	}

	conf, err := h.engine.ConfirmBooking(r.Context(), status, req)
	if err != nil {
		h.logger.Error("booking confirmation failed", "err", err, "date", req.Date, "time", req.Time)
		renderFailurePage(w)
		return
	}
	if !conf.Confirmed {
		renderNotConfirmedPage(w)
		return
	}

	if conf.Promoted {
		h.publisher.SlotConfirmed(r.Context(), conf.Slot)
	}
	renderConfirmationPage(w, req)
}

// Occupied handles GET /api/v1/public/occupied?date=YYYY-MM-DD.
func (h *BookingHandler) Occupied(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, codeMissingFields, "date is required")
		return
	}

	times, err := h.engine.OccupiedTimes(r.Context(), date)
	if err != nil {
		h.logger.Error("occupied times lookup failed", "err", err, "date", date)
		writeError(w, http.StatusInternalServerError, codeStoreUnavailable, "temporary storage failure")
		return
	}

	writeJSON(w, http.StatusOK, times)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}
