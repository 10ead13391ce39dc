package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultMercadoPagoAPI = "https://api.mercadopago.com"

// MercadoPagoProvider creates a checkout preference and returns its
// init_point URL.
type MercadoPagoProvider struct {
	accessToken string
	baseURL     string // service base URL for the back_urls
	apiURL      string
	client      *http.Client
}

type MercadoPagoOption func(*MercadoPagoProvider)

// WithMercadoPagoAPIURL overrides the API host (tests).
func WithMercadoPagoAPIURL(u string) MercadoPagoOption {
	return func(p *MercadoPagoProvider) {
		p.apiURL = strings.TrimRight(u, "/")
	}
}

func NewMercadoPagoProvider(accessToken, baseURL string, opts ...MercadoPagoOption) *MercadoPagoProvider {
	p := &MercadoPagoProvider{
		accessToken: accessToken,
		baseURL:     baseURL,
		apiURL:      defaultMercadoPagoAPI,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type mpPreferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type mpBackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type mpPreferenceRequest struct {
	Items      []mpPreferenceItem `json:"items"`
	BackURLs   mpBackURLs         `json:"back_urls"`
	AutoReturn string             `json:"auto_return"`
}

type mpPreferenceResponse struct {
	InitPoint string `json:"init_point"`
}

func (p *MercadoPagoProvider) CreateIntent(ctx context.Context, in Intent) (string, error) {
	urls := BuildConfirmURLs(p.baseURL, in)
	pref := mpPreferenceRequest{
		Items: []mpPreferenceItem{{
			Title:      "Reserva " + in.Service,
			Quantity:   1,
			UnitPrice:  1,
			CurrencyID: "ARS",
		}},
		BackURLs: mpBackURLs{
			Success: urls.Success,
			Failure: urls.Failure,
			Pending: urls.Pending,
		},
		AutoReturn: "approved",
	}

	body, err := json.Marshal(pref)
	if err != nil {
		return "", fmt.Errorf("encode preference: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("preference request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("preference rejected: status %d", resp.StatusCode)
	}

	var out mpPreferenceResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if strings.TrimSpace(out.InitPoint) == "" {
		return "", fmt.Errorf("preference response missing init_point")
	}
	return out.InitPoint, nil
}
