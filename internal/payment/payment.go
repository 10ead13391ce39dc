// Package payment turns booking details into a payable redirect URL.
// Providers are interchangeable; the booking engine treats every provider
// error the same way and rolls back the hold it created.
package payment

import (
	"context"
	"net/url"
	"strings"
)

// Intent carries the booking details a provider needs to create a payment.
type Intent struct {
	Name    string
	Date    string
	Time    string
	Service string
}

// Provider creates a payment intent and returns the URL the end user must
// be redirected to. Any error, whatever its shape (non-2xx response, parse
// failure, missing redirect field, transport error), means the intent was
// not created.
type Provider interface {
	CreateIntent(ctx context.Context, in Intent) (redirectURL string, err error)
}

// ConfirmURLs are the callback targets a provider redirects to after the
// payment attempt resolves.
type ConfirmURLs struct {
	Success string
	Failure string
	Pending string
}

// BuildConfirmURLs points the three outcomes at the /confirm endpoint.
// The success URL carries the booking details so the callback can promote
// the hold without any provider-side lookup.
func BuildConfirmURLs(baseURL string, in Intent) ConfirmURLs {
	base := strings.TrimRight(baseURL, "/") + "/confirm"
	q := url.Values{}
	q.Set("status", "success")
	q.Set("name", in.Name)
	q.Set("date", in.Date)
	q.Set("time", in.Time)
	q.Set("service", in.Service)
	return ConfirmURLs{
		Success: base + "?" + q.Encode(),
		Failure: base + "?status=failure",
		Pending: base + "?status=pending",
	}
}
