package payment

import "context"

// LocalProvider is the no-provider fallback: it skips the external call and
// hands back the success callback URL directly, so the full booking
// lifecycle stays exercisable without payment credentials.
type LocalProvider struct {
	baseURL string
}

func NewLocalProvider(baseURL string) *LocalProvider {
	return &LocalProvider{baseURL: baseURL}
}

func (p *LocalProvider) CreateIntent(_ context.Context, in Intent) (string, error) {
	return BuildConfirmURLs(p.baseURL, in).Success, nil
}
