package fetcher

import "net/http"

// Option customizes a Service.
type Option func(*Service)

// WithHTTPClient replaces the default HTTP client, primarily for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.client = client
		}
	}
}
