package ports

import "net/http"

// HTTPClient abstracts HTTP execution so the retrying transport can be
// exercised in tests without a network. The standard *http.Client satisfies
// this interface.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}
