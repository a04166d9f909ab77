package sparql

import (
	"net/http"
	"net/url"
	"time"
)

// MethodHint is a policy for selecting the HTTP method of a query call,
// as opposed to naming the method directly.
type MethodHint int

const (
	// Automatic selects GET for short queries and POST above the length
	// threshold.
	Automatic MethodHint = iota

	// ForceGet always uses GET.
	ForceGet

	// ForcePost always uses POST.
	ForcePost
)

// Content types the body strategy distinguishes.
const (
	FormContentType  = "application/x-www-form-urlencoded"
	QueryContentType = "application/sparql-query"
)

// Request describes a structured query to plan and execute.
type Request struct {
	// Query is the SPARQL text.
	Query string

	// Method is the method-selection policy.
	Method MethodHint

	// LengthThreshold overrides the service length threshold when positive.
	LengthThreshold int

	// Timeout overrides the service per-request timeout when positive.
	Timeout time.Duration

	// Accept, when non-empty, takes precedence over any override and the
	// service default.
	Accept string

	// ContentType, when non-empty, is honored verbatim by the body strategy.
	ContentType string
}

// ServiceProfile holds the static description of a remote query service.
type ServiceProfile struct {
	BaseURL       string
	DefaultAccept string

	// RateHints are service-documented throttling hint names ("polite",
	// "limit") that guide client pacing.
	RateHints []string
}

// WDQSProfile returns the profile of the Wikidata Query Service.
func WDQSProfile() ServiceProfile {
	return ServiceProfile{
		BaseURL:       "https://query.wikidata.org/sparql",
		DefaultAccept: "application/sparql-results+json",
		RateHints:     []string{"polite", "limit"},
	}
}

// Options holds WDQS usage heuristics.
type Options struct {
	// LengthThreshold is the query length above which POST is preferred.
	LengthThreshold int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// AcceptOverride is an optional runtime Accept header override.
	AcceptOverride string
}

// DefaultOptions returns the default WDQS heuristics.
func DefaultOptions() Options {
	return Options{
		LengthThreshold: 1800,
		Timeout:         60 * time.Second,
	}
}

// ChooseMethod selects the HTTP method for a request: the forced method when
// the hint forces one, otherwise GET up to the length threshold and POST
// beyond it.
func ChooseMethod(req Request, threshold int) string {
	switch req.Method {
	case ForceGet:
		return http.MethodGet
	case ForcePost:
		return http.MethodPost
	default:
		if len(req.Query) <= threshold {
			return http.MethodGet
		}
		return http.MethodPost
	}
}

// ResolveAccept resolves the Accept header with precedence: request-level
// explicit value, then the caller-supplied override, then the service
// default.
func ResolveAccept(req Request, profile ServiceProfile, override string) string {
	if req.Accept != "" {
		return req.Accept
	}
	if override != "" {
		return override
	}
	return profile.DefaultAccept
}

// ResolveBodyStrategy determines the POST body encoding. An explicit request
// content type is honored, with exactly the form MIME type meaning a form
// body. A forced (non-automatic) method defaults to form encoding; an
// automatic POST defaults to a raw SPARQL body.
func ResolveBodyStrategy(req Request) (contentType string, useForm bool) {
	if req.ContentType != "" {
		return req.ContentType, req.ContentType == FormContentType
	}
	if req.Method != Automatic {
		return FormContentType, true
	}
	return QueryContentType, false
}

// AppendCommonParams adds the service's required parameters for the given
// method. WDQS wants an explicit format=json on GET unless the caller set
// one. Parameter ordering is canonicalized at encode time.
func AppendCommonParams(params url.Values, method string) {
	if method == http.MethodGet && !params.Has("format") {
		params.Set("format", "json")
	}
}
