package sparql

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/atalanta-labs/wikibatch/internal/transport"
	"github.com/atalanta-labs/wikibatch/pkg/log"
)

// CallPreview describes a planned query call without executing it. It is the
// value handed to the transport and doubles as an introspection surface for
// tests and dry runs.
type CallPreview struct {
	Method      string
	URL         string
	QueryParams url.Values
	FormParams  url.Values
	Body        string
	ContentType string
	Accept      string
	Timeout     time.Duration

	// UseFormBody selects FormParams over Body as the POST payload.
	UseFormBody bool
}

// HasParam reports whether a query parameter with the given key is planned.
func (p CallPreview) HasParam(key string) bool {
	return p.QueryParams.Has(key)
}

// GetParam returns the first planned value for the query parameter key, or
// an empty string.
func (p CallPreview) GetParam(key string) string {
	return p.QueryParams.Get(key)
}

// Client plans and executes structured queries against one query service.
type Client struct {
	profile   ServiceProfile
	opts      Options
	transport *transport.Transport
	logger    log.Logger
}

// NewClient creates a query client for the given service profile.
func NewClient(profile ServiceProfile, opts Options, tr *transport.Transport, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNoop()
	}
	return &Client{profile: profile, opts: opts, transport: tr, logger: logger}
}

// NewWDQSClient creates a client for the Wikidata Query Service.
func NewWDQSClient(opts Options, tr *transport.Transport, logger log.Logger) *Client {
	return NewClient(WDQSProfile(), opts, tr, logger)
}

// Plan resolves the method, Accept header, body strategy and parameters for
// a request and returns the call it would issue.
func (c *Client) Plan(req Request) CallPreview {
	threshold := c.opts.LengthThreshold
	if req.LengthThreshold > 0 {
		threshold = req.LengthThreshold
	}
	timeout := c.opts.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	preview := CallPreview{
		Method:  ChooseMethod(req, threshold),
		URL:     c.profile.BaseURL,
		Accept:  ResolveAccept(req, c.profile, c.opts.AcceptOverride),
		Timeout: timeout,
	}

	if preview.Method == http.MethodGet {
		preview.QueryParams = url.Values{"query": {req.Query}}
		AppendCommonParams(preview.QueryParams, preview.Method)
		return preview
	}

	contentType, useForm := ResolveBodyStrategy(req)
	preview.ContentType = contentType
	preview.UseFormBody = useForm
	if useForm {
		preview.FormParams = url.Values{"query": {req.Query}}
	} else {
		preview.Body = req.Query
	}
	return preview
}

// Run plans the request and executes it over the transport.
func (c *Client) Run(ctx context.Context, req Request) (*transport.Response, error) {
	preview := c.Plan(req)
	c.logger.Debug("executing query",
		log.String("method", preview.Method),
		log.Int("length", len(req.Query)),
		log.Bool("form", preview.UseFormBody))
	return c.Execute(ctx, preview)
}

// Execute issues a previously planned call.
func (c *Client) Execute(ctx context.Context, preview CallPreview) (*transport.Response, error) {
	call := transport.Call{
		Method:      preview.Method,
		URL:         preview.URL,
		Query:       preview.QueryParams,
		Form:        preview.FormParams,
		Body:        []byte(preview.Body),
		ContentType: preview.ContentType,
		Accept:      preview.Accept,
		Timeout:     preview.Timeout,
		UseForm:     preview.UseFormBody,
	}
	return c.transport.Do(ctx, call)
}
