// Package wikibatch provides client-side batching for Wikibase entity
// retrieval: identifiers accumulate in per-kind queues and are fetched in
// consolidated API calls instead of one request per entity.
//
// Example usage:
//
//	cfg := wikibatch.DefaultConfig()
//	client, err := wikibatch.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client.Batches.AddEntity(ctx, "Q42", false, "douglas")
//	client.Batches.Flush(ctx, wikibatch.KindAny)
package wikibatch

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/atalanta-labs/wikibatch/internal/batch"
	"github.com/atalanta-labs/wikibatch/internal/cliconfig"
	"github.com/atalanta-labs/wikibatch/internal/courier"
	"github.com/atalanta-labs/wikibatch/internal/domain"
	"github.com/atalanta-labs/wikibatch/internal/metrics"
	"github.com/atalanta-labs/wikibatch/internal/sparql"
	"github.com/atalanta-labs/wikibatch/internal/transport"
	"github.com/atalanta-labs/wikibatch/pkg/log"
)

// Config holds the configuration for a wikibatch client.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// Kind is the category of a Wikibase entity.
type Kind = domain.Kind

// Identifier kinds, re-exported for callers of the facade.
const (
	KindItem         = domain.KindItem
	KindProperty     = domain.KindProperty
	KindLexeme       = domain.KindLexeme
	KindMediaInfo    = domain.KindMediaInfo
	KindEntitySchema = domain.KindEntitySchema
	KindForm         = domain.KindForm
	KindSense        = domain.KindSense
	KindAny          = domain.KindAny
	KindUnknown      = domain.KindUnknown
)

// Option customizes the batch manager inside a client.
type Option = batch.Option

// Re-exported manager options.
var (
	WithFreshnessStore = batch.WithFreshnessStore
	WithConfirmPrompt  = batch.WithConfirmPrompt
	WithResultSink     = batch.WithResultSink
)

// Client bundles the wired retrieval stack: one retrying transport shared by
// the entity courier and the SPARQL client, and a batch manager on top.
type Client struct {
	Batches *batch.Manager
	Courier *courier.Courier
	SPARQL  *sparql.Client

	transport *transport.Transport
}

// New creates a fully wired client from the given configuration.
func New(cfg Config, options ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.NewZerologAdapterWithLogger(Logger())

	tr := transport.New(transport.Options{
		Timeout:        cfg.HTTPTimeout,
		ConnectTimeout: cfg.ConnectTimeout,
		MaxRetries:     cfg.MaxRetries,
		RetryBase:      cfg.RetryBase,
		RetryMax:       cfg.RetryMax,
		Accept:         transport.DefaultAccept,
		UserAgent:      cfg.UserAgent,
	}, logger)

	courierOpts := courier.DefaultOptions()
	courierOpts.BatchThreshold = cfg.BatchThreshold
	courierOpts.Language = cfg.Language
	courierOpts.EntityEndpoint = cfg.EntityEndpoint
	courierOpts.MediaEndpoint = cfg.MediaEndpoint
	c := courier.New(courierOpts, tr, logger)

	sparqlProfile := sparql.WDQSProfile()
	sparqlProfile.BaseURL = cfg.SPARQLEndpoint
	sp := sparql.NewClient(sparqlProfile, sparql.Options{
		LengthThreshold: cfg.SPARQLLengthThreshold,
		Timeout:         cfg.SPARQLTimeout,
	}, tr, logger)

	options = append([]Option{batch.WithLogger(logger)}, options...)
	m := batch.New(c, batch.Options{
		BatchThreshold:      cfg.BatchThreshold,
		CandidatesThreshold: cfg.CandidatesThreshold,
		StalenessThreshold:  cfg.StalenessThreshold,
		Interactive:         cfg.Interactive,
	}, options...)

	return &Client{Batches: m, Courier: c, SPARQL: sp, transport: tr}, nil
}

// Metrics returns the network counters of the client's shared transport.
func (c *Client) Metrics() *metrics.Network {
	return c.transport.Metrics()
}

// MetricsCollector returns a Prometheus collector over the client's network
// counters, ready for registration.
func (c *Client) MetricsCollector() *metrics.Collector {
	return metrics.NewCollector(c.transport.Metrics())
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Logger returns the package-level zerolog logger.
func Logger() zerolog.Logger {
	return logger
}

var logger zerolog.Logger

func init() {
	logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
