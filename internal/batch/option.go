package batch

import (
	"github.com/atalanta-labs/wikibatch/internal/ports"
	"github.com/atalanta-labs/wikibatch/pkg/log"
)

// Option customizes a Manager at construction time.
type Option func(*Manager)

// WithFreshnessStore substitutes the freshness lookup consulted by the
// admission policy. The default store knows nothing and admits everything.
func WithFreshnessStore(store ports.FreshnessStore) Option {
	return func(m *Manager) { m.freshness = store }
}

// WithConfirmPrompt substitutes the interactive stale-refresh prompt.
// The default prompt always declines.
func WithConfirmPrompt(prompt ports.ConfirmPrompt) Option {
	return func(m *Manager) { m.prompt = prompt }
}

// WithResultSink directs merged flush payloads somewhere other than the log.
func WithResultSink(sink ports.ResultSink) Option {
	return func(m *Manager) { m.sink = sink }
}

// WithTokenSource substitutes the random source behind anonymous group
// names, letting tests make naming deterministic.
func WithTokenSource(tokens ports.TokenSource) Option {
	return func(m *Manager) { m.tokens = tokens }
}

// WithLogger attaches a logger to the manager.
func WithLogger(logger log.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}
