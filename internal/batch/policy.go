package batch

import (
	"time"

	"github.com/atalanta-labs/wikibatch/internal/domain"
	"github.com/atalanta-labs/wikibatch/pkg/log"
)

// shouldFetch is the admission policy consulted by AddEntity when force is
// not set.
//
// Unknown identifiers are always fetched. Known identifiers are fetched
// again once their age exceeds the staleness threshold; in interactive mode
// that decision is deferred to the confirmation prompt instead. Fresh data
// is never refetched.
func (m *Manager) shouldFetch(root string, kind domain.Kind) bool {
	last, known := m.freshness.LastFetched(root)
	if !known {
		return true
	}
	age := time.Since(last)
	if age <= m.opts.StalenessThreshold {
		return false
	}
	if m.opts.Interactive {
		return m.prompt.ConfirmRefresh(root, kind, age)
	}
	return true
}

// logSink is the default ResultSink: it reports the flush and drops the
// payload.
type logSink struct {
	logger log.Logger
}

func (s logSink) OnResult(kind domain.Kind, sent []string, payload map[string]any) {
	s.logger.Info("batch fetched",
		log.String("kind", kind.String()),
		log.Int("sent", len(sent)),
		log.Int("top_level_keys", len(payload)))
}
