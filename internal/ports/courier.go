package ports

import (
	"context"

	"github.com/atalanta-labs/wikibatch/internal/domain"
)

// Courier converts a batch of canonical identifiers into one or more remote
// calls and merges the partial responses into a single JSON object.
type Courier interface {
	// Fetch retrieves entity data for the given identifiers. An empty batch
	// yields an empty object without issuing a call. A chunk failure aborts
	// the whole fetch; partial merged data is never returned alongside an
	// error.
	Fetch(ctx context.Context, batch []string, kind domain.Kind) (map[string]any, error)
}

// ResultSink receives the merged payload of a completed flush.
type ResultSink interface {
	// OnResult is called once per flushed kind with the merged JSON object
	// and the identifiers that were sent.
	OnResult(kind domain.Kind, sent []string, payload map[string]any)
}
