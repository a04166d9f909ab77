package ports

import (
	"time"

	"github.com/atalanta-labs/wikibatch/internal/domain"
)

// FreshnessStore answers whether an identifier already has locally stored
// data and when it was last fetched. The core ships only the stub below;
// a persistent entity store plugs in here.
type FreshnessStore interface {
	// LastFetched reports whether the identifier is known and, if so, when
	// its data was last retrieved.
	LastFetched(id string) (time.Time, bool)
}

// ConfirmPrompt asks whether stale-but-known data should be refreshed.
// Used only in interactive execution mode.
type ConfirmPrompt interface {
	// ConfirmRefresh returns true if the identifier should be fetched again.
	ConfirmRefresh(id string, kind domain.Kind, age time.Duration) bool
}

// UnknownStore is a FreshnessStore that knows nothing. Every lookup reports
// the identifier as never fetched, so the admission policy always fetches.
type UnknownStore struct{}

// LastFetched always reports the identifier as unknown.
func (UnknownStore) LastFetched(string) (time.Time, bool) {
	return time.Time{}, false
}

// DeclinePrompt is a ConfirmPrompt that always declines a refresh.
type DeclinePrompt struct{}

// ConfirmRefresh always returns false.
func (DeclinePrompt) ConfirmRefresh(string, domain.Kind, time.Duration) bool {
	return false
}
