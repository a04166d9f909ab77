package batch

import (
	"strings"

	"github.com/google/uuid"
)

// uuidTokens is the default TokenSource: the first eight hex digits of a
// random UUID, plenty of spread for the retry-until-unused contract.
type uuidTokens struct{}

func (uuidTokens) Token() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
