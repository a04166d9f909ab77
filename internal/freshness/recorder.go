package freshness

import (
	"time"

	"github.com/atalanta-labs/wikibatch/internal/domain"
	"github.com/atalanta-labs/wikibatch/internal/ports"
	"github.com/atalanta-labs/wikibatch/pkg/log"
)

// Recorder is a ResultSink that stamps flushed identifiers in a FileStore
// before forwarding the payload to the next sink.
type Recorder struct {
	store  *FileStore
	next   ports.ResultSink
	logger log.Logger
	now    func() time.Time
}

// NewRecorder wraps next with fetch-time recording. next may be nil.
func NewRecorder(store *FileStore, next ports.ResultSink, logger log.Logger) *Recorder {
	if logger == nil {
		logger = log.NewNoop()
	}
	return &Recorder{store: store, next: next, logger: logger, now: time.Now}
}

func (r *Recorder) OnResult(kind domain.Kind, sent []string, payload map[string]any) {
	r.store.MarkFetched(sent, r.now())
	if err := r.store.Save(); err != nil {
		r.logger.Error("persist freshness store", log.Err(err))
	}
	if r.next != nil {
		r.next.OnResult(kind, sent, payload)
	}
}
