package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/atalanta-labs/wikibatch/internal/domain"
	"github.com/atalanta-labs/wikibatch/internal/ports"
	"github.com/atalanta-labs/wikibatch/pkg/log"
)

// Default threshold values.
const (
	// DefaultBatchThreshold matches the unauthenticated entity-per-request
	// cap of the remote API.
	DefaultBatchThreshold = 50

	// DefaultCandidatesThreshold is an intentionally high bar for
	// curiosity-driven candidates.
	DefaultCandidatesThreshold = 50

	// DefaultStalenessThreshold is the age beyond which previously fetched
	// data counts as stale.
	DefaultStalenessThreshold = 24 * time.Hour
)

// Options holds the fixed thresholds of a manager instance.
type Options struct {
	// BatchThreshold caps identifiers per physical request and is the main
	// queue size that triggers an automatic flush.
	BatchThreshold int

	// CandidatesThreshold is the touch count that promotes a candidate into
	// the extra queue.
	CandidatesThreshold int

	// StalenessThreshold is the age after which known data is stale.
	StalenessThreshold time.Duration

	// Interactive defers stale-but-known admission decisions to the
	// confirmation prompt instead of always refetching.
	Interactive bool
}

// DefaultOptions returns Options with the default thresholds.
func DefaultOptions() Options {
	return Options{
		BatchThreshold:      DefaultBatchThreshold,
		CandidatesThreshold: DefaultCandidatesThreshold,
		StalenessThreshold:  DefaultStalenessThreshold,
	}
}

// Manager accumulates entity identifiers into per-kind batches and organizes
// named groups.
//
// Queue membership uses canonical identifiers: forms and senses collapse to
// their parent lexeme. Groups keep the verbatim strings as supplied by
// callers. Deduplication is by string identity in the respective containers.
//
// A Manager is not safe for concurrent use; callers exposing one to several
// goroutines must serialize access themselves.
type Manager struct {
	opts Options

	courier   ports.Courier
	freshness ports.FreshnessStore
	prompt    ports.ConfirmPrompt
	sink      ports.ResultSink
	tokens    ports.TokenSource
	logger    log.Logger

	// Per-kind queues of canonical identifiers: main holds direct
	// admissions, extra holds candidate promotions.
	main  [domain.BatchableKinds]map[string]struct{}
	extra [domain.BatchableKinds]map[string]struct{}

	// groups maps group name to the verbatim identifiers added to it.
	// The current group's name is never exposed, so anonymous groups cannot
	// be addressed once out of scope.
	groups       map[string]map[string]struct{}
	currentGroup string

	// candidates maps canonical identifier to its touch count.
	candidates map[string]int

	// cursor is the round-robin position for Flush(KindAny).
	cursor int
}

// New creates a manager that hands flushed batches to the given courier.
func New(courier ports.Courier, opts Options, options ...Option) *Manager {
	m := &Manager{
		opts:       opts,
		courier:    courier,
		freshness:  ports.UnknownStore{},
		prompt:     ports.DeclinePrompt{},
		tokens:     uuidTokens{},
		logger:     log.NewNoop(),
		groups:     make(map[string]map[string]struct{}),
		candidates: make(map[string]int),
	}
	for i := range m.main {
		m.main[i] = make(map[string]struct{})
		m.extra[i] = make(map[string]struct{})
	}
	for _, opt := range options {
		opt(m)
	}
	if m.sink == nil {
		m.sink = logSink{logger: m.logger}
	}
	return m
}

// NewGroup creates or selects a group and makes it current.
//
// An empty name creates an anonymous group under a fresh random name,
// drawing tokens until one is unused. An existing name becomes current
// without being cleared. Returns whether a new group was created.
func (m *Manager) NewGroup(name string) bool {
	if name == "" {
		for {
			name = "g_" + m.tokens.Token()
			if _, exists := m.groups[name]; !exists {
				break
			}
		}
	}
	_, existed := m.groups[name]
	if !existed {
		m.groups[name] = make(map[string]struct{})
	}
	m.currentGroup = name
	return !existed
}

// SelectGroup makes the named group current, creating it if needed.
// Returns whether a new group was created.
func (m *Manager) SelectGroup(name string) bool {
	return m.NewGroup(name)
}

// AddEntity validates a full prefixed identifier, records it in the target
// group, and admits its canonical root into the kind's main queue unless the
// admission policy declines. force bypasses the policy. Reaching the batch
// threshold triggers a synchronous flush of that kind before returning.
//
// Returns the resulting size of the target group.
func (m *Manager) AddEntity(ctx context.Context, id string, force bool, groupName string) (int, error) {
	kind := domain.Identify(id)
	if kind == domain.KindUnknown {
		return 0, fmt.Errorf("add entity %q: %w", id, domain.ErrInvalidIdentifier)
	}

	group := m.targetGroup(groupName)
	group[id] = struct{}{}

	root, err := domain.EntityRoot(id)
	if err != nil {
		return 0, err
	}
	rootKind := kind.Root()
	idx := rootKind.BatchIndex()

	if !m.queued(idx, root) && (force || m.shouldFetch(root, rootKind)) {
		m.main[idx][root] = struct{}{}
		if len(m.main[idx]) >= m.opts.BatchThreshold {
			if _, err := m.Flush(ctx, rootKind); err != nil {
				return len(group), err
			}
		}
	}
	return len(group), nil
}

// AddIDs is the numeric convenience form of AddEntity. Each id is prefixed
// per kind; numeric form/sense ids collapse to their lexeme.
func (m *Manager) AddIDs(ctx context.Context, ids []int, kind domain.Kind, groupName string) (int, error) {
	if !kind.Concrete() {
		return 0, fmt.Errorf("add ids: %w", domain.ErrInvalidKind)
	}
	if kind == domain.KindForm || kind == domain.KindSense {
		m.logger.Warn("numeric form/sense identifiers are not representable; mapping to lexeme",
			log.String("kind", kind.String()))
	}
	size := len(m.targetGroup(groupName))
	for _, id := range ids {
		normalized, err := domain.Normalize(id, kind)
		if err != nil {
			return size, err
		}
		size, err = m.AddEntity(ctx, normalized, false, "")
		if err != nil {
			return size, err
		}
	}
	return size, nil
}

// TouchEntity increments the candidate counter for an identifier's canonical
// root unless the root is already queued. Reaching the candidates threshold
// promotes the root into the extra queue exactly once. Returns whether the
// counter was incremented. Invalid identifiers report false.
func (m *Manager) TouchEntity(id string) bool {
	kind := domain.Identify(id)
	if kind == domain.KindUnknown {
		return false
	}
	root, err := domain.EntityRoot(id)
	if err != nil {
		return false
	}
	idx := kind.Root().BatchIndex()
	if m.queued(idx, root) {
		return false
	}

	m.candidates[root]++
	if m.candidates[root] >= m.opts.CandidatesThreshold {
		m.extra[idx][root] = struct{}{}
		delete(m.candidates, root)
	}
	return true
}

// TouchIDs is the numeric batch form of TouchEntity. It returns how many
// touches incremented a counter.
func (m *Manager) TouchIDs(ids []int, kind domain.Kind) (int, error) {
	if !kind.Concrete() {
		return 0, fmt.Errorf("touch ids: %w", domain.ErrInvalidKind)
	}
	if kind == domain.KindForm || kind == domain.KindSense {
		m.logger.Warn("numeric form/sense identifiers are not representable; mapping to lexeme",
			log.String("kind", kind.String()))
	}
	count := 0
	for _, id := range ids {
		normalized, err := domain.Normalize(id, kind)
		if err != nil {
			return count, err
		}
		if m.TouchEntity(normalized) {
			count++
		}
	}
	return count, nil
}

// Flush sends up to BatchThreshold queued identifiers of a kind through the
// courier and drops the sent ones from the queues.
//
// For KindAny a round-robin cursor advances over the batchable kinds and
// exactly one kind's queue is flushed per call, the next non-empty one in
// cyclic order; a full drain needs repeated calls. Returns whether anything
// was sent. A courier failure leaves the queues intact.
func (m *Manager) Flush(ctx context.Context, kind domain.Kind) (bool, error) {
	if kind == domain.KindAny {
		for i := 0; i < domain.BatchableKinds; i++ {
			idx := (m.cursor + i) % domain.BatchableKinds
			if len(m.main[idx])+len(m.extra[idx]) == 0 {
				continue
			}
			m.cursor = (idx + 1) % domain.BatchableKinds
			return m.flushKind(ctx, domain.KindAt(idx))
		}
		return false, nil
	}
	if !kind.Concrete() {
		return false, fmt.Errorf("flush: %w", domain.ErrInvalidKind)
	}
	return m.flushKind(ctx, kind.Root())
}

func (m *Manager) flushKind(ctx context.Context, kind domain.Kind) (bool, error) {
	idx := kind.BatchIndex()

	batch := make([]string, 0, m.opts.BatchThreshold)
	for id := range m.main[idx] {
		if len(batch) == m.opts.BatchThreshold {
			break
		}
		batch = append(batch, id)
	}
	for id := range m.extra[idx] {
		if len(batch) == m.opts.BatchThreshold {
			break
		}
		if _, dup := m.main[idx][id]; dup {
			continue
		}
		batch = append(batch, id)
	}
	if len(batch) == 0 {
		return false, nil
	}

	payload, err := m.courier.Fetch(ctx, batch, kind)
	if err != nil {
		return false, fmt.Errorf("flush %s: %w", kind, err)
	}

	for _, id := range batch {
		delete(m.main[idx], id)
		delete(m.extra[idx], id)
	}
	m.logger.Debug("flushed batch",
		log.String("kind", kind.String()), log.Int("sent", len(batch)))
	m.sink.OnResult(kind, batch, payload)
	return true, nil
}

// QueueSize returns the number of pending identifiers in a kind's main
// queue, or the sum across all batchable kinds for KindAny. The extra queue
// is not counted: its identifiers have not been promised to a caller yet.
func (m *Manager) QueueSize(kind domain.Kind) int {
	if kind == domain.KindAny {
		sum := 0
		for i := range m.main {
			sum += len(m.main[i])
		}
		return sum
	}
	idx := kind.BatchIndex()
	if idx < 0 {
		return 0
	}
	return len(m.main[idx])
}

// GroupSize returns the size of the named group, or of the current group for
// an empty name. Unknown groups report zero.
func (m *Manager) GroupSize(name string) int {
	if name == "" {
		name = m.currentGroup
	}
	return len(m.groups[name])
}

// targetGroup resolves the group to insert into: a named group is selected
// (creating it if new), an empty name targets the current group, and a
// fresh anonymous group is created when none is current.
func (m *Manager) targetGroup(name string) map[string]struct{} {
	if name != "" || m.currentGroup == "" {
		m.NewGroup(name)
	}
	return m.groups[m.currentGroup]
}

// queued reports whether a canonical identifier sits in either queue of the
// kind at idx.
func (m *Manager) queued(idx int, root string) bool {
	if _, ok := m.main[idx][root]; ok {
		return true
	}
	_, ok := m.extra[idx][root]
	return ok
}
