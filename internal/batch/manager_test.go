package batch

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/atalanta-labs/wikibatch/internal/domain"
)

// fakeCourier records fetches and returns a canned payload.
type fakeCourier struct {
	calls   [][]string
	kinds   []domain.Kind
	payload map[string]any
	err     error
}

func (f *fakeCourier) Fetch(_ context.Context, batch []string, kind domain.Kind) (map[string]any, error) {
	sent := append([]string{}, batch...)
	sort.Strings(sent)
	f.calls = append(f.calls, sent)
	f.kinds = append(f.kinds, kind)
	if f.err != nil {
		return nil, f.err
	}
	if f.payload != nil {
		return f.payload, nil
	}
	return map[string]any{}, nil
}

// seqTokens yields a fixed token sequence, repeating the last one.
type seqTokens struct {
	tokens []string
	next   int
}

func (s *seqTokens) Token() string {
	t := s.tokens[s.next]
	if s.next < len(s.tokens)-1 {
		s.next++
	}
	return t
}

// staleStore reports every identifier as fetched at a fixed time.
type staleStore struct {
	at time.Time
}

func (s staleStore) LastFetched(string) (time.Time, bool) { return s.at, true }

// recordingSink captures flush results.
type recordingSink struct {
	kinds    []domain.Kind
	sent     [][]string
	payloads []map[string]any
}

func (r *recordingSink) OnResult(kind domain.Kind, sent []string, payload map[string]any) {
	r.kinds = append(r.kinds, kind)
	r.sent = append(r.sent, append([]string{}, sent...))
	r.payloads = append(r.payloads, payload)
}

func newTestManager(opts Options, options ...Option) (*Manager, *fakeCourier) {
	courier := &fakeCourier{}
	return New(courier, opts, options...), courier
}

func TestNewGroupAnonymousRetriesCollisions(t *testing.T) {
	m, _ := newTestManager(DefaultOptions(),
		WithTokenSource(&seqTokens{tokens: []string{"aaaa", "aaaa", "bbbb"}}))

	if created := m.NewGroup(""); !created {
		t.Fatal("first anonymous group not created")
	}
	// Same first token is drawn again and must be rejected.
	if created := m.NewGroup(""); !created {
		t.Fatal("second anonymous group not created")
	}
	if m.GroupSize("g_aaaa") != 0 || m.GroupSize("g_bbbb") != 0 {
		t.Error("expected groups g_aaaa and g_bbbb to exist")
	}
}

func TestSelectGroupKeepsContents(t *testing.T) {
	m, _ := newTestManager(DefaultOptions())
	ctx := context.Background()

	if created := m.NewGroup("g1"); !created {
		t.Fatal("g1 not created")
	}
	if _, err := m.AddEntity(ctx, "Q1", false, ""); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}

	// Re-selecting must not clear.
	if created := m.SelectGroup("g1"); created {
		t.Error("re-selecting g1 reported creation")
	}
	if got := m.GroupSize("g1"); got != 1 {
		t.Errorf("GroupSize(g1) = %d, want 1", got)
	}
}

func TestAddEntityDeduplicates(t *testing.T) {
	m, _ := newTestManager(DefaultOptions())
	ctx := context.Background()

	size, err := m.AddEntity(ctx, "Q1", false, "g1")
	if err != nil || size != 1 {
		t.Fatalf("first add = (%d, %v), want (1, nil)", size, err)
	}
	size, err = m.AddEntity(ctx, "Q1", false, "g1")
	if err != nil || size != 1 {
		t.Errorf("second add = (%d, %v), want (1, nil)", size, err)
	}
	if got := m.QueueSize(domain.KindItem); got != 1 {
		t.Errorf("item queue size = %d, want 1", got)
	}
}

func TestAddEntityInvalid(t *testing.T) {
	m, _ := newTestManager(DefaultOptions())

	for _, id := range []string{"", "Q", "Q01", "X9", "L7-F", "Q1-F1"} {
		if _, err := m.AddEntity(context.Background(), id, false, ""); !errors.Is(err, domain.ErrInvalidIdentifier) {
			t.Errorf("AddEntity(%q) error = %v, want ErrInvalidIdentifier", id, err)
		}
	}
}

func TestAddEntityFormsCollapseToLexeme(t *testing.T) {
	// The scenario from the batching contract: verbatim strings in the
	// group, canonical roots in the queue.
	m, _ := newTestManager(DefaultOptions())
	ctx := context.Background()
	m.NewGroup("g1")

	size, _ := m.AddEntity(ctx, "Q1", false, "")
	if size != 1 || m.QueueSize(domain.KindItem) != 1 {
		t.Fatalf("after Q1: group %d queue %d, want 1/1", size, m.QueueSize(domain.KindItem))
	}
	size, _ = m.AddEntity(ctx, "Q1", false, "")
	if size != 1 || m.QueueSize(domain.KindItem) != 1 {
		t.Fatalf("after Q1 again: group %d queue %d, want 1/1", size, m.QueueSize(domain.KindItem))
	}
	size, _ = m.AddEntity(ctx, "L77-F2", false, "")
	if size != 2 || m.QueueSize(domain.KindLexeme) != 1 {
		t.Fatalf("after L77-F2: group %d lexeme queue %d, want 2/1", size, m.QueueSize(domain.KindLexeme))
	}
	size, _ = m.AddEntity(ctx, "L77-S3", false, "")
	if size != 3 || m.QueueSize(domain.KindLexeme) != 1 {
		t.Fatalf("after L77-S3: group %d lexeme queue %d, want 3/1 (same root L77)", size, m.QueueSize(domain.KindLexeme))
	}
}

func TestAddIDsDeduplicates(t *testing.T) {
	m, _ := newTestManager(DefaultOptions())

	size, err := m.AddIDs(context.Background(), []int{1, 2, 2, 3, 1}, domain.KindItem, "g1")
	if err != nil {
		t.Fatalf("AddIDs: %v", err)
	}
	if size != 3 {
		t.Errorf("group size = %d, want 3", size)
	}
	if got := m.QueueSize(domain.KindItem); got != 3 {
		t.Errorf("item queue size = %d, want 3", got)
	}
}

func TestAddIDsEmptyReportsGroupSize(t *testing.T) {
	m, _ := newTestManager(DefaultOptions())
	ctx := context.Background()

	if _, err := m.AddEntity(ctx, "Q1", false, "g1"); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}

	size, err := m.AddIDs(ctx, nil, domain.KindItem, "g1")
	if err != nil {
		t.Fatalf("AddIDs: %v", err)
	}
	if size != 1 {
		t.Errorf("group size = %d, want 1 (existing contents)", size)
	}

	// An empty add into a fresh named group still selects it.
	size, err = m.AddIDs(ctx, nil, domain.KindItem, "g2")
	if err != nil {
		t.Fatalf("AddIDs: %v", err)
	}
	if size != 0 {
		t.Errorf("group size = %d, want 0", size)
	}
	if got := m.GroupSize(""); got != 0 {
		t.Errorf("current group size = %d, want 0 (g2 selected)", got)
	}
}

func TestAddIDsRejectsSelectorKinds(t *testing.T) {
	m, _ := newTestManager(DefaultOptions())

	if _, err := m.AddIDs(context.Background(), []int{1}, domain.KindAny, ""); !errors.Is(err, domain.ErrInvalidKind) {
		t.Errorf("AddIDs(any) error = %v, want ErrInvalidKind", err)
	}
	if _, err := m.AddIDs(context.Background(), []int{1}, domain.KindUnknown, ""); !errors.Is(err, domain.ErrInvalidKind) {
		t.Errorf("AddIDs(unknown) error = %v, want ErrInvalidKind", err)
	}
}

func TestAdmissionPolicyFreshDataSkipsQueue(t *testing.T) {
	m, _ := newTestManager(DefaultOptions(),
		WithFreshnessStore(staleStore{at: time.Now()}))
	ctx := context.Background()

	if _, err := m.AddEntity(ctx, "Q1", false, ""); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	if got := m.QueueSize(domain.KindItem); got != 0 {
		t.Errorf("fresh entity queued: queue size = %d, want 0", got)
	}

	// force bypasses the policy.
	if _, err := m.AddEntity(ctx, "Q2", true, ""); err != nil {
		t.Fatalf("AddEntity force: %v", err)
	}
	if got := m.QueueSize(domain.KindItem); got != 1 {
		t.Errorf("forced entity not queued: queue size = %d, want 1", got)
	}
}

func TestAdmissionPolicyStaleRefetches(t *testing.T) {
	opts := DefaultOptions()
	opts.StalenessThreshold = time.Hour
	m, _ := newTestManager(opts,
		WithFreshnessStore(staleStore{at: time.Now().Add(-2 * time.Hour)}))

	if _, err := m.AddEntity(context.Background(), "Q1", false, ""); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	if got := m.QueueSize(domain.KindItem); got != 1 {
		t.Errorf("stale entity not queued: queue size = %d, want 1", got)
	}
}

func TestAdmissionPolicyInteractiveDefersToPrompt(t *testing.T) {
	opts := DefaultOptions()
	opts.StalenessThreshold = time.Hour
	opts.Interactive = true
	// Default prompt declines, so stale-but-known stays out of the queue.
	m, _ := newTestManager(opts,
		WithFreshnessStore(staleStore{at: time.Now().Add(-2 * time.Hour)}))

	if _, err := m.AddEntity(context.Background(), "Q1", false, ""); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	if got := m.QueueSize(domain.KindItem); got != 0 {
		t.Errorf("declined entity queued: queue size = %d, want 0", got)
	}
}

func TestAutoFlushAtThreshold(t *testing.T) {
	opts := DefaultOptions()
	opts.BatchThreshold = 2
	m, courier := newTestManager(opts)
	ctx := context.Background()

	if _, err := m.AddEntity(ctx, "Q1", false, ""); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	if len(courier.calls) != 0 {
		t.Fatal("flush triggered below threshold")
	}
	if _, err := m.AddEntity(ctx, "Q2", false, ""); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	if len(courier.calls) != 1 {
		t.Fatalf("flush not triggered at threshold: %d calls", len(courier.calls))
	}
	if got := courier.calls[0]; len(got) != 2 || got[0] != "Q1" || got[1] != "Q2" {
		t.Errorf("flushed batch = %v, want [Q1 Q2]", got)
	}
	if got := m.QueueSize(domain.KindItem); got != 0 {
		t.Errorf("queue size after flush = %d, want 0", got)
	}
}

func TestTouchPromotion(t *testing.T) {
	opts := DefaultOptions()
	opts.CandidatesThreshold = 3
	m, _ := newTestManager(opts)

	// threshold-1 touches never change queue state.
	for i := 0; i < 2; i++ {
		if !m.TouchEntity("Q5") {
			t.Fatalf("touch %d returned false", i+1)
		}
		if m.QueueSize(domain.KindItem) != 0 {
			t.Fatalf("touch %d changed public queue size", i+1)
		}
	}

	// The threshold-th touch promotes into the extra queue, which stays
	// invisible to QueueSize.
	if !m.TouchEntity("Q5") {
		t.Fatal("promoting touch returned false")
	}
	if m.QueueSize(domain.KindItem) != 0 {
		t.Error("extra queue counted in public queue size")
	}

	// Once queued, further touches do not increment.
	if m.TouchEntity("Q5") {
		t.Error("touch after promotion returned true")
	}

	// The promoted candidate is flushed with the rest of the kind.
	sent, err := m.Flush(context.Background(), domain.KindItem)
	if err != nil || !sent {
		t.Fatalf("Flush = (%v, %v), want (true, nil)", sent, err)
	}
}

func TestTouchQueuedEntityNotCounted(t *testing.T) {
	m, _ := newTestManager(DefaultOptions())

	if _, err := m.AddEntity(context.Background(), "Q1", false, ""); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	if m.TouchEntity("Q1") {
		t.Error("touch on queued entity returned true")
	}
}

func TestTouchEntityInvalid(t *testing.T) {
	if m, _ := newTestManager(DefaultOptions()); m.TouchEntity("Q01") {
		t.Error("touch on invalid identifier returned true")
	}
}

func TestTouchFormCountsTowardLexemeRoot(t *testing.T) {
	opts := DefaultOptions()
	opts.CandidatesThreshold = 2
	m, courier := newTestManager(opts)

	if !m.TouchEntity("L77-F2") {
		t.Fatal("first touch returned false")
	}
	if !m.TouchEntity("L77-S3") {
		t.Fatal("second touch returned false")
	}

	sent, err := m.Flush(context.Background(), domain.KindLexeme)
	if err != nil || !sent {
		t.Fatalf("Flush = (%v, %v), want (true, nil)", sent, err)
	}
	if got := courier.calls[0]; len(got) != 1 || got[0] != "L77" {
		t.Errorf("flushed batch = %v, want [L77]", got)
	}
}

func TestTouchIDs(t *testing.T) {
	opts := DefaultOptions()
	opts.CandidatesThreshold = 10
	m, _ := newTestManager(opts)

	count, err := m.TouchIDs([]int{1, 2, 3}, domain.KindProperty)
	if err != nil {
		t.Fatalf("TouchIDs: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	if _, err := m.TouchIDs([]int{1}, domain.KindAny); !errors.Is(err, domain.ErrInvalidKind) {
		t.Errorf("TouchIDs(any) error = %v, want ErrInvalidKind", err)
	}
}

func TestFlushEmptyQueue(t *testing.T) {
	m, courier := newTestManager(DefaultOptions())

	sent, err := m.Flush(context.Background(), domain.KindItem)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if sent {
		t.Error("Flush on empty queue reported something sent")
	}
	if len(courier.calls) != 0 {
		t.Error("Flush on empty queue issued a call")
	}
}

func TestFlushDrainsAndReturnsTrue(t *testing.T) {
	m, courier := newTestManager(DefaultOptions())
	ctx := context.Background()

	if _, err := m.AddIDs(ctx, []int{1, 2, 3}, domain.KindLexeme, ""); err != nil {
		t.Fatalf("AddIDs: %v", err)
	}
	sent, err := m.Flush(ctx, domain.KindLexeme)
	if err != nil || !sent {
		t.Fatalf("Flush = (%v, %v), want (true, nil)", sent, err)
	}
	if got := m.QueueSize(domain.KindLexeme); got != 0 {
		t.Errorf("queue size after flush = %d, want 0", got)
	}
	if courier.kinds[0] != domain.KindLexeme {
		t.Errorf("courier kind = %v, want lexeme", courier.kinds[0])
	}
}

func TestFlushAnyRoundRobin(t *testing.T) {
	m, courier := newTestManager(DefaultOptions())
	ctx := context.Background()

	for _, id := range []string{"Q1", "P1", "E1"} {
		if _, err := m.AddEntity(ctx, id, false, ""); err != nil {
			t.Fatalf("AddEntity(%s): %v", id, err)
		}
	}

	// Each call flushes exactly one kind, the next non-empty in cyclic
	// order; three calls drain all three kinds.
	for i := 0; i < 3; i++ {
		sent, err := m.Flush(ctx, domain.KindAny)
		if err != nil || !sent {
			t.Fatalf("Flush(any) #%d = (%v, %v), want (true, nil)", i+1, sent, err)
		}
		if len(courier.calls) != i+1 {
			t.Fatalf("Flush(any) #%d issued %d calls, want %d", i+1, len(courier.calls), i+1)
		}
		if len(courier.calls[i]) != 1 {
			t.Fatalf("Flush(any) #%d sent %v, want a single kind's queue", i+1, courier.calls[i])
		}
	}
	if got := m.QueueSize(domain.KindAny); got != 0 {
		t.Errorf("total queue size = %d, want 0", got)
	}
	if courier.kinds[0] != domain.KindItem || courier.kinds[1] != domain.KindProperty || courier.kinds[2] != domain.KindEntitySchema {
		t.Errorf("flush order = %v, want item, property, entity_schema", courier.kinds)
	}

	sent, err := m.Flush(ctx, domain.KindAny)
	if err != nil || sent {
		t.Errorf("Flush(any) on drained queues = (%v, %v), want (false, nil)", sent, err)
	}
}

func TestFlushRejectsUnknownKind(t *testing.T) {
	m, _ := newTestManager(DefaultOptions())

	if _, err := m.Flush(context.Background(), domain.KindUnknown); !errors.Is(err, domain.ErrInvalidKind) {
		t.Errorf("Flush(unknown) error = %v, want ErrInvalidKind", err)
	}
}

func TestFlushFailureKeepsQueue(t *testing.T) {
	m, courier := newTestManager(DefaultOptions())
	courier.err = errors.New("service melted")
	ctx := context.Background()

	if _, err := m.AddEntity(ctx, "Q1", false, ""); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	sent, err := m.Flush(ctx, domain.KindItem)
	if err == nil || sent {
		t.Fatalf("Flush = (%v, %v), want failure", sent, err)
	}
	if got := m.QueueSize(domain.KindItem); got != 1 {
		t.Errorf("queue size after failed flush = %d, want 1 (identifiers kept)", got)
	}
}

func TestFlushHonorsBatchThreshold(t *testing.T) {
	opts := DefaultOptions()
	opts.BatchThreshold = 100 // avoid auto-flush during setup
	m, courier := newTestManager(opts)
	ctx := context.Background()

	ids := make([]int, 60)
	for i := range ids {
		ids[i] = i + 1
	}
	if _, err := m.AddIDs(ctx, ids, domain.KindItem, ""); err != nil {
		t.Fatalf("AddIDs: %v", err)
	}

	m.opts.BatchThreshold = 50
	if _, err := m.Flush(ctx, domain.KindItem); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := len(courier.calls[0]); got != 50 {
		t.Errorf("flushed %d identifiers, want 50", got)
	}
	if got := m.QueueSize(domain.KindItem); got != 10 {
		t.Errorf("queue size after partial flush = %d, want 10", got)
	}
}

func TestFlushDeliversPayloadToSink(t *testing.T) {
	sink := &recordingSink{}
	m, courier := newTestManager(DefaultOptions(), WithResultSink(sink))
	courier.payload = map[string]any{"entities": map[string]any{"Q1": map[string]any{}}}
	ctx := context.Background()

	if _, err := m.AddEntity(ctx, "Q1", false, ""); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}
	if _, err := m.Flush(ctx, domain.KindItem); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(sink.payloads) != 1 {
		t.Fatalf("sink saw %d payloads, want 1", len(sink.payloads))
	}
	if _, ok := sink.payloads[0]["entities"]; !ok {
		t.Error("payload not delivered to sink")
	}
	if sink.kinds[0] != domain.KindItem || len(sink.sent[0]) != 1 {
		t.Errorf("sink metadata = (%v, %v)", sink.kinds[0], sink.sent[0])
	}
}
