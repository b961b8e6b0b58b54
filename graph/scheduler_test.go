//go:build cgo

package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docmindhq/docmind/store"
)

type fakeExtractor struct {
	fail  bool
	calls int
}

func (f *fakeExtractor) ExtractDocument(ctx context.Context, doc store.Document) (*ExtractionResult, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("extraction blew up")
	}
	return &ExtractionResult{}, nil
}

type fakeIngestor struct {
	fail  bool
	calls int
}

func (f *fakeIngestor) IngestDocument(ctx context.Context, docID int64) error {
	f.calls++
	if f.fail {
		return errors.New("ingestion blew up")
	}
	return nil
}

type fakeStructured struct {
	projects []string
	vendors  []string
	agencies []string
	err      error
	calls    int
}

func (f *fakeStructured) Projects(ctx context.Context) ([]string, error) {
	f.calls++
	return f.projects, f.err
}

func (f *fakeStructured) Vendors(ctx context.Context) ([]string, error) {
	return f.vendors, f.err
}

func (f *fakeStructured) Agencies(ctx context.Context) ([]string, error) {
	return f.agencies, f.err
}

func fastConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:         time.Hour, // ticks never fire during tests
		BatchSize:        20,
		FailureThreshold: 3,
		CommitEvery:      2,
		FastPace:         time.Millisecond,
		SlowPace:         time.Millisecond,
		ProbeTimeout:     time.Millisecond,
	}
}

func newTestScheduler(t *testing.T, s *store.Store, ex DocumentExtractor, in DocumentIngestor, src StructuredSource) *Scheduler {
	t.Helper()
	return NewScheduler(s, ex, in, NewCanonicalizer(s, 0.6), src, &fakeChat{}, fastConfig())
}

func insertDocs(t *testing.T, s *store.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := s.InsertDocument(context.Background(), store.Document{
			Number: "SCH", Subject: "scheduler test doc",
		}); err != nil {
			t.Fatalf("inserting: %v", err)
		}
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := newTestStore(t)
	sc := newTestScheduler(t, s, &fakeExtractor{}, &fakeIngestor{}, nil)

	if err := sc.Stop(); !errors.Is(err, ErrSchedulerStopped) {
		t.Fatalf("stopping a stopped scheduler: got %v", err)
	}

	if err := sc.Start(); err != nil {
		t.Fatalf("starting: %v", err)
	}
	if err := sc.Start(); !errors.Is(err, ErrSchedulerRunning) {
		t.Fatalf("double start: got %v", err)
	}

	status := sc.Status()
	if !status.Running {
		t.Error("expected running status")
	}

	if err := sc.Stop(); err != nil {
		t.Fatalf("stopping: %v", err)
	}
	if sc.Status().Running {
		t.Error("expected stopped status")
	}

	// Restart is allowed.
	if err := sc.Start(); err != nil {
		t.Fatalf("restarting: %v", err)
	}
	if err := sc.Stop(); err != nil {
		t.Fatalf("stopping again: %v", err)
	}
}

func TestSchedulerProcessBatch(t *testing.T) {
	s := newTestStore(t)
	insertDocs(t, s, 4)

	ex := &fakeExtractor{}
	in := &fakeIngestor{}
	sc := newTestScheduler(t, s, ex, in, nil)

	sc.processBatch(context.Background())

	if ex.calls != 4 {
		t.Errorf("extractor calls: got %d, want 4", ex.calls)
	}
	if in.calls != 4 {
		t.Errorf("ingestor calls: got %d, want 4", in.calls)
	}

	stats := sc.Status().LastBatch
	if stats.Succeeded != 4 || stats.Failed != 0 {
		t.Errorf("stats: %+v", stats)
	}

	// All documents are now in the extracted set.
	docs, err := s.ListUnextractedDocuments(context.Background(), 10)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no unextracted docs, got %d", len(docs))
	}
}

func TestSchedulerCircuitBreaker(t *testing.T) {
	s := newTestStore(t)
	insertDocs(t, s, 10)

	ex := &fakeExtractor{fail: true}
	sc := newTestScheduler(t, s, ex, &fakeIngestor{}, nil)

	sc.processBatch(context.Background())

	// Threshold is 3: the loop must stop after exactly 3 attempts, not
	// work through all 10 documents.
	if ex.calls != 3 {
		t.Errorf("extractor calls: got %d, want 3 (failure threshold)", ex.calls)
	}

	stats := sc.Status().LastBatch
	if !stats.CircuitBroken {
		t.Error("expected circuit_broken in batch stats")
	}
	if stats.Failed != 3 {
		t.Errorf("failed count: got %d, want 3", stats.Failed)
	}

	// Nothing was marked extracted.
	docs, err := s.ListUnextractedDocuments(context.Background(), 20)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(docs) != 10 {
		t.Errorf("expected all 10 docs still unextracted, got %d", len(docs))
	}
}

func TestSchedulerIngestionFailureDoesNotCount(t *testing.T) {
	s := newTestStore(t)
	insertDocs(t, s, 3)

	ex := &fakeExtractor{}
	in := &fakeIngestor{fail: true}
	sc := newTestScheduler(t, s, ex, in, nil)

	sc.processBatch(context.Background())

	stats := sc.Status().LastBatch
	if stats.Succeeded != 3 {
		t.Errorf("succeeded: got %d, want 3", stats.Succeeded)
	}
	if stats.Ingested != 0 {
		t.Errorf("ingested: got %d, want 0", stats.Ingested)
	}
	if stats.Failed != 0 {
		t.Errorf("ingestion failures must not count as extraction failures, failed=%d", stats.Failed)
	}
	if stats.CircuitBroken {
		t.Error("circuit must not open on ingestion failures")
	}
}

func TestSchedulerRegistersStructuredEntitiesOnce(t *testing.T) {
	s := newTestStore(t)
	src := &fakeStructured{
		projects: []string{"harbor upgrade"},
		vendors:  []string{"acme corp"},
		agencies: []string{"city planning office"},
	}
	sc := newTestScheduler(t, s, &fakeExtractor{}, &fakeIngestor{}, src)

	ctx := context.Background()
	sc.registerStructuredEntities(ctx)

	count, err := s.CountEntities(ctx)
	if err != nil {
		t.Fatalf("counting: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 registered entities, got %d", count)
	}
	if !sc.Status().StructuredRegistered {
		t.Error("expected structured_registered true")
	}

	// Restarting twice with entities present: registration is skipped and
	// no duplicate nodes appear.
	for i := 0; i < 2; i++ {
		sc2 := newTestScheduler(t, s, &fakeExtractor{}, &fakeIngestor{}, src)
		sc2.registerStructuredEntities(ctx)
		count, err = s.CountEntities(ctx)
		if err != nil {
			t.Fatalf("counting: %v", err)
		}
		if count != 3 {
			t.Fatalf("restart %d created duplicates: %d entities", i+1, count)
		}
	}
}

func TestSchedulerStructuredSourceFailureRetries(t *testing.T) {
	s := newTestStore(t)
	src := &fakeStructured{err: errors.New("crud service down")}
	sc := newTestScheduler(t, s, &fakeExtractor{}, &fakeIngestor{}, src)

	ctx := context.Background()
	sc.registerStructuredEntities(ctx)
	if sc.Status().StructuredRegistered {
		t.Fatal("registration must not be marked done after a source failure")
	}

	// Next tick retries and succeeds.
	src.err = nil
	src.projects = []string{"harbor upgrade"}
	sc.registerStructuredEntities(ctx)
	if !sc.Status().StructuredRegistered {
		t.Fatal("expected registration to succeed on retry")
	}
}

func TestSchedulerStopMidBatch(t *testing.T) {
	s := newTestStore(t)
	insertDocs(t, s, 5)

	ctx, cancel := context.WithCancel(context.Background())
	ex := &fakeExtractor{}
	sc := newTestScheduler(t, s, ex, &fakeIngestor{}, nil)

	// Cancel before processing: the loop observes the signal at the first
	// between-documents check and halts without touching any document.
	cancel()
	sc.processBatch(ctx)

	if ex.calls != 0 {
		t.Errorf("expected no extraction after cancellation, got %d calls", ex.calls)
	}
}
