package graph

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/docmindhq/docmind/llm"
	"github.com/docmindhq/docmind/store"
)

var (
	// ErrSchedulerRunning is returned when starting an already running scheduler.
	ErrSchedulerRunning = errors.New("graph: extraction scheduler already running")

	// ErrSchedulerStopped is returned when stopping a scheduler that is not running.
	ErrSchedulerStopped = errors.New("graph: extraction scheduler not running")
)

// DocumentExtractor runs NER over one document. Implemented by Extractor.
type DocumentExtractor interface {
	ExtractDocument(ctx context.Context, doc store.Document) (*ExtractionResult, error)
}

// DocumentIngestor commits one document's extraction into the graph.
// Implemented by Ingestor.
type DocumentIngestor interface {
	IngestDocument(ctx context.Context, docID int64) error
}

// StructuredSource supplies entity names already known to the CRUD domain,
// registered into the graph once per install so search tools can find them
// before any document mentions them.
type StructuredSource interface {
	Projects(ctx context.Context) ([]string, error)
	Vendors(ctx context.Context) ([]string, error)
	Agencies(ctx context.Context) ([]string, error)
}

// BatchStats summarises the most recent processing batch.
type BatchStats struct {
	Fetched       int       `json:"fetched"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	Ingested      int       `json:"ingested"`
	CircuitBroken bool      `json:"circuit_broken"`
	FinishedAt    time.Time `json:"finished_at"`
}

// SchedulerStatus is the snapshot returned by Status and the control API.
type SchedulerStatus struct {
	Running              bool       `json:"running"`
	Interval             string     `json:"interval"`
	StructuredRegistered bool       `json:"structured_registered"`
	ConsecutiveFailures  int        `json:"consecutive_failures"`
	LastBatch            BatchStats `json:"last_batch"`
}

// runState holds the scheduler's per-run mutable state. It belongs to one
// Scheduler instance and is reset on every Start.
type runState struct {
	structuredRegistered bool
	consecutiveFailures  int
	lastBatch            BatchStats
}

// SchedulerConfig holds the scheduler's tunables.
type SchedulerConfig struct {
	Interval         time.Duration // wait between scans
	BatchSize        int           // max documents fetched per scan
	FailureThreshold int           // consecutive failures before the circuit opens
	CommitEvery      int           // documents between extracted-set commits
	FastPace         time.Duration // per-document delay when the local model responds
	SlowPace         time.Duration // per-document delay when falling back to remote
	ProbeTimeout     time.Duration // bound on the local-model reachability probe
}

// Scheduler is the long-lived background extraction loop. It moves between
// exactly two states, Stopped and Running; while Running it alternates
// waiting and batch processing.
type Scheduler struct {
	store      *store.Store
	extractor  DocumentExtractor
	ingestor   DocumentIngestor
	canonical  *Canonicalizer
	structured StructuredSource
	chat       llm.Provider
	cfg        SchedulerConfig

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	state   runState
}

// NewScheduler creates a Scheduler. structured may be nil, in which case
// the one-time registration step is skipped.
func NewScheduler(s *store.Store, extractor DocumentExtractor, ingestor DocumentIngestor,
	canonical *Canonicalizer, structured StructuredSource, chat llm.Provider, cfg SchedulerConfig) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CommitEvery <= 0 {
		cfg.CommitEvery = 5
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.FastPace <= 0 {
		cfg.FastPace = 500 * time.Millisecond
	}
	if cfg.SlowPace <= 0 {
		cfg.SlowPace = 3 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 2 * time.Second
	}
	return &Scheduler{
		store:      s,
		extractor:  extractor,
		ingestor:   ingestor,
		canonical:  canonical,
		structured: structured,
		chat:       chat,
		cfg:        cfg,
	}
}

// Start moves the scheduler into Running and launches the scan loop.
// Returns ErrSchedulerRunning when already running.
func (sc *Scheduler) Start() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.running {
		return ErrSchedulerRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	sc.cancel = cancel
	sc.done = make(chan struct{})
	sc.running = true
	sc.state = runState{}

	slog.Info("scheduler: starting",
		"interval", sc.cfg.Interval, "batch_size", sc.cfg.BatchSize)

	go sc.run(ctx)
	return nil
}

// Stop signals the loop to halt and waits for it to finish. In-flight
// per-document work is not aborted; the loop checks the signal between
// documents. Returns ErrSchedulerStopped when not running.
func (sc *Scheduler) Stop() error {
	sc.mu.Lock()
	if !sc.running {
		sc.mu.Unlock()
		return ErrSchedulerStopped
	}
	cancel := sc.cancel
	done := sc.done
	sc.mu.Unlock()

	cancel()
	<-done

	sc.mu.Lock()
	sc.running = false
	sc.mu.Unlock()

	slog.Info("scheduler: stopped")
	return nil
}

// Status returns a snapshot of the scheduler state.
func (sc *Scheduler) Status() SchedulerStatus {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return SchedulerStatus{
		Running:              sc.running,
		Interval:             sc.cfg.Interval.String(),
		StructuredRegistered: sc.state.structuredRegistered,
		ConsecutiveFailures:  sc.state.consecutiveFailures,
		LastBatch:            sc.state.lastBatch,
	}
}

// run is the scan loop: process one batch immediately, then on every tick.
func (sc *Scheduler) run(ctx context.Context) {
	defer close(sc.done)

	sc.registerStructuredEntities(ctx)
	sc.processBatch(ctx)

	ticker := time.NewTicker(sc.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !sc.structuredDone() {
				sc.registerStructuredEntities(ctx)
			}
			sc.processBatch(ctx)
		}
	}
}

func (sc *Scheduler) structuredDone() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.state.structuredRegistered
}

// registerStructuredEntities seeds the graph with CRUD-domain names once.
// Skipped entirely when canonical entities already exist (a restart after
// a previous successful run); a failure is logged and retried on the next
// tick, never within the same call.
func (sc *Scheduler) registerStructuredEntities(ctx context.Context) {
	if sc.structured == nil {
		sc.setStructuredRegistered(true)
		return
	}

	count, err := sc.store.CountEntities(ctx)
	if err != nil {
		slog.Warn("scheduler: counting entities failed, deferring registration", "error", err)
		return
	}
	if count > 0 {
		slog.Debug("scheduler: canonical entities already present, skipping registration", "count", count)
		sc.setStructuredRegistered(true)
		return
	}

	sources := []struct {
		fetch      func(context.Context) ([]string, error)
		entityType string
		label      string
	}{
		{sc.structured.Projects, EntityProject, "projects"},
		{sc.structured.Vendors, EntityOrg, "vendors"},
		{sc.structured.Agencies, EntityOrg, "agencies"},
	}

	registered := 0
	for _, src := range sources {
		names, err := src.fetch(ctx)
		if err != nil {
			slog.Warn("scheduler: structured source failed, will retry next tick",
				"source", src.label, "error", err)
			return
		}
		for _, name := range names {
			if _, err := sc.canonical.Resolve(ctx, name, src.entityType); err != nil {
				slog.Warn("scheduler: registering structured entity failed",
					"name", name, "type", src.entityType, "error", err)
				continue
			}
			registered++
		}
	}

	slog.Info("scheduler: structured entities registered", "count", registered)
	sc.setStructuredRegistered(true)
}

func (sc *Scheduler) setStructuredRegistered(v bool) {
	sc.mu.Lock()
	sc.state.structuredRegistered = v
	sc.mu.Unlock()
}

// processBatch fetches unextracted documents and works through them in
// order, committing progress periodically. A run of consecutive failures
// opens the circuit and abandons the rest of the batch.
func (sc *Scheduler) processBatch(ctx context.Context) {
	pace := sc.choosePace(ctx)

	docs, err := sc.store.ListUnextractedDocuments(ctx, sc.cfg.BatchSize)
	if err != nil {
		slog.Warn("scheduler: fetching batch failed", "error", err)
		return
	}
	if len(docs) == 0 {
		return
	}

	slog.Info("scheduler: processing batch", "documents", len(docs), "pace", pace)

	stats := BatchStats{Fetched: len(docs)}
	var pending []int64

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := sc.store.MarkExtractedBatch(ctx, pending); err != nil {
			// The transaction rolled back; keep ids pending for a later flush.
			slog.Warn("scheduler: commit failed, rolled back", "documents", len(pending), "error", err)
			return
		}
		pending = pending[:0]
	}

	for i, doc := range docs {
		select {
		case <-ctx.Done():
			slog.Info("scheduler: stop observed mid-batch", "processed", i)
			flush()
			sc.finishBatch(stats)
			return
		default:
		}

		if _, err := sc.extractor.ExtractDocument(ctx, doc); err != nil {
			stats.Failed++
			slog.Warn("scheduler: extraction failed",
				"document_id", doc.ID, "number", doc.Number, "error", err)

			sc.mu.Lock()
			sc.state.consecutiveFailures++
			failures := sc.state.consecutiveFailures
			sc.mu.Unlock()

			if failures >= sc.cfg.FailureThreshold {
				stats.CircuitBroken = true
				slog.Warn("scheduler: circuit breaker open, abandoning batch",
					"consecutive_failures", failures, "remaining", len(docs)-i-1)
				break
			}
			continue
		}

		stats.Succeeded++
		pending = append(pending, doc.ID)

		sc.mu.Lock()
		sc.state.consecutiveFailures = 0
		sc.mu.Unlock()

		// Ingestion failure is logged but never counted as an extraction
		// failure; the payload stays in document_extractions for a later
		// manual or scripted replay.
		if err := sc.ingestor.IngestDocument(ctx, doc.ID); err != nil {
			slog.Warn("scheduler: ingestion failed", "document_id", doc.ID, "error", err)
		} else {
			stats.Ingested++
		}

		if len(pending) >= sc.cfg.CommitEvery {
			flush()
		}

		if i < len(docs)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(pace):
			}
		}
	}

	flush()
	sc.finishBatch(stats)
}

func (sc *Scheduler) finishBatch(stats BatchStats) {
	stats.FinishedAt = time.Now()
	sc.mu.Lock()
	sc.state.lastBatch = stats
	sc.mu.Unlock()
	slog.Info("scheduler: batch finished",
		"fetched", stats.Fetched, "succeeded", stats.Succeeded,
		"failed", stats.Failed, "ingested", stats.Ingested,
		"circuit_broken", stats.CircuitBroken)
}

// choosePace probes the chat backend and picks the per-document delay:
// fast when a reachable local model will absorb the load, slow when the
// work is going to a rate-limited remote backend.
func (sc *Scheduler) choosePace(ctx context.Context) time.Duration {
	pinger, ok := sc.chat.(llm.Pinger)
	if !ok {
		return sc.cfg.SlowPace
	}

	probeCtx, cancel := context.WithTimeout(ctx, sc.cfg.ProbeTimeout)
	defer cancel()

	if err := pinger.Ping(probeCtx); err != nil {
		slog.Debug("scheduler: local model unreachable, slow pacing", "error", err)
		return sc.cfg.SlowPace
	}
	return sc.cfg.FastPace
}
