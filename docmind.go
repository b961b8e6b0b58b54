// Package docmind is a retrieval-augmented question answering core for a
// document management backend. It answers natural-language questions over a
// register of official documents using hybrid vector+keyword retrieval, and
// runs a background pipeline that extracts a canonical entity graph from the
// same documents.
package docmind

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/docmindhq/docmind/agent"
	"github.com/docmindhq/docmind/graph"
	"github.com/docmindhq/docmind/llm"
	"github.com/docmindhq/docmind/parser"
	"github.com/docmindhq/docmind/retrieval"
	"github.com/docmindhq/docmind/store"
)

// Fixed degraded-answer texts. Queries always produce a well-formed Answer;
// these stand in when a pipeline stage fails.
const (
	noVectorAnswer = "I could not build a query vector for this question. " +
		"Check that the embedding backend is reachable and try again."
	noResultsAnswer = "I found 0 relevant documents for this question. " +
		"Try rephrasing it or adding a document number, sender, or subject keyword."
	degradedAnswer = "I found relevant documents but could not generate an answer from them. " +
		"The sources are listed below; please try again."

	// modelNone marks answers that never reached a chat model.
	modelNone = "none"

	// maxCandidates caps the hybrid candidate fetch regardless of top_k.
	maxCandidates = 20
)

const ragSystemPrompt = `You are an assistant for a document management system.
Answer the question using only the numbered sources provided.
Cite sources by number, e.g. [Source 1]. If the sources do not contain the
answer, say so plainly. Answer directly without narrating your reasoning.`

// Service is the main entry point for the docmind core.
type Service interface {
	// Query answers a question over the document register.
	Query(ctx context.Context, question string, opts ...QueryOption) (*Answer, error)

	// StreamQuery is Query with incremental delivery: a sources event first,
	// one token event per generated text chunk, then a terminal done event.
	StreamQuery(ctx context.Context, question string, emit func(Event) error, opts ...QueryOption) error

	// AgentAnswer runs the named tools against the question and synthesizes
	// an answer from their combined results. An empty tool list defaults to
	// document search.
	AgentAnswer(ctx context.Context, question string, tools []string,
		history []llm.Message, emit func(chunk string) error) error

	// RunTool executes one agent tool. Failures come back as an ErrorResult,
	// never an error.
	RunTool(ctx context.Context, tool, arg string) agent.ToolResult

	// AddDocument inserts a document and embeds it for retrieval. An
	// embedding failure is logged; the document is still stored.
	AddDocument(ctx context.Context, doc store.Document) (int64, error)

	// Scheduler control surface.
	StartScheduler() error
	StopScheduler() error
	SchedulerStatus() graph.SchedulerStatus

	// Stats returns database-wide counters.
	Stats(ctx context.Context) (*store.DBStats, error)

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the service.
	Close() error
}

// Answer is the result of a query.
type Answer struct {
	Text           string                  `json:"text"`
	Sources        []store.RetrievalResult `json:"sources"`
	RetrievalCount int                     `json:"retrieval_count"`
	LatencyMs      int64                   `json:"latency_ms"`
	Model          string                  `json:"model"`
}

// Event is one frame of a streaming query response.
type Event struct {
	Type      string                  `json:"type"` // sources | token | done | error
	Sources   []store.RetrievalResult `json:"sources,omitempty"`
	Token     string                  `json:"token,omitempty"`
	Message   string                  `json:"message,omitempty"`
	LatencyMs int64                   `json:"latency_ms,omitempty"`
	Model     string                  `json:"model,omitempty"`
}

// Event type discriminators.
const (
	EventSources = "sources"
	EventToken   = "token"
	EventDone    = "done"
	EventError   = "error"
)

// QueryOption configures a single query.
type QueryOption func(*queryOptions)

type queryOptions struct {
	topK      int
	threshold float64
	history   []llm.Message
}

// WithTopK overrides the configured result count for one query.
func WithTopK(n int) QueryOption {
	return func(o *queryOptions) {
		if n >= 1 {
			o.topK = n
		}
	}
}

// WithSimilarityThreshold overrides the minimum similarity for a source.
func WithSimilarityThreshold(t float64) QueryOption {
	return func(o *queryOptions) { o.threshold = t }
}

// WithHistory prepends recent conversation turns to the prompt.
func WithHistory(history []llm.Message) QueryOption {
	return func(o *queryOptions) { o.history = history }
}

// Option configures the service at construction time.
type Option func(*service)

// WithStructuredSource supplies the registry of already-known project and
// organization names the scheduler registers into the graph once.
func WithStructuredSource(src graph.StructuredSource) Option {
	return func(s *service) { s.structured = src }
}

type service struct {
	cfg        Config
	store      *store.Store
	chatLLM    llm.Provider
	embedder   *retrieval.Embedder
	synth      *agent.Synthesizer
	heuristic  agent.HeuristicConfig
	canonical  *graph.Canonicalizer
	scheduler  *graph.Scheduler
	structured graph.StructuredSource
}

// New creates a Service from config. Zero-valued fields take defaults.
func New(cfg Config, opts ...Option) (Service, error) {
	applyDefaults(&cfg)
	dbPath := cfg.resolveDBPath()

	s, err := store.New(dbPath, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	chatLLM, err := llm.NewProvider(llm.Config{
		Provider: cfg.Chat.Provider,
		Model:    cfg.Chat.Model,
		BaseURL:  cfg.Chat.BaseURL,
		APIKey:   cfg.Chat.APIKey,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}

	embedLLM, err := llm.NewProvider(llm.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	heuristic := agent.DefaultHeuristicConfig()

	svc := &service{
		cfg:       cfg,
		store:     s,
		chatLLM:   chatLLM,
		embedder:  retrieval.NewEmbedder(embedLLM, cfg.EmbeddingDim),
		synth:     agent.NewSynthesizer(chatLLM, cfg.ContextBudget, cfg.HistoryTurns, heuristic),
		heuristic: heuristic,
		canonical: graph.NewCanonicalizer(s, cfg.FuzzyThreshold),
	}
	for _, o := range opts {
		o(svc)
	}

	extractor := graph.NewExtractor(s, chatLLM, parser.NewRegistry())
	ingestor := graph.NewIngestor(s, svc.canonical)
	svc.scheduler = graph.NewScheduler(s, extractor, ingestor, svc.canonical,
		svc.structured, chatLLM, graph.SchedulerConfig{
			Interval:         time.Duration(cfg.ScanIntervalSec) * time.Second,
			BatchSize:        cfg.BatchSize,
			FailureThreshold: cfg.FailureThreshold,
			CommitEvery:      cfg.CommitEvery,
			FastPace:         time.Duration(cfg.FastPaceMs) * time.Millisecond,
			SlowPace:         time.Duration(cfg.SlowPaceMs) * time.Millisecond,
		})

	return svc, nil
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.TopK < 1 {
		cfg.TopK = def.TopK
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}
	if cfg.VectorWeight == 0 {
		cfg.VectorWeight = def.VectorWeight
	}
	if cfg.KeywordWeight == 0 {
		cfg.KeywordWeight = def.KeywordWeight
	}
	if cfg.ContextBudget == 0 {
		cfg.ContextBudget = def.ContextBudget
	}
	if cfg.HistoryTurns == 0 {
		cfg.HistoryTurns = def.HistoryTurns
	}
	if cfg.FuzzyThreshold == 0 {
		cfg.FuzzyThreshold = def.FuzzyThreshold
	}
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = def.EmbeddingDim
	}
}

func (s *service) Query(ctx context.Context, question string, opts ...QueryOption) (*Answer, error) {
	start := time.Now()
	o := s.queryOptions(opts)

	sources, err := s.retrieve(ctx, question, o.topK, o.threshold)
	if errors.Is(err, ErrEmbeddingFailed) {
		slog.Warn("query degraded: embedding failed", "error", err)
		return s.finishQuery(ctx, question, &Answer{
			Text:      noVectorAnswer,
			LatencyMs: time.Since(start).Milliseconds(),
			Model:     modelNone,
		}, nil), nil
	}
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return s.finishQuery(ctx, question, &Answer{
			Text:      noResultsAnswer,
			LatencyMs: time.Since(start).Milliseconds(),
			Model:     modelNone,
		}, nil), nil
	}

	messages := s.buildMessages(question, sources, o.history)
	resp, err := s.chatLLM.Chat(ctx, llm.ChatRequest{
		Messages:    messages,
		Temperature: 0.2,
	})
	if err != nil {
		// Retrieval succeeded; synthesis failure must not hide the sources.
		slog.Warn("query degraded: chat failed", "error", err)
		return s.finishQuery(ctx, question, &Answer{
			Text:           degradedAnswer,
			Sources:        sources,
			RetrievalCount: len(sources),
			LatencyMs:      time.Since(start).Milliseconds(),
			Model:          modelNone,
		}, nil), nil
	}

	return s.finishQuery(ctx, question, &Answer{
		Text:           agent.ExtractAnswer(s.heuristic, resp.Content),
		Sources:        sources,
		RetrievalCount: len(sources),
		LatencyMs:      time.Since(start).Milliseconds(),
		Model:          s.modelName(resp),
	}, resp), nil
}

func (s *service) StreamQuery(ctx context.Context, question string, emit func(Event) error, opts ...QueryOption) error {
	start := time.Now()
	o := s.queryOptions(opts)

	sources, err := s.retrieve(ctx, question, o.topK, o.threshold)
	if errors.Is(err, ErrEmbeddingFailed) {
		slog.Warn("stream query degraded: embedding failed", "error", err)
		return s.emitFixed(emit, noVectorAnswer, start)
	}
	if err != nil {
		if emitErr := emit(Event{Type: EventError, Message: "query failed"}); emitErr != nil {
			return emitErr
		}
		return err
	}
	if len(sources) == 0 {
		return s.emitFixed(emit, noResultsAnswer, start)
	}

	// Sources go out before any answer token so the client can render
	// citations while the model is still generating.
	if err := emit(Event{Type: EventSources, Sources: sources}); err != nil {
		return err
	}

	messages := s.buildMessages(question, sources, o.history)
	resp, err := s.chatLLM.ChatStream(ctx, llm.ChatRequest{
		Messages:    messages,
		Temperature: 0.2,
	}, func(fragment string) error {
		return emit(Event{Type: EventToken, Token: fragment})
	})
	if err != nil {
		slog.Warn("stream query degraded: synthesis failed", "error", err)
		if emitErr := emit(Event{Type: EventToken, Token: degradedAnswer}); emitErr != nil {
			return emitErr
		}
		return emit(Event{Type: EventDone, LatencyMs: time.Since(start).Milliseconds(), Model: modelNone})
	}

	s.finishQuery(ctx, question, &Answer{
		Text:           resp.Content,
		Sources:        sources,
		RetrievalCount: len(sources),
		LatencyMs:      time.Since(start).Milliseconds(),
		Model:          s.modelName(resp),
	}, resp)
	return emit(Event{Type: EventDone, LatencyMs: time.Since(start).Milliseconds(), Model: s.modelName(resp)})
}

// emitFixed sends the degraded three-frame sequence: empty sources, one
// fallback token, done.
func (s *service) emitFixed(emit func(Event) error, text string, start time.Time) error {
	if err := emit(Event{Type: EventSources, Sources: []store.RetrievalResult{}}); err != nil {
		return err
	}
	if err := emit(Event{Type: EventToken, Token: text}); err != nil {
		return err
	}
	return emit(Event{Type: EventDone, LatencyMs: time.Since(start).Milliseconds(), Model: modelNone})
}

// retrieve runs the hybrid retrieval pipeline: term extraction, one blended
// vector+keyword query, then reranking when terms exist.
func (s *service) retrieve(ctx context.Context, question string, topK int, threshold float64) ([]store.RetrievalResult, error) {
	terms := retrieval.ExtractQueryTerms(question)

	vec, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEmbeddingFailed, err)
	}

	limit := topK
	if len(terms) > 0 {
		limit = topK * 2
		if limit > maxCandidates {
			limit = maxCandidates
		}
	}

	q := store.NewDocumentQuery().
		WithEmbedding(vec, s.cfg.VectorWeight).
		Limit(limit)
	if len(terms) > 0 {
		q = q.WithTerms(terms, s.cfg.KeywordWeight)
	}

	results, err := s.store.SearchDocuments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}

	if threshold > 0 {
		kept := results[:0]
		for _, r := range results {
			// A keyword hit keeps a source even below the vector threshold.
			if r.Similarity >= threshold || r.KeywordRank > 0 {
				kept = append(kept, r)
			}
		}
		results = kept
	}

	if len(terms) > 0 && len(results) > 1 {
		results = retrieval.Rerank(results, terms, s.cfg.VectorWeight, s.cfg.KeywordWeight)
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *service) buildMessages(question string, sources []store.RetrievalResult, history []llm.Message) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: ragSystemPrompt}}

	var turns []llm.Message
	for _, m := range history {
		if m.Role == "user" || m.Role == "assistant" {
			turns = append(turns, m)
		}
	}
	if len(turns) > s.cfg.HistoryTurns {
		turns = turns[len(turns)-s.cfg.HistoryTurns:]
	}
	messages = append(messages, turns...)

	var sb strings.Builder
	sb.WriteString("SOURCES:\n")
	sb.WriteString(buildSourceContext(sources, s.cfg.ContextBudget))
	sb.WriteString("\nQUESTION: ")
	sb.WriteString(question)
	messages = append(messages, llm.Message{Role: "user", Content: sb.String()})

	return messages
}

// buildSourceContext renders ranked sources within the character budget.
// Records are appended whole; the first record that would cross the budget
// ends the context.
func buildSourceContext(sources []store.RetrievalResult, budget int) string {
	var sb strings.Builder
	for i, src := range sources {
		record := fmt.Sprintf("--- Source %d ---\n%s | %s\n%s -> %s | %s\n%s\n",
			i+1, src.Number, src.Subject, src.Sender, src.Receiver, src.DocDate, src.Note)
		if sb.Len()+len(record) > budget {
			break
		}
		sb.WriteString(record)
	}
	return sb.String()
}

// finishQuery writes the audit row and returns the answer unchanged.
func (s *service) finishQuery(ctx context.Context, question string, a *Answer, resp *llm.ChatResponse) *Answer {
	entry := store.QueryLog{
		Question:    question,
		Answer:      a.Text,
		SourceCount: a.RetrievalCount,
		ModelUsed:   a.Model,
		LatencyMs:   a.LatencyMs,
	}
	if resp != nil {
		entry.PromptTokens = resp.PromptTokens
		entry.CompletionTokens = resp.CompletionTokens
		entry.TotalTokens = resp.TotalTokens
	}
	if err := s.store.LogQuery(ctx, entry); err != nil {
		slog.Warn("writing query log", "error", err)
	}
	return a
}

func (s *service) queryOptions(opts []QueryOption) queryOptions {
	o := queryOptions{topK: s.cfg.TopK, threshold: s.cfg.SimilarityThreshold}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (s *service) modelName(resp *llm.ChatResponse) string {
	if resp != nil && resp.Model != "" {
		return resp.Model
	}
	return s.cfg.Chat.Model
}

func (s *service) AgentAnswer(ctx context.Context, question string, tools []string,
	history []llm.Message, emit func(chunk string) error) error {
	if len(tools) == 0 {
		tools = []string{agent.ToolSearchDocuments}
	}

	results := make([]agent.ToolResult, 0, len(tools))
	for _, tool := range tools {
		results = append(results, s.RunTool(ctx, tool, question))
	}
	return s.synth.SynthesizeAnswer(ctx, question, results, history, emit)
}

func (s *service) RunTool(ctx context.Context, tool, arg string) agent.ToolResult {
	switch tool {
	case agent.ToolSearchDocuments:
		sources, err := s.retrieve(ctx, arg, s.cfg.TopK, s.cfg.SimilarityThreshold)
		if err != nil {
			return agent.ErrorResult{ToolName: tool, Message: "document search failed"}
		}
		return agent.DocumentsResult{Documents: sources}

	case agent.ToolSearchDispatchOrders:
		// The dispatch register lives in the CRUD backend, which is not
		// wired into this deployable.
		return agent.ErrorResult{ToolName: tool, Message: "dispatch order register not connected"}

	case agent.ToolSearchEntities:
		entities, err := s.store.SearchEntities(ctx, arg, 10)
		if err != nil {
			return agent.ErrorResult{ToolName: tool, Message: "entity search failed"}
		}
		return agent.EntitiesResult{Entities: entities}

	case agent.ToolGetEntityDetail:
		return s.entityDetail(ctx, arg)

	case agent.ToolFindSimilarDocuments:
		return s.similarDocuments(ctx, arg)

	case agent.ToolGetStatistics:
		stats, err := s.store.Stats(ctx)
		if err != nil {
			return agent.ErrorResult{ToolName: tool, Message: "statistics unavailable"}
		}
		return agent.StatisticsResult{Stats: *stats}

	default:
		return agent.GenericResult{ToolName: tool}
	}
}

func (s *service) entityDetail(ctx context.Context, name string) agent.ToolResult {
	matches, err := s.store.SearchEntities(ctx, name, 1)
	if err != nil {
		return agent.ErrorResult{ToolName: agent.ToolGetEntityDetail, Message: "entity lookup failed"}
	}
	if len(matches) == 0 {
		return agent.ErrorResult{ToolName: agent.ToolGetEntityDetail,
			Message: fmt.Sprintf("no entity matching %q", name)}
	}
	entity := matches[0]

	docs, err := s.store.DocumentsForEntity(ctx, entity.ID, 10)
	if err != nil {
		return agent.ErrorResult{ToolName: agent.ToolGetEntityDetail, Message: "entity documents unavailable"}
	}
	rels, err := s.store.RelationsForEntity(ctx, entity.ID, 20)
	if err != nil {
		return agent.ErrorResult{ToolName: agent.ToolGetEntityDetail, Message: "entity relations unavailable"}
	}

	relations := make([]agent.RelationInfo, 0, len(rels))
	for _, r := range rels {
		relations = append(relations, agent.RelationInfo{
			SourceName: r.SourceName,
			TargetName: r.TargetName,
			Label:      r.Label,
		})
	}
	return agent.EntityDetailResult{Entity: entity, Documents: docs, Relations: relations}
}

// similarDocuments resolves arg as a document id or register number, then
// ranks other documents by vector distance to its stored embedding.
func (s *service) similarDocuments(ctx context.Context, arg string) agent.ToolResult {
	doc, err := s.lookupDocument(ctx, strings.TrimSpace(arg))
	if err != nil {
		return agent.ErrorResult{ToolName: agent.ToolFindSimilarDocuments, Message: "document lookup failed"}
	}
	if doc == nil {
		return agent.ErrorResult{ToolName: agent.ToolFindSimilarDocuments,
			Message: fmt.Sprintf("no document matching %q", arg)}
	}

	vec, err := s.store.GetDocumentEmbedding(ctx, doc.ID)
	if err != nil {
		return agent.ErrorResult{ToolName: agent.ToolFindSimilarDocuments,
			Message: fmt.Sprintf("document %s has no embedding", doc.Number)}
	}

	q := store.NewDocumentQuery().
		WithEmbedding(vec, s.cfg.VectorWeight).
		Limit(s.cfg.TopK + 1)
	results, err := s.store.SearchDocuments(ctx, q)
	if err != nil {
		return agent.ErrorResult{ToolName: agent.ToolFindSimilarDocuments, Message: "similarity search failed"}
	}

	similar := results[:0]
	for _, r := range results {
		if r.DocumentID == doc.ID {
			continue
		}
		similar = append(similar, r)
	}
	if len(similar) > s.cfg.TopK {
		similar = similar[:s.cfg.TopK]
	}
	return agent.SimilarDocumentsResult{Documents: similar}
}

func (s *service) lookupDocument(ctx context.Context, arg string) (*store.Document, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		doc, err := s.store.GetDocument(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return doc, err
	}
	return s.store.FindDocumentByNumber(ctx, arg)
}

func (s *service) AddDocument(ctx context.Context, doc store.Document) (int64, error) {
	id, err := s.store.InsertDocument(ctx, doc)
	if err != nil {
		return 0, fmt.Errorf("inserting document: %w", err)
	}

	vec, err := s.embedder.EmbedQuery(ctx, embedText(doc))
	if err != nil {
		// The document is searchable by keyword; vector search picks it up
		// once an embedding backend is available again.
		slog.Warn("embedding new document failed", "document_id", id, "error", err)
		return id, nil
	}
	if err := s.store.SetDocumentEmbedding(ctx, id, vec); err != nil {
		slog.Warn("storing document embedding failed", "document_id", id, "error", err)
	}
	return id, nil
}

// embedText composes the fields that carry retrieval signal.
func embedText(doc store.Document) string {
	parts := []string{doc.Subject, doc.Note, doc.Sender, doc.Receiver, doc.DocType, doc.Category}
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

func (s *service) StartScheduler() error                     { return s.scheduler.Start() }
func (s *service) StopScheduler() error                      { return s.scheduler.Stop() }
func (s *service) SchedulerStatus() graph.SchedulerStatus    { return s.scheduler.Status() }
func (s *service) Stats(ctx context.Context) (*store.DBStats, error) {
	return s.store.Stats(ctx)
}

func (s *service) Store() *store.Store { return s.store }

func (s *service) Close() error {
	if s.scheduler != nil {
		if err := s.scheduler.Stop(); err != nil && !errors.Is(err, ErrSchedulerStopped) {
			slog.Warn("stopping scheduler on close", "error", err)
		}
	}
	return s.store.Close()
}
