//go:build cgo

package docmind

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docmindhq/docmind/agent"
	"github.com/docmindhq/docmind/graph"
	"github.com/docmindhq/docmind/llm"
	"github.com/docmindhq/docmind/retrieval"
	"github.com/docmindhq/docmind/store"
)

const testDim = 4

type fakeLLM struct {
	reply     string
	fragments []string
	chatErr   error
	streamErr error
	embedVec  []float32
	embedErr  error
	chatCalls int
}

func (f *fakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.chatCalls++
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &llm.ChatResponse{Content: f.reply, Model: "fake-model"}, nil
}

func (f *fakeLLM) ChatStream(ctx context.Context, req llm.ChatRequest, emit func(string) error) (*llm.ChatResponse, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	var sb strings.Builder
	for _, frag := range f.fragments {
		if err := emit(frag); err != nil {
			return nil, err
		}
		sb.WriteString(frag)
	}
	return &llm.ChatResponse{Content: sb.String(), Model: "fake-model"}, nil
}

func (f *fakeLLM) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.embedVec
	}
	return out, nil
}

func newTestService(t *testing.T) (*service, *fakeLLM) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"), testDim)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	fake := &fakeLLM{
		reply:    "The budget was approved.",
		embedVec: []float32{1, 0, 0, 0},
	}
	cfg := Config{
		TopK:          2,
		VectorWeight:  1.0,
		KeywordWeight: 0.5,
		ContextBudget: 4000,
		HistoryTurns:  4,
		EmbeddingDim:  testDim,
	}
	heuristic := agent.DefaultHeuristicConfig()
	svc := &service{
		cfg:       cfg,
		store:     st,
		chatLLM:   fake,
		embedder:  retrieval.NewEmbedder(fake, testDim),
		synth:     agent.NewSynthesizer(fake, cfg.ContextBudget, cfg.HistoryTurns, heuristic),
		heuristic: heuristic,
		canonical: graph.NewCanonicalizer(st, 0.6),
	}
	return svc, fake
}

func seedDocuments(t *testing.T, svc *service) {
	t.Helper()
	ctx := context.Background()
	docs := []struct {
		doc store.Document
		vec []float32
	}{
		{store.Document{Number: "DOC-2024-001", Subject: "quarterly budget approval",
			Sender: "finance team", Receiver: "management", DocDate: "2024-03-01",
			Note: "budget approved for Q2"}, []float32{1, 0, 0, 0}},
		{store.Document{Number: "DOC-2024-002", Subject: "server maintenance notice",
			Sender: "it office", Receiver: "all staff", DocDate: "2024-03-05",
			Note: "maintenance window on saturday"}, []float32{0, 1, 0, 0}},
	}
	for _, d := range docs {
		id, err := svc.store.InsertDocument(ctx, d.doc)
		if err != nil {
			t.Fatalf("inserting document: %v", err)
		}
		if err := svc.store.SetDocumentEmbedding(ctx, id, d.vec); err != nil {
			t.Fatalf("setting embedding: %v", err)
		}
	}
}

func TestQueryNoResults(t *testing.T) {
	svc, _ := newTestService(t)

	ans, err := svc.Query(context.Background(), "anything at all")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if ans.RetrievalCount != 0 {
		t.Errorf("RetrievalCount = %d, want 0", ans.RetrievalCount)
	}
	if ans.Text != noResultsAnswer {
		t.Errorf("Text = %q, want the fixed no-results answer", ans.Text)
	}
	if ans.Model != modelNone {
		t.Errorf("Model = %q, want %q", ans.Model, modelNone)
	}
}

func TestQueryEmbeddingFailure(t *testing.T) {
	svc, fake := newTestService(t)
	fake.embedErr = errors.New("backend down")

	ans, err := svc.Query(context.Background(), "anything")
	if err != nil {
		t.Fatalf("embedding failure must degrade, not error: %v", err)
	}
	if ans.Text != noVectorAnswer || ans.Model != modelNone {
		t.Errorf("unexpected degraded answer: %+v", ans)
	}
	if len(ans.Sources) != 0 {
		t.Errorf("degraded answer should carry no sources")
	}
}

func TestQueryWithSources(t *testing.T) {
	svc, fake := newTestService(t)
	seedDocuments(t, svc)
	fake.reply = "<think>scanning sources</think>The quarterly budget was approved [Source 1]."

	ans, err := svc.Query(context.Background(), "was the quarterly budget approved?")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if ans.RetrievalCount == 0 {
		t.Fatal("expected retrieved sources")
	}
	if len(ans.Sources) > svc.cfg.TopK {
		t.Errorf("sources %d exceed top_k %d", len(ans.Sources), svc.cfg.TopK)
	}
	if ans.Sources[0].Number != "DOC-2024-001" {
		t.Errorf("closest document should rank first, got %s", ans.Sources[0].Number)
	}
	if strings.Contains(ans.Text, "<think>") {
		t.Errorf("thinking delimiters leaked: %q", ans.Text)
	}
	if ans.Model != "fake-model" {
		t.Errorf("Model = %q", ans.Model)
	}
	if ans.LatencyMs < 0 {
		t.Errorf("LatencyMs = %d", ans.LatencyMs)
	}
}

func TestQueryChatFailureKeepsSources(t *testing.T) {
	svc, fake := newTestService(t)
	seedDocuments(t, svc)
	fake.chatErr = errors.New("connection refused")

	ans, err := svc.Query(context.Background(), "quarterly budget")
	if err != nil {
		t.Fatalf("chat failure must degrade, not error: %v", err)
	}
	if ans.Text != degradedAnswer {
		t.Errorf("Text = %q", ans.Text)
	}
	if len(ans.Sources) == 0 {
		t.Error("retrieval success must not be hidden by synthesis failure")
	}
	if ans.Model != modelNone {
		t.Errorf("Model = %q, want %q", ans.Model, modelNone)
	}
}

func TestQueryWritesAuditLog(t *testing.T) {
	svc, _ := newTestService(t)
	seedDocuments(t, svc)

	if _, err := svc.Query(context.Background(), "quarterly budget"); err != nil {
		t.Fatalf("Query: %v", err)
	}

	var count int
	if err := svc.store.DB().QueryRow(`SELECT COUNT(*) FROM query_log`).Scan(&count); err != nil {
		t.Fatalf("reading query_log: %v", err)
	}
	if count != 1 {
		t.Errorf("query_log rows = %d, want 1", count)
	}
}

func TestStreamQueryOrdering(t *testing.T) {
	svc, fake := newTestService(t)
	seedDocuments(t, svc)
	fake.fragments = []string{"The budget ", "was approved."}

	var events []Event
	err := svc.StreamQuery(context.Background(), "quarterly budget", func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamQuery: %v", err)
	}

	if events[0].Type != EventSources || len(events[0].Sources) == 0 {
		t.Fatalf("first event must carry sources, got %+v", events[0])
	}
	last := events[len(events)-1]
	if last.Type != EventDone || last.Model != "fake-model" {
		t.Fatalf("last event must be done with the model path, got %+v", last)
	}

	var text strings.Builder
	for _, ev := range events[1 : len(events)-1] {
		if ev.Type != EventToken {
			t.Fatalf("middle events must be tokens, got %+v", ev)
		}
		text.WriteString(ev.Token)
	}
	if text.String() != "The budget was approved." {
		t.Errorf("streamed text = %q", text.String())
	}
}

func TestStreamQueryNoResults(t *testing.T) {
	svc, _ := newTestService(t)

	var events []Event
	err := svc.StreamQuery(context.Background(), "anything", func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamQuery: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected sources/token/done, got %+v", events)
	}
	if events[0].Type != EventSources || len(events[0].Sources) != 0 {
		t.Errorf("first event should be empty sources: %+v", events[0])
	}
	if events[1].Token != noResultsAnswer {
		t.Errorf("token = %q", events[1].Token)
	}
	if events[2].Type != EventDone || events[2].Model != modelNone {
		t.Errorf("done = %+v", events[2])
	}
}

func TestStreamQuerySynthesisFailure(t *testing.T) {
	svc, fake := newTestService(t)
	seedDocuments(t, svc)
	fake.streamErr = errors.New("connection reset")

	var events []Event
	err := svc.StreamQuery(context.Background(), "quarterly budget", func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("mid-stream failure must degrade, not error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected sources/fallback token/done, got %+v", events)
	}
	if events[1].Type != EventToken || events[1].Token != degradedAnswer {
		t.Errorf("fallback token = %+v", events[1])
	}
	if events[2].Type != EventDone || events[2].Model != modelNone {
		t.Errorf("done = %+v", events[2])
	}
}

func TestRunToolStatistics(t *testing.T) {
	svc, _ := newTestService(t)
	seedDocuments(t, svc)

	result := svc.RunTool(context.Background(), agent.ToolGetStatistics, "")
	stats, ok := result.(agent.StatisticsResult)
	if !ok {
		t.Fatalf("result = %T", result)
	}
	if stats.Stats.Documents != 2 {
		t.Errorf("Documents = %d, want 2", stats.Stats.Documents)
	}
}

func TestRunToolUnknown(t *testing.T) {
	svc, _ := newTestService(t)

	result := svc.RunTool(context.Background(), "made_up_tool", "arg")
	generic, ok := result.(agent.GenericResult)
	if !ok {
		t.Fatalf("result = %T", result)
	}
	if generic.ToolName != "made_up_tool" {
		t.Errorf("ToolName = %q", generic.ToolName)
	}
}

func TestRunToolSimilarDocuments(t *testing.T) {
	svc, _ := newTestService(t)
	seedDocuments(t, svc)

	result := svc.RunTool(context.Background(), agent.ToolFindSimilarDocuments, "DOC-2024-001")
	similar, ok := result.(agent.SimilarDocumentsResult)
	if !ok {
		t.Fatalf("result = %T: %+v", result, result)
	}
	for _, d := range similar.Documents {
		if d.Number == "DOC-2024-001" {
			t.Error("target document must be excluded from its own similarity list")
		}
	}
	if len(similar.Documents) != 1 || similar.Documents[0].Number != "DOC-2024-002" {
		t.Errorf("similar = %+v", similar.Documents)
	}
}

func TestRunToolSimilarDocumentsMissing(t *testing.T) {
	svc, _ := newTestService(t)

	result := svc.RunTool(context.Background(), agent.ToolFindSimilarDocuments, "NOPE-1")
	if _, ok := result.(agent.ErrorResult); !ok {
		t.Fatalf("expected ErrorResult, got %T", result)
	}
}

func TestAgentAnswerDefaultTools(t *testing.T) {
	svc, fake := newTestService(t)
	seedDocuments(t, svc)
	fake.reply = "One document covers the budget."

	var chunks []string
	err := svc.AgentAnswer(context.Background(), "what about the budget?", nil, nil,
		func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
	if err != nil {
		t.Fatalf("AgentAnswer: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != "One document covers the budget." {
		t.Errorf("chunks = %v", chunks)
	}
}

func TestAddDocumentEmbeds(t *testing.T) {
	svc, _ := newTestService(t)

	id, err := svc.AddDocument(context.Background(), store.Document{
		Number: "DOC-2024-009", Subject: "site inspection report",
	})
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	has, err := svc.store.DocumentHasEmbedding(context.Background(), id)
	if err != nil {
		t.Fatalf("DocumentHasEmbedding: %v", err)
	}
	if !has {
		t.Error("document should be embedded on insert")
	}
}

func TestAddDocumentEmbedFailureStillStores(t *testing.T) {
	svc, fake := newTestService(t)
	fake.embedErr = errors.New("backend down")

	id, err := svc.AddDocument(context.Background(), store.Document{
		Number: "DOC-2024-010", Subject: "fire drill notice",
	})
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	has, err := svc.store.DocumentHasEmbedding(context.Background(), id)
	if err != nil {
		t.Fatalf("DocumentHasEmbedding: %v", err)
	}
	if has {
		t.Error("embedding should be absent after an embed failure")
	}
}

func TestBuildSourceContextBudget(t *testing.T) {
	sources := []store.RetrievalResult{
		{Number: "DOC-1", Subject: "first", Sender: "a", Receiver: "b", DocDate: "2024-01-01", Note: "note one"},
		{Number: "DOC-2", Subject: "second", Sender: "a", Receiver: "b", DocDate: "2024-01-02", Note: "note two"},
	}

	full := buildSourceContext(sources, 100000)
	if !strings.Contains(full, "--- Source 1 ---") || !strings.Contains(full, "--- Source 2 ---") {
		t.Fatalf("full context missing records:\n%s", full)
	}

	firstLen := strings.Index(full, "--- Source 2 ---")
	tight := buildSourceContext(sources, firstLen+10)
	if !strings.Contains(tight, "DOC-1") {
		t.Errorf("first record should fit:\n%s", tight)
	}
	if strings.Contains(tight, "--- Source 2 ---") {
		t.Errorf("second record must not be split into a partial fit:\n%s", tight)
	}
}
