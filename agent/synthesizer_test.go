package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docmindhq/docmind/llm"
	"github.com/docmindhq/docmind/store"
)

type fakeChat struct {
	reply       string
	chatErr     error
	streamErr   error
	fragments   []string
	chatCalls   int
	streamCalls int
	lastReq     llm.ChatRequest
}

func (f *fakeChat) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.chatCalls++
	f.lastReq = req
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &llm.ChatResponse{Content: f.reply, Model: "fake"}, nil
}

func (f *fakeChat) ChatStream(ctx context.Context, req llm.ChatRequest, emit func(string) error) (*llm.ChatResponse, error) {
	f.streamCalls++
	f.lastReq = req
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
	return &llm.ChatResponse{Content: sb.String(), Model: "fake"}, nil
}

func (f *fakeChat) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func TestSynthesizeAnswerSingleChunk(t *testing.T) {
	chat := &fakeChat{reply: "<think>checking the sources</think>Three documents match the query."}
	sy := NewSynthesizer(chat, 8000, 6, DefaultHeuristicConfig())

	var chunks []string
	err := sy.SynthesizeAnswer(context.Background(), "how many documents match?",
		[]ToolResult{DocumentsResult{Documents: sampleDocuments(3)}}, nil,
		func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
	if err != nil {
		t.Fatalf("SynthesizeAnswer: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	if chunks[0] != "Three documents match the query." {
		t.Errorf("chunk = %q", chunks[0])
	}
	if chat.streamCalls != 0 {
		t.Errorf("streaming fallback should not run when chat succeeds")
	}
}

func TestSynthesizeAnswerStreamingFallback(t *testing.T) {
	chat := &fakeChat{
		chatErr:   errors.New("connection refused"),
		fragments: []string{"Three ", "documents ", "match."},
	}
	sy := NewSynthesizer(chat, 8000, 6, DefaultHeuristicConfig())

	var chunks []string
	err := sy.SynthesizeAnswer(context.Background(), "how many?", nil, nil,
		func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
	if err != nil {
		t.Fatalf("SynthesizeAnswer: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected raw fragments, got %v", chunks)
	}
	if strings.Join(chunks, "") != "Three documents match." {
		t.Errorf("fragments = %v", chunks)
	}
}

func TestSynthesizeAnswerBothPathsFail(t *testing.T) {
	chat := &fakeChat{
		chatErr:   errors.New("connection refused"),
		streamErr: errors.New("connection refused"),
	}
	sy := NewSynthesizer(chat, 8000, 6, DefaultHeuristicConfig())

	err := sy.SynthesizeAnswer(context.Background(), "how many?", nil, nil,
		func(string) error { return nil })
	if !errors.Is(err, ErrSynthesisFailed) {
		t.Fatalf("expected ErrSynthesisFailed, got %v", err)
	}
}

func TestSynthesizeAnswerEmitErrorPropagates(t *testing.T) {
	chat := &fakeChat{reply: "Short answer."}
	sy := NewSynthesizer(chat, 8000, 6, DefaultHeuristicConfig())

	boom := errors.New("client went away")
	err := sy.SynthesizeAnswer(context.Background(), "q", nil, nil,
		func(string) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected emit error, got %v", err)
	}
}

func TestBuildMessages(t *testing.T) {
	chat := &fakeChat{reply: "ok answer here"}
	sy := NewSynthesizer(chat, 8000, 2, DefaultHeuristicConfig())

	history := []llm.Message{
		{Role: "system", Content: "stale system prompt"},
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
		{Role: "user", Content: "second question"},
	}
	results := []ToolResult{StatisticsResult{Stats: store.DBStats{Documents: 5}}}

	err := sy.SynthesizeAnswer(context.Background(), "current question", results, history,
		func(string) error { return nil })
	if err != nil {
		t.Fatalf("SynthesizeAnswer: %v", err)
	}

	msgs := chat.lastReq.Messages
	if msgs[0].Role != "system" || msgs[0].Content == "stale system prompt" {
		t.Fatalf("first message must be the synthesis system prompt, got %+v", msgs[0])
	}
	// historyTurns=2 keeps only the last two user/assistant turns; the
	// stale system message is filtered out entirely.
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[1].Content != "first answer" || msgs[2].Content != "second question" {
		t.Errorf("history filtering wrong: %+v", msgs[1:3])
	}
	last := msgs[3]
	if last.Role != "user" {
		t.Errorf("final message role = %q", last.Role)
	}
	if !strings.Contains(last.Content, "TOOL RESULTS:") ||
		!strings.Contains(last.Content, "documents: 5") {
		t.Errorf("tool context missing from final message:\n%s", last.Content)
	}
	if !strings.Contains(last.Content, "QUESTION: current question") {
		t.Errorf("question missing from final message:\n%s", last.Content)
	}
}
