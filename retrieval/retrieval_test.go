package retrieval

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/docmindhq/docmind/llm"
	"github.com/docmindhq/docmind/store"
)

func TestExtractQueryTerms(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "basic",
			query: "documents about the harbor project",
			want:  []string{"documents", "harbor", "project"},
		},
		{
			name:  "dedupe preserves first-seen order",
			query: "budget report budget BUDGET report",
			want:  []string{"budget", "report"},
		},
		{
			name:  "stopwords and short tokens removed",
			query: "what is the I status of x",
			want:  []string{"status"},
		},
		{
			name:  "punctuation stripped",
			query: `"contract" (acme), final?`,
			want:  []string{"contract", "acme", "final"},
		},
		{
			name:  "two character tokens kept",
			query: "it dept memo",
			want:  []string{"it", "dept", "memo"},
		},
		{
			name:  "empty query",
			query: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractQueryTerms(tt.query)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractQueryTerms(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestRerank(t *testing.T) {
	results := []store.RetrievalResult{
		{DocumentID: 1, Subject: "annual report", Similarity: 0.8},
		{DocumentID: 2, Subject: "harbor budget proposal", Similarity: 0.7},
		{DocumentID: 3, Subject: "staff meeting notes", Similarity: 0.9},
	}

	// "harbor budget" fully covers doc 2, lifting it above the others.
	got := Rerank(results, []string{"harbor", "budget"}, 1.0, 1.0)
	if got[0].DocumentID != 2 {
		t.Errorf("expected doc 2 first after rerank, got %d", got[0].DocumentID)
	}

	// Input must not be mutated.
	if results[0].DocumentID != 1 || results[2].DocumentID != 3 {
		t.Error("Rerank mutated its input slice")
	}

	// Similarity scores are untouched.
	for _, r := range got {
		if r.DocumentID == 2 && r.Similarity != 0.7 {
			t.Errorf("similarity mutated: got %f, want 0.7", r.Similarity)
		}
	}
}

func TestRerankStable(t *testing.T) {
	// Identical scores: original order must be preserved.
	results := []store.RetrievalResult{
		{DocumentID: 1, Subject: "same", Similarity: 0.5},
		{DocumentID: 2, Subject: "same", Similarity: 0.5},
		{DocumentID: 3, Subject: "same", Similarity: 0.5},
	}

	got := Rerank(results, []string{"same"}, 1.0, 0.5)
	for i, r := range got {
		if r.DocumentID != int64(i+1) {
			t.Fatalf("tie order not preserved: position %d has doc %d", i, r.DocumentID)
		}
	}

	// Deterministic across repeated calls.
	again := Rerank(results, []string{"same"}, 1.0, 0.5)
	if !reflect.DeepEqual(got, again) {
		t.Error("Rerank is not deterministic for identical input")
	}
}

func TestRerankNoTerms(t *testing.T) {
	results := []store.RetrievalResult{
		{DocumentID: 1, Similarity: 0.2},
		{DocumentID: 2, Similarity: 0.9},
	}
	got := Rerank(results, nil, 1.0, 0.5)
	// Without terms the retrieval order passes through unchanged.
	if got[0].DocumentID != 1 || got[1].DocumentID != 2 {
		t.Errorf("expected passthrough order, got %v", got)
	}
}

// fakeProvider implements llm.Provider for tests.
type fakeProvider struct {
	embedFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (f *fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) ChatStream(ctx context.Context, req llm.ChatRequest, emit func(string) error) (*llm.ChatResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f.embedFn(ctx, texts)
}

func TestEmbedQuery(t *testing.T) {
	p := &fakeProvider{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{0.1, 0.2, 0.3, 0.4}}, nil
	}}
	e := NewEmbedder(p, 4)

	vec, err := e.EmbedQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("got %d dims, want 4", len(vec))
	}
}

func TestEmbedQueryDimensionMismatch(t *testing.T) {
	p := &fakeProvider{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{0.1, 0.2}}, nil
	}}
	e := NewEmbedder(p, 4)

	_, err := e.EmbedQuery(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestEmbedQueryProviderError(t *testing.T) {
	wantErr := errors.New("backend down")
	p := &fakeProvider{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, wantErr
	}}
	e := NewEmbedder(p, 4)

	_, err := e.EmbedQuery(context.Background(), "hello")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestEmbedBatch(t *testing.T) {
	p := &fakeProvider{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{0, 0, 0, float32(i)}
		}
		return out, nil
	}}
	e := NewEmbedder(p, 4)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}

	empty, err := e.EmbedBatch(context.Background(), nil)
	if err != nil || empty != nil {
		t.Errorf("empty batch should be a no-op, got %v, %v", empty, err)
	}
}
