//go:build cgo

package graph

import (
	"context"
	"testing"

	"github.com/docmindhq/docmind/store"
)

func TestIngestDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, err := s.InsertDocument(ctx, store.Document{Number: "I-1", Subject: "award"})
	if err != nil {
		t.Fatalf("inserting: %v", err)
	}

	payload := `{"entities": [{"name": "acme corp", "type": "organization"},
		{"name": "harbor upgrade", "type": "project"}],
		"relations": [{"source": "acme corp", "target": "harbor upgrade", "label": "contractor_for"}]}`
	if err := s.SaveExtraction(ctx, docID, payload); err != nil {
		t.Fatalf("saving extraction: %v", err)
	}

	in := NewIngestor(s, NewCanonicalizer(s, 0.6))
	if err := in.IngestDocument(ctx, docID); err != nil {
		t.Fatalf("ingesting: %v", err)
	}

	mentions, err := s.MentionsForDocument(ctx, docID)
	if err != nil {
		t.Fatalf("listing mentions: %v", err)
	}
	if len(mentions) != 2 {
		t.Fatalf("expected 2 mentions, got %d", len(mentions))
	}

	rels, err := s.RelationsForDocument(ctx, docID)
	if err != nil {
		t.Fatalf("listing relations: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(rels))
	}
	if rels[0].RelationLabel != "contractor_for" {
		t.Errorf("label: got %q", rels[0].RelationLabel)
	}
}

func TestIngestDocumentIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docID, err := s.InsertDocument(ctx, store.Document{Number: "I-2", Subject: "award"})
	if err != nil {
		t.Fatalf("inserting: %v", err)
	}

	payload := `{"entities": [{"name": "acme corp", "type": "organization"},
		{"name": "harbor upgrade", "type": "project"}],
		"relations": [{"source": "acme corp", "target": "harbor upgrade", "label": "contractor_for"}]}`
	if err := s.SaveExtraction(ctx, docID, payload); err != nil {
		t.Fatalf("saving extraction: %v", err)
	}

	in := NewIngestor(s, NewCanonicalizer(s, 0.6))
	if err := in.IngestDocument(ctx, docID); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if err := in.IngestDocument(ctx, docID); err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	mentions, err := s.MentionsForDocument(ctx, docID)
	if err != nil {
		t.Fatalf("listing mentions: %v", err)
	}
	if len(mentions) != 2 {
		t.Fatalf("double ingest created duplicate mentions: %d", len(mentions))
	}

	rels, err := s.RelationsForDocument(ctx, docID)
	if err != nil {
		t.Fatalf("listing relations: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("double ingest created duplicate relations: %d", len(rels))
	}
}

func TestIngestDocumentMissingExtraction(t *testing.T) {
	s := newTestStore(t)
	in := NewIngestor(s, NewCanonicalizer(s, 0.6))

	if err := in.IngestDocument(context.Background(), 9999); err == nil {
		t.Fatal("expected error for missing extraction payload")
	}
}
