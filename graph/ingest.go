package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/docmindhq/docmind/store"
)

// Ingestor commits one document's extracted mentions and relations against
// canonical entities. Failure is local to the document: the caller (the
// scheduler) decides whether to retry.
type Ingestor struct {
	store     *store.Store
	canonical *Canonicalizer
}

// NewIngestor creates an Ingestor.
func NewIngestor(s *store.Store, canonical *Canonicalizer) *Ingestor {
	return &Ingestor{store: s, canonical: canonical}
}

// IngestDocument reads the stored extraction payload for a document,
// resolves each mention to a canonical entity, writes mention rows
// (idempotent per document-entity pair), and writes relation rows between
// resolved entities. Ingesting the same document twice produces no
// duplicate mentions.
func (in *Ingestor) IngestDocument(ctx context.Context, docID int64) error {
	payload, err := in.store.GetExtraction(ctx, docID)
	if err != nil {
		return fmt.Errorf("reading extraction for document %d: %w", docID, err)
	}

	var result ExtractionResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return fmt.Errorf("decoding extraction for document %d: %w", docID, err)
	}

	resolved, err := in.canonical.ResolveBatch(ctx, result.Entities)
	if err != nil {
		return fmt.Errorf("resolving entities for document %d: %w", docID, err)
	}

	for _, ent := range result.Entities {
		e, ok := resolved[ent.Name]
		if !ok {
			continue
		}
		if err := in.store.InsertMention(ctx, store.EntityMention{
			DocumentID:  docID,
			EntityID:    e.ID,
			SurfaceText: ent.Name,
		}); err != nil {
			slog.Warn("graph: mention insert failed, skipping",
				"document_id", docID, "entity", ent.Name, "error", err)
		}
	}

	// Relations have no natural key, so skip ones already written for this
	// document to keep re-ingestion duplicate-free.
	existing, err := in.store.RelationsForDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("listing relations for document %d: %w", docID, err)
	}
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[fmt.Sprintf("%d:%d:%s", r.SourceEntityID, r.TargetEntityID, r.RelationLabel)] = true
	}

	for _, rel := range result.Relations {
		src, srcOK := resolved[rel.Source]
		dst, dstOK := resolved[rel.Target]
		if !srcOK || !dstOK || rel.Label == "" {
			slog.Debug("graph: skipping relation with unresolved endpoint",
				"document_id", docID, "source", rel.Source, "target", rel.Target)
			continue
		}
		key := fmt.Sprintf("%d:%d:%s", src.ID, dst.ID, rel.Label)
		if seen[key] {
			continue
		}
		seen[key] = true
		if _, err := in.store.InsertRelation(ctx, store.EntityRelation{
			DocumentID:     docID,
			SourceEntityID: src.ID,
			TargetEntityID: dst.ID,
			RelationLabel:  rel.Label,
		}); err != nil {
			slog.Warn("graph: relation insert failed, skipping",
				"document_id", docID, "source", rel.Source, "target", rel.Target, "error", err)
		}
	}

	return nil
}
