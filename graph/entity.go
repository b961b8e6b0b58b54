// Package graph maintains the canonical-entity knowledge graph: NER
// extraction from documents, resolution of raw mentions to canonical
// nodes, idempotent ingestion, and the background extraction scheduler.
package graph

// Entity type constants used during extraction and storage.
const (
	EntityOrg     = "organization"
	EntityProject = "project"
	EntityPerson  = "person"
)

// validEntityTypes guards against LLM output inventing new types.
var validEntityTypes = map[string]bool{
	EntityOrg:     true,
	EntityProject: true,
	EntityPerson:  true,
}

// ExtractedEntity is what the LLM returns from entity extraction.
type ExtractedEntity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ExtractedRelation is what the LLM returns from relation extraction.
type ExtractedRelation struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// ExtractionResult holds the LLM's structured output for one document.
// Serialized as-is into document_extractions and read back by the
// ingestion pipeline.
type ExtractionResult struct {
	Entities  []ExtractedEntity   `json:"entities"`
	Relations []ExtractedRelation `json:"relations"`
}
