package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/docmindhq/docmind/llm"
	"github.com/docmindhq/docmind/store"
)

// nerPrompt is a focused prompt that asks the LLM to extract named
// entities and relations from one official document's fields. Kept atomic
// and example-driven for 7B-class local models.
const nerPrompt = `You are a named-entity extraction engine for official business documents.
Given the document fields below, extract all named entities and the relations between them.

ENTITY TYPES (use exactly these values):
- organization : a company, vendor, agency, office, or institution
- project      : a named project, contract, or initiative
- person       : a named individual

Return a JSON object with exactly two keys:
  "entities"  : array of {"name": string, "type": string}
  "relations" : array of {"source": string, "target": string, "label": string}

Rules:
- Entity names must be normalised to lowercase.
- Relation source and target must be entity names from the entities array.
- Only include entities and relations clearly supported by the document.
- If there are none, return empty arrays.
- Do NOT include any text outside the JSON object.

EXAMPLES:

Input: subject "Harbor upgrade phase 2 contract award", sender "ACME Corp", receiver "City Planning Office"
Output:
{"entities": [{"name": "harbor upgrade phase 2", "type": "project"}, {"name": "acme corp", "type": "organization"}, {"name": "city planning office", "type": "organization"}], "relations": [{"source": "acme corp", "target": "harbor upgrade phase 2", "label": "contractor_for"}, {"source": "city planning office", "target": "harbor upgrade phase 2", "label": "oversees"}]}

Input: subject "Meeting minutes", sender "Jane Smith", note "Attendees: Jane Smith (Globex), Tom Chen"
Output:
{"entities": [{"name": "jane smith", "type": "person"}, {"name": "globex", "type": "organization"}, {"name": "tom chen", "type": "person"}], "relations": [{"source": "jane smith", "target": "globex", "label": "works_for"}]}

DOCUMENT:
%s`

// maxAttachmentChars caps how much attachment text is fed to the prompt.
const maxAttachmentChars = 4000

// AttachmentReader extracts plain text from a document's attachment file.
// Implemented by the parser package; nil disables attachment text.
type AttachmentReader interface {
	ExtractText(path string) (string, error)
}

// Extractor runs NER over documents and stores the raw result payload.
type Extractor struct {
	store       *store.Store
	chat        llm.Provider
	attachments AttachmentReader
}

// NewExtractor creates an Extractor. attachments may be nil.
func NewExtractor(s *store.Store, chat llm.Provider, attachments AttachmentReader) *Extractor {
	return &Extractor{store: s, chat: chat, attachments: attachments}
}

// ExtractDocument runs NER over one document and persists the raw payload
// into document_extractions. Returns the parsed result.
func (e *Extractor) ExtractDocument(ctx context.Context, doc store.Document) (*ExtractionResult, error) {
	prompt := fmt.Sprintf(nerPrompt, e.renderDocument(doc))

	resp, err := e.chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
		Temperature:    0.0,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return nil, fmt.Errorf("ner llm chat: %w", err)
	}

	jsonStr, err := extractJSON(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing ner result: %w", err)
	}

	var result ExtractionResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return nil, fmt.Errorf("unmarshalling ner result: %w", err)
	}

	// Drop entities with invented types rather than failing the document.
	valid := result.Entities[:0]
	for _, ent := range result.Entities {
		ent.Type = strings.TrimSpace(strings.ToLower(ent.Type))
		ent.Name = strings.TrimSpace(strings.ToLower(ent.Name))
		if ent.Name == "" || !validEntityTypes[ent.Type] {
			slog.Debug("graph: dropping entity with invalid type",
				"name", ent.Name, "type", ent.Type, "document_id", doc.ID)
			continue
		}
		valid = append(valid, ent)
	}
	result.Entities = valid

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("serializing ner payload: %w", err)
	}
	if err := e.store.SaveExtraction(ctx, doc.ID, string(payload)); err != nil {
		return nil, fmt.Errorf("saving extraction for document %d: %w", doc.ID, err)
	}

	return &result, nil
}

// renderDocument formats the document fields for the NER prompt, appending
// bounded attachment text when a reader is configured.
func (e *Extractor) renderDocument(doc store.Document) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "number %q, subject %q", doc.Number, doc.Subject)
	if doc.Sender != "" {
		fmt.Fprintf(&sb, ", sender %q", doc.Sender)
	}
	if doc.Receiver != "" {
		fmt.Fprintf(&sb, ", receiver %q", doc.Receiver)
	}
	if doc.DocDate != "" {
		fmt.Fprintf(&sb, ", date %q", doc.DocDate)
	}
	if doc.Note != "" {
		fmt.Fprintf(&sb, ", note %q", doc.Note)
	}

	if e.attachments != nil && doc.AttachmentPath != "" {
		text, err := e.attachments.ExtractText(doc.AttachmentPath)
		if err != nil {
			slog.Warn("graph: attachment text extraction failed",
				"document_id", doc.ID, "path", doc.AttachmentPath, "error", err)
		} else if text != "" {
			if len(text) > maxAttachmentChars {
				text = text[:maxAttachmentChars]
			}
			fmt.Fprintf(&sb, "\nATTACHMENT TEXT:\n%s", text)
		}
	}

	return sb.String()
}

// codeBlockRe strips markdown code fences from LLM output.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// extractJSON attempts to find a valid JSON object in the LLM response text.
// It handles common LLM quirks: markdown code blocks, text before/after JSON.
func extractJSON(raw string) (string, error) {
	// Strip markdown code blocks first.
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	}

	raw = strings.TrimSpace(raw)

	// If it already starts with '{', try as-is.
	if strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	// Find the first '{' and last '}' to extract the JSON object.
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], nil
	}

	return "", fmt.Errorf("no JSON object found in response")
}
