package agent

import (
	"fmt"
	"strings"

	"github.com/docmindhq/docmind/store"
)

// BuildContext renders tool results into one bounded context string for
// the chat prompt. Every result type has a fixed template; records are
// appended whole until the next one would push the accumulated size past
// budget, so a record is never split across the boundary.
func BuildContext(results []ToolResult, budget int) string {
	var sb strings.Builder

	appendRecord := func(record string) bool {
		if sb.Len()+len(record) > budget {
			return false
		}
		sb.WriteString(record)
		return true
	}

	for _, result := range results {
		header := fmt.Sprintf("=== %s ===\n", result.Tool())
		if !appendRecord(header) {
			break
		}

		full := true
		switch r := result.(type) {
		case DocumentsResult:
			for i, d := range r.Documents {
				record := fmt.Sprintf("[doc %d] %s | %s | %s -> %s | %s\n%s\n",
					i+1, d.Number, d.Subject, d.Sender, d.Receiver, d.DocDate, d.Note)
				if !appendRecord(record) {
					full = false
					break
				}
			}
		case DispatchOrdersResult:
			for i, o := range r.Orders {
				record := fmt.Sprintf("[dispatch %d] %s | %s | assigned to %s | %s, due %s\n",
					i+1, o.Number, o.Subject, o.AssignedTo, o.Status, o.DueDate)
				if !appendRecord(record) {
					full = false
					break
				}
			}
		case EntitiesResult:
			for _, e := range r.Entities {
				record := fmt.Sprintf("- %s (%s), mentioned %d times\n",
					e.CanonicalName, e.EntityType, e.MentionCount)
				if !appendRecord(record) {
					full = false
					break
				}
			}
		case EntityDetailResult:
			record := fmt.Sprintf("%s (%s), mentioned %d times",
				r.Entity.CanonicalName, r.Entity.EntityType, r.Entity.MentionCount)
			if len(r.Entity.Aliases) > 0 {
				record += ", also known as " + strings.Join(r.Entity.Aliases, ", ")
			}
			record += "\n"
			if !appendRecord(record) {
				full = false
				break
			}
			for i, d := range r.Documents {
				record := fmt.Sprintf("[doc %d] %s | %s | %s\n", i+1, d.Number, d.Subject, d.DocDate)
				if !appendRecord(record) {
					full = false
					break
				}
			}
			for _, rel := range r.Relations {
				record := fmt.Sprintf("- %s %s %s\n", rel.SourceName, rel.Label, rel.TargetName)
				if !appendRecord(record) {
					full = false
					break
				}
			}
		case SimilarDocumentsResult:
			for i, d := range r.Documents {
				record := fmt.Sprintf("[doc %d] %s | %s | similarity %.2f\n",
					i+1, d.Number, d.Subject, d.Similarity)
				if !appendRecord(record) {
					full = false
					break
				}
			}
		case StatisticsResult:
			record := fmt.Sprintf(
				"documents: %d, embeddings: %d, entities: %d, mentions: %d, relations: %d\n",
				r.Stats.Documents, r.Stats.Embeddings, r.Stats.Entities,
				r.Stats.Mentions, r.Stats.Relations)
			if !appendRecord(record) {
				full = false
			}
		case ErrorResult:
			if !appendRecord(fmt.Sprintf("tool failed: %s\n", r.Message)) {
				full = false
			}
		case GenericResult:
			if !appendRecord(fmt.Sprintf("(count=%d)\n", r.Count)) {
				full = false
			}
		}

		if !full {
			break
		}
		appendRecord("\n")
	}

	return sb.String()
}

// BuildResultsSummary produces a short per-tool digest the planning loop
// uses to decide whether another tool call is warranted: one line per
// result, in input order. Never fails; unknown variants degrade to a
// plain count.
func BuildResultsSummary(results []ToolResult) string {
	var lines []string
	for _, result := range results {
		lines = append(lines, summarizeResult(result))
	}
	return strings.Join(lines, "\n")
}

func summarizeResult(result ToolResult) string {
	switch r := result.(type) {
	case DocumentsResult:
		return fmt.Sprintf("%s: %d documents%s",
			r.Tool(), len(r.Documents), firstDocumentNumbers(r.Documents, 3))
	case DispatchOrdersResult:
		var nums []string
		for i, o := range r.Orders {
			if i >= 3 {
				break
			}
			nums = append(nums, o.Number)
		}
		suffix := ""
		if len(nums) > 0 {
			suffix = " (" + strings.Join(nums, ", ") + ")"
		}
		return fmt.Sprintf("%s: %d orders%s", r.Tool(), len(r.Orders), suffix)
	case EntitiesResult:
		var names []string
		for i, e := range r.Entities {
			if i >= 3 {
				break
			}
			names = append(names, e.CanonicalName)
		}
		suffix := ""
		if len(names) > 0 {
			suffix = " (" + strings.Join(names, ", ") + ")"
		}
		return fmt.Sprintf("%s: %d entities%s", r.Tool(), len(r.Entities), suffix)
	case EntityDetailResult:
		return fmt.Sprintf("%s: %s with %d documents, %d relations",
			r.Tool(), r.Entity.CanonicalName, len(r.Documents), len(r.Relations))
	case SimilarDocumentsResult:
		return fmt.Sprintf("%s: %d documents%s",
			r.Tool(), len(r.Documents), firstDocumentNumbers(r.Documents, 3))
	case StatisticsResult:
		return fmt.Sprintf("%s: %d documents, %d entities indexed",
			r.Tool(), r.Stats.Documents, r.Stats.Entities)
	case ErrorResult:
		return fmt.Sprintf("%s: failed (%s)", r.Tool(), r.Message)
	case GenericResult:
		return fmt.Sprintf("%s: (count=%d)", r.Tool(), r.Count)
	default:
		return fmt.Sprintf("%s: (count=0)", result.Tool())
	}
}

func firstDocumentNumbers(docs []store.RetrievalResult, n int) string {
	var nums []string
	for i, d := range docs {
		if i >= n {
			break
		}
		nums = append(nums, d.Number)
	}
	if len(nums) == 0 {
		return ""
	}
	return " (" + strings.Join(nums, ", ") + ")"
}
