// Package agent synthesizes user-facing answers from heterogeneous tool
// results, defending against chain-of-thought leakage in local chat model
// output. The planning loop that decides which tools to call lives
// outside this package; agent consumes its results.
package agent

import "github.com/docmindhq/docmind/store"

// Tool name constants.
const (
	ToolSearchDocuments      = "search_documents"
	ToolSearchDispatchOrders = "search_dispatch_orders"
	ToolSearchEntities       = "search_entities"
	ToolGetEntityDetail      = "get_entity_detail"
	ToolFindSimilarDocuments = "find_similar_documents"
	ToolGetStatistics        = "get_statistics"
)

// ToolResult is one tool call's outcome, tagged by variant. Each tool has
// its own typed payload; consumers switch exhaustively over the concrete
// types. The sealed method keeps the set of variants closed to this
// package.
type ToolResult interface {
	Tool() string
	sealed()
}

// DocumentsResult is the payload of a search_documents call.
type DocumentsResult struct {
	Documents []store.RetrievalResult
}

func (DocumentsResult) Tool() string { return ToolSearchDocuments }
func (DocumentsResult) sealed()      {}

// DispatchOrder is one row from the dispatch-order register.
type DispatchOrder struct {
	ID         int64  `json:"id"`
	Number     string `json:"number"`
	Subject    string `json:"subject"`
	AssignedTo string `json:"assigned_to"`
	Status     string `json:"status"`
	DueDate    string `json:"due_date"`
}

// DispatchOrdersResult is the payload of a search_dispatch_orders call.
type DispatchOrdersResult struct {
	Orders []DispatchOrder
}

func (DispatchOrdersResult) Tool() string { return ToolSearchDispatchOrders }
func (DispatchOrdersResult) sealed()      {}

// EntitiesResult is the payload of a search_entities call.
type EntitiesResult struct {
	Entities []store.CanonicalEntity
}

func (EntitiesResult) Tool() string { return ToolSearchEntities }
func (EntitiesResult) sealed()      {}

// EntityDetailResult is the payload of a get_entity_detail call: one
// entity with its mentioning documents and relations.
type EntityDetailResult struct {
	Entity    store.CanonicalEntity
	Documents []store.Document
	Relations []RelationInfo
}

// RelationInfo is a resolved relation edge for display.
type RelationInfo struct {
	SourceName string `json:"source_name"`
	TargetName string `json:"target_name"`
	Label      string `json:"label"`
}

func (EntityDetailResult) Tool() string { return ToolGetEntityDetail }
func (EntityDetailResult) sealed()      {}

// SimilarDocumentsResult is the payload of a find_similar_documents call.
type SimilarDocumentsResult struct {
	Documents []store.RetrievalResult
}

func (SimilarDocumentsResult) Tool() string { return ToolFindSimilarDocuments }
func (SimilarDocumentsResult) sealed()      {}

// StatisticsResult is the payload of a get_statistics call.
type StatisticsResult struct {
	Stats store.DBStats
}

func (StatisticsResult) Tool() string { return ToolGetStatistics }
func (StatisticsResult) sealed()      {}

// ErrorResult carries a tool invocation failure as a user-safe string.
type ErrorResult struct {
	ToolName string
	Message  string
}

func (e ErrorResult) Tool() string { return e.ToolName }
func (ErrorResult) sealed()        {}

// GenericResult covers tools this package has no template for; summaries
// degrade to a plain item count.
type GenericResult struct {
	ToolName string
	Count    int
}

func (g GenericResult) Tool() string { return g.ToolName }
func (GenericResult) sealed()        {}
