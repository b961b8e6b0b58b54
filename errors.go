package docmind

import (
	"errors"

	"github.com/docmindhq/docmind/agent"
	"github.com/docmindhq/docmind/graph"
)

var (
	// ErrNoResults is returned when hybrid retrieval yields no matching documents.
	ErrNoResults = errors.New("docmind: no results found")

	// ErrEmbeddingFailed is returned when query embedding generation fails.
	ErrEmbeddingFailed = errors.New("docmind: embedding generation failed")

	// ErrLLMUnavailable is returned when the LLM provider is unreachable.
	ErrLLMUnavailable = errors.New("docmind: LLM provider unavailable")

	// ErrDocumentNotFound is returned when a document ID does not exist.
	ErrDocumentNotFound = errors.New("docmind: document not found")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("docmind: invalid configuration")
)

// Sentinels owned by subpackages, re-exported for callers that only
// program against this package.
var (
	// ErrSynthesisFailed marks an answer that failed on both the
	// non-streaming and streaming chat paths.
	ErrSynthesisFailed = agent.ErrSynthesisFailed

	// ErrSchedulerRunning is returned when starting an already running scheduler.
	ErrSchedulerRunning = graph.ErrSchedulerRunning

	// ErrSchedulerStopped is returned when stopping a scheduler that is not running.
	ErrSchedulerStopped = graph.ErrSchedulerStopped
)
