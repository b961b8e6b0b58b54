package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docmindhq/docmind/llm"
)

// ErrSynthesisFailed marks an answer that failed on both the non-streaming
// and streaming chat paths.
var ErrSynthesisFailed = errors.New("agent: answer synthesis failed")

const synthesisSystemPrompt = `You are an assistant for a document management system.
Answer the user's question using only the tool results provided.
Cite documents by their markers, e.g. [doc 1] or [dispatch 2].
If the results do not contain the answer, say so plainly.
Answer directly. Do not narrate your reasoning process.`

// Synthesizer builds a bounded context from tool results, calls the chat
// model once, and emits the answer with leaked reasoning stripped.
type Synthesizer struct {
	chat          llm.Provider
	contextBudget int
	historyTurns  int
	heuristic     HeuristicConfig
}

// NewSynthesizer creates a Synthesizer. contextBudget is in characters.
func NewSynthesizer(chat llm.Provider, contextBudget, historyTurns int, heuristic HeuristicConfig) *Synthesizer {
	if contextBudget <= 0 {
		contextBudget = 8000
	}
	if historyTurns <= 0 {
		historyTurns = 6
	}
	return &Synthesizer{
		chat:          chat,
		contextBudget: contextBudget,
		historyTurns:  historyTurns,
		heuristic:     heuristic,
	}
}

// SynthesizeAnswer produces the user-facing answer as a finite sequence
// of text chunks delivered through emit; the sequence is not restartable.
// The non-streaming chat call is preferred because the target model
// interleaves reasoning with its answer: the whole raw reply goes through
// the extraction heuristic and is emitted as one chunk. When that call
// fails, falls back to true token streaming without post-processing,
// trading leakage risk for availability.
func (sy *Synthesizer) SynthesizeAnswer(ctx context.Context, question string, results []ToolResult,
	history []llm.Message, emit func(chunk string) error) error {

	messages := sy.buildMessages(question, results, history)

	resp, err := sy.chat.Chat(ctx, llm.ChatRequest{
		Messages:    messages,
		Temperature: 0.2,
	})
	if err == nil {
		answer := ExtractAnswer(sy.heuristic, resp.Content)
		return emit(answer)
	}

	slog.Warn("agent: non-streaming synthesis failed, falling back to streaming", "error", err)

	_, streamErr := sy.chat.ChatStream(ctx, llm.ChatRequest{
		Messages:    messages,
		Temperature: 0.2,
	}, emit)
	if streamErr != nil {
		return fmt.Errorf("%w: %s", ErrSynthesisFailed, streamErr)
	}
	return nil
}

// buildMessages assembles the chat request: system prompt, recent history
// filtered to user/assistant roles, and the question with rendered tool
// results.
func (sy *Synthesizer) buildMessages(question string, results []ToolResult, history []llm.Message) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: synthesisSystemPrompt}}

	filtered := filterHistory(history, sy.historyTurns)
	messages = append(messages, filtered...)

	toolContext := BuildContext(results, sy.contextBudget)
	var sb strings.Builder
	if toolContext != "" {
		sb.WriteString("TOOL RESULTS:\n")
		sb.WriteString(toolContext)
		sb.WriteString("\n")
	}
	sb.WriteString("QUESTION: ")
	sb.WriteString(question)
	messages = append(messages, llm.Message{Role: "user", Content: sb.String()})

	return messages
}

// filterHistory keeps only user/assistant turns, most recent maxTurns.
func filterHistory(history []llm.Message, maxTurns int) []llm.Message {
	var filtered []llm.Message
	for _, m := range history {
		if m.Role == "user" || m.Role == "assistant" {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) > maxTurns {
		filtered = filtered[len(filtered)-maxTurns:]
	}
	return filtered
}
