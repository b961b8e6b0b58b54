package agent

import (
	"regexp"
	"strings"
)

// The chat models this backend targets interleave reasoning text with
// their answers. ExtractAnswer runs the raw reply through five ordered
// phases; the first phase that yields a confident result short-circuits.
// Patterns are compiled once at package init; the phrase lists are tuned
// for the default local model's verbal tics and are replaceable via
// HeuristicConfig without re-tuning the pipeline itself.

// HeuristicConfig holds the replaceable knobs of the answer-extraction
// pipeline.
type HeuristicConfig struct {
	// ShortTextThreshold is the length under which phase 2 accepts the
	// cleaned text as-is when it carries no citation or leakage signal.
	ShortTextThreshold int
	// MinAnswerLength is the minimum length for a phase 3 boundary
	// remainder to count as an answer.
	MinAnswerLength int
	// BoundaryPhrases mark the line where the final answer begins.
	BoundaryPhrases []string
	// LeakagePhrases indicate reasoning text anywhere in a line.
	LeakagePhrases []string
	// LeakagePrefixes indicate reasoning text at the start of a line.
	LeakagePrefixes []string
	// ReasoningKeywords: a line containing three or more is dropped in
	// phase 5.
	ReasoningKeywords []string
}

// DefaultHeuristicConfig returns the lists tuned for the default local
// chat model.
func DefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{
		ShortTextThreshold: 300,
		MinAnswerLength:    20,
		BoundaryPhrases: []string{
			"the following", "in summary", "to summarize", "in conclusion",
			"here is the answer", "here are the", "final answer",
			"based on the documents",
		},
		LeakagePhrases: []string{
			"let me", "i need to", "i should", "i will look",
			"the user is asking", "the user wants", "first, i",
			"looking at the", "thinking about",
		},
		LeakagePrefixes: []string{
			"okay,", "ok,", "alright,", "hmm", "wait,", "so the user",
			"let me", "i need", "i should", "i'll", "first, i",
			"thinking:", "reasoning:", "thought:", "step 1", "step 2",
		},
		ReasoningKeywords: []string{
			"user", "asking", "question", "should", "maybe", "perhaps",
			"check", "look", "search", "think", "consider", "probably",
		},
	}
}

var (
	// Explicit thinking delimiters emitted by reasoning-tuned models.
	thinkingRe = regexp.MustCompile(`(?s)<think(?:ing)?>.*?</think(?:ing)?>`)
	// Unclosed opening delimiter: everything from it onward is reasoning.
	danglingThinkRe = regexp.MustCompile(`(?s)<think(?:ing)?>.*$`)
	// Citation markers produced by the context templates.
	citationRe = regexp.MustCompile(`\[(?:doc|dispatch)\s+\d+\]`)
)

// phase is one step of the pipeline: a confident result short-circuits,
// otherwise the pipeline falls through to the next phase.
type phase func(cfg HeuristicConfig, text string) (string, bool)

var phases = []phase{
	phaseShortText,
	phaseBoundary,
	phaseCitationBlock,
	phaseFilterLines,
}

// ExtractAnswer strips leaked chain-of-thought from a raw model reply.
// Never returns an empty string for non-empty input: the final fallback
// is the delimiter-cleaned text unmodified.
func ExtractAnswer(cfg HeuristicConfig, raw string) string {
	// Phase 1 always runs: strip explicit thinking delimiters.
	cleaned := stripThinking(raw)
	if strings.TrimSpace(cleaned) == "" {
		// The whole reply was inside delimiters; nothing better exists.
		return strings.TrimSpace(raw)
	}

	for _, p := range phases {
		if result, ok := p(cfg, cleaned); ok {
			return result
		}
	}
	return cleaned
}

// stripThinking removes thinking delimiters and their contents.
func stripThinking(text string) string {
	text = thinkingRe.ReplaceAllString(text, "")
	text = danglingThinkRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// phaseShortText is the fast path: short text with neither a citation
// marker nor a leakage phrase is already a clean answer.
func phaseShortText(cfg HeuristicConfig, text string) (string, bool) {
	if len(text) >= cfg.ShortTextThreshold {
		return "", false
	}
	if citationRe.MatchString(text) {
		return "", false
	}
	if containsAnyPhrase(text, cfg.LeakagePhrases) {
		return "", false
	}
	return text, true
}

// phaseBoundary scans backward for the last line containing an answer
// boundary phrase and returns everything from that line onward, provided
// the remainder is non-trivial.
func phaseBoundary(cfg HeuristicConfig, text string) (string, bool) {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if !containsAnyPhrase(lines[i], cfg.BoundaryPhrases) {
			continue
		}
		remainder := strings.TrimSpace(strings.Join(lines[i:], "\n"))
		if len(remainder) >= cfg.MinAnswerLength {
			return remainder, true
		}
		return "", false
	}
	return "", false
}

// phaseCitationBlock scans backward for the last contiguous block of
// lines containing citation markers, plus up to two immediately preceding
// short, non-leakage lines as an introduction.
func phaseCitationBlock(cfg HeuristicConfig, text string) (string, bool) {
	lines := strings.Split(text, "\n")

	end := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if citationRe.MatchString(lines[i]) {
			end = i
			break
		}
	}
	if end == -1 {
		return "", false
	}

	start := end
	for start > 0 && citationRe.MatchString(lines[start-1]) {
		start--
	}

	// Pull in up to two short introduction lines.
	for pulled := 0; pulled < 2 && start > 0; pulled++ {
		prev := strings.TrimSpace(lines[start-1])
		if prev == "" || len(prev) >= 120 ||
			containsAnyPhrase(prev, cfg.LeakagePhrases) {
			break
		}
		start--
	}

	return strings.TrimSpace(strings.Join(lines[start:end+1], "\n")), true
}

// phaseFilterLines is the last resort: drop every line that starts with a
// leakage prefix or contains three or more reasoning keywords. When the
// remainder is trivial, fall back to only the citation-bearing lines, and
// failing that, give up so the caller returns phase-1 output.
func phaseFilterLines(cfg HeuristicConfig, text string) (string, bool) {
	lines := strings.Split(text, "\n")

	var kept []string
	for _, line := range lines {
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if hasAnyPrefix(trimmed, cfg.LeakagePrefixes) {
			continue
		}
		if countKeywords(trimmed, cfg.ReasoningKeywords) >= 3 {
			continue
		}
		kept = append(kept, line)
	}

	result := strings.TrimSpace(strings.Join(kept, "\n"))
	if len(result) >= cfg.MinAnswerLength {
		return result, true
	}

	var cited []string
	for _, line := range lines {
		if citationRe.MatchString(line) {
			cited = append(cited, line)
		}
	}
	if len(cited) > 0 {
		return strings.TrimSpace(strings.Join(cited, "\n")), true
	}

	return "", false
}

func containsAnyPhrase(line string, phrases []string) bool {
	lower := strings.ToLower(line)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(line string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

func countKeywords(line string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(line, k) {
			n++
		}
	}
	return n
}
