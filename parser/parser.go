// Package parser extracts plain text from document attachments so the
// extraction pipeline can run entity recognition over them.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Parser extracts text from a specific attachment format.
type Parser interface {
	ExtractText(path string) (string, error)
	SupportedFormats() []string
}

// Registry maps file extensions to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a Registry with the built-in parsers registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{&PDFParser{}, &XLSXParser{}, &TextParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

// Register adds or replaces the parser for a format.
func (r *Registry) Register(format string, p Parser) {
	r.parsers[format] = p
}

// ExtractText picks a parser by file extension and extracts the text.
func (r *Registry) ExtractText(path string) (string, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	p, ok := r.parsers[format]
	if !ok {
		return "", fmt.Errorf("no parser for format: %s", format)
	}
	return p.ExtractText(path)
}
