package parser

import (
	"fmt"
	"os"
)

// TextParser handles plain text attachments.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt", "md", "csv"} }

func (p *TextParser) ExtractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading text file: %w", err)
	}
	return string(data), nil
}
