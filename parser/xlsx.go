package parser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXParser extracts cell text from spreadsheet attachments, one
// pipe-separated row per line, sheet name as a heading.
type XLSXParser struct{}

func (p *XLSXParser) SupportedFormats() []string { return []string{"xlsx", "xls"} }

func (p *XLSXParser) ExtractText(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		sb.WriteString(sheet + "\n")
		for _, row := range rows {
			sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("no data found in XLSX")
	}
	return sb.String(), nil
}
