package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/swmlgen/internal/pom"
)

// csvBatchSize is the number of data rows per section.
const csvBatchSize = 20

// CSVParser handles CSV files. The first row holds the headers; every data
// row becomes a "header: cell, ..." bullet, grouped into sections of rows.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*pom.Tree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := pom.New()
	if len(records) == 0 {
		return tree, nil
	}

	headers := records[0]
	dataRows := records[1:]
	if len(dataRows) == 0 {
		_, err := tree.AddSection(stem(filename), pom.WithBody("Columns: "+strings.Join(headers, ", ")))
		return tree, err
	}

	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))

		// 1-indexed, skip header
		sec, err := tree.AddSection(fmt.Sprintf("Rows %d-%d", i+2, end+1),
			pom.WithBody("Columns: "+strings.Join(headers, ", ")))
		if err != nil {
			return nil, err
		}
		for _, row := range dataRows[i:end] {
			sec.AddTextBullets(csvRow(headers, row))
		}
	}
	return tree, nil
}

func csvRow(headers, row []string) string {
	var text strings.Builder
	for j, cell := range row {
		if j < len(headers) {
			text.WriteString(headers[j] + ": " + cell)
		} else {
			text.WriteString(cell)
		}
		if j < len(row)-1 {
			text.WriteString(", ")
		}
	}
	return text.String()
}
