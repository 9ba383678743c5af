package mops

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Table is one HTML table as rows of trimmed cell text. Header rows are
// kept; each scraper decides which rows carry data.
type Table [][]string

// Cell returns the cell at (row, col) or "" when the table is ragged and
// the position does not exist. MOPS tables routinely vary in width
// between rows.
func (t Table) Cell(row, col int) string {
	if row < 0 || row >= len(t) {
		return ""
	}
	if col < 0 || col >= len(t[row]) {
		return ""
	}
	return t[row][col]
}

// Contains reports whether any cell contains the given substring, used
// to pick the right table out of a multi-table response.
func (t Table) Contains(substr string) bool {
	for _, row := range t {
		for _, cell := range row {
			if strings.Contains(cell, substr) {
				return true
			}
		}
	}
	return false
}

// tablesFromHTML extracts every table in the document. Nested tables
// surface both as part of their parent and on their own, matching how
// the scrapers probe each candidate independently.
func tablesFromHTML(content []byte) ([]Table, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var tables []Table
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var rows Table
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			var cells []string
			row.Children().Each(func(_ int, cell *goquery.Selection) {
				tag := goquery.NodeName(cell)
				if strings.EqualFold(tag, "td") || strings.EqualFold(tag, "th") {
					cells = append(cells, normalizeCell(cell.Text()))
				}
			})
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})
		if len(rows) > 0 {
			tables = append(tables, rows)
		}
	})

	if len(tables) == 0 {
		return nil, ErrNoTables
	}
	return tables, nil
}

// normalizeCell collapses the non-breaking spaces and newlines MOPS
// pads its cells with.
func normalizeCell(text string) string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}
