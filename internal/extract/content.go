// Package extract pulls page text and tabular regions out of PDF documents.
// Structural checks (encryption, page count) always run through pdfcpu; page
// text comes from a pluggable TextEngine.
package extract

import (
	"fmt"
	"strings"
)

// Page is the text of one page, numbered from 1.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Cell is one table cell. Spans are at least 1.
type Cell struct {
	Text    string `json:"text"`
	RowSpan int    `json:"row_span"`
	ColSpan int    `json:"col_span"`
}

// Table is a detected grid of cells on a page.
type Table struct {
	Page    int      `json:"page"`
	Columns int      `json:"columns"`
	Rows    [][]Cell `json:"rows"`
}

// Content is everything derived from one document. It holds no reference to
// the source bytes.
type Content struct {
	PageCount int     `json:"page_count"`
	Engine    string  `json:"engine"`
	Pages     []Page  `json:"pages"`
	Tables    []Table `json:"tables,omitempty"`
}

// Text joins the text of the first n pages. n <= 0 joins every page.
func (c *Content) Text(n int) string {
	if c == nil {
		return ""
	}
	pages := c.Pages
	if n > 0 && n < len(pages) {
		pages = pages[:n]
	}

	var sb strings.Builder
	for i, p := range pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// TableText renders the detected tables as pipe-separated rows grouped
// under their page number. It is empty when no tables were found.
func (c *Content) TableText() string {
	if c == nil || len(c.Tables) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, t := range c.Tables {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[page %d]\n", t.Page)
		for _, row := range t.Rows {
			cells := make([]string, len(row))
			for j, cell := range row {
				cells[j] = strings.TrimSpace(cell.Text)
			}
			sb.WriteString(strings.Join(cells, " | "))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
