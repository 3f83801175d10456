package extract

import (
	"regexp"
	"strings"
)

var cellSeparator = regexp.MustCompile(`\t+|\s*\|\s*| {2,}`)

// minRows is the smallest run of multi-cell lines treated as a table.
const minRows = 2

// DetectTables finds runs of consecutive lines that split into two or more
// cells on tabs, pipes, or wide spaces. Short rows are padded by widening
// their last cell. Pages without such runs yield no tables.
func DetectTables(page int, text string) []Table {
	var (
		tables []Table
		block  [][]string
	)

	emit := func() {
		if len(block) >= minRows {
			tables = append(tables, buildTable(page, block))
		}
		block = nil
	}

	for line := range strings.SplitSeq(text, "\n") {
		cells := splitCells(line)
		if len(cells) < 2 {
			emit()
			continue
		}
		block = append(block, cells)
	}
	emit()

	return tables
}

func splitCells(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	if line == "" {
		return nil
	}

	parts := cellSeparator.Split(line, -1)
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cells = append(cells, p)
		}
	}
	return cells
}

func buildTable(page int, block [][]string) Table {
	columns := 0
	for _, row := range block {
		columns = max(columns, len(row))
	}

	t := Table{
		Page:    page,
		Columns: columns,
		Rows:    make([][]Cell, len(block)),
	}

	for i, row := range block {
		cells := make([]Cell, len(row))
		for j, text := range row {
			cells[j] = Cell{Text: text, RowSpan: 1, ColSpan: 1}
		}
		cells[len(cells)-1].ColSpan = columns - len(row) + 1
		t.Rows[i] = cells
	}

	return t
}
