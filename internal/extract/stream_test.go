package extract_test

import (
	"testing"

	"github.com/JaimeStill/creditread/internal/extract"
)

func TestDecodeStream(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   string
	}{
		{
			name:   "single Tj",
			stream: "BT /F1 12 Tf 72 712 Td (Hello) Tj ET",
			want:   "Hello",
		},
		{
			name:   "vertical move starts new line",
			stream: "BT (first) Tj 0 -14 Td (second) Tj ET",
			want:   "first\nsecond",
		},
		{
			name:   "horizontal move inserts tab",
			stream: "BT (name) Tj 120 0 Td (amount) Tj ET",
			want:   "name\tamount",
		},
		{
			name:   "TJ array with kerning gap",
			stream: "BT [(Cred) -20 (it) -450 (report)] TJ ET",
			want:   "Credit report",
		},
		{
			name:   "T* and quote operators",
			stream: "BT (a) Tj T* (b) Tj (c) ' ET",
			want:   "a\nb\nc",
		},
		{
			name:   "escapes and nested parens",
			stream: `BT (a \(b\) \101\102 (c)) Tj ET`,
			want:   "a (b) AB (c)",
		},
		{
			name:   "hex string",
			stream: "BT <48656C6C6F> Tj ET",
			want:   "Hello",
		},
		{
			name:   "utf16 hex string",
			stream: "BT <FEFF041D0411041A0418> Tj ET",
			want:   "НБКИ",
		},
		{
			name:   "comments ignored",
			stream: "% header comment\nBT (text) Tj ET",
			want:   "text",
		},
		{
			name:   "no text operators",
			stream: "q 1 0 0 1 0 0 cm Q",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extract.DecodeStream([]byte(tt.stream)); got != tt.want {
				t.Errorf("DecodeStream = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectTables(t *testing.T) {
	t.Run("pipe table with short row", func(t *testing.T) {
		text := "header\n| Кредитор | Лимит | Остаток |\n| Сбербанк | 100000 | 5000 |\n| Итого | 5000 |\nfooter"
		tables := extract.DetectTables(2, text)
		if len(tables) != 1 {
			t.Fatalf("len(tables) = %d, want 1", len(tables))
		}
		tbl := tables[0]
		if tbl.Page != 2 || tbl.Columns != 3 {
			t.Errorf("table page/columns = %d/%d, want 2/3", tbl.Page, tbl.Columns)
		}
		if len(tbl.Rows) != 3 {
			t.Fatalf("rows = %d, want 3", len(tbl.Rows))
		}
		last := tbl.Rows[2]
		if len(last) != 2 || last[1].ColSpan != 2 {
			t.Errorf("short row = %+v, want 2 cells with last spanning 2", last)
		}
		if tbl.Rows[1][0].Text != "Сбербанк" {
			t.Errorf("cell = %q, want Сбербанк", tbl.Rows[1][0].Text)
		}
	})

	t.Run("wide-space columns", func(t *testing.T) {
		text := "Дата      Организация\n01.02.2023   Тинькофф"
		if got := len(extract.DetectTables(1, text)); got != 1 {
			t.Errorf("len(tables) = %d, want 1", got)
		}
	})

	t.Run("prose has no tables", func(t *testing.T) {
		text := "Кредитный отчет субъекта кредитной истории.\nСведения о субъекте."
		if got := extract.DetectTables(1, text); len(got) != 0 {
			t.Errorf("tables = %+v, want none", got)
		}
	})

	t.Run("single multi-cell line is not a table", func(t *testing.T) {
		if got := extract.DetectTables(1, "a\tb\nplain"); len(got) != 0 {
			t.Errorf("tables = %+v, want none", got)
		}
	})
}
