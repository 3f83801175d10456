package validate_test

import (
	"testing"

	"github.com/JaimeStill/creditread/internal/validate"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"1234567.89", 1234567.89, false},
		{"1 234 567,89", 1234567.89, false},
		{"1\u00a0234\u00a0567,89", 1234567.89, false},
		{"1 234,5", 1234.5, false},
		{"1,234,567.89", 1234567.89, false},
		{"1.234.567,89", 1234567.89, false},
		{"1'234'567", 1234567, false},
		{"15 000 руб.", 15000, false},
		{"15000 ₽", 15000, false},
		{"$1,250.00", 1250, false},
		{"350 000 RUB", 350000, false},
		{"12,5", 12.5, false},
		{"1,234", 1234, false},
		{"1.234", 1.234, false},
		{"-42", -42, false},
		{"0", 0, false},
		{"", 0, true},
		{"руб.", 0, true},
		{"twelve", 0, true},
		{"12 abc 34", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := validate.ParseNumber(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseNumber(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNumber(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2024-03-01", "2024-03-01", false},
		{"2024-03-01T12:30:00Z", "2024-03-01", false},
		{"01.03.2024", "2024-03-01", false},
		{"1.3.2024", "2024-03-01", false},
		{"01/03/2024", "2024-03-01", false},
		{"01-03-2024", "2024-03-01", false},
		{"01.03.2024 г.", "2024-03-01", false},
		{"2 января 2006 г.", "2006-01-02", false},
		{"15 мая 2019", "2019-05-15", false},
		{"3 Марта 2020 года", "2020-03-03", false},
		{"28 фев. 2021", "2021-02-28", false},
		{"  7   декабря   2015 ", "2015-12-07", false},
		{"31.02.2024", "", true},
		{"30 февраля 2024", "", true},
		{"13/13/2024", "", true},
		{"вчера", "", true},
		{"2024", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := validate.ParseDate(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDate(%q) = %q, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCollapseSpace(t *testing.T) {
	got := validate.CollapseSpace("  Иванов  Иван\n\tИванович ")
	if got != "Иванов Иван Иванович" {
		t.Errorf("CollapseSpace = %q", got)
	}
}
