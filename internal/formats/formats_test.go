package formats_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/JaimeStill/creditread/internal/formats"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    formats.Format
		wantErr bool
	}{
		{"nbki", formats.NBKI, false},
		{"rsbki", formats.RSBKI, false},
		{"unknown", formats.Unknown, false},
		{"NBKI", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := formats.Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, formats.ErrInvalidFormat) {
					t.Errorf("Parse(%q) error = %v, want ErrInvalidFormat", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestKnownExcludesUnknown(t *testing.T) {
	known := formats.Known()
	if len(known) != 6 {
		t.Fatalf("len(Known) = %d, want 6", len(known))
	}
	if slices.Contains(known, formats.Unknown) {
		t.Error("Known contains Unknown")
	}
	if got := len(formats.All()); got != 7 {
		t.Errorf("len(All) = %d, want 7", got)
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := formats.DefaultCatalog()

	for _, f := range formats.Known() {
		if len(c.Signatures(f)) == 0 {
			t.Errorf("%s has no signatures", f)
		}
		s := c.Schema(f)
		if s.Format != f {
			t.Errorf("Schema(%s).Format = %s", f, s.Format)
		}
		if err := s.Check(); err != nil {
			t.Errorf("Schema(%s).Check() = %v", f, err)
		}
		if !slices.Contains(s.Required(), "full_name") {
			t.Errorf("%s does not require full_name", f)
		}
	}

	if sigs := c.Signatures(formats.Unknown); len(sigs) != 0 {
		t.Errorf("Unknown signatures = %v, want none", sigs)
	}

	generic := c.Schema(formats.Format("bogus"))
	if generic.Format != formats.Unknown {
		t.Errorf("fallback schema format = %s, want unknown", generic.Format)
	}
}

func TestSchemaCheck(t *testing.T) {
	tests := []struct {
		name   string
		fields []formats.FieldSpec
	}{
		{
			name:   "duplicate field",
			fields: []formats.FieldSpec{{Name: "a", Kind: formats.KindString}, {Name: "a", Kind: formats.KindString}},
		},
		{
			name:   "unknown kind",
			fields: []formats.FieldSpec{{Name: "a", Kind: "blob"}},
		},
		{
			name:   "list without items",
			fields: []formats.FieldSpec{{Name: "a", Kind: formats.KindList}},
		},
		{
			name:   "bad pattern",
			fields: []formats.FieldSpec{{Name: "a", Kind: formats.KindString, Pattern: "("}},
		},
		{
			name:   "enum on number",
			fields: []formats.FieldSpec{{Name: "a", Kind: formats.KindNumber, Enum: []string{"x"}}},
		},
		{
			name: "not_before on missing sibling",
			fields: []formats.FieldSpec{
				{Name: "close", Kind: formats.KindDate, NotBefore: "open"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := formats.Schema{Format: formats.Unknown, Fields: tt.fields}
			if err := s.Check(); !errors.Is(err, formats.ErrInvalidSchema) {
				t.Errorf("Check() = %v, want ErrInvalidSchema", err)
			}
		})
	}
}

func TestNewCatalogOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `formats:
  okb:
    signatures: ["  Объединенное кредитное бюро ", "bki-okb.ru", "bki-okb.ru"]
    required: [full_name]
    instructions: "custom okb instructions"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	o, err := formats.LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides error: %v", err)
	}

	c, err := formats.NewCatalog(o)
	if err != nil {
		t.Fatalf("NewCatalog error: %v", err)
	}

	sigs := c.Signatures(formats.OKB)
	want := []string{"Объединенное кредитное бюро", "bki-okb.ru"}
	if !slices.Equal(sigs, want) {
		t.Errorf("Signatures(okb) = %v, want %v", sigs, want)
	}

	if got := c.Schema(formats.OKB).Required(); !slices.Equal(got, []string{"full_name"}) {
		t.Errorf("Required(okb) = %v, want [full_name]", got)
	}

	if got := o.Instructions(formats.OKB); got != "custom okb instructions" {
		t.Errorf("Instructions(okb) = %q", got)
	}
}

func TestNewCatalogRejectsInvalidOverrides(t *testing.T) {
	tests := []struct {
		name      string
		overrides *formats.Overrides
	}{
		{
			name: "signatures on unknown",
			overrides: &formats.Overrides{Formats: map[formats.Format]formats.FormatOverride{
				formats.Unknown: {Signatures: []string{"x"}},
			}},
		},
		{
			name: "required field outside layout",
			overrides: &formats.Overrides{Formats: map[formats.Format]formats.FormatOverride{
				formats.Kiwi: {Required: []string{"credit_score"}},
			}},
		},
		{
			name: "blank signatures",
			overrides: &formats.Overrides{Formats: map[formats.Format]formats.FormatOverride{
				formats.NBKI: {Signatures: []string{"  "}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := formats.NewCatalog(tt.overrides); !errors.Is(err, formats.ErrInvalidCatalog) {
				t.Errorf("NewCatalog error = %v, want ErrInvalidCatalog", err)
			}
		})
	}
}

func TestRecordClone(t *testing.T) {
	r := &formats.Record{
		Format: formats.NBKI,
		Fields: map[string]any{
			"full_name": "Иванов Иван Иванович",
			"accounts":  []any{map[string]any{"creditor_name": "Сбербанк"}},
		},
		Absent: []string{"credit_score"},
	}

	c := r.Clone()
	c.Fields["accounts"].([]any)[0].(map[string]any)["creditor_name"] = "ВТБ"

	got := r.Fields["accounts"].([]any)[0].(map[string]any)["creditor_name"]
	if got != "Сбербанк" {
		t.Errorf("original mutated through clone: %v", got)
	}
	if !c.IsAbsent("credit_score") {
		t.Error("clone lost absent fields")
	}
	if _, ok := c.Get("credit_score"); ok {
		t.Error("absent field reported as extracted")
	}
}
