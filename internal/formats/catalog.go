package formats

import (
	"fmt"
	"slices"
	"strings"
)

func bound(v float64) *float64 { return &v }

var accountStatuses = []string{"active", "closed", "overdue", "sold", "restructured"}

var accountItems = []FieldSpec{
	{Name: "creditor_name", Kind: KindString, Required: true, Description: "lender that opened the account"},
	{Name: "product_type", Kind: KindString, Description: "loan product, e.g. consumer loan, credit card, mortgage, car loan"},
	{Name: "account_number", Kind: KindString, Description: "contract or account number as printed"},
	{Name: "open_date", Kind: KindDate, Required: true, Earliest: "1990-01-01", NotFuture: true},
	{Name: "close_date", Kind: KindDate, Earliest: "1990-01-01", NotBefore: "open_date"},
	{Name: "credit_limit", Kind: KindNumber, Min: bound(0), Description: "credit limit or original principal"},
	{Name: "current_balance", Kind: KindNumber, Min: bound(0), Description: "outstanding debt"},
	{Name: "status", Kind: KindString, Enum: accountStatuses},
	{Name: "delinquency_days", Kind: KindNumber, Min: bound(0), Integer: true, Description: "current days past due"},
	{Name: "monthly_payment", Kind: KindNumber, Min: bound(0)},
	{Name: "currency", Kind: KindString, Enum: []string{"RUB", "USD", "EUR"}},
}

var inquiryItems = []FieldSpec{
	{Name: "inquiry_date", Kind: KindDate, Required: true, Earliest: "1990-01-01", NotFuture: true},
	{Name: "creditor_name", Kind: KindString, Description: "organization that requested the report"},
	{Name: "inquiry_type", Kind: KindString},
	{Name: "purpose", Kind: KindString},
}

// universe holds every field any layout may yield, in prompt order.
var universe = []FieldSpec{
	{Name: "full_name", Kind: KindString, Description: "subject's surname, name and patronymic"},
	{Name: "birth_date", Kind: KindDate, Earliest: "1900-01-01", NotFuture: true},
	{Name: "passport_series", Kind: KindString, Pattern: `^\d{2}\s?\d{2}$`, Description: "4-digit passport series"},
	{Name: "passport_number", Kind: KindString, Pattern: `^\d{6}$`, Description: "6-digit passport number"},
	{Name: "report_date", Kind: KindDate, Earliest: "2000-01-01", NotFuture: true, Description: "date the report was issued"},
	{Name: "report_number", Kind: KindString},
	{Name: "credit_score", Kind: KindNumber, Min: bound(0), Max: bound(999), Integer: true},
	{Name: "total_debt", Kind: KindNumber, Min: bound(0), Description: "sum of outstanding balances"},
	{Name: "active_accounts", Kind: KindNumber, Min: bound(0), Integer: true},
	{Name: "max_delinquency_days", Kind: KindNumber, Min: bound(0), Integer: true},
	{Name: "accounts", Kind: KindList, Items: accountItems, Description: "credit lines, one entry per account"},
	{Name: "inquiries", Kind: KindList, Items: inquiryItems, Description: "report inquiries"},
}

type layout struct {
	fields   []string
	required []string
}

var allFields = []string{
	"full_name", "birth_date", "passport_series", "passport_number",
	"report_date", "report_number", "credit_score", "total_debt",
	"active_accounts", "max_delinquency_days", "accounts", "inquiries",
}

var layouts = map[Format]layout{
	NBKI: {
		fields:   allFields,
		required: []string{"full_name", "birth_date", "report_date", "accounts"},
	},
	OKB: {
		fields: []string{
			"full_name", "birth_date", "passport_series", "passport_number",
			"report_date", "credit_score", "total_debt", "accounts", "inquiries",
		},
		required: []string{"full_name", "birth_date", "report_date", "accounts"},
	},
	Scoring: {
		fields: []string{
			"full_name", "birth_date", "report_date", "credit_score",
			"accounts", "inquiries",
		},
		required: []string{"full_name", "birth_date", "credit_score"},
	},
	Equifax: {
		fields: []string{
			"full_name", "birth_date", "passport_series", "passport_number",
			"report_date", "report_number", "credit_score", "total_debt",
			"accounts", "inquiries",
		},
		required: []string{"full_name", "birth_date", "report_date", "accounts"},
	},
	Kiwi: {
		fields: []string{
			"full_name", "birth_date", "report_date", "accounts", "inquiries",
		},
		required: []string{"full_name", "birth_date"},
	},
	RSBKI: {
		fields: []string{
			"full_name", "birth_date", "passport_series", "passport_number",
			"report_date", "accounts",
		},
		required: []string{"full_name", "birth_date", "report_date", "accounts"},
	},
	Unknown: {
		fields:   allFields,
		required: []string{"full_name"},
	},
}

var signatures = map[Format][]string{
	NBKI: {
		"Национальное бюро кредитных историй",
		"Национальное бюро",
		"НБКИ",
		"nbki.ru",
	},
	OKB: {
		"Объединенное кредитное бюро",
		"Объединенное кредитное",
		"ОКБ",
		"bki-okb.ru",
	},
	Scoring: {
		"Скоринг Бюро",
		`ООО "Скоринг Бюро"`,
		"sb.bki.ru",
	},
	Equifax: {
		"Equifax",
		"Эквифакс",
		"equifax.ru",
		"Equifax Credit Services",
	},
	Kiwi: {
		"КБ Киви",
		"Киви БКИ",
		"kbc.k.ru",
	},
	RSBKI: {
		"Русский Стандарт БКИ",
		"РС БКИ",
		"rsbki.ru",
	},
}

// Catalog resolves signatures and schemas for every layout.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	signatures map[Format][]string
	schemas    map[Format]Schema
}

// DefaultCatalog returns the built-in catalog. It panics if the built-in
// definitions are inconsistent, which is a programming error.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(nil)
	if err != nil {
		panic(err)
	}
	return c
}

// NewCatalog builds the catalog from the built-in definitions with optional
// overrides applied, and verifies every resulting schema.
func NewCatalog(overrides *Overrides) (*Catalog, error) {
	c := &Catalog{
		signatures: make(map[Format][]string, len(known)),
		schemas:    make(map[Format]Schema, len(layouts)),
	}

	for _, f := range known {
		c.signatures[f] = slices.Clone(signatures[f])
	}

	for _, f := range All() {
		l := layouts[f]
		if overrides != nil {
			if o, ok := overrides.Formats[f]; ok {
				if len(o.Signatures) > 0 {
					if f == Unknown {
						return nil, fmt.Errorf("%w: unknown cannot declare signatures", ErrInvalidCatalog)
					}
					c.signatures[f] = cleanSignatures(o.Signatures)
				}
				if len(o.Required) > 0 {
					l.required = o.Required
				}
			}
		}

		s, err := buildSchema(f, l)
		if err != nil {
			return nil, err
		}
		c.schemas[f] = s
	}

	for _, f := range known {
		if len(c.signatures[f]) == 0 {
			return nil, fmt.Errorf("%w: %s has no signatures", ErrInvalidCatalog, f)
		}
	}

	return c, nil
}

// Signatures returns the signature tokens of a layout. Unknown has none.
func (c *Catalog) Signatures(f Format) []string {
	return c.signatures[f]
}

// Schema returns the schema for a layout. Formats outside the closed set
// resolve to the Unknown schema.
func (c *Catalog) Schema(f Format) Schema {
	if s, ok := c.schemas[f]; ok {
		return s
	}
	return c.schemas[Unknown]
}

func buildSchema(f Format, l layout) (Schema, error) {
	s := Schema{Format: f}
	for _, name := range l.fields {
		idx := slices.IndexFunc(universe, func(spec FieldSpec) bool {
			return spec.Name == name
		})
		if idx < 0 {
			return Schema{}, fmt.Errorf("%w: %s: unknown field %q", ErrInvalidCatalog, f, name)
		}
		spec := universe[idx]
		spec.Required = slices.Contains(l.required, name)
		s.Fields = append(s.Fields, spec)
	}

	for _, name := range l.required {
		if !slices.Contains(l.fields, name) {
			return Schema{}, fmt.Errorf("%w: %s: required field %q not in layout", ErrInvalidCatalog, f, name)
		}
	}

	if err := s.Check(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

func cleanSignatures(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
