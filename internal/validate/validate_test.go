package validate_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/JaimeStill/creditread/internal/formats"
	"github.com/JaimeStill/creditread/internal/validate"
)

func fixedClock() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newValidator() *validate.Validator {
	return validate.New(formats.DefaultCatalog(), fixedClock)
}

func completeRecord() *formats.Record {
	return &formats.Record{
		Format: formats.NBKI,
		Fields: map[string]any{
			"full_name":       "  Иванов   Иван Иванович ",
			"birth_date":      "02.01.1980",
			"passport_series": "45 04",
			"passport_number": float64(123456),
			"report_date":     "15 мая 2025 г.",
			"credit_score":    "712",
			"total_debt":      "1 234,50 руб.",
			"accounts": []any{
				map[string]any{
					"creditor_name":   "Сбербанк",
					"open_date":       "2020-01-15",
					"close_date":      "15.01.2023",
					"status":          "Closed",
					"current_balance": float64(0),
					"currency":        "rub",
				},
			},
		},
	}
}

func TestValidateAcceptsAndNormalizes(t *testing.T) {
	rec, defects := newValidator().Validate(completeRecord(), formats.NBKI)
	if len(defects) != 0 {
		t.Fatalf("defects = %v, want none", defects)
	}

	want := map[string]any{
		"full_name":       "Иванов Иван Иванович",
		"birth_date":      "1980-01-02",
		"passport_series": "45 04",
		"passport_number": "123456",
		"report_date":     "2025-05-15",
		"credit_score":    float64(712),
		"total_debt":      1234.5,
	}
	for name, w := range want {
		if got, _ := rec.Get(name); got != w {
			t.Errorf("%s = %#v, want %#v", name, got, w)
		}
	}

	accounts, _ := rec.Get("accounts")
	account := accounts.([]any)[0].(map[string]any)
	if account["status"] != "closed" {
		t.Errorf("status = %v, want closed", account["status"])
	}
	if account["currency"] != "RUB" {
		t.Errorf("currency = %v, want RUB", account["currency"])
	}
	if account["close_date"] != "2023-01-15" {
		t.Errorf("close_date = %v, want 2023-01-15", account["close_date"])
	}
}

func TestValidateDefects(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(map[string]any)
		want     validate.Defect
		blocking bool
	}{
		{
			name:     "absent required field",
			mutate:   func(f map[string]any) { delete(f, "birth_date") },
			want:     validate.Defect{Field: "birth_date", Reason: validate.Missing, Required: true},
			blocking: true,
		},
		{
			name:     "empty required string",
			mutate:   func(f map[string]any) { f["full_name"] = "   " },
			want:     validate.Defect{Field: "full_name", Reason: validate.Malformed, Required: true},
			blocking: true,
		},
		{
			name:     "unparseable date",
			mutate:   func(f map[string]any) { f["birth_date"] = "early eighties" },
			want:     validate.Defect{Field: "birth_date", Reason: validate.Malformed, Required: true},
			blocking: true,
		},
		{
			name:     "future report date",
			mutate:   func(f map[string]any) { f["report_date"] = "2025-06-02" },
			want:     validate.Defect{Field: "report_date", Reason: validate.OutOfRange, Required: true},
			blocking: true,
		},
		{
			name:     "score above range",
			mutate:   func(f map[string]any) { f["credit_score"] = float64(1200) },
			want:     validate.Defect{Field: "credit_score", Reason: validate.OutOfRange},
			blocking: false,
		},
		{
			name:     "wrong type on optional field",
			mutate:   func(f map[string]any) { f["total_debt"] = true },
			want:     validate.Defect{Field: "total_debt", Reason: validate.WrongType},
			blocking: false,
		},
		{
			name:     "passport number pattern",
			mutate:   func(f map[string]any) { f["passport_number"] = "12345" },
			want:     validate.Defect{Field: "passport_number", Reason: validate.Malformed},
			blocking: false,
		},
		{
			name:     "empty required list",
			mutate:   func(f map[string]any) { f["accounts"] = []any{} },
			want:     validate.Defect{Field: "accounts", Reason: validate.Malformed, Required: true},
			blocking: true,
		},
		{
			name: "nested required date",
			mutate: func(f map[string]any) {
				f["accounts"] = append(f["accounts"].([]any), map[string]any{
					"creditor_name": "ВТБ",
					"open_date":     "sometime",
				})
			},
			want:     validate.Defect{Field: "accounts[1].open_date", Reason: validate.Malformed, Required: true},
			blocking: true,
		},
		{
			name: "close date before open date",
			mutate: func(f map[string]any) {
				f["accounts"].([]any)[0].(map[string]any)["close_date"] = "2019-12-31"
			},
			want:     validate.Defect{Field: "accounts[0].close_date", Reason: validate.OutOfRange},
			blocking: false,
		},
		{
			name: "enum outside set",
			mutate: func(f map[string]any) {
				f["accounts"].([]any)[0].(map[string]any)["status"] = "frozen"
			},
			want:     validate.Defect{Field: "accounts[0].status", Reason: validate.OutOfRange},
			blocking: false,
		},
		{
			name: "item in optional list",
			mutate: func(f map[string]any) {
				f["inquiries"] = []any{map[string]any{"creditor_name": "МФО"}}
			},
			want:     validate.Defect{Field: "inquiries[0].inquiry_date", Reason: validate.Missing},
			blocking: false,
		},
		{
			name:     "list item not an object",
			mutate:   func(f map[string]any) { f["accounts"] = []any{"Сбербанк"} },
			want:     validate.Defect{Field: "accounts[0]", Reason: validate.WrongType, Required: true},
			blocking: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := completeRecord()
			tt.mutate(rec.Fields)

			_, defects := newValidator().Validate(rec, formats.NBKI)
			if len(defects) != 1 {
				t.Fatalf("defects = %v, want exactly one", defects)
			}

			got := defects[0]
			got.Detail = ""
			if got != tt.want {
				t.Errorf("defect = %+v, want %+v", got, tt.want)
			}
			if validate.Blocking(defects) != tt.blocking {
				t.Errorf("Blocking = %v, want %v", validate.Blocking(defects), tt.blocking)
			}
		})
	}
}

func TestValidateOptionalAbsentFieldsAreNotDefects(t *testing.T) {
	rec := &formats.Record{
		Format: formats.Kiwi,
		Fields: map[string]any{
			"full_name":  "Петров Пётр",
			"birth_date": "1990-07-07",
		},
		Absent: []string{"report_date", "accounts", "inquiries"},
	}

	_, defects := newValidator().Validate(rec, formats.Kiwi)
	if len(defects) != 0 {
		t.Errorf("defects = %v, want none", defects)
	}
}

func TestValidateIsPure(t *testing.T) {
	v := newValidator()
	input := completeRecord()
	input.Fields["credit_score"] = "abc"
	input.Fields["accounts"].([]any)[0].(map[string]any)["open_date"] = "32.01.2020"
	snapshot := input.Clone()

	rec1, defects1 := v.Validate(input, formats.NBKI)
	rec2, defects2 := v.Validate(input, formats.NBKI)

	if !reflect.DeepEqual(defects1, defects2) {
		t.Errorf("defects differ between calls: %v vs %v", defects1, defects2)
	}
	if !reflect.DeepEqual(rec1, rec2) {
		t.Error("records differ between calls")
	}
	if !reflect.DeepEqual(input, snapshot) {
		t.Error("Validate modified its input")
	}
	if len(defects1) != 2 {
		t.Errorf("defects = %v, want 2", defects1)
	}
}

func TestValidateUsesClock(t *testing.T) {
	rec := completeRecord()
	rec.Fields["report_date"] = "2030-01-01"

	later := validate.New(formats.DefaultCatalog(), func() time.Time {
		return time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)
	})
	if _, defects := later.Validate(rec, formats.NBKI); len(defects) != 0 {
		t.Errorf("defects = %v, want none with a later clock", defects)
	}

	if _, defects := newValidator().Validate(rec, formats.NBKI); len(defects) != 1 {
		t.Errorf("defects = %v, want one with the fixed clock", defects)
	}
}
