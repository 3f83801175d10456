// Package formats defines the closed set of credit-bureau report layouts the
// pipeline understands, together with each layout's signature tokens,
// field schema, and the structured record type produced for it.
package formats

import (
	"encoding/json"
	"slices"
)

// Format identifies the bureau layout that produced a report.
type Format string

// Known bureau layouts. Unknown is returned by classification when no layout
// can be selected with sufficient confidence.
const (
	NBKI    Format = "nbki"
	OKB     Format = "okb"
	Scoring Format = "scoring"
	Equifax Format = "equifax"
	Kiwi    Format = "kiwi"
	RSBKI   Format = "rsbki"
	Unknown Format = "unknown"
)

var known = []Format{
	NBKI,
	OKB,
	Scoring,
	Equifax,
	Kiwi,
	RSBKI,
}

var bureaus = map[Format]string{
	NBKI:    "НБКИ",
	OKB:     "ОКБ",
	Scoring: "Скоринг Бюро",
	Equifax: "Эквифакс",
	Kiwi:    "КБ Киви",
	RSBKI:   "Русский Стандарт БКИ",
	Unknown: "Неизвестное бюро",
}

// Known returns the classifiable layouts, excluding Unknown.
func Known() []Format {
	return slices.Clone(known)
}

// All returns every layout including Unknown.
func All() []Format {
	return append(Known(), Unknown)
}

// Bureau returns the display name of the issuing bureau.
func (f Format) Bureau() string {
	return bureaus[f]
}

// Valid reports whether f is a member of the closed set.
func (f Format) Valid() bool {
	return f == Unknown || slices.Contains(known, f)
}

// Parse validates s as a layout name.
func Parse(s string) (Format, error) {
	f := Format(s)
	if !f.Valid() {
		return "", ErrInvalidFormat
	}
	return f, nil
}

// UnmarshalJSON rejects layout names outside the closed set.
func (f *Format) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := Parse(raw)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// UnmarshalText supports YAML and TOML map keys.
func (f *Format) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
