package validate

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/JaimeStill/creditread/internal/formats"
)

var (
	errNotNumber = errors.New("not a number")
	errNotDate   = errors.New("not a date")
)

// CollapseSpace trims s and folds every run of whitespace, including
// non-breaking spaces, into a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var currencyAffix = regexp.MustCompile(`(?i)^(?:rub|usd|eur|руб\.?|р\.|₽|\$|€)?(.*?)(?:rub|usd|eur|рублей|рубля|рубль|руб\.?|р\.?|₽|\$|€)?$`)

// ParseNumber reads an amount in any of the grouping styles found in
// bureau reports: "1 234 567,89", "1,234,567.89", "1.234.567,89", with an
// optional currency symbol or code on either side.
//
// When the only separator is a single comma or dot followed by exactly
// three digits it is read as a thousands separator for a comma and as a
// decimal point for a dot.
func ParseNumber(s string) (float64, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\'' {
			return -1
		}
		return r
	}, s)
	if m := currencyAffix.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if s == "" {
		return 0, errNotNumber
	}

	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")

	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndexByte(s, ',') > strings.LastIndexByte(s, '.') {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case commas == 1:
		if len(s)-strings.IndexByte(s, ',')-1 == 3 {
			s = strings.Replace(s, ",", "", 1)
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	for _, r := range s {
		if !(r >= '0' && r <= '9') && r != '.' && r != '-' && r != '+' {
			return 0, errNotNumber
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errNotNumber
	}
	return v, nil
}

var dateLayouts = []string{
	"2006-1-2",
	"2.1.2006",
	"2/1/2006",
	"2-1-2006",
}

var (
	yearSuffix = regexp.MustCompile(`(?i)\s*(?:г\.?|года?)$`)
	isoStamp   = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[T ]\d{2}:\d{2}`)
	wordDate   = regexp.MustCompile(`^(\d{1,2})\s+(\p{L}+)\.?\s+(\d{4})$`)
)

var months = map[string]time.Month{
	"янв": time.January,
	"фев": time.February,
	"мар": time.March,
	"апр": time.April,
	"май": time.May,
	"мая": time.May,
	"июн": time.June,
	"июл": time.July,
	"авг": time.August,
	"сен": time.September,
	"окт": time.October,
	"ноя": time.November,
	"дек": time.December,
}

// ParseDate reads a date in ISO, dotted, slashed or dashed day-first form,
// or with a Russian month name ("2 января 2006 г."), and returns it in
// formats.DateLayout.
func ParseDate(s string) (string, error) {
	s = yearSuffix.ReplaceAllString(CollapseSpace(s), "")
	if m := isoStamp.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(formats.DateLayout), nil
		}
	}

	m := wordDate.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return "", errNotDate
	}

	runes := []rune(m[2])
	if len(runes) < 3 {
		return "", errNotDate
	}
	month, ok := months[string(runes[:3])]
	if !ok {
		return "", errNotDate
	}

	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return "", errNotDate
	}
	return t.Format(formats.DateLayout), nil
}
