package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrParseFailed is returned when content cannot be parsed as JSON,
// either directly or after the allowed repairs.
var ErrParseFailed = errors.New("failed to parse response")

var (
	jsonBlockRegex    = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")
	trailingCommaRule = regexp.MustCompile(`,\s*([}\]])`)
)

// Repair rewrites model output toward valid JSON. It reports false when
// it does not apply to the content.
type Repair func(content string) (string, bool)

// Repairs lists the repair steps in the order ParseRepair applies them.
// Each step works on the output of the previous one.
var Repairs = []Repair{
	UnwrapFence,
	OutermostObject,
	StripTrailingCommas,
}

// Parse attempts to unmarshal content as JSON into T.
// If direct parsing fails, it extracts JSON from a markdown code fence
// and retries. Returns ErrParseFailed if both attempts fail.
func Parse[T any](content string) (T, error) {
	return ParseRepair[T](content, 1)
}

// ParseRepair unmarshals content into T, applying up to maxRepairs steps
// from Repairs when direct parsing fails. It stops at the first candidate
// that parses.
func ParseRepair[T any](content string, maxRepairs int) (T, error) {
	var result T
	candidate := strings.TrimSpace(content)

	if err := json.Unmarshal([]byte(candidate), &result); err == nil {
		return result, nil
	}

	for i := 0; i < min(maxRepairs, len(Repairs)); i++ {
		next, ok := Repairs[i](candidate)
		if !ok {
			continue
		}
		candidate = next

		result = *new(T)
		if err := json.Unmarshal([]byte(candidate), &result); err == nil {
			return result, nil
		}
	}

	return *new(T), fmt.Errorf("%w: %s", ErrParseFailed, truncate(content, 512))
}

// UnwrapFence returns the body of the first markdown code fence.
func UnwrapFence(content string) (string, bool) {
	matches := jsonBlockRegex.FindStringSubmatch(content)
	if len(matches) < 2 {
		return content, false
	}
	return strings.TrimSpace(matches[1]), true
}

// OutermostObject cuts content to the span between the first '{' and the
// last '}', dropping surrounding prose.
func OutermostObject(content string) (string, bool) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return content, false
	}
	if start == 0 && end == len(content)-1 {
		return content, false
	}
	return content[start : end+1], true
}

// StripTrailingCommas removes commas directly before a closing brace or bracket.
func StripTrailingCommas(content string) (string, bool) {
	cleaned := trailingCommaRule.ReplaceAllString(content, "$1")
	return cleaned, cleaned != content
}

// truncate keeps at most n bytes of s, backing off to a rune boundary.
// Invalid sequences in the kept prefix are replaced so error text is
// always valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return strings.ToValidUTF8(s, "\uFFFD")
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.ToValidUTF8(s[:n], "\uFFFD") + "..."
}
