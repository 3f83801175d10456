// Package classify decides which bureau layout produced a report by scoring
// signature tokens in the leading pages. It never consults the model.
package classify

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/JaimeStill/creditread/internal/config"
	"github.com/JaimeStill/creditread/internal/extract"
	"github.com/JaimeStill/creditread/internal/formats"
)

// Score is one layout's share of matched signature tokens.
type Score struct {
	Format  formats.Format `json:"format"`
	Score   float64        `json:"score"`
	Matched []string       `json:"matched"`
}

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	pages         int
	minConfidence float64
	epsilon       float64
	matchers      map[formats.Format][]matcher
}

type matcher struct {
	token string
	re    *regexp.Regexp
}

// New compiles the catalog's signature tokens into matchers.
func New(catalog *formats.Catalog, cfg config.ClassifierConfig) *Classifier {
	c := &Classifier{
		pages:         cfg.Pages,
		minConfidence: cfg.MinConfidence,
		epsilon:       cfg.Epsilon,
		matchers:      make(map[formats.Format][]matcher, len(formats.Known())),
	}

	for _, f := range formats.Known() {
		for _, token := range catalog.Signatures(f) {
			c.matchers[f] = append(c.matchers[f], matcher{
				token: token,
				re:    compileToken(token),
			})
		}
	}

	return c
}

// Classify returns the best-scoring layout and its score. It returns
// Unknown when the best score is below the minimum confidence or when the
// runner-up is within epsilon of it; the confidence is still the best score.
func (c *Classifier) Classify(content *extract.Content) (formats.Format, float64) {
	scores := c.Scores(content.Text(c.pages))
	return c.decide(scores)
}

// Scores ranks every known layout against text, best first. Ties keep
// catalog order.
func (c *Classifier) Scores(text string) []Score {
	text = normalize(text)

	scores := make([]Score, 0, len(c.matchers))
	for _, f := range formats.Known() {
		ms := c.matchers[f]
		if len(ms) == 0 {
			continue
		}

		s := Score{Format: f}
		for _, m := range ms {
			if m.re.MatchString(text) {
				s.Matched = append(s.Matched, m.token)
			}
		}
		s.Score = float64(len(s.Matched)) / float64(len(ms))
		scores = append(scores, s)
	}

	slices.SortStableFunc(scores, func(a, b Score) int {
		return cmp.Compare(b.Score, a.Score)
	})

	return scores
}

func (c *Classifier) decide(scores []Score) (formats.Format, float64) {
	if len(scores) == 0 {
		return formats.Unknown, 0
	}

	best := scores[0]
	if best.Score < c.minConfidence {
		return formats.Unknown, best.Score
	}
	if len(scores) > 1 && best.Score-scores[1].Score < c.epsilon {
		return formats.Unknown, best.Score
	}

	return best.Format, best.Score
}

var folder = strings.NewReplacer(
	"ё", "е",
	"«", `"`, "»", `"`,
	"“", `"`, "”", `"`, "„", `"`,
	"\u00a0", " ",
)

func normalize(s string) string {
	return folder.Replace(strings.ToLower(s))
}

// compileToken builds a case-insensitive matcher that accepts any run of
// whitespace between words and refuses matches inside longer words.
func compileToken(token string) *regexp.Regexp {
	words := strings.Fields(normalize(token))
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	pattern := `(?:^|[^\p{L}\p{N}])` + strings.Join(words, `\s+`) + `(?:[^\p{L}\p{N}]|$)`
	return regexp.MustCompile(pattern)
}
