// Package tokenizer turns raw user-submitted text into the token multiset
// the classifier and the learner both consume.
package tokenizer

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/hamlet-filter/hamlet/pkg/config"
	"github.com/hamlet-filter/hamlet/pkg/storage"
)

// ErrEmptyText is returned for input with no content at all
var ErrEmptyText = errors.New("tokenizer: empty text")

var (
	uriPattern    = regexp.MustCompile(`(?i)(?:https?://|www\.|mailto:)[^\s"'<>\[\]{}]+`)
	uriSplit      = regexp.MustCompile(`[/:.?&=#_+~@-]+`)
	tagPattern    = regexp.MustCompile(`<[/!]?[a-zA-Z][^<>]*>`)
	bbcodePattern = regexp.MustCompile(`\[/?[a-zA-Z][^\[\]]*\]`)

	// Word boundaries: whitespace and punctuation classes. Trailing ".",
	// "!" and "?" stay attached to words; the degenerator strips them at
	// lookup time.
	wordSplit = regexp.MustCompile("[\\s\"#$%&()*+,/:;<=>@\\[\\\\\\]^_`{|}~“”‘’«»…]+")

	numericPattern = regexp.MustCompile(`^[0-9]+([.,][0-9]+)*$`)
)

// Tokenizer splits texts according to one fixed configuration
type Tokenizer struct {
	cfg  config.TokenizerConfig
	fold cases.Caser
}

// New creates a Tokenizer for the given settings
func New(cfg config.TokenizerConfig) *Tokenizer {
	return &Tokenizer{
		cfg:  cfg,
		fold: cases.Fold(),
	}
}

// Tokens splits text into a token to occurrence-count mapping. A text that
// yields no valid token at all still produces the sentinel token, so
// downstream logic always has at least one entry to work with.
func (t *Tokenizer) Tokens(text string) (map[string]int, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	text = html.UnescapeString(text)
	counts := make(map[string]int)

	if t.cfg.GetURIs {
		text = uriPattern.ReplaceAllStringFunc(text, func(uri string) string {
			t.count(counts, uri)
			for _, part := range uriSplit.Split(uri, -1) {
				t.count(counts, part)
			}
			return " "
		})
	}

	if t.cfg.GetMarkup {
		text = tagPattern.ReplaceAllStringFunc(text, func(tag string) string {
			t.count(counts, truncateSpan(tag, ">"))
			return " "
		})
		text = bbcodePattern.ReplaceAllStringFunc(text, func(span string) string {
			t.count(counts, truncateSpan(span, "]"))
			return " "
		})
	}

	// Ordered sequence of surviving word tokens, kept for n-gram windows
	var words []string
	for _, raw := range wordSplit.Split(text, -1) {
		if token, ok := t.valid(raw); ok {
			counts[token]++
			words = append(words, token)
		}
	}

	// Multi-word tokens are counted independently of their component
	// unigrams.
	for size := 2; size <= t.cfg.MaxNgram; size++ {
		limit := size * t.cfg.MaxSize
		for i := 0; i+size <= len(words); i++ {
			joined := strings.Join(words[i:i+size], " ")
			if utf8.RuneCountInString(joined) > limit {
				continue
			}
			counts[joined]++
		}
	}

	if len(counts) == 0 {
		counts[storage.EmptyToken] = 1
	}
	return counts, nil
}

// Weights computes the TF-IDF weight map for already-tokenized counts:
// weight = count/total * idf. The raw counts are never touched; training
// always runs on them, weights only re-rank evidence. A nil idf function
// means every idf is 1.0.
func (t *Tokenizer) Weights(counts map[string]int, idf func(string) float64) map[string]float64 {
	total := 0
	for _, count := range counts {
		total += count
	}

	weights := make(map[string]float64, len(counts))
	if total == 0 {
		return weights
	}
	for token, count := range counts {
		weight := float64(count) / float64(total)
		if idf != nil {
			weight *= idf(token)
		}
		weights[token] = weight
	}
	return weights
}

// count folds and validates raw, then counts it
func (t *Tokenizer) count(counts map[string]int, raw string) {
	if token, ok := t.valid(raw); ok {
		counts[token]++
	}
}

// valid applies the token rules: rune length within bounds, not
// pure-numeric unless allowed, never inside the reserved internal key
// space. The returned token is case-folded.
func (t *Tokenizer) valid(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	length := utf8.RuneCountInString(raw)
	if length < t.cfg.MinSize || length > t.cfg.MaxSize {
		return "", false
	}
	if !t.cfg.AllowNumbers && numericPattern.MatchString(raw) {
		return "", false
	}
	token := t.fold.String(raw)
	if strings.HasPrefix(token, storage.ReservedPrefix) {
		return "", false
	}
	return token, true
}

// truncateSpan reduces a markup span with attributes to its bare name plus
// an ellipsis, keeping the closing delimiter: `<a href="...">` becomes
// `<a...>`.
func truncateSpan(span, closing string) string {
	if idx := strings.IndexAny(span, " \t\r\n="); idx > 0 {
		return span[:idx] + "..." + closing
	}
	return span
}
