// Package degenerator produces alternate spellings of tokens so that word
// forms never learned can still match related rows in the token store.
package degenerator

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Separator between the words of a multi-word token
const separator = " "

// Multi-word variant generation caps
const (
	maxVariantsPerWord = 3
	maxCombinations    = 50
)

// Degenerator generates fallback spellings for tokens. Results are memoized
// per word for the lifetime of the instance; the cache is never
// authoritative and may be cleared at any point.
type Degenerator struct {
	multiword bool

	mu    sync.Mutex
	cache map[string][]string

	lower cases.Caser
	upper cases.Caser
	title cases.Caser
}

// New creates a Degenerator. With multiword disabled, multi-word tokens
// yield no variants at all.
func New(multiword bool) *Degenerator {
	return &Degenerator{
		multiword: multiword,
		cache:     make(map[string][]string),
		lower:     cases.Lower(language.Und),
		upper:     cases.Upper(language.Und),
		title:     cases.Title(language.Und),
	}
}

// Degenerate returns, per token, the ordered list of variants to try as
// fallback lookup keys. The original token is never among its own variants.
func (d *Degenerator) Degenerate(words []string) map[string][]string {
	d.mu.Lock()
	defer d.mu.Unlock()

	result := make(map[string][]string, len(words))
	for _, word := range words {
		variants, ok := d.cache[word]
		if !ok {
			if strings.Contains(word, separator) {
				variants = d.degenerateMultiword(word)
			} else {
				variants = d.degenerateWord(word)
			}
			d.cache[word] = variants
		}
		result[word] = variants
	}
	return result
}

// ClearCache drops all memoized variants
func (d *Degenerator) ClearCache() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache = make(map[string][]string)
}

// degenerateWord builds the variant list for a single word: case forms
// first, then trailing-punctuation forms of every candidate, original
// excluded from the output. Callers must hold d.mu.
func (d *Degenerator) degenerateWord(word string) []string {
	// The original participates in punctuation degeneration even though it
	// is dropped from the result.
	candidates := []string{word}
	for _, form := range []string{d.lower.String(word), d.upper.String(word), d.title.String(word)} {
		if !containsString(candidates, form) {
			candidates = append(candidates, form)
		}
	}

	var out []string
	seen := make(map[string]bool)
	add := func(v string) {
		if v == "" || v == word || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	}

	for _, candidate := range candidates {
		add(candidate)

		if strings.HasSuffix(candidate, "!") || strings.HasSuffix(candidate, "?") {
			mark := candidate[len(candidate)-1:]
			trimmed := strings.TrimRight(candidate, mark)
			// Collapse a repeated trailing run to a single mark, then
			// strip it entirely.
			add(trimmed + mark)
			add(trimmed)
		}

		for strings.HasSuffix(candidate, ".") {
			candidate = candidate[:len(candidate)-1]
			add(candidate)
		}
	}
	return out
}

// degenerateMultiword degenerates each component word, forms the capped
// cartesian product and re-joins. Callers must hold d.mu.
func (d *Degenerator) degenerateMultiword(ngram string) []string {
	if !d.multiword {
		return nil
	}

	parts := strings.Split(ngram, separator)
	lists := make([][]string, len(parts))
	for i, part := range parts {
		// The literal original word stays a candidate at its position
		candidates := append([]string{part}, d.wordVariants(part)...)
		if len(candidates) > maxVariantsPerWord {
			candidates = candidates[:maxVariantsPerWord]
		}
		lists[i] = candidates
	}

	combos := []string{""}
	for i, list := range lists {
		var next []string
		for _, prefix := range combos {
			for _, candidate := range list {
				joined := candidate
				if i > 0 {
					joined = prefix + separator + candidate
				}
				next = append(next, joined)
				if len(next) >= maxCombinations {
					break
				}
			}
			if len(next) >= maxCombinations {
				break
			}
		}
		combos = next
	}

	var out []string
	seen := make(map[string]bool)
	for _, combo := range combos {
		if combo == ngram || seen[combo] {
			continue
		}
		seen[combo] = true
		out = append(out, combo)
	}
	return out
}

// wordVariants returns the memoized single-word variants. Callers must hold
// d.mu.
func (d *Degenerator) wordVariants(word string) []string {
	variants, ok := d.cache[word]
	if !ok {
		variants = d.degenerateWord(word)
		d.cache[word] = variants
	}
	return variants
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
