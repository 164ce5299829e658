// Package classifier combines per-token frequency statistics into one spam
// probability and drives learning and unlearning.
package classifier

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hamlet-filter/hamlet/pkg/config"
	"github.com/hamlet-filter/hamlet/pkg/degenerator"
	"github.com/hamlet-filter/hamlet/pkg/idf"
	"github.com/hamlet-filter/hamlet/pkg/storage"
	"github.com/hamlet-filter/hamlet/pkg/tokenizer"
)

// Input errors, returned to the caller and never thrown past the boundary
var (
	ErrMissingText     = errors.New("classifier: missing text")
	ErrInvalidCategory = errors.New("classifier: invalid category")
)

// Classifier is stateless across calls; every Classify works on freshly
// fetched token data.
type Classifier struct {
	cfg   config.ClassifierConfig
	store *storage.Adapter
	lexer *tokenizer.Tokenizer

	// Shared with the adapter, which uses it for fallback lookups
	degen *degenerator.Degenerator

	// Only set when TF-IDF re-ranking is enabled
	idf *idf.Calculator
}

// New wires a Classifier. The degenerator must be the same instance the
// adapter was attached with; idfCalc may be nil to disable TF-IDF.
func New(cfg *config.Config, store *storage.Adapter, lexer *tokenizer.Tokenizer, degen *degenerator.Degenerator, idfCalc *idf.Calculator) *Classifier {
	c := &Classifier{
		cfg:   cfg.Classifier,
		store: store,
		lexer: lexer,
		degen: degen,
	}
	if cfg.Classifier.UseTFIDF {
		c.idf = idfCalc
	}
	return c
}

// Classify returns the spam probability of text in [0, 1]. Storage read
// failures degrade to default probabilities instead of aborting; tokenizer
// errors propagate unchanged.
func (c *Classifier) Classify(text string) (float64, error) {
	if text == "" {
		return 0, ErrMissingText
	}

	// With an untrained store every token falls back to rob_x
	internals, err := c.store.Internals()
	if err != nil {
		internals = storage.Internals{}
	}

	counts, err := c.lexer.Tokens(text)
	if err != nil {
		return 0, err
	}

	tokens := make([]string, 0, len(counts))
	for token := range counts {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	data, err := c.store.Get(tokens)
	if err != nil {
		data = &storage.TokenData{
			Tokens:      map[string]storage.TokenCounts{},
			Degenerates: map[string]map[string]storage.TokenCounts{},
		}
	}

	weights := c.rankWeights(tokens, counts)

	type evidence struct {
		token       string
		probability float64
		importance  float64
		rank        float64
		occurrences int
	}

	evs := make([]evidence, 0, len(tokens))
	for _, token := range tokens {
		probability := c.tokenProbability(token, data, internals)
		importance := math.Abs(0.5 - probability)

		// TF-IDF re-ranks evidence but never changes the probability
		// itself.
		rank := importance
		if weights != nil {
			rank = importance * weights[token]
		}

		evs = append(evs, evidence{
			token:       token,
			probability: probability,
			importance:  importance,
			rank:        rank,
			occurrences: counts[token],
		})
	}

	sort.Slice(evs, func(i, j int) bool {
		if evs[i].rank != evs[j].rank {
			return evs[i].rank > evs[j].rank
		}
		return evs[i].token < evs[j].token
	})

	// Up to use_relevant distinct tokens make the evidence set, each
	// contributing once per occurrence. The min_dev gate always applies to
	// the unweighted importance.
	var probabilities []float64
	used := 0
	for _, ev := range evs {
		if used >= c.cfg.UseRelevant {
			break
		}
		if ev.importance <= c.cfg.MinDev {
			continue
		}
		for i := 0; i < ev.occurrences; i++ {
			probabilities = append(probabilities, ev.probability)
		}
		used++
	}

	if len(probabilities) == 0 {
		return 0.5, nil
	}
	return combine(probabilities), nil
}

// Learn adds one text to a category
func (c *Classifier) Learn(text string, category storage.Category) error {
	return c.process(text, category, storage.ActionLearn)
}

// Unlearn removes one previously learned text from a category
func (c *Classifier) Unlearn(text string, category storage.Category) error {
	return c.process(text, category, storage.ActionUnlearn)
}

func (c *Classifier) process(text string, category storage.Category, action storage.Action) error {
	if strings.TrimSpace(text) == "" {
		return ErrMissingText
	}
	if category != storage.CategoryHam && category != storage.CategorySpam {
		return ErrInvalidCategory
	}

	// Training always runs on raw occurrence counts; TF-IDF weighting must
	// never distort what gets stored.
	counts, err := c.lexer.Tokens(text)
	if err != nil {
		return err
	}

	if action == storage.ActionLearn && c.idf != nil {
		if err := c.idf.UpdateDocument(counts); err != nil {
			return fmt.Errorf("failed to update document frequencies: %w", err)
		}
	}

	return c.store.ProcessText(counts, category, action)
}

// tokenProbability resolves one token against the fetched data: direct row,
// best degenerate variant, or the unknown-token default.
func (c *Classifier) tokenProbability(token string, data *storage.TokenData, internals storage.Internals) float64 {
	if counts, ok := data.Tokens[token]; ok {
		return c.robinson(counts, internals)
	}

	variants, ok := data.Degenerates[token]
	if !ok || len(variants) == 0 {
		return c.cfg.RobX
	}

	// The most decisive variant wins; on equal distance from 0.5 the
	// lexicographically smallest variant string is used, keeping results
	// stable across runs.
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)

	best := 0.5
	bestDeviation := -1.0
	for _, name := range names {
		probability := c.robinson(variants[name], internals)
		if deviation := math.Abs(0.5 - probability); deviation > bestDeviation {
			bestDeviation = deviation
			best = probability
		}
	}
	return best
}

// robinson computes the per-token spam probability: the raw relative
// frequency ratio shifted toward rob_x, with rob_s steering how much
// evidence it takes to leave the prior.
func (c *Classifier) robinson(counts storage.TokenCounts, internals storage.Internals) float64 {
	relHam := float64(counts.Ham)
	if internals.TextsHam > 0 {
		relHam = float64(counts.Ham) / float64(internals.TextsHam)
	}
	relSpam := float64(counts.Spam)
	if internals.TextsSpam > 0 {
		relSpam = float64(counts.Spam) / float64(internals.TextsSpam)
	}

	var raw float64
	if relHam+relSpam > 0 {
		raw = relSpam / (relHam + relSpam)
	}

	n := float64(counts.Ham + counts.Spam)
	return (c.cfg.RobS*c.cfg.RobX + n*raw) / (c.cfg.RobS + n)
}

// rankWeights computes the TF-IDF weight map when enabled; a nil result
// means importance ranks unweighted.
func (c *Classifier) rankWeights(tokens []string, counts map[string]int) map[string]float64 {
	if c.idf == nil {
		return nil
	}
	values, err := c.idf.BatchIdf(tokens)
	if err != nil {
		// Ranking degrades to plain importance on read failure
		return nil
	}
	return c.lexer.Weights(counts, func(token string) float64 {
		return values[token]
	})
}

// combine fuses the evidence values with Robinson's geometric-mean method
func combine(probabilities []float64) float64 {
	hamProduct := 1.0
	spamProduct := 1.0
	for _, p := range probabilities {
		spamProduct *= p
		hamProduct *= 1 - p
	}

	n := float64(len(probabilities))
	haminess := 1 - math.Pow(hamProduct, 1/n)
	spaminess := 1 - math.Pow(spamProduct, 1/n)
	if haminess+spaminess == 0 {
		return 0.5
	}

	indicator := (haminess - spaminess) / (haminess + spaminess)
	return (1 + indicator) / 2
}
