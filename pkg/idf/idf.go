// Package idf tracks document frequencies for the optional TF-IDF
// re-ranking of token importance.
package idf

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/hamlet-filter/hamlet/pkg/storage"
)

// Calculator keeps per-token document frequencies, persisted through the
// token store driver under the reserved IDF key space. Document frequencies
// and idf values are cached in memory for the calculator's lifetime.
type Calculator struct {
	driver storage.Driver

	mu          sync.Mutex
	total       int64
	totalLoaded bool
	df          map[string]int64
	values      map[string]float64
}

// New creates a Calculator on top of an attached driver
func New(driver storage.Driver) *Calculator {
	return &Calculator{
		driver: driver,
		df:     make(map[string]int64),
		values: make(map[string]float64),
	}
}

// UpdateDocument records one learned document: the total document count and
// the document frequency of every distinct non-reserved token move up by
// one, in a single transaction. Unlearning never calls this; document
// frequencies only ever grow.
func (c *Calculator) UpdateDocument(tokenCounts map[string]int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tokens := make([]string, 0, len(tokenCounts))
	for token := range tokenCounts {
		if strings.HasPrefix(token, storage.ReservedPrefix) {
			continue
		}
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	if err := c.loadTotal(); err != nil {
		return err
	}
	if err := c.loadFrequencies(tokens); err != nil {
		return err
	}

	if err := c.driver.StartTransaction(); err != nil {
		return err
	}

	c.total++
	if err := c.driver.UpdateToken(storage.KeyIdfTotal, storage.TokenCounts{Ham: c.total}); err != nil {
		return err
	}
	for _, token := range tokens {
		c.df[token]++
		if err := c.driver.UpdateToken(storage.IdfDocKey(token), storage.TokenCounts{Ham: c.df[token]}); err != nil {
			return err
		}
	}

	if err := c.driver.FinishTransaction(); err != nil {
		return err
	}

	// Every cached value depends on the document total
	c.values = make(map[string]float64)
	return nil
}

// Idf returns ln((total+1)/(df+1)) with the document frequency floored at 1,
// or 1.0 before any documents exist.
func (c *Calculator) Idf(token string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.idfLocked([]string{token})
	if err != nil {
		return 0, err
	}
	return values[token], nil
}

// BatchIdf returns idf values for many tokens with one storage round trip
// for the uncached document frequencies.
func (c *Calculator) BatchIdf(tokens []string) (map[string]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.idfLocked(tokens)
}

// Reset drops all in-memory state and deletes the persisted IDF keys
func (c *Calculator) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.driver.DeletePrefix(storage.IdfPrefix); err != nil {
		return fmt.Errorf("failed to reset idf data: %w", err)
	}

	c.total = 0
	c.totalLoaded = true
	c.df = make(map[string]int64)
	c.values = make(map[string]float64)
	return nil
}

func (c *Calculator) idfLocked(tokens []string) (map[string]float64, error) {
	if err := c.loadTotal(); err != nil {
		return nil, err
	}

	result := make(map[string]float64, len(tokens))
	if c.total == 0 {
		for _, token := range tokens {
			result[token] = 1.0
		}
		return result, nil
	}

	var uncached []string
	for _, token := range tokens {
		if _, ok := c.values[token]; ok {
			continue
		}
		if _, ok := c.df[token]; ok {
			continue
		}
		uncached = append(uncached, token)
	}
	if err := c.loadFrequencies(uncached); err != nil {
		return nil, err
	}

	for _, token := range tokens {
		value, ok := c.values[token]
		if !ok {
			// Frequency smoothing keeps unseen tokens finite and the
			// denominator positive.
			df := c.df[token]
			if df < 1 {
				df = 1
			}
			value = math.Log(float64(c.total+1) / float64(df+1))
			c.values[token] = value
		}
		result[token] = value
	}
	return result, nil
}

// loadTotal fetches the persisted document total once
func (c *Calculator) loadTotal() error {
	if c.totalLoaded {
		return nil
	}
	rows, err := c.driver.FetchTokenData([]string{storage.KeyIdfTotal})
	if err != nil {
		return fmt.Errorf("failed to load idf totals: %w", err)
	}
	c.total = rows[storage.KeyIdfTotal].Ham
	c.totalLoaded = true
	return nil
}

// loadFrequencies fills the df cache for the given tokens; rows absent from
// the store stay at zero.
func (c *Calculator) loadFrequencies(tokens []string) error {
	var keys []string
	byKey := make(map[string]string, len(tokens))
	for _, token := range tokens {
		if _, ok := c.df[token]; ok {
			continue
		}
		key := storage.IdfDocKey(token)
		keys = append(keys, key)
		byKey[key] = token
	}
	if len(keys) == 0 {
		return nil
	}

	rows, err := c.driver.FetchTokenData(keys)
	if err != nil {
		return fmt.Errorf("failed to load document frequencies: %w", err)
	}
	for key, token := range byKey {
		c.df[token] = rows[key].Ham
	}
	return nil
}
