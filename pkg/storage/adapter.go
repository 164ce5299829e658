package storage

import (
	"fmt"
	"sort"
)

// Adapter implements the token-store access protocol on top of a Driver:
// batched lookups with degenerate fallback, and transactional learn/unlearn.
// It exclusively owns its driver; callers share the adapter, not the
// connection behind it.
type Adapter struct {
	driver Driver
	degen  Degenerator
}

// NewAdapter attaches to a store. A fresh store is initialized to the
// current schema; an existing store must already be at it. Any mismatch or
// initialization failure is fatal, with no partial attach.
func NewAdapter(driver Driver, degen Degenerator) (*Adapter, error) {
	initialized, err := driver.IsInitialized()
	if err != nil {
		return nil, fmt.Errorf("storage check failed: %w", err)
	}

	if !initialized {
		if err := driver.Initialize(); err != nil {
			return nil, fmt.Errorf("storage initialization failed: %w", err)
		}
	} else {
		upToDate, err := driver.IsUpToDate()
		if err != nil {
			return nil, fmt.Errorf("storage check failed: %w", err)
		}
		if !upToDate {
			return nil, fmt.Errorf("token store schema version mismatch: this build expects version %d", SchemaVersion)
		}
	}

	return &Adapter{driver: driver, degen: degen}, nil
}

// Driver exposes the underlying row store for components that persist under
// their own reserved keys, such as the IDF calculator.
func (a *Adapter) Driver() Driver {
	return a.driver
}

// Internals returns the global text counters and the stored schema version
func (a *Adapter) Internals() (Internals, error) {
	rows, err := a.driver.FetchTokenData([]string{KeyTexts, KeyVersion})
	if err != nil {
		return Internals{}, fmt.Errorf("failed to fetch internals: %w", err)
	}

	texts := rows[KeyTexts]
	version := rows[KeyVersion]
	return Internals{
		TextsHam:  texts.Ham,
		TextsSpam: texts.Spam,
		Version:   int(version.Ham),
	}, nil
}

// Get batch-fetches counts for the requested tokens. Tokens absent from the
// store are run through the degenerator and all variant data found is
// reported per missing token; choosing among variants is the classifier's
// job, not the adapter's.
func (a *Adapter) Get(tokens []string) (*TokenData, error) {
	data := &TokenData{
		Tokens:      make(map[string]TokenCounts),
		Degenerates: make(map[string]map[string]TokenCounts),
	}

	rows, err := a.driver.FetchTokenData(tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token data: %w", err)
	}

	var missing []string
	for _, token := range tokens {
		if counts, ok := rows[token]; ok {
			data.Tokens[token] = counts
		} else {
			missing = append(missing, token)
		}
	}
	if len(missing) == 0 || a.degen == nil {
		return data, nil
	}

	variants := a.degen.Degenerate(missing)
	var lookup []string
	for _, token := range missing {
		lookup = append(lookup, variants[token]...)
	}
	if len(lookup) == 0 {
		return data, nil
	}

	found, err := a.driver.FetchTokenData(lookup)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch degenerate data: %w", err)
	}

	for _, token := range missing {
		for _, variant := range variants[token] {
			counts, ok := found[variant]
			if !ok {
				continue
			}
			if data.Degenerates[token] == nil {
				data.Degenerates[token] = make(map[string]TokenCounts)
			}
			data.Degenerates[token][variant] = counts
		}
	}
	return data, nil
}

// ProcessText applies one learned or unlearned text as a single transaction:
// per-token counter adjustments clamped at zero, row deletion when both
// counters reach zero, insertion only on learn, then the matching global
// texts counter moves by one. A failure is fatal to the caller and is never
// retried here; partial application cannot be assumed safe to repeat.
func (a *Adapter) ProcessText(tokenCounts map[string]int, category Category, action Action) error {
	if category != CategoryHam && category != CategorySpam {
		return fmt.Errorf("invalid category %q", category)
	}
	if action != ActionLearn && action != ActionUnlearn {
		return fmt.Errorf("invalid action %q", action)
	}

	tokens := make([]string, 0, len(tokenCounts))
	for token := range tokenCounts {
		tokens = append(tokens, token)
	}
	// Deterministic write order across processes sharing one store
	sort.Strings(tokens)

	existing, err := a.driver.FetchTokenData(tokens)
	if err != nil {
		return fmt.Errorf("failed to fetch token data: %w", err)
	}
	internals, err := a.Internals()
	if err != nil {
		return err
	}

	if err := a.driver.StartTransaction(); err != nil {
		return err
	}

	for _, token := range tokens {
		occurrences := int64(tokenCounts[token])

		row, known := existing[token]
		if !known {
			if action != ActionLearn {
				continue
			}
			if category == CategoryHam {
				row.Ham = occurrences
			} else {
				row.Spam = occurrences
			}
			if err := a.driver.AddToken(token, row); err != nil {
				return err
			}
			continue
		}

		delta := occurrences
		if action == ActionUnlearn {
			delta = -occurrences
		}
		if category == CategoryHam {
			row.Ham = clamp(row.Ham + delta)
		} else {
			row.Spam = clamp(row.Spam + delta)
		}

		if row.Ham == 0 && row.Spam == 0 {
			err = a.driver.DeleteToken(token)
		} else {
			err = a.driver.UpdateToken(token, row)
		}
		if err != nil {
			return err
		}
	}

	texts := TokenCounts{Ham: internals.TextsHam, Spam: internals.TextsSpam}
	var delta int64 = 1
	if action == ActionUnlearn {
		delta = -1
	}
	if category == CategoryHam {
		texts.Ham = clamp(texts.Ham + delta)
	} else {
		texts.Spam = clamp(texts.Spam + delta)
	}
	if err := a.driver.UpdateToken(KeyTexts, texts); err != nil {
		return err
	}

	return a.driver.FinishTransaction()
}

func clamp(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
