package classifier

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/hamlet-filter/hamlet/pkg/config"
	"github.com/hamlet-filter/hamlet/pkg/degenerator"
	"github.com/hamlet-filter/hamlet/pkg/idf"
	"github.com/hamlet-filter/hamlet/pkg/storage"
	"github.com/hamlet-filter/hamlet/pkg/tokenizer"
)

func newTestClassifier(t *testing.T, mutate func(*config.Config)) *Classifier {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Storage.Backend = config.BackendMemory
	if mutate != nil {
		mutate(cfg)
	}

	driver := storage.NewMemoryDriver()
	degen := degenerator.New(cfg.Degenerator.Multiword)
	adapter, err := storage.NewAdapter(driver, degen)
	if err != nil {
		t.Fatalf("failed to attach adapter: %v", err)
	}

	var calc *idf.Calculator
	if cfg.Classifier.UseTFIDF {
		calc = idf.New(driver)
	}

	return New(cfg, adapter, tokenizer.New(cfg.Tokenizer), degen, calc)
}

func TestClassifyEmptyStore(t *testing.T) {
	c := newTestClassifier(t, nil)

	texts := []string{
		"hello there",
		"BUY cheap watches NOW!!!",
		"completely unremarkable sentence about nothing",
	}
	for _, text := range texts {
		p, err := c.Classify(text)
		if err != nil {
			t.Fatalf("Classify(%q) failed: %v", text, err)
		}
		if p != 0.5 {
			t.Errorf("Classify(%q) on empty store = %f, want exactly 0.5", text, p)
		}
	}
}

func TestRobinsonMonotonic(t *testing.T) {
	c := &Classifier{cfg: config.DefaultConfig().Classifier}
	internals := storage.Internals{TextsHam: 10, TextsSpam: 10}

	previous := -1.0
	for spam := int64(0); spam <= 10; spam++ {
		p := c.robinson(storage.TokenCounts{Ham: 10 - spam, Spam: spam}, internals)
		if p <= previous {
			t.Errorf("robinson not increasing at spam=%d: %f <= %f", spam, p, previous)
		}
		previous = p
	}
}

func TestRobinsonUnknownToken(t *testing.T) {
	c := &Classifier{cfg: config.DefaultConfig().Classifier}
	internals := storage.Internals{TextsHam: 5, TextsSpam: 5}

	// With no occurrences at all, the prior rob_x must come back unchanged
	p := c.robinson(storage.TokenCounts{}, internals)
	if p != c.cfg.RobX {
		t.Errorf("expected rob_x %f for empty counts, got %f", c.cfg.RobX, p)
	}
}

func TestClassifyTrainedCorpora(t *testing.T) {
	c := newTestClassifier(t, nil)

	spamTexts := []string{
		"free viagra casino lottery winner pills",
		"free viagra casino lottery winner pills claim your prize",
	}
	hamTexts := []string{
		"meeting tomorrow about the project agenda and schedule",
		"meeting tomorrow about the project agenda, notes attached",
	}
	for _, text := range spamTexts {
		if err := c.Learn(text, storage.CategorySpam); err != nil {
			t.Fatalf("learn spam failed: %v", err)
		}
	}
	for _, text := range hamTexts {
		if err := c.Learn(text, storage.CategoryHam); err != nil {
			t.Fatalf("learn ham failed: %v", err)
		}
	}

	spamScore, err := c.Classify("viagra casino lottery winner")
	if err != nil {
		t.Fatalf("classify spam failed: %v", err)
	}
	if spamScore <= 0.85 {
		t.Errorf("expected spam score > 0.85, got %f", spamScore)
	}

	hamScore, err := c.Classify("meeting about the project agenda")
	if err != nil {
		t.Fatalf("classify ham failed: %v", err)
	}
	if hamScore >= 0.15 {
		t.Errorf("expected ham score < 0.15, got %f", hamScore)
	}
}

func TestLearnUnlearnRoundTrip(t *testing.T) {
	c := newTestClassifier(t, nil)

	// Background data the round trip must not disturb
	if err := c.Learn("unrelated background chatter", storage.CategoryHam); err != nil {
		t.Fatalf("learn failed: %v", err)
	}
	before, err := c.store.Internals()
	if err != nil {
		t.Fatalf("internals failed: %v", err)
	}

	text := "special offer for cheap watches"
	if err := c.Learn(text, storage.CategoryHam); err != nil {
		t.Fatalf("learn failed: %v", err)
	}
	if err := c.Unlearn(text, storage.CategoryHam); err != nil {
		t.Fatalf("unlearn failed: %v", err)
	}

	after, err := c.store.Internals()
	if err != nil {
		t.Fatalf("internals failed: %v", err)
	}
	if before != after {
		t.Errorf("text counters not restored: %+v vs %+v", before, after)
	}

	data, err := c.store.Get([]string{"special", "offer", "cheap", "watches"})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(data.Tokens) != 0 {
		t.Errorf("expected all touched rows removed, got %+v", data.Tokens)
	}
}

func TestClassifyInputErrors(t *testing.T) {
	c := newTestClassifier(t, nil)

	if _, err := c.Classify(""); !errors.Is(err, ErrMissingText) {
		t.Errorf("expected ErrMissingText, got %v", err)
	}
	if _, err := c.Classify("   "); !errors.Is(err, tokenizer.ErrEmptyText) {
		t.Errorf("expected tokenizer error to propagate, got %v", err)
	}
}

func TestLearnInputErrors(t *testing.T) {
	c := newTestClassifier(t, nil)

	if err := c.Learn("", storage.CategoryHam); !errors.Is(err, ErrMissingText) {
		t.Errorf("expected ErrMissingText, got %v", err)
	}
	if err := c.Learn("some text", storage.Category("bogus")); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}
	if err := c.Unlearn("some text", storage.Category("")); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory for missing category, got %v", err)
	}
}

func TestClassifyUsesDegenerateEvidence(t *testing.T) {
	c := newTestClassifier(t, nil)

	for i := 0; i < 3; i++ {
		if err := c.Learn("casino casino casino", storage.CategorySpam); err != nil {
			t.Fatalf("learn failed: %v", err)
		}
		if err := c.Learn("agenda agenda agenda", storage.CategoryHam); err != nil {
			t.Fatalf("learn failed: %v", err)
		}
	}

	// "casino..." was never stored; its stripped variant carries the
	// evidence.
	p, err := c.Classify("casino... casino...")
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if p <= 0.5 {
		t.Errorf("expected spammy score from degenerate evidence, got %f", p)
	}
}

func TestTokenProbabilityVariantSelection(t *testing.T) {
	c := &Classifier{cfg: config.DefaultConfig().Classifier}
	internals := storage.Internals{TextsHam: 10, TextsSpam: 10}

	data := &storage.TokenData{
		Tokens: map[string]storage.TokenCounts{},
		Degenerates: map[string]map[string]storage.TokenCounts{
			"Cheap!": {
				"cheap":  {Ham: 0, Spam: 8}, // decisive
				"CHEAP":  {Ham: 4, Spam: 4}, // neutral
				"Cheap":  {Ham: 3, Spam: 5},
			},
		},
	}

	p := c.tokenProbability("Cheap!", data, internals)
	want := c.robinson(storage.TokenCounts{Ham: 0, Spam: 8}, internals)
	if p != want {
		t.Errorf("expected most decisive variant %f, got %f", want, p)
	}
}

func TestTokenProbabilityVariantTieBreak(t *testing.T) {
	// rob_s of zero makes the two probabilities exactly 0 and 1, an exact
	// tie in distance from 0.5
	cfg := config.DefaultConfig().Classifier
	cfg.RobS = 0
	c := &Classifier{cfg: cfg}
	internals := storage.Internals{TextsHam: 10, TextsSpam: 10}

	data := &storage.TokenData{
		Tokens: map[string]storage.TokenCounts{},
		Degenerates: map[string]map[string]storage.TokenCounts{
			"word": {
				"worda": {Ham: 6, Spam: 0},
				"wordb": {Ham: 0, Spam: 6},
			},
		},
	}

	p := c.tokenProbability("word", data, internals)
	want := c.robinson(storage.TokenCounts{Ham: 6, Spam: 0}, internals)
	if p != want {
		t.Errorf("expected lexicographically smallest variant to win the tie, got %f, want %f", p, want)
	}
}

func TestTokenProbabilityUnknown(t *testing.T) {
	c := &Classifier{cfg: config.DefaultConfig().Classifier}
	data := &storage.TokenData{
		Tokens:      map[string]storage.TokenCounts{},
		Degenerates: map[string]map[string]storage.TokenCounts{},
	}

	p := c.tokenProbability("neverseen", data, storage.Internals{TextsHam: 3, TextsSpam: 3})
	if p != c.cfg.RobX {
		t.Errorf("expected rob_x for unknown token, got %f", p)
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		probs []float64
		want  float64
	}{
		{[]float64{0.5, 0.5}, 0.5},
		{[]float64{0.9}, 0.9},
		{[]float64{0.1}, 0.1},
	}
	for _, tt := range tests {
		if got := combine(tt.probs); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("combine(%v) = %f, want %f", tt.probs, got, tt.want)
		}
	}

	// Symmetric evidence cancels out to the middle
	if got := combine([]float64{0.9, 0.1}); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("combine(0.9, 0.1) = %f, want 0.5", got)
	}
}

// failingDriver simulates a backend whose reads break after attach
type failingDriver struct{}

func (failingDriver) IsInitialized() (bool, error) { return true, nil }
func (failingDriver) IsUpToDate() (bool, error)    { return true, nil }
func (failingDriver) Initialize() error            { return nil }
func (failingDriver) FetchTokenData([]string) (map[string]storage.TokenCounts, error) {
	return nil, fmt.Errorf("backend gone")
}
func (failingDriver) AddToken(string, storage.TokenCounts) error    { return fmt.Errorf("backend gone") }
func (failingDriver) UpdateToken(string, storage.TokenCounts) error { return fmt.Errorf("backend gone") }
func (failingDriver) DeleteToken(string) error                      { return fmt.Errorf("backend gone") }
func (failingDriver) DeletePrefix(string) error                     { return fmt.Errorf("backend gone") }
func (failingDriver) StartTransaction() error                       { return fmt.Errorf("backend gone") }
func (failingDriver) FinishTransaction() error                      { return fmt.Errorf("backend gone") }
func (failingDriver) Close() error                                  { return nil }

func TestClassifyDegradesOnReadFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	adapter, err := storage.NewAdapter(failingDriver{}, nil)
	if err != nil {
		t.Fatalf("failed to attach adapter: %v", err)
	}

	c := New(cfg, adapter, tokenizer.New(cfg.Tokenizer), nil, nil)
	p, err := c.Classify("anything at all")
	if err != nil {
		t.Fatalf("classification must not abort on read failure: %v", err)
	}
	if p != 0.5 {
		t.Errorf("expected default probability 0.5, got %f", p)
	}
}

func TestLearnFatalOnWriteFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	adapter, err := storage.NewAdapter(failingDriver{}, nil)
	if err != nil {
		t.Fatalf("failed to attach adapter: %v", err)
	}

	c := New(cfg, adapter, tokenizer.New(cfg.Tokenizer), nil, nil)
	if err := c.Learn("anything at all", storage.CategorySpam); err == nil {
		t.Error("expected fatal error on write failure")
	}
}
