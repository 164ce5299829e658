// Package storage holds the token-count store: the low-level Driver contract
// implemented per backend, and the Adapter protocol the classifier consumes.
package storage

// SchemaVersion is the token store layout this build expects. The stored
// version must match exactly; migration between versions is not supported.
const SchemaVersion = 3

// Reserved key space. Ordinary tokens never start with ReservedPrefix; the
// tokenizer rejects such candidates before they can reach the store.
const (
	ReservedPrefix = "::"

	// Global text counters and the schema version marker share the token
	// table. The version is kept in the ham field of its row.
	KeyTexts   = ReservedPrefix + "texts"
	KeyVersion = ReservedPrefix + "version"

	// TF-IDF bookkeeping lives under its own sub-prefix: one key for the
	// total document count, one per tracked token's document frequency.
	IdfPrefix   = ReservedPrefix + "idf:"
	KeyIdfTotal = IdfPrefix + "total"

	// EmptyToken stands in when a text yields no valid tokens at all.
	EmptyToken = ReservedPrefix + "empty"
)

// IdfDocKey returns the document-frequency key for a token.
func IdfDocKey(token string) string {
	return IdfPrefix + "df:" + token
}

// Category is the class a text is learned as
type Category string

const (
	CategoryHam  Category = "ham"
	CategorySpam Category = "spam"
)

// Action selects between adding and removing a text's counts
type Action string

const (
	ActionLearn   Action = "learn"
	ActionUnlearn Action = "unlearn"
)

// TokenCounts is one row of the store: how often a token was seen in
// learned ham and spam texts. Both counters stay non-negative.
type TokenCounts struct {
	Ham  int64
	Spam int64
}

// Internals are the global counters kept under reserved keys
type Internals struct {
	TextsHam  int64
	TextsSpam int64
	Version   int
}

// TokenData is the result of a batched lookup: direct hits in Tokens, and
// for every miss that matched through degeneration, the per-variant counts.
type TokenData struct {
	Tokens      map[string]TokenCounts
	Degenerates map[string]map[string]TokenCounts
}

// Degenerator yields fallback lookup variants for tokens absent from the
// store. The adapter and the classifier share one instance.
type Degenerator interface {
	Degenerate(words []string) map[string][]string
}

// Driver is the low-level row store a backend implements. Lifecycle checks
// run once at attach; FetchTokenData returns only the rows that exist;
// mutations between StartTransaction and FinishTransaction are applied as
// one unit. Drivers are not required to support nested transactions.
type Driver interface {
	IsInitialized() (bool, error)
	IsUpToDate() (bool, error)
	Initialize() error

	FetchTokenData(tokens []string) (map[string]TokenCounts, error)
	AddToken(token string, counts TokenCounts) error
	UpdateToken(token string, counts TokenCounts) error
	DeleteToken(token string) error
	DeletePrefix(prefix string) error

	StartTransaction() error
	FinishTransaction() error

	Close() error
}
