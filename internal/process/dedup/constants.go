package dedup

import "time"

// Hashing policy.
const (
	// DefaultHashMinLength is the normalized length below which text is not hashed.
	DefaultHashMinLength = 10
	// minHashableContentLength gates the hash stage on combined title and content.
	minHashableContentLength = 20
	shortTextTokenPrefix     = "short:"
)

// Hash stage thresholds.
const (
	hashCandidateLimit         = 3
	hashSimpleTitleThreshold   = 0.90
	hashDetailedTitleThreshold = 0.70
	hashCombinedThreshold      = 0.50
	hashCombinedTitleFloor     = 0.50
)

// Semantic stage thresholds. Raw relevance scores come from the search engine.
const (
	semanticTitleBoost       = 3.0
	semanticContentBoost     = 1.0
	semanticMinRawScore      = 2.0
	semanticScoreDivisor     = 10.0
	semanticScoreThreshold   = 1.5
	semanticContentThreshold = 0.50
	semanticCandidateRows    = 5
	// DefaultSemanticWindow limits semantic lookups to recently created documents.
	DefaultSemanticWindow = 7 * 24 * time.Hour
)

// lowConfidenceSaveCeiling is the semantic score at or above which a flagged
// duplicate is rejected. Flagged duplicates below it are saved with a back-reference.
const lowConfidenceSaveCeiling = 1.5

// Sweep thresholds.
const (
	sweepDetailedTitleThreshold = 0.85
	sweepSimpleTitleThreshold   = 0.90
	sweepSemanticThreshold      = 0.90
	rawTitleMatchThreshold      = 0.80
	rawLookupLimit              = 500
)

// Token filtering.
const minTokenLength = 3

// Log field keys.
const (
	logFieldArticleID  = "article_id"
	logFieldOriginalID = "original_id"
	logFieldMethod     = "method"
	logFieldSimilarity = "similarity"
	logFieldTitle      = "title"
)
