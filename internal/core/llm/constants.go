package llm

import "time"

// Error message templates
const (
	errRateLimiter          = "rate limiter error: %w"
	errOpenAIChatCompletion = "openai chat completion error: %w"
)

const (
	llmAPIKeyMock         = "mock"
	defaultModel          = "gpt-4o-mini"
	rateLimiterBurst      = 5
	maxContentRunes       = 4000
	minLettersForDetect   = 6
	iso6391Length         = 2
	circuitBreakerLimit   = 5
	circuitBreakerTimeout = 1 * time.Minute
)

// Failure reasons reported to metrics.
const (
	failureRequest = "request"
	failureParse   = "parse"
	failureSchema  = "schema"
	failureMissing = "missing"
)

// Log key strings
const (
	logKeyModel   = "model"
	logKeyIndex   = "index"
	logKeyRawItem = "raw_item_id"
	logKeyCount   = "count"
)
