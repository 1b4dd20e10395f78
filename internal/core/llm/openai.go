package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/config"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/observability"
)

type openaiClient struct {
	client         *openai.Client
	model          string
	targetLanguage string
	logger         *zerolog.Logger
	rateLimiter    *rate.Limiter

	// Circuit breaker state
	consecutiveFailures int
	circuitOpenUntil    time.Time
	mu                  sync.Mutex
}

// ErrCircuitBreakerOpen indicates the circuit breaker is open.
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// NewOpenAI creates a normalizer backed by an OpenAI-compatible chat completion API.
func NewOpenAI(cfg *config.Config, logger *zerolog.Logger) Normalizer {
	clientCfg := openai.DefaultConfig(cfg.LLMAPIKey)
	if cfg.LLMBaseURL != "" {
		clientCfg.BaseURL = cfg.LLMBaseURL
	}

	model := cfg.LLMModel
	if model == "" {
		model = defaultModel
	}

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}

	return &openaiClient{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          model,
		targetLanguage: cfg.TargetLanguage,
		logger:         logger,
		rateLimiter:    rate.NewLimiter(rate.Limit(rps), rateLimiterBurst),
	}
}

func (c *openaiClient) checkCircuit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().Before(c.circuitOpenUntil) {
		return fmt.Errorf("%w until %v", ErrCircuitBreakerOpen, c.circuitOpenUntil)
	}

	return nil
}

func (c *openaiClient) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures = 0
}

func (c *openaiClient) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures++
	if c.consecutiveFailures >= circuitBreakerLimit {
		c.circuitOpenUntil = time.Now().Add(circuitBreakerTimeout)
		c.logger.Warn().
			Int("consecutive_failures", c.consecutiveFailures).
			Time("open_until", c.circuitOpenUntil).
			Msg("Circuit breaker opened")
	}
}

// Normalize sends the batch in one chat completion. Items the model skipped
// or returned in an invalid shape get a per-item error; the call itself
// fails only when the request fails or nothing can be parsed.
func (c *openaiClient) Normalize(ctx context.Context, items []domain.RawItem) ([]Result, error) {
	if len(items) == 0 {
		return nil, nil
	}

	if err := c.checkCircuit(); err != nil {
		return nil, err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf(errRateLimiter, err)
	}

	parts := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: buildNormalizePrompt(c.targetLanguage, len(items)),
	}}

	for i, item := range items {
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: buildItemText(i, item)})
	}

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: parts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})

	observability.NormalizerRequestDuration.WithLabelValues(c.model).Observe(time.Since(start).Seconds())

	if err != nil {
		c.recordFailure()
		observability.NormalizerFailures.WithLabelValues(failureRequest).Inc()

		return nil, fmt.Errorf(errOpenAIChatCompletion, err)
	}

	c.recordSuccess()

	if len(resp.Choices) == 0 {
		observability.NormalizerFailures.WithLabelValues(failureParse).Inc()
		return nil, fmt.Errorf("chat completion: %w", apperrors.ErrEmptyResponse)
	}

	content := resp.Choices[0].Message.Content
	c.logger.Debug().Str(logKeyModel, c.model).Int(logKeyCount, len(items)).Msg("LLM response received")

	raw, err := extractResults(content)
	if err != nil {
		observability.NormalizerFailures.WithLabelValues(failureParse).Inc()
		return nil, err
	}

	return c.alignResults(raw, items), nil
}

// alignResults places decoded items by their index. Invalid or out of range
// entries are logged and skipped.
func (c *openaiClient) alignResults(raw []json.RawMessage, items []domain.RawItem) []Result {
	results := make([]Result, len(items))
	for i, item := range items {
		results[i] = Result{RawItemID: item.ID}
	}

	for _, r := range raw {
		decoded, err := decodeItem(r)
		if err != nil {
			observability.NormalizerFailures.WithLabelValues(failureSchema).Inc()
			c.logger.Warn().Err(err).Msg("normalizer result rejected")

			continue
		}

		if decoded.Index < 0 || decoded.Index >= len(items) {
			observability.NormalizerFailures.WithLabelValues(failureSchema).Inc()
			c.logger.Warn().Int(logKeyIndex, decoded.Index).Msg("normalizer result index out of range")

			continue
		}

		if results[decoded.Index].Item == nil {
			results[decoded.Index].Item = decoded
		}
	}

	for i := range results {
		if results[i].Item == nil {
			observability.NormalizerFailures.WithLabelValues(failureMissing).Inc()
			results[i].Err = fmt.Errorf("item %d: %w", i, ErrNoResultsExtracted)
			c.logger.Warn().Str(logKeyRawItem, results[i].RawItemID).Msg("normalizer returned no result for item")
		}
	}

	return results
}
