package llm

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
)

const schemaResource = "normalized_item.schema.json"

//go:embed normalized_item.schema.json
var normalizedItemSchemaJSON string

// ErrNoResultsExtracted indicates no results could be extracted from the model response.
var ErrNoResultsExtracted = errors.New("failed to extract any results from LLM response")

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource(schemaResource, strings.NewReader(normalizedItemSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		compiledSchema, compiledSchemaErr = compiler.Compile(schemaResource)
	})

	return compiledSchema, compiledSchemaErr
}

// decodeItem validates one raw result object and decodes it.
func decodeItem(raw json.RawMessage) (*NormalizedItem, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidPayload, err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidPayload, err)
	}

	var item struct {
		NormalizedItem
		Importance float64 `json:"importance"`
	}

	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidPayload, err)
	}

	out := item.NormalizedItem
	out.Importance = int(math.Round(item.Importance))

	return &out, nil
}

// extractResults pulls the list of result objects out of a model response.
// It accepts {"results": [...]}, a bare array, or any object holding a
// single array of objects, optionally surrounded by prose or code fences.
func extractResults(content string) ([]json.RawMessage, error) {
	text := extractJSON(content)

	var wrapper struct {
		Results []json.RawMessage `json:"results"`
	}

	if err := json.Unmarshal([]byte(text), &wrapper); err == nil && len(wrapper.Results) > 0 {
		return wrapper.Results, nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal([]byte(text), &list); err == nil && len(list) > 0 {
		return list, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		for _, v := range obj {
			if err := json.Unmarshal(v, &list); err == nil && len(list) > 0 {
				return list, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNoResultsExtracted, truncate(content, maxContentRunes))
}

// extractJSON strips markdown fences and surrounding prose from a response.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	if json.Valid([]byte(text)) {
		return text
	}

	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(text, pair[0])
		end := strings.LastIndex(text, pair[1])

		if start != -1 && end > start && json.Valid([]byte(text[start:end+1])) {
			return text[start : end+1]
		}
	}

	return text
}
