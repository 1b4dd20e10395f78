package solr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
)

const (
	actionList   = "LIST"
	actionCreate = "CREATE"
	actionDelete = "DELETE"
)

// CollectionExists reports whether the configured collection is present.
func (c *Client) CollectionExists(ctx context.Context) (bool, error) {
	if !c.enabled {
		return false, ErrClientDisabled
	}

	var result struct {
		Collections []string `json:"collections"`
	}

	if err := c.collectionsAction(ctx, url.Values{"action": {actionList}}, &result); err != nil {
		return false, fmt.Errorf("list collections: %w", err)
	}

	return slices.Contains(result.Collections, c.collection), nil
}

// CreateCollection creates the configured collection.
func (c *Client) CreateCollection(ctx context.Context) error {
	if !c.enabled {
		return ErrClientDisabled
	}

	params := url.Values{
		"action":            {actionCreate},
		"name":              {c.collection},
		"numShards":         {strconv.Itoa(c.shards)},
		"replicationFactor": {strconv.Itoa(c.replicas)},
	}

	if c.configSet != "" {
		params.Set("collection.configName", c.configSet)
	}

	if err := c.collectionsAction(ctx, params, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", c.collection, err)
	}

	return nil
}

// DropCollection deletes the configured collection. A missing collection is not an error.
func (c *Client) DropCollection(ctx context.Context) error {
	if !c.enabled {
		return ErrClientDisabled
	}

	exists, err := c.CollectionExists(ctx)
	if err != nil {
		return err
	}

	if !exists {
		return nil
	}

	params := url.Values{
		"action": {actionDelete},
		"name":   {c.collection},
	}

	if err := c.collectionsAction(ctx, params, nil); err != nil {
		return fmt.Errorf("delete collection %s: %w", c.collection, err)
	}

	return nil
}

// EnsureFields adds every field in fields that the collection schema lacks.
func (c *Client) EnsureFields(ctx context.Context, fields []SchemaField) error {
	if !c.enabled {
		return ErrClientDisabled
	}

	existing, err := c.schemaFieldNames(ctx)
	if err != nil {
		return err
	}

	var missing []SchemaField

	for _, f := range fields {
		if _, ok := existing[f.Name]; !ok {
			missing = append(missing, f)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	body, err := json.Marshal(map[string]interface{}{"add-field": missing})
	if err != nil {
		return fmt.Errorf("marshal schema update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+schemaPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create schema request: %w", err)
	}

	req.Header.Set(headerContentType, contentTypeJSON)

	var ignored map[string]interface{}
	if err := c.doJSON(req, &ignored); err != nil {
		return fmt.Errorf("add schema fields: %w", err)
	}

	return nil
}

func (c *Client) schemaFieldNames(ctx context.Context) (map[string]struct{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+schemaFieldsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create schema fields request: %w", err)
	}

	var result struct {
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}

	if err := c.doJSON(req, &result); err != nil {
		return nil, fmt.Errorf("list schema fields: %w", err)
	}

	names := make(map[string]struct{}, len(result.Fields))
	for _, f := range result.Fields {
		names[f.Name] = struct{}{}
	}

	return names, nil
}

func (c *Client) collectionsAction(ctx context.Context, params url.Values, out interface{}) error {
	params.Set("wt", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rootURL+collectionsPath+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create collections request: %w", err)
	}

	if out == nil {
		var ignored map[string]interface{}
		out = &ignored
	}

	return c.doJSON(req, out)
}
