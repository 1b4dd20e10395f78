// Package solr provides a client for interacting with Apache Solr.
//
// The Client is used for:
//   - Indexing normalized articles with their content fingerprints
//   - Hash and relevance lookups for duplicate detection
//   - Full-text article search and collection administration
//
// The client handles JSON serialization, error handling, and retries.
package solr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxResults   = 10
	defaultShards       = 1
	defaultReplicas     = 1
	healthCheckTimeout  = 5 * time.Second
	selectPath          = "/select"
	updatePath          = "/update"
	pingPath            = "/admin/ping"
	collectionsPath     = "/admin/collections"
	schemaPath          = "/schema"
	schemaFieldsPath    = "/schema/fields"
	contentTypeJSON     = "application/json"
	contentTypeForm     = "application/x-www-form-urlencoded"
	headerContentType   = "Content-Type"
	httpStatusConflict  = 409
	maxResponseBodySize = 10 * 1024 * 1024 // 10MB
	errBodyReadLimit    = 1024
	errStatusBodyFmt    = "%w: status %d, body: %s"
	errStatusFmt        = "%w: status %d"
	maxURILength        = 4096 // Use POST for queries longer than this
	solrTimeLayout      = "2006-01-02T15:04:05Z"
)

// Client provides methods to interact with a SolrCloud collection.
type Client struct {
	rootURL    string
	collection string
	baseURL    string
	configSet  string
	shards     int
	replicas   int
	httpClient *http.Client
	maxResults int
	enabled    bool
}

// New creates a new Solr client with the given configuration.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	shards := cfg.Shards
	if shards <= 0 {
		shards = defaultShards
	}

	replicas := cfg.Replicas
	if replicas <= 0 {
		replicas = defaultReplicas
	}

	root := strings.TrimSuffix(cfg.BaseURL, "/")

	return &Client{
		rootURL:    root,
		collection: cfg.Collection,
		baseURL:    root + "/" + url.PathEscape(cfg.Collection),
		configSet:  cfg.ConfigSet,
		shards:     shards,
		replicas:   replicas,
		maxResults: maxResults,
		enabled:    root != "" && cfg.Collection != "",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Collection returns the collection name.
func (c *Client) Collection() string {
	return c.collection
}

// Ping checks if Solr is reachable and the collection exists.
func (c *Client) Ping(ctx context.Context) error {
	if !c.enabled {
		return ErrClientDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pingPath, nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping request: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

// Search executes a search query and returns matching documents.
// Uses GET for short queries, POST for long queries to avoid URI length limits.
func (c *Client) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	if !c.enabled {
		return nil, ErrClientDisabled
	}

	params := &searchParams{
		q:    query,
		rows: c.maxResults,
	}

	for _, opt := range opts {
		opt(params)
	}

	var req *http.Request

	var err error

	searchURL := c.buildSearchURL(params)

	// Use POST for long queries to avoid URI length limits (HTTP 414)
	if len(searchURL) > maxURILength {
		req, err = c.buildSearchPOSTRequest(ctx, params)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	}

	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}

	var result SearchResponse
	if err := c.doJSON(req, &result); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	return &result, nil
}

// buildSearchPOSTRequest creates a POST request for Solr search.
// Used when query parameters exceed URI length limits.
func (c *Client) buildSearchPOSTRequest(ctx context.Context, params *searchParams) (*http.Request, error) {
	formData := c.buildSearchParams(params)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+selectPath, strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create POST request: %w", err)
	}

	req.Header.Set(headerContentType, contentTypeForm)

	return req, nil
}

// Index adds or updates documents in the collection.
func (c *Client) Index(ctx context.Context, docs ...IndexDocument) error {
	if !c.enabled {
		return ErrClientDisabled
	}

	if len(docs) == 0 {
		return nil
	}

	return c.sendUpdate(ctx, docs, true)
}

// AtomicUpdate performs an atomic update on a document.
// Only the specified fields are modified.
func (c *Client) AtomicUpdate(ctx context.Context, id string, fields map[string]interface{}) error {
	if !c.enabled {
		return ErrClientDisabled
	}

	update := make(map[string]interface{})
	update["id"] = id

	for field, value := range fields {
		update[field] = map[string]interface{}{"set": value}
	}

	return c.sendUpdate(ctx, []interface{}{update}, true)
}

// Delete removes documents by their IDs.
func (c *Client) Delete(ctx context.Context, ids ...string) error {
	if !c.enabled {
		return ErrClientDisabled
	}

	if len(ids) == 0 {
		return nil
	}

	return c.sendUpdate(ctx, map[string]interface{}{"delete": ids}, true)
}

// sendUpdate sends a JSON body to the update handler.
func (c *Client) sendUpdate(ctx context.Context, payload interface{}, commit bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	updateURL := c.baseURL + updatePath
	if commit {
		updateURL += "?commit=true"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, updateURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create update request: %w", err)
	}

	req.Header.Set(headerContentType, contentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	defer resp.Body.Close()

	// Treat 409 Conflict as success for idempotent indexing operations.
	// A version conflict means another worker already indexed the same document.
	if resp.StatusCode == httpStatusConflict {
		return nil
	}

	return checkStatus(resp)
}

// doJSON executes req and decodes a successful JSON response into out.
func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	return nil
}

// checkStatus maps non-2xx responses onto the package errors.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	var sentinel error

	switch {
	case resp.StatusCode == http.StatusNotFound:
		sentinel = ErrNotFound
	case resp.StatusCode == httpStatusConflict:
		sentinel = ErrVersionConflict
	case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError:
		sentinel = ErrBadRequest
	default:
		sentinel = ErrServerError
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, errBodyReadLimit))
	if err != nil || len(body) == 0 {
		return fmt.Errorf(errStatusFmt, sentinel, resp.StatusCode)
	}

	return fmt.Errorf(errStatusBodyFmt, sentinel, resp.StatusCode, string(body))
}

// searchParams holds search query parameters.
type searchParams struct {
	q       string
	fq      []string
	fl      string
	rows    int
	sort    string
	defType string
	qf      string // query fields for edismax
	mm      string // minimum should match for edismax
}

// SearchOption configures a search query.
type SearchOption func(*searchParams)

// WithFilterQuery adds a filter query.
func WithFilterQuery(fq string) SearchOption {
	return func(p *searchParams) {
		p.fq = append(p.fq, fq)
	}
}

// WithFields sets the fields to return.
func WithFields(fields string) SearchOption {
	return func(p *searchParams) {
		p.fl = fields
	}
}

// WithRows sets the maximum number of results.
func WithRows(rows int) SearchOption {
	return func(p *searchParams) {
		p.rows = rows
	}
}

// WithSort sets the sort order.
func WithSort(sort string) SearchOption {
	return func(p *searchParams) {
		p.sort = sort
	}
}

// WithEdismax enables edismax query parser with query fields.
func WithEdismax(queryFields string) SearchOption {
	return func(p *searchParams) {
		p.defType = "edismax"
		p.qf = queryFields
	}
}

// WithMinimumMatch sets the edismax minimum-should-match expression, e.g. "30%".
func WithMinimumMatch(mm string) SearchOption {
	return func(p *searchParams) {
		p.mm = mm
	}
}

// buildSearchParams constructs the URL values for a search query.
func (c *Client) buildSearchParams(params *searchParams) url.Values {
	q := url.Values{}
	q.Set("q", params.q)
	q.Set("rows", strconv.Itoa(params.rows))
	q.Set("wt", "json")

	for _, fq := range params.fq {
		q.Add("fq", fq)
	}

	if params.fl != "" {
		q.Set("fl", params.fl)
	}

	if params.sort != "" {
		q.Set("sort", params.sort)
	}

	if params.defType != "" {
		q.Set("defType", params.defType)
	}

	if params.qf != "" {
		q.Set("qf", params.qf)
	}

	if params.mm != "" {
		q.Set("mm", params.mm)
	}

	return q
}

// buildSearchURL constructs the search URL with query parameters.
func (c *Client) buildSearchURL(params *searchParams) string {
	return c.baseURL + selectPath + "?" + c.buildSearchParams(params).Encode()
}
