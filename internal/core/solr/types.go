package solr

import "time"

// Config holds configuration for the Solr client.
type Config struct {
	// BaseURL is the Solr root URL, e.g., "http://solr:8983/solr".
	BaseURL string
	// Collection is the collection holding article documents.
	Collection string
	// ConfigSet is the configset used when the collection has to be created.
	ConfigSet string
	// Shards and Replicas size a newly created collection.
	Shards   int
	Replicas int
	// Timeout is the HTTP request timeout.
	Timeout time.Duration
	// MaxResults is the default maximum number of search results.
	MaxResults int
}

// SearchResponse represents the Solr search response.
type SearchResponse struct {
	Response ResponseBody `json:"response"`
}

// ResponseBody contains the main response data.
type ResponseBody struct {
	NumFound int        `json:"numFound"` //nolint:tagliatelle // Solr API field name
	Start    int        `json:"start"`
	MaxScore float64    `json:"maxScore,omitempty"` //nolint:tagliatelle // Solr API field name
	Docs     []Document `json:"docs"`
}

// Document represents an article document stored in Solr.
type Document struct {
	ID      string  `json:"id"`
	Version int64   `json:"_version_,omitempty"` //nolint:tagliatelle // Solr internal field name
	Score   float64 `json:"score,omitempty"`

	SourceID      string   `json:"source_id,omitempty"`
	SourceName    string   `json:"source_name,omitempty"`
	URL           string   `json:"url,omitempty"`
	Title         string   `json:"title,omitempty"`
	OriginalTitle string   `json:"original_title,omitempty"`
	Content       string   `json:"content,omitempty"`
	Language      string   `json:"language,omitempty"`
	Theme         string   `json:"theme,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Importance    int      `json:"importance,omitempty"`
	DuplicateOf   string   `json:"duplicate_of,omitempty"`

	ContentHash string `json:"content_hash,omitempty"`
	TitleHash   string `json:"title_hash,omitempty"`

	PublishedAt time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// IndexDocument is a simplified document for indexing.
// It uses interface{} to allow flexible field population.
type IndexDocument map[string]interface{}

// NewIndexDocument creates a new IndexDocument with the given ID.
func NewIndexDocument(id string) IndexDocument {
	return IndexDocument{
		"id": id,
	}
}

// SetField sets a field on the document. Empty strings, empty slices and
// zero times are skipped.
func (d IndexDocument) SetField(name string, value interface{}) IndexDocument {
	switch v := value.(type) {
	case string:
		if v == "" {
			return d
		}
	case []string:
		if len(v) == 0 {
			return d
		}
	case time.Time:
		if v.IsZero() {
			return d
		}

		value = FormatTime(v)
	}

	d[name] = value

	return d
}

// FormatTime renders t in the UTC form Solr date fields expect.
func FormatTime(t time.Time) string {
	return t.UTC().Format(solrTimeLayout)
}

// SchemaField describes a field added through the Schema API.
type SchemaField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Stored      bool   `json:"stored"`
	Indexed     bool   `json:"indexed"`
	MultiValued bool   `json:"multiValued"` //nolint:tagliatelle // Solr API field name
}

// Field names of article documents.
const (
	FieldID            = "id"
	FieldSourceID      = "source_id"
	FieldSourceName    = "source_name"
	FieldURL           = "url"
	FieldTitle         = "title"
	FieldOriginalTitle = "original_title"
	FieldContent       = "content"
	FieldLanguage      = "language"
	FieldTheme         = "theme"
	FieldTopics        = "topics"
	FieldTags          = "tags"
	FieldImportance    = "importance"
	FieldDuplicateOf   = "duplicate_of"
	FieldContentHash   = "content_hash"
	FieldTitleHash     = "title_hash"
	FieldPublishedAt   = "published_at"
	FieldCreatedAt     = "created_at"
)

// articleSchema lists the explicit fields of the article collection.
var articleSchema = []SchemaField{
	{Name: FieldSourceID, Type: "string", Stored: true, Indexed: true},
	{Name: FieldSourceName, Type: "string", Stored: true, Indexed: true},
	{Name: FieldURL, Type: "string", Stored: true, Indexed: true},
	{Name: FieldTitle, Type: "text_general", Stored: true, Indexed: true},
	{Name: FieldOriginalTitle, Type: "text_general", Stored: true, Indexed: true},
	{Name: FieldContent, Type: "text_general", Stored: true, Indexed: true},
	{Name: FieldLanguage, Type: "string", Stored: true, Indexed: true},
	{Name: FieldTheme, Type: "string", Stored: true, Indexed: true},
	{Name: FieldTopics, Type: "string", Stored: true, Indexed: true, MultiValued: true},
	{Name: FieldTags, Type: "string", Stored: true, Indexed: true, MultiValued: true},
	{Name: FieldImportance, Type: "pint", Stored: true, Indexed: true},
	{Name: FieldDuplicateOf, Type: "string", Stored: true, Indexed: true},
	{Name: FieldContentHash, Type: "string", Stored: true, Indexed: true},
	{Name: FieldTitleHash, Type: "string", Stored: true, Indexed: true},
	{Name: FieldPublishedAt, Type: "pdate", Stored: true, Indexed: true},
	{Name: FieldCreatedAt, Type: "pdate", Stored: true, Indexed: true},
}
