package solr

import (
	"errors"
	"fmt"

	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
)

// Error definitions for Solr client operations.
var (
	// ErrVersionConflict is returned when an optimistic locking update fails
	// due to a document version mismatch (HTTP 409 Conflict).
	ErrVersionConflict = errors.New("solr version conflict")

	// ErrNotFound is returned when a requested document or collection does not exist.
	ErrNotFound = fmt.Errorf("solr: %w", apperrors.ErrNotFound)

	// ErrBadRequest is returned when Solr rejects the request (HTTP 400).
	ErrBadRequest = errors.New("solr bad request")

	// ErrServerError is returned for Solr internal errors (HTTP 5xx).
	ErrServerError = errors.New("solr server error")

	// ErrClientDisabled is returned when operations are attempted on a disabled client.
	ErrClientDisabled = fmt.Errorf("solr: %w", apperrors.ErrClientDisabled)
)
