package pipeline

import "time"

// Log field constants
const (
	LogFieldRawItemID     = "raw_item_id"
	LogFieldCorrelationID = "correlation_id"
	LogFieldArticleID     = "article_id"
	LogFieldCount         = "count"
	LogFieldReason        = "reason"
	LogFieldDuplicateHint = "duplicate_hint"
)

// Log message constants
const (
	LogMsgFailedToUpdateStatus = "failed to update raw item status"
)

// Status reasons recorded on raw items.
const (
	reasonLockBusy       = "content is being processed by another worker"
	reasonNormalizeError = "normalization failed: %v"
	reasonProcessError   = "processing failed: %v"
)

const (
	DefaultPollInterval  = 10 * time.Second
	DefaultBatchSize     = 10
	DefaultClaimTimeout  = 10 * time.Minute
	RecoveryInterval     = 5 * time.Minute
	lockKeyPrefix        = "ingest:content:"
	metricStatusSaved    = "saved"
	metricStatusDup      = "duplicate"
	metricStatusFailed   = "failed"
	metricStatusDeferred = "deferred"
)
