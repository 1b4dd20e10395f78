package db

import "time"

// Database connection constants
const (
	// ConnectionRetrySleep is the sleep duration between connection retries
	ConnectionRetrySleep = 2 * time.Second
	// maxConnectionRetries is the number of retries for initial connection
	maxConnectionRetries = 10
)

// Database pool default constants
const (
	defaultMaxConns          int32         = 25
	defaultMinConns          int32         = 5
	defaultMaxConnIdleTime   time.Duration = 30 * time.Minute
	defaultMaxConnLifetime   time.Duration = time.Hour
	defaultHealthCheckPeriod time.Duration = time.Minute
)

// Advisory lock identifiers
const (
	migrationLockID int64 = 1000
	// SweepLockID serializes duplicate sweeps across processes.
	SweepLockID int64 = 2001
	// IndexSyncLockID serializes index syncs across processes.
	IndexSyncLockID int64 = 2002
)

// Table names
const (
	tableArticles = "articles"
	tableRawItems = "raw_items"
	tableSources  = "sources"
)
