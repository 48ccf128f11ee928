package core

import "context"

// ReportCachePrefix starts the cache key of every class report.
const ReportCachePrefix = "report:class:"

// Cache stores JSON-serializable values by key.
type Cache interface {
	// Get loads the value stored under key into dst. It reports false on a cache miss.
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, val interface{}) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix drops every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
