package cache

import (
	"context"
	"time"
)

// TTLs for the resume cache keys. Single records live longer than list
// views, which churn more.
const (
	RecordTTL = 900 * time.Second
	ListTTL   = 300 * time.Second
)

// Cache is a strictly advisory key/value store. Implementations must absorb
// backend failures: Get returns nil on any error, Set and Delete are
// best-effort no-ops. Callers never see a cache error.
type Cache interface {
	Get(ctx context.Context, key string) []byte
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}

// RecordKey is the cache key for a single resume.
func RecordKey(userID, resumeID string) string {
	return "resume:" + userID + ":" + resumeID
}

// OriginalKey is the cache key for a user's original resume.
func OriginalKey(userID string) string {
	return "resume:" + userID + ":original"
}

// ListKey is the cache key for a user's non-original resume list.
func ListKey(userID string) string {
	return "resumes:" + userID
}
