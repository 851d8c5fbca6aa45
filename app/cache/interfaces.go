package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores fetched payloads for a short time.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// FeedKey derives a stable cache key from a feed URL.
func FeedKey(feedURL string) string {
	hash := sha256.Sum256([]byte(feedURL))
	return "feed:" + hex.EncodeToString(hash[:])
}
