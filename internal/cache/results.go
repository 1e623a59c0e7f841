package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const resultKeyPrefix = "minutes:result:"

// Result is a finished transcription as stored in the cache.
type Result struct {
	Transcription string `json:"transcription"`
	Minutes       string `json:"minutes"`
	ChunkCount    int    `json:"chunk_count"`
	WindowCount   int    `json:"window_count"`
}

// ResultCache memoizes pipeline output per file content and minutes configuration.
type ResultCache struct {
	cache *Cache
	ttl   time.Duration
}

func NewResultCache(c *Cache, ttl time.Duration) *ResultCache {
	return &ResultCache{cache: c, ttl: ttl}
}

// ResultKey identifies a result by the SHA-256 of the uploaded bytes and the
// fingerprint of the configuration that produced it. contentSHA256 is hex encoded.
func ResultKey(contentSHA256, fingerprint string) string {
	fh := sha256.Sum256([]byte(fingerprint))
	return resultKeyPrefix + contentSHA256 + ":" + hex.EncodeToString(fh[:8])
}

// Get returns ErrMiss when nothing is cached for key.
func (r *ResultCache) Get(ctx context.Context, key string) (*Result, error) {
	var res Result
	if err := r.cache.Get(ctx, key, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *ResultCache) Put(ctx context.Context, key string, res *Result) error {
	return r.cache.Set(ctx, key, res, r.ttl)
}
