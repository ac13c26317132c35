// Package cache keeps rating summaries in Redis between writes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"credit-backend/internal/models"
)

// setIfGenerationScript writes the summary only while the generation key
// still holds the value read before the summary was computed.
// KEYS: [1]=generation, [2]=summary. ARGV: [1]=generation, [2]=payload, [3]=ttl_ms
var setIfGenerationScript = goredis.NewScript(`
local current = redis.call('GET', KEYS[1]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// invalidateScript bumps the generation and drops the cached summary.
// The generation key outlives summaries so in-flight loads see the bump.
// KEYS: [1]=generation, [2]=summary. ARGV: [1]=generation_ttl_ms
var invalidateScript = goredis.NewScript(`
redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[1])
redis.call('DEL', KEYS[2])
return 1
`)

// generationTTL bounds how long an idle user's generation counter lives.
// It only has to outlast the slowest in-flight summary load.
const generationTTL = 24 * time.Hour

type SummaryCache struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

func NewSummaryCache(rdb goredis.Cmdable, ttl time.Duration) *SummaryCache {
	return &SummaryCache{rdb: rdb, ttl: ttl}
}

func summaryKey(userID int64) string {
	return fmt.Sprintf("rating_summary:%d", userID)
}

func generationKey(userID int64) string {
	return fmt.Sprintf("rating_summary_gen:%d", userID)
}

// Get returns (nil, false, nil) on a cache miss.
func (c *SummaryCache) Get(ctx context.Context, userID int64) (*models.RatingSummary, bool, error) {
	raw, err := c.rdb.Get(ctx, summaryKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get rating summary: %w", err)
	}

	var summary models.RatingSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, false, fmt.Errorf("decode rating summary: %w", err)
	}
	return &summary, true, nil
}

func (c *SummaryCache) Generation(ctx context.Context, userID int64) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get rating summary generation: %w", err)
	}
	return gen, nil
}

// Set stores summary when generation is still current and reports whether
// it did.
func (c *SummaryCache) Set(ctx context.Context, summary models.RatingSummary, generation int64) (bool, error) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return false, fmt.Errorf("encode rating summary: %w", err)
	}

	stored, err := setIfGenerationScript.Run(ctx, c.rdb,
		[]string{generationKey(summary.UserID), summaryKey(summary.UserID)},
		strconv.FormatInt(generation, 10),
		raw,
		c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("set rating summary: %w", err)
	}
	return stored == 1, nil
}

func (c *SummaryCache) Invalidate(ctx context.Context, userID int64) error {
	err := invalidateScript.Run(ctx, c.rdb,
		[]string{generationKey(userID), summaryKey(userID)},
		generationTTL.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("invalidate rating summary: %w", err)
	}
	return nil
}
