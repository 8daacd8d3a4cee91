package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
	"github.com/rs/zerolog/log"
)

// CachedAnalyzer remembers successful analyses per image, room type and style,
// so a client re-requesting analysis of an image it just received is served locally.
type CachedAnalyzer struct {
	next  Analyzer
	cache *cache.Cache[string]
	raw   *ristretto.Cache
	ttl   time.Duration
}

// NewCachedAnalyzer wraps next with an in-process ristretto cache.
func NewCachedAnalyzer(next Analyzer, ttl time.Duration) (*CachedAnalyzer, error) {
	raw, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     64 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("vision: create analysis cache: %w", err)
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &CachedAnalyzer{
		next:  next,
		cache: cache.New[string](ristretto_store.NewRistretto(raw)),
		raw:   raw,
		ttl:   ttl,
	}, nil
}

// Analyze serves from cache when possible and stores fresh successes.
func (c *CachedAnalyzer) Analyze(ctx context.Context, imageURL, roomType, designStyle string) (RoomAnalysis, error) {
	key := cacheKey(imageURL, roomType, designStyle)
	if cached, err := c.cache.Get(ctx, key); err == nil && cached != "" {
		var analysis RoomAnalysis
		if err := json.Unmarshal([]byte(cached), &analysis); err == nil {
			log.Debug().Str("image_url", imageURL).Msg("analysis cache hit")
			return analysis.Normalize(), nil
		}
	}

	analysis, err := c.next.Analyze(ctx, imageURL, roomType, designStyle)
	if err != nil {
		return RoomAnalysis{}, err
	}

	encoded, err := json.Marshal(analysis)
	if err != nil {
		return analysis, nil
	}
	if err := c.cache.Set(ctx, key, string(encoded),
		store.WithExpiration(c.ttl),
		store.WithCost(int64(len(encoded))),
	); err != nil {
		log.Warn().Err(err).Msg("analysis cache set failed")
		return analysis, nil
	}
	c.raw.Wait()
	return analysis, nil
}

func cacheKey(imageURL, roomType, designStyle string) string {
	return strings.Join([]string{
		strings.TrimSpace(imageURL),
		strings.ToLower(strings.TrimSpace(roomType)),
		strings.ToLower(strings.TrimSpace(designStyle)),
	}, "|")
}
