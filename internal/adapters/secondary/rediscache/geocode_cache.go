package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"apartment-valuation-service/internal/core/domain"
	ports "apartment-valuation-service/internal/core/ports/output"
)

const geocodeKeyPrefix = "valuation:geocode:"

type geocodeCache struct {
	next ports.Geocoder
	rdb  goredis.Cmdable
	ttl  time.Duration
}

// NewGeocodeCache memoizes successful lookups of next in redis. Redis
// failures fall through to next.
func NewGeocodeCache(next ports.Geocoder, rdb goredis.Cmdable, ttl time.Duration) ports.Geocoder {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &geocodeCache{next: next, rdb: rdb, ttl: ttl}
}

func geocodeKey(address string) string {
	return geocodeKeyPrefix + strings.ToLower(strings.Join(strings.Fields(address), " "))
}

func (c *geocodeCache) Geocode(ctx context.Context, address string) (*domain.Coordinates, error) {
	key := geocodeKey(address)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var coords domain.Coordinates
		if err := json.Unmarshal(raw, &coords); err == nil {
			return &coords, nil
		}
		log.WithField("key", key).Warn("discarding malformed geocode cache entry")
	case !errors.Is(err, goredis.Nil):
		log.WithError(err).Warn("geocode cache read failed")
	}

	coords, err := c.next.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	if body, err := json.Marshal(coords); err == nil {
		if err := c.rdb.Set(ctx, key, body, c.ttl).Err(); err != nil {
			log.WithError(err).Warn("geocode cache write failed")
		}
	}
	return coords, nil
}
