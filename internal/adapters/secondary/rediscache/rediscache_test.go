package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"apartment-valuation-service/internal/config"
	"apartment-valuation-service/internal/core/domain"
	"apartment-valuation-service/internal/testutil"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := NewClient(&config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestGeocodeCache_HitSkipsUpstream(t *testing.T) {
	mr, rdb := newRedis(t)
	upstream := new(testutil.MockGeocoder)
	upstream.On("Geocode", mock.Anything, "Carrer Gran de Gràcia 1").
		Return(&domain.Coordinates{Lat: 41.4, Lon: 2.15}, nil).Once()

	g := NewGeocodeCache(upstream, rdb, time.Hour)
	first, err := g.Geocode(context.Background(), "Carrer Gran de Gràcia 1")
	require.NoError(t, err)
	second, err := g.Geocode(context.Background(), "  carrer gran de  gràcia 1 ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	upstream.AssertExpectations(t)
	assert.True(t, mr.Exists(geocodeKey("Carrer Gran de Gràcia 1")))
	assert.Equal(t, time.Hour, mr.TTL(geocodeKey("Carrer Gran de Gràcia 1")))
}

func TestGeocodeCache_MissNotCached(t *testing.T) {
	mr, rdb := newRedis(t)
	upstream := new(testutil.MockGeocoder)
	upstream.On("Geocode", mock.Anything, "nowhere").Return(nil, domain.ErrGeocodeMiss).Twice()

	g := NewGeocodeCache(upstream, rdb, time.Hour)
	for i := 0; i < 2; i++ {
		_, err := g.Geocode(context.Background(), "nowhere")
		assert.ErrorIs(t, err, domain.ErrGeocodeMiss)
	}
	upstream.AssertExpectations(t)
	assert.Empty(t, mr.Keys())
}

func TestGeocodeCache_RedisDownFallsThrough(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()

	upstream := new(testutil.MockGeocoder)
	upstream.On("Geocode", mock.Anything, "x").Return(&domain.Coordinates{Lat: 1, Lon: 2}, nil)

	c, err := NewGeocodeCache(upstream, rdb, time.Hour).Geocode(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1.0, c.Lat)
}

func TestPromotionBus_PublishSubscribe(t *testing.T) {
	_, rdb := newRedis(t)
	bus := NewPromotionBus(rdb, "test:promotions")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *domain.ProductionPointer, 1)
	done := make(chan error, 1)
	go func() {
		done <- bus.Subscribe(ctx, func(p *domain.ProductionPointer) { received <- p })
	}()

	// publish until the subscriber is attached
	require.Eventually(t, func() bool {
		n, err := rdb.PubSubNumSub(context.Background(), "test:promotions").Result()
		return err == nil && n["test:promotions"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), &domain.ProductionPointer{RunID: "2025-01-01-00-00-00", Version: 3}))

	select {
	case p := <-received:
		assert.Equal(t, "2025-01-01-00-00-00", p.RunID)
		assert.Equal(t, int64(3), p.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("promotion event not received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
