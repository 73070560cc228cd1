package services

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"apartment-valuation-service/internal/core/domain"
	"apartment-valuation-service/internal/core/forest"
	ports "apartment-valuation-service/internal/core/ports/output"
)

// LoadedModel is a production model together with the metadata it was trained with.
type LoadedModel struct {
	Pointer  *domain.ProductionPointer
	Forest   *forest.Forest
	Metadata domain.Metadata
}

type ModelCacheOptions struct {
	LoadTimeout time.Duration
	RetryAfter  time.Duration // failed loads are not retried before this elapses
}

func DefaultModelCacheOptions() ModelCacheOptions {
	return ModelCacheOptions{LoadTimeout: 20 * time.Second, RetryAfter: 30 * time.Second}
}

// ModelCache memoizes the production (model, metadata) pair. Both are replaced
// together or not at all.
type ModelCache struct {
	store    ports.ObjectStore
	pointers ports.PointerRepository
	opts     ModelCacheOptions
	now      func() time.Time

	mu          sync.Mutex
	current     *LoadedModel
	lastErr     error
	lastAttempt time.Time
}

func NewModelCache(store ports.ObjectStore, pointers ports.PointerRepository, opts ModelCacheOptions) *ModelCache {
	d := DefaultModelCacheOptions()
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = d.LoadTimeout
	}
	if opts.RetryAfter < 0 {
		opts.RetryAfter = 0
	}
	return &ModelCache{store: store, pointers: pointers, opts: opts, now: time.Now}
}

// Get returns the cached model, loading it on first use. Errors wrap
// domain.ErrModelUnavailable.
func (c *ModelCache) Get(ctx context.Context) (*LoadedModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return c.current, nil
	}
	if c.lastErr != nil && c.now().Sub(c.lastAttempt) < c.opts.RetryAfter {
		return nil, c.lastErr
	}

	// the load is shared by all callers and ignores caller cancellation
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.LoadTimeout)
	defer cancel()

	c.lastAttempt = c.now()
	m, err := c.load(loadCtx)
	if err != nil {
		c.lastErr = fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
		return nil, c.lastErr
	}
	c.current = m
	c.lastErr = nil

	log.WithFields(log.Fields{
		"run_id":  m.Pointer.RunID,
		"version": m.Pointer.Version,
		"trees":   len(m.Forest.Trees),
	}).Info("production model loaded")
	return m, nil
}

// Invalidate drops the cached model so the next Get reloads the pointer.
func (c *ModelCache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.lastErr = nil
	c.mu.Unlock()
}

// Watch invalidates the cache on every promotion event until ctx is done.
func (c *ModelCache) Watch(ctx context.Context, bus ports.PromotionBus) error {
	return bus.Subscribe(ctx, func(p *domain.ProductionPointer) {
		log.WithField("run_id", p.RunID).Info("promotion event received, invalidating model cache")
		c.Invalidate()
	})
}

func (c *ModelCache) load(ctx context.Context) (*LoadedModel, error) {
	p, err := c.pointers.Get(ctx)
	if err != nil {
		return nil, err
	}

	modelBody, err := c.store.Get(ctx, p.ModelKey)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", p.ModelKey, err)
	}
	metaBody, err := c.store.Get(ctx, p.MetadataKey)
	if err != nil {
		return nil, fmt.Errorf("read metadata %s: %w", p.MetadataKey, err)
	}

	f, err := forest.Unmarshal(modelBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidModel, err)
	}
	var meta domain.Metadata
	if err := json.Unmarshal(metaBody, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", p.MetadataKey, err)
	}
	if !slices.Equal(f.Features, meta.FeatureColumns) {
		return nil, fmt.Errorf("%w: model %s", domain.ErrMetadataMismatch, p.ModelKey)
	}
	return &LoadedModel{Pointer: p, Forest: f, Metadata: meta}, nil
}
