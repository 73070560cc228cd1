package rediscache

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"apartment-valuation-service/internal/core/domain"
	ports "apartment-valuation-service/internal/core/ports/output"
)

type promotionBus struct {
	rdb     *goredis.Client
	channel string
}

// NewPromotionBus broadcasts production pointer changes over redis pub/sub.
func NewPromotionBus(rdb *goredis.Client, channel string) ports.PromotionBus {
	if channel == "" {
		channel = "valuation:promotions"
	}
	return &promotionBus{rdb: rdb, channel: channel}
}

func (b *promotionBus) Publish(ctx context.Context, p *domain.ProductionPointer) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal promotion event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish promotion event: %w", err)
	}
	return nil
}

func (b *promotionBus) Subscribe(ctx context.Context, onPromote func(p *domain.ProductionPointer)) error {
	if onPromote == nil {
		return fmt.Errorf("onPromote callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	// wait for the subscription confirmation before consuming
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var p domain.ProductionPointer
			if err := json.Unmarshal([]byte(m.Payload), &p); err != nil {
				log.WithError(err).Warn("bad promotion event payload")
				continue
			}
			onPromote(&p)
		}
	}
}
