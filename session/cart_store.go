package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Matti-Krebelder/DMS/ledger"

	"github.com/redis/go-redis/v9"
)

// CartStore keeps one cart per session and warehouse in redis.
type CartStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCartStore(rdb *redis.Client, ttl time.Duration) *CartStore {
	return &CartStore{rdb: rdb, ttl: ttl}
}

func cartKey(sessionID, warehouseID string) string {
	return fmt.Sprintf("dms:cart:%s:%s", sessionID, warehouseID)
}

// Load returns the stored cart, or an empty one when none exists.
func (s *CartStore) Load(ctx context.Context, sessionID, warehouseID string) (*ledger.Cart, error) {
	b, err := s.rdb.Get(ctx, cartKey(sessionID, warehouseID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ledger.NewCart(warehouseID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	var c ledger.Cart
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if c.WarehouseID != warehouseID {
		return ledger.NewCart(warehouseID), nil
	}
	if c.Entries == nil {
		c.Entries = []ledger.CartEntry{}
	}
	return &c, nil
}

// Save writes the cart and refreshes its TTL. An empty cart is removed.
func (s *CartStore) Save(ctx context.Context, sessionID string, c *ledger.Cart) error {
	if c.Len() == 0 {
		return s.Clear(ctx, sessionID, c.WarehouseID)
	}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, cartKey(sessionID, c.WarehouseID), b, s.ttl).Err()
}

func (s *CartStore) Clear(ctx context.Context, sessionID, warehouseID string) error {
	return s.rdb.Del(ctx, cartKey(sessionID, warehouseID)).Err()
}
