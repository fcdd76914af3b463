package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultDedupeTTL = 24 * time.Hour

// Deduper drops repeated webhook deliveries before they reach the ledger.
// A nil client disables it: Claim always succeeds.
type Deduper struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func NewDeduper(client *redis.Client) *Deduper {
	return &Deduper{Client: client, TTL: DefaultDedupeTTL, Prefix: "webhook"}
}

func (d *Deduper) key(parts ...string) string {
	k := d.Prefix
	if k == "" {
		k = "webhook"
	}
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// Claim returns false when the same event was already claimed within TTL.
func (d *Deduper) Claim(ctx context.Context, event, reference string) (bool, error) {
	if d == nil || d.Client == nil {
		return true, nil
	}
	ttl := d.TTL
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	ok, err := d.Client.SetNX(ctx, d.key(event, reference), "PROCESSING", ttl).Result()
	if err != nil {
		return true, fmt.Errorf("dedupe claim: %w", err)
	}
	return ok, nil
}

// Release forgets a claim so a redelivery after a processing error is handled.
func (d *Deduper) Release(ctx context.Context, event, reference string) error {
	if d == nil || d.Client == nil {
		return nil
	}
	if err := d.Client.Del(ctx, d.key(event, reference)).Err(); err != nil {
		return fmt.Errorf("dedupe release: %w", err)
	}
	return nil
}
