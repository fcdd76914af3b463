package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestDeduperDisabledWithoutClient(t *testing.T) {
	d := NewDeduper(nil)
	for i := 0; i < 2; i++ {
		ok, err := d.Claim(context.Background(), "charge.success", "ref-1")
		if err != nil || !ok {
			t.Fatalf("claim %d = %v, %v; want true", i, ok, err)
		}
	}
	if err := d.Release(context.Background(), "charge.success", "ref-1"); err != nil {
		t.Fatalf("release error: %v", err)
	}
}

func TestDeduperFailsOpenOnRedisError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	d := NewDeduper(client)
	ok, err := d.Claim(context.Background(), "charge.success", "ref-1")
	if err == nil {
		t.Fatalf("expected error from unreachable redis")
	}
	if !ok {
		t.Fatalf("redis failure must not drop the event")
	}
}

func TestDeduperKey(t *testing.T) {
	d := &Deduper{}
	if got := d.key("transfer.success", "payout-1"); got != "webhook:transfer.success:payout-1" {
		t.Fatalf("key = %q", got)
	}
}
