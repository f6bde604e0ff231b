package geocoding

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryCacheStaysBounded(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	c := &memoryCache{items: make(map[string]memoryEntry), limit: 3, now: func() time.Time { return now }}

	c.Set(ctx, "a", "A", time.Minute)
	c.Set(ctx, "b", "B", 2*time.Minute)
	c.Set(ctx, "c", "C", 3*time.Minute)

	// full, nothing expired: the entry closest to expiry goes
	c.Set(ctx, "d", "D", time.Hour)
	if len(c.items) != 3 {
		t.Fatalf("len = %d", len(c.items))
	}
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("a should have been evicted")
	}

	// overwriting a key never evicts
	c.Set(ctx, "b", "B2", 2*time.Minute)
	if v, ok := c.Get(ctx, "b"); !ok || v != "B2" {
		t.Fatalf("b = %q, %v", v, ok)
	}

	// expired entries are swept together
	now = now.Add(150 * time.Second)
	c.Set(ctx, "e", "E", time.Hour)
	if len(c.items) != 3 {
		t.Fatalf("len = %d", len(c.items))
	}
	for _, k := range []string{"c", "d", "e"} {
		if _, ok := c.Get(ctx, k); !ok {
			t.Errorf("missing %s", k)
		}
	}

	for i := 0; i < 50; i++ {
		c.Set(ctx, fmt.Sprintf("k%d", i), "v", time.Hour)
	}
	if len(c.items) > c.limit {
		t.Fatalf("len = %d over limit", len(c.items))
	}
}
