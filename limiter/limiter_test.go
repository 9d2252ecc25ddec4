package limiter

import (
	"context"
	"testing"
	"time"
)

// Redis 降级时限流放行，不能把业务拦死
func TestManagerFailOpenWithoutRedis(t *testing.T) {
	m := NewManager(nil, &FixedWindowStrategy{})

	for i := 0; i < 100; i++ {
		allowed, err := m.Allow(context.Background(), "limiter:test", 1, time.Second)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatal("degraded limiter rejected a request")
		}
	}
}
