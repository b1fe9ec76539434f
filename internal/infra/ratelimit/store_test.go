package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestNewStore_AlwaysReturnsStorage(t *testing.T) {
	if s := NewStore(RedisConfig{}); s == nil {
		t.Fatalf("expected non-nil memory store when redis addr empty")
	}

	if s := NewStore(RedisConfig{Addr: "127.0.0.1:1", DB: 0}); s == nil {
		t.Fatalf("expected non-nil store even with unreachable redis")
	}
}

func TestNewStore_UsesRedisWhenReachable(t *testing.T) {
	mrs, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mrs.Close()

	s := NewStore(RedisConfig{Addr: mrs.Addr()})
	defer s.Close()

	if err := s.Set("limiter:key", []byte("1"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mrs.Exists("limiter:key") {
		t.Fatalf("expected the key to land in redis")
	}
	got, err := s.Get("limiter:key")
	if err != nil || string(got) != "1" {
		t.Fatalf("unexpected get %q, %v", got, err)
	}
}
