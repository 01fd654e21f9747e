package cache

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestNewRedis_InvalidURL(t *testing.T) {
	if _, err := NewRedis(context.Background(), "not-a-redis-url", "labdesk:"); err == nil {
		t.Error("expected error for invalid url")
	}
}

func TestRedis_KeyPrefix(t *testing.T) {
	r := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "labdesk:")
	defer r.Close()
	if got := r.key("doctors:all"); got != "labdesk:doctors:all" {
		t.Errorf("expected prefixed key, got %s", got)
	}
}

func TestRedis_DeleteNoKeys(t *testing.T) {
	r := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "")
	defer r.Close()
	if err := r.Delete(context.Background()); err != nil {
		t.Errorf("expected no-op delete, got %v", err)
	}
}
