package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestSetAndGet(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{store: mock}

	if err := client.Set(context.Background(), "catalog:list", "payload", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, err := client.Get(context.Background(), "catalog:list")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != "payload" {
		t.Fatalf("unexpected value %s", got)
	}
}

func TestGetMissReturnsNil(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{store: mock}

	_, err := client.Get(context.Background(), "absent")
	if err != Nil {
		t.Fatalf("expected redis.Nil on miss, got %v", err)
	}
}

func TestDelRemovesKeys(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{store: mock}

	_ = client.Set(context.Background(), "a", "1", 0)
	_ = client.Set(context.Background(), "b", "2", 0)

	if err := client.Del(context.Background(), "a", "b"); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(context.Background(), "a"); err != Nil {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestCatalogKey(t *testing.T) {
	client := &Client{store: newMockCmdable()}

	if got := client.CatalogKey("products"); got != "storefront:catalog:products" {
		t.Fatalf("unexpected catalog key %s", got)
	}
	if got := client.CatalogKey("product", "42"); got != "storefront:catalog:product:42" {
		t.Fatalf("unexpected product key %s", got)
	}
	if got := client.CatalogKey("product", ""); got != "storefront:catalog:product" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestPublishTargetsDocsChannel(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{store: mock}

	if err := client.Publish(context.Background(), "user-1|cart"); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if len(mock.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(mock.published))
	}
	if mock.published[0].channel != "storefront:docs" {
		t.Fatalf("unexpected channel %s", mock.published[0].channel)
	}
	if mock.published[0].payload != "user-1|cart" {
		t.Fatalf("unexpected payload %s", mock.published[0].payload)
	}
}

type publishCall struct {
	channel string
	payload string
}

type mockCmdable struct {
	data      map[string]string
	published []publishCall
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	m.published = append(m.published, publishCall{channel: channel, payload: fmt.Sprint(message)})
	return redis.NewIntResult(1, nil)
}
