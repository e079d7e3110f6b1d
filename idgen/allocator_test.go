package idgen

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ceyewan/snowflake/testkit"
	"github.com/ceyewan/snowflake/xerrors"
)

func TestNewAllocatorValidation(t *testing.T) {
	if _, err := NewAllocator(nil); xerrors.GetCode(err) != "config_nil" {
		t.Errorf("NewAllocator(nil) error = %v", err)
	}
	if _, err := NewAllocator(&AllocatorConfig{Driver: "zk"}); xerrors.GetCode(err) != "unsupported_driver" {
		t.Errorf("unsupported driver error = %v", err)
	}
	if _, err := NewAllocator(&AllocatorConfig{MaxID: MaxNodeID + 2}); xerrors.GetCode(err) != "max_id_out_of_range" {
		t.Errorf("max id error = %v", err)
	}
	if _, err := NewAllocator(&AllocatorConfig{TTL: 2}); xerrors.GetCode(err) != "ttl_too_short" {
		t.Errorf("ttl error = %v", err)
	}
	if _, err := NewAllocator(&AllocatorConfig{Driver: "redis"}); !errors.Is(err, ErrConnectorNil) {
		t.Errorf("missing redis connector error = %v", err)
	}
	if _, err := NewAllocator(&AllocatorConfig{Driver: "etcd"}); !errors.Is(err, ErrConnectorNil) {
		t.Errorf("missing etcd connector error = %v", err)
	}
}

// stubAllocator 记录调用，用于验证 NewSnowflakeFromAllocator
type stubAllocator struct {
	id      int64
	err     error
	stopped bool
}

func (a *stubAllocator) Allocate(context.Context) (int64, error) { return a.id, a.err }
func (a *stubAllocator) KeepAlive(context.Context) <-chan error  { return make(chan error) }
func (a *stubAllocator) Stop()                                   { a.stopped = true }

func TestNewSnowflakeFromAllocator(t *testing.T) {
	ctx := context.Background()

	gen, err := NewSnowflakeFromAllocator(ctx, &stubAllocator{id: 17}, &SnowflakeConfig{Method: MethodMAC})
	if err != nil {
		t.Fatalf("NewSnowflakeFromAllocator() error = %v", err)
	}
	if gen.NodeID() != 17 {
		t.Errorf("NodeID() = %d，期望 17", gen.NodeID())
	}

	exhausted := &stubAllocator{err: xerrors.WithCode(ErrNodeIDExhausted, "no_available_node_id")}
	if _, err := NewSnowflakeFromAllocator(ctx, exhausted, nil); !errors.Is(err, ErrNodeIDExhausted) {
		t.Errorf("error = %v，期望 ErrNodeIDExhausted", err)
	}

	// 生成器创建失败时释放节点号
	bad := &stubAllocator{id: 3}
	if _, err := NewSnowflakeFromAllocator(ctx, bad, &SnowflakeConfig{ClockBackward: "panic"}); err == nil {
		t.Fatal("期望返回错误")
	}
	if !bad.stopped {
		t.Error("失败后未调用 Stop")
	}

	if _, err := NewSnowflakeFromAllocator(ctx, nil, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("nil allocator error = %v", err)
	}
}

func TestRedisAllocator(t *testing.T) {
	kit := testkit.NewKit(t)
	conn := testkit.NewRedisConnector(t)
	prefix := fmt.Sprintf("snowflake-test:%s", testkit.NewID())

	cfg := &AllocatorConfig{Driver: "redis", KeyPrefix: prefix, MaxID: 3, TTL: 3}
	opts := []Option{WithRedisConnector(conn), WithLogger(kit.Logger)}

	var allocs []Allocator
	seen := map[int64]bool{}
	for i := 0; i < 3; i++ {
		alloc, err := NewAllocator(cfg, opts...)
		if err != nil {
			t.Fatalf("NewAllocator() error = %v", err)
		}
		id, err := alloc.Allocate(kit.Ctx)
		if err != nil {
			t.Fatalf("Allocate() #%d error = %v", i, err)
		}
		if seen[id] || id < 0 || id >= 3 {
			t.Fatalf("Allocate() = %d，已分配 %v", id, seen)
		}
		seen[id] = true
		allocs = append(allocs, alloc)
	}

	extra, _ := NewAllocator(cfg, opts...)
	if _, err := extra.Allocate(kit.Ctx); !errors.Is(err, ErrNodeIDExhausted) {
		t.Fatalf("Allocate() 超出范围 error = %v", err)
	}

	// 续约期间 key 不过期
	errCh := allocs[0].KeepAlive(kit.Ctx)
	select {
	case err := <-errCh:
		t.Fatalf("KeepAlive() error = %v", err)
	case <-time.After(4 * time.Second):
	}

	allocs[1].Stop()
	allocs[1].Stop()
	id, err := extra.Allocate(kit.Ctx)
	if err != nil {
		t.Fatalf("释放后 Allocate() error = %v", err)
	}
	t.Logf("reallocated node id %d", id)

	allocs[0].Stop()
	allocs[2].Stop()
	extra.Stop()
}

func TestRedisAllocatorLeaseLost(t *testing.T) {
	kit := testkit.NewKit(t)
	conn := testkit.NewRedisConnector(t)
	prefix := fmt.Sprintf("snowflake-test:%s", testkit.NewID())

	alloc, err := NewAllocator(&AllocatorConfig{Driver: "redis", KeyPrefix: prefix, MaxID: 1, TTL: 3},
		WithRedisConnector(conn), WithLogger(kit.Logger))
	if err != nil {
		t.Fatalf("NewAllocator() error = %v", err)
	}
	id, err := alloc.Allocate(kit.Ctx)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	defer alloc.Stop()

	// 模拟节点号被他人抢占
	key := nodeKey(prefix, id)
	if err := conn.GetClient().Set(kit.Ctx, key, "someone-else", 0).Err(); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	select {
	case err := <-alloc.KeepAlive(kit.Ctx):
		if !errors.Is(err, ErrLeaseExpired) {
			t.Errorf("KeepAlive() error = %v，期望 ErrLeaseExpired", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("KeepAlive() 未报告租约丢失")
	}

	// Stop 不删除他人的 key
	alloc.Stop()
	if v, err := conn.GetClient().Get(kit.Ctx, key).Result(); err != nil || v != "someone-else" {
		t.Errorf("Get(%s) = %q, %v", key, v, err)
	}
	conn.GetClient().Del(kit.Ctx, key)
}

func TestEtcdAllocator(t *testing.T) {
	kit := testkit.NewKit(t)
	conn := testkit.NewEtcdConnector(t)
	prefix := fmt.Sprintf("/snowflake-test/%s", testkit.NewID())

	cfg := &AllocatorConfig{Driver: "etcd", KeyPrefix: prefix, MaxID: 2, TTL: 5}
	opts := []Option{WithEtcdConnector(conn), WithLogger(kit.Logger)}

	a1, _ := NewAllocator(cfg, opts...)
	a2, _ := NewAllocator(cfg, opts...)
	a3, _ := NewAllocator(cfg, opts...)

	id1, err := a1.Allocate(kit.Ctx)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	id2, err := a2.Allocate(kit.Ctx)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("重复分配节点号 %d", id1)
	}
	if _, err := a3.Allocate(kit.Ctx); !errors.Is(err, ErrNodeIDExhausted) {
		t.Fatalf("Allocate() error = %v，期望 ErrNodeIDExhausted", err)
	}

	errCh := a1.KeepAlive(kit.Ctx)
	a2.Stop()
	if _, err := a3.Allocate(kit.Ctx); err != nil {
		t.Fatalf("释放后 Allocate() error = %v", err)
	}

	select {
	case err := <-errCh:
		t.Fatalf("KeepAlive() error = %v", err)
	default:
	}
	a1.Stop()
	a3.Stop()
}
