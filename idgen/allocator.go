package idgen

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/snowflake/clog"
	"github.com/ceyewan/snowflake/xerrors"
)

// ========================================
// Allocator 接口
// ========================================

// Allocator 节点号分配器
//
// 在集群中通过 Redis 或 Etcd 租约分配互不冲突的节点号，
// 替代按机器标识哈希的方式，彻底避免哈希碰撞。
type Allocator interface {
	// Allocate 分配节点号，全部被占用时返回 ErrNodeIDExhausted
	Allocate(ctx context.Context) (int64, error)

	// KeepAlive 在后台续约，租约失效或续约失败时通过通道返回错误
	KeepAlive(ctx context.Context) <-chan error

	// Stop 停止续约并释放节点号，可重复调用
	Stop()
}

// NewAllocator 创建节点号分配器，根据 cfg.Driver 选择 redis 或 etcd 实现
//
//	alloc, _ := idgen.NewAllocator(&idgen.AllocatorConfig{Driver: "redis"},
//	    idgen.WithRedisConnector(redisConn))
//	gen, _ := idgen.NewSnowflakeFromAllocator(ctx, alloc, &idgen.SnowflakeConfig{})
//	defer alloc.Stop()
//
//	go func() {
//	    if err := <-alloc.KeepAlive(ctx); err != nil {
//	        // 节点号可能已被他人占用，应停止发号
//	    }
//	}()
func NewAllocator(cfg *AllocatorConfig, opts ...Option) (Allocator, error) {
	if cfg == nil {
		return nil, xerrors.WithCode(ErrInvalidInput, "config_nil")
	}

	c := *cfg
	c.setDefaults()
	o := applyOptions(opts)
	if err := o.layout.Validate(); err != nil {
		return nil, err
	}
	if err := c.validate(o.layout); err != nil {
		return nil, err
	}

	owner := ownerValue()
	logger := o.logger.With(clog.String("driver", c.Driver), clog.String("owner", owner))

	switch c.Driver {
	case "redis":
		if o.redisConn == nil {
			return nil, xerrors.WithCode(ErrConnectorNil, "redis_connector_required")
		}
		return &redisAllocator{
			client: o.redisConn.GetClient(),
			cfg:    &c,
			owner:  owner,
			logger: logger,
			stopCh: make(chan struct{}),
		}, nil

	case "etcd":
		if o.etcdConn == nil {
			return nil, xerrors.WithCode(ErrConnectorNil, "etcd_connector_required")
		}
		return &etcdAllocator{
			client: o.etcdConn.GetClient(),
			cfg:    &c,
			owner:  owner,
			logger: logger,
			stopCh: make(chan struct{}),
		}, nil

	default:
		return nil, xerrors.WithCode(ErrInvalidInput, "unsupported_driver")
	}
}

// NewSnowflakeFromAllocator 先通过分配器获取节点号，再以 static 方式创建生成器
//
// 生成器创建失败时会释放已分配的节点号。续约由调用方负责。
func NewSnowflakeFromAllocator(ctx context.Context, alloc Allocator, cfg *SnowflakeConfig, opts ...Option) (*Snowflake, error) {
	if alloc == nil {
		return nil, xerrors.WithCode(ErrInvalidInput, "allocator_nil")
	}
	c := SnowflakeConfig{}
	if cfg != nil {
		c = *cfg
	}

	nodeID, err := alloc.Allocate(ctx)
	if err != nil {
		return nil, err
	}

	c.Method = MethodStatic
	c.NodeID = nodeID
	gen, err := NewSnowflake(&c, opts...)
	if err != nil {
		alloc.Stop()
		return nil, err
	}
	return gen, nil
}

// ownerValue 标识租约持有者，续约和释放时用于比对
func ownerValue() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return host + ":" + uuid.NewString()
}

func nodeKey(prefix string, id int64) string {
	return fmt.Sprintf("%s:%d", prefix, id)
}

// ========================================
// Redis 实现
// ========================================

// allocateScript 从 offset 开始环形遍历，SET NX 抢占第一个空闲节点号
var allocateScript = redis.NewScript(`
	local prefix = KEYS[1]
	local value = ARGV[1]
	local ttl = tonumber(ARGV[2])
	local max_id = tonumber(ARGV[3])
	local offset = tonumber(ARGV[4])

	for i = 0, max_id - 1 do
		local id = (offset + i) % max_id
		local key = prefix .. ":" .. id
		if redis.call("SET", key, value, "NX", "EX", ttl) then
			return id
		end
	end
	return -1
`)

// renewScript 仅当值仍为自己时续期
var renewScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("EXPIRE", KEYS[1], ARGV[2])
	end
	return 0
`)

// releaseScript 仅当值仍为自己时删除
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

type redisAllocator struct {
	client *redis.Client
	cfg    *AllocatorConfig
	owner  string
	logger clog.Logger

	mu       sync.Mutex
	nodeID   int64
	key      string
	stopCh   chan struct{}
	stopOnce sync.Once
}

func (a *redisAllocator) Allocate(ctx context.Context) (int64, error) {
	offset := rand.IntN(a.cfg.MaxID)

	id, err := allocateScript.Run(ctx, a.client, []string{a.cfg.KeyPrefix},
		a.owner, a.cfg.TTL, a.cfg.MaxID, offset).Int64()
	if err != nil {
		a.logger.Error("redis allocate node id failed",
			clog.Error(err),
			clog.String("key_prefix", a.cfg.KeyPrefix),
		)
		return 0, xerrors.Wrap(err, "redis allocate node id")
	}
	if id < 0 {
		return 0, xerrors.WithCode(ErrNodeIDExhausted, "no_available_node_id")
	}

	a.mu.Lock()
	a.nodeID = id
	a.key = nodeKey(a.cfg.KeyPrefix, id)
	a.mu.Unlock()

	a.logger.Info("node id allocated",
		clog.NodeID(id),
		clog.String("key", a.key),
	)
	return id, nil
}

func (a *redisAllocator) KeepAlive(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)

	a.mu.Lock()
	key := a.key
	a.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Duration(a.cfg.TTL) * time.Second / 3)
		defer ticker.Stop()

		for {
			select {
			case <-a.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := renewScript.Run(ctx, a.client, []string{key}, a.owner, a.cfg.TTL).Int64()
				if err == nil && n == 0 {
					err = xerrors.WithCode(ErrLeaseExpired, "lease_lost")
				} else if err != nil {
					err = xerrors.Wrap(err, "redis renew node id")
				}
				if err != nil {
					a.logger.Error("keep alive failed", clog.Error(err), clog.String("key", key))
					errCh <- err
					return
				}
			}
		}
	}()

	return errCh
}

func (a *redisAllocator) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)

		a.mu.Lock()
		key, id := a.key, a.nodeID
		a.mu.Unlock()
		if key == "" {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, a.client, []string{key}, a.owner).Err(); err != nil {
			a.logger.Warn("release node id failed", clog.Error(err), clog.String("key", key))
			return
		}
		a.logger.Info("node id released", clog.NodeID(id), clog.String("key", key))
	})
}

// ========================================
// Etcd 实现
// ========================================

type etcdAllocator struct {
	client *clientv3.Client
	cfg    *AllocatorConfig
	owner  string
	logger clog.Logger

	mu       sync.Mutex
	leaseID  clientv3.LeaseID
	nodeID   int64
	key      string
	stopCh   chan struct{}
	stopOnce sync.Once
}

func (a *etcdAllocator) Allocate(ctx context.Context) (int64, error) {
	lease, err := a.client.Grant(ctx, int64(a.cfg.TTL))
	if err != nil {
		a.logger.Error("etcd grant lease failed", clog.Error(err))
		return 0, xerrors.Wrap(err, "etcd grant lease")
	}

	offset := rand.IntN(a.cfg.MaxID)
	for i := 0; i < a.cfg.MaxID; i++ {
		id := int64((offset + i) % a.cfg.MaxID)
		key := nodeKey(a.cfg.KeyPrefix, id)

		// key 不存在时才写入，等价于 SET NX
		resp, err := a.client.Txn(ctx).
			If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
			Then(clientv3.OpPut(key, a.owner, clientv3.WithLease(lease.ID))).
			Commit()
		if err != nil {
			a.revoke(lease.ID)
			a.logger.Error("etcd txn failed", clog.Error(err), clog.String("key", key))
			return 0, xerrors.Wrap(err, "etcd allocate node id")
		}
		if !resp.Succeeded {
			continue
		}

		a.mu.Lock()
		a.leaseID, a.nodeID, a.key = lease.ID, id, key
		a.mu.Unlock()

		a.logger.Info("node id allocated",
			clog.NodeID(id),
			clog.String("key", key),
			clog.Int64("lease_id", int64(lease.ID)),
		)
		return id, nil
	}

	a.revoke(lease.ID)
	return 0, xerrors.WithCode(ErrNodeIDExhausted, "no_available_node_id")
}

func (a *etcdAllocator) KeepAlive(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)

	a.mu.Lock()
	leaseID := a.leaseID
	a.mu.Unlock()

	go func() {
		kaCh, err := a.client.KeepAlive(ctx, leaseID)
		if err != nil {
			a.logger.Error("etcd keep alive failed", clog.Error(err), clog.Int64("lease_id", int64(leaseID)))
			errCh <- xerrors.Wrap(err, "etcd keep alive")
			return
		}

		for {
			select {
			case <-a.stopCh:
				return
			case <-ctx.Done():
				return
			case ka, ok := <-kaCh:
				if ok && ka != nil {
					continue
				}
				select {
				case <-a.stopCh:
					return
				case <-ctx.Done():
					return
				default:
				}
				a.logger.Error("lease expired", clog.Int64("lease_id", int64(leaseID)))
				errCh <- xerrors.WithCode(ErrLeaseExpired, "lease_expired")
				return
			}
		}
	}()

	return errCh
}

func (a *etcdAllocator) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)

		a.mu.Lock()
		leaseID, id, key := a.leaseID, a.nodeID, a.key
		a.mu.Unlock()
		if leaseID == 0 {
			return
		}

		// 撤销租约后 key 自动删除
		a.revoke(leaseID)
		a.logger.Info("node id released",
			clog.NodeID(id),
			clog.String("key", key),
			clog.Int64("lease_id", int64(leaseID)),
		)
	})
}

func (a *etcdAllocator) revoke(id clientv3.LeaseID) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := a.client.Revoke(ctx, id); err != nil {
		a.logger.Warn("etcd revoke lease failed", clog.Error(err), clog.Int64("lease_id", int64(id)))
	}
}
