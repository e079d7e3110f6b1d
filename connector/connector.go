// Package connector 管理外部存储的连接生命周期，供节点号分配器使用。
//
//	conn, err := connector.NewRedis(&connector.RedisConfig{Addr: "127.0.0.1:6379"},
//		connector.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//		return err
//	}
//	client := conn.GetClient()
//
// Connector 拥有底层连接，组件（如 idgen 的 Allocator）仅借用，不应调用 Close。
package connector

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/snowflake/clog"
	"github.com/ceyewan/snowflake/metrics"
	"github.com/ceyewan/snowflake/xerrors"
)

var (
	ErrConnection    = xerrors.New("connector: connection failed")
	ErrConfig        = xerrors.New("connector: invalid config")
	ErrHealthCheck   = xerrors.New("connector: health check failed")
	ErrAlreadyClosed = xerrors.New("connector: already closed")
)

// Connector 连接器的通用行为，方法均并发安全
type Connector interface {
	// Connect 探测服务端可用，可重复调用
	Connect(ctx context.Context) error
	// Close 关闭连接，可重复调用
	Close() error
	// HealthCheck 探测服务端并刷新 IsHealthy 的结果
	HealthCheck(ctx context.Context) error
	IsHealthy() bool
	Name() string
}

// TypedConnector 提供类型安全的客户端访问
type TypedConnector[T any] interface {
	Connector
	GetClient() T
}

type (
	RedisConnector = TypedConnector[*redis.Client]
	EtcdConnector  = TypedConnector[*clientv3.Client]
)

// Option 配置连接器
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// WithLogger 设置日志记录器，自动添加 "connector" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("connector")
		}
	}
}

// WithMeter 设置指标收集器，记录 connector_connect_attempts_total
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// base 实现与驱动无关的部分：健康状态、关闭标记、连接指标
//
// 驱动只需提供 probe 与 closeFn，并在构造时填好 target 供日志使用。
type base struct {
	driver  string
	name    string
	target  clog.Field
	logger  clog.Logger
	attempt metrics.Counter
	probe   func(ctx context.Context) error
	closeFn func() error
	healthy atomic.Bool
	closed  atomic.Bool
}

func newBase(driver, name string, target clog.Field, opts []Option) (*base, error) {
	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	attempt, err := o.meter.Counter("connector_connect_attempts_total", "Connector connect attempts by driver and outcome")
	if err != nil {
		return nil, xerrors.Wrap(err, "create connect counter")
	}
	return &base{
		driver:  driver,
		name:    name,
		target:  target,
		logger:  o.logger.With(clog.String("driver", driver), clog.String("name", name)),
		attempt: attempt,
	}, nil
}

func (b *base) Connect(ctx context.Context) error {
	if b.closed.Load() {
		return ErrAlreadyClosed
	}
	if err := b.probe(ctx); err != nil {
		b.record(ctx, metrics.OutcomeError)
		b.logger.Error("connect failed", b.target, clog.Error(err))
		return fmt.Errorf("%s connector[%s]: %w: %w", b.driver, b.name, ErrConnection, err)
	}
	b.record(ctx, metrics.OutcomeSuccess)
	b.healthy.Store(true)
	b.logger.Info("connected", b.target)
	return nil
}

func (b *base) HealthCheck(ctx context.Context) error {
	if b.closed.Load() {
		return ErrAlreadyClosed
	}
	if err := b.probe(ctx); err != nil {
		b.healthy.Store(false)
		b.logger.Warn("health check failed", clog.Error(err))
		return fmt.Errorf("%w: %w", ErrHealthCheck, err)
	}
	b.healthy.Store(true)
	return nil
}

func (b *base) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.healthy.Store(false)
	if err := b.closeFn(); err != nil {
		b.logger.Error("close connection failed", clog.Error(err))
		return err
	}
	b.logger.Info("connection closed")
	return nil
}

func (b *base) IsHealthy() bool { return b.healthy.Load() }
func (b *base) Name() string    { return b.name }

func (b *base) record(ctx context.Context, outcome string) {
	b.attempt.Inc(ctx, metrics.L("driver", b.driver), metrics.L(metrics.LabelOutcome, outcome))
}
