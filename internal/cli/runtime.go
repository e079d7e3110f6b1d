package cli

import (
	"context"

	"github.com/ceyewan/snowflake/clog"
	"github.com/ceyewan/snowflake/connector"
	"github.com/ceyewan/snowflake/idgen"
	"github.com/ceyewan/snowflake/metrics"
	"github.com/ceyewan/snowflake/xerrors"
)

// runtime 一次命令执行所需的组件，close 按创建的逆序释放
type runtime struct {
	cfg    *AppConfig
	logger clog.Logger
	meter  metrics.Meter

	redis connector.RedisConnector
	gen   *idgen.Snowflake
	alloc idgen.Allocator

	closers []func()
}

func newRuntime(cfg *AppConfig, withMetrics bool) (*runtime, error) {
	logger, err := clog.New(&cfg.Log)
	if err != nil {
		return nil, xerrors.Wrap(err, "create logger")
	}
	rt := &runtime{cfg: cfg, logger: logger, meter: metrics.Discard()}
	rt.closers = append(rt.closers, logger.Flush)

	if withMetrics && cfg.Metrics.Enabled {
		meter, err := metrics.New(&cfg.Metrics, metrics.WithLogger(logger))
		if err != nil {
			rt.close()
			return nil, xerrors.Wrap(err, "create meter")
		}
		rt.meter = meter
		rt.closers = append(rt.closers, func() { _ = meter.Shutdown(context.Background()) })
	}
	return rt, nil
}

// redisConnector 按需创建并连接 Redis，同一 runtime 内复用
func (rt *runtime) redisConnector(ctx context.Context) (connector.RedisConnector, error) {
	if rt.redis != nil {
		return rt.redis, nil
	}
	conn, err := connector.NewRedis(&rt.cfg.Redis,
		connector.WithLogger(rt.logger), connector.WithMeter(rt.meter))
	if err != nil {
		return nil, err
	}
	if err := conn.Connect(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	rt.redis = conn
	rt.closers = append(rt.closers, func() { _ = conn.Close() })
	return conn, nil
}

// generator 创建生成器；启用分配器时先从 Redis/Etcd 获取节点号
func (rt *runtime) generator(ctx context.Context) (*idgen.Snowflake, error) {
	if rt.gen != nil {
		return rt.gen, nil
	}
	opts := []idgen.Option{idgen.WithLogger(rt.logger), idgen.WithMeter(rt.meter)}

	if !rt.cfg.Allocator.Enabled {
		gen, err := idgen.NewSnowflake(&rt.cfg.Snowflake, opts...)
		if err != nil {
			return nil, err
		}
		rt.gen = gen
		return gen, nil
	}

	switch rt.cfg.Allocator.Driver {
	case "etcd":
		conn, err := connector.NewEtcd(&rt.cfg.Etcd,
			connector.WithLogger(rt.logger), connector.WithMeter(rt.meter))
		if err != nil {
			return nil, err
		}
		if err := conn.Connect(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = conn.Close() })
		opts = append(opts, idgen.WithEtcdConnector(conn))
	default:
		conn, err := rt.redisConnector(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, idgen.WithRedisConnector(conn))
	}

	alloc, err := idgen.NewAllocator(&rt.cfg.Allocator.AllocatorConfig, opts...)
	if err != nil {
		return nil, err
	}
	gen, err := idgen.NewSnowflakeFromAllocator(ctx, alloc, &rt.cfg.Snowflake, opts...)
	if err != nil {
		return nil, err
	}
	rt.alloc = alloc
	rt.gen = gen
	rt.closers = append(rt.closers, alloc.Stop)
	return gen, nil
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
