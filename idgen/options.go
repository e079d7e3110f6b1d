package idgen

import (
	"github.com/ceyewan/snowflake/clog"
	"github.com/ceyewan/snowflake/connector"
	"github.com/ceyewan/snowflake/metrics"
	"github.com/ceyewan/snowflake/nodeid"
)

// Option 组件初始化选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
	clock  Clock
	layout Layout
	source nodeid.Source

	redisConn connector.RedisConnector
	etcdConn  connector.EtcdConnector
}

func applyOptions(opts []Option) *options {
	o := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
		clock:  SystemClock(),
		layout: DefaultLayout,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(clog.Component("idgen"))
	return o
}

// WithLogger 设置 Logger
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeter 设置 Meter
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithClock 替换时间来源
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLayout 使用非默认的位布局，构造时校验
func WithLayout(layout Layout) Option {
	return func(o *options) {
		o.layout = layout
	}
}

// WithIdentitySource 替换 mac/ip/hostname/identity 方式的标识来源
func WithIdentitySource(src nodeid.Source) Option {
	return func(o *options) {
		if src != nil {
			o.source = src
		}
	}
}

// WithRedisConnector 设置 Redis 连接器，Driver="redis" 的分配器需要
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		o.redisConn = conn
	}
}

// WithEtcdConnector 设置 Etcd 连接器，Driver="etcd" 的分配器需要
func WithEtcdConnector(conn connector.EtcdConnector) Option {
	return func(o *options) {
		o.etcdConn = conn
	}
}
