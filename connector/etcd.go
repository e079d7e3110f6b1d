package connector

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/snowflake/clog"
	"github.com/ceyewan/snowflake/xerrors"
)

// healthCheckKey 探测时读取的键，不存在也视为成功
const healthCheckKey = "snowflake/health-check"

type etcdConnector struct {
	*base
	client *clientv3.Client
}

// NewEtcd 创建 Etcd 连接器
//
// clientv3.New 不会阻塞等待连接，首次读写或 Connect 时才真正探测服务端。
func NewEtcd(cfg *EtcdConfig, opts ...Option) (EtcdConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "etcd config is nil")
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	b, err := newBase("etcd", cfg.Name, clog.Any("endpoints", cfg.Endpoints), opts)
	if err != nil {
		return nil, err
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:            cfg.Endpoints,
		Username:             cfg.Username,
		Password:             cfg.Password,
		DialTimeout:          cfg.DialTimeout,
		DialKeepAliveTime:    cfg.KeepAliveTime,
		DialKeepAliveTimeout: cfg.KeepAliveTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd connector[%s]: %w: %w", cfg.Name, ErrConnection, err)
	}

	timeout := cfg.DialTimeout
	b.probe = func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_, err := client.Get(ctx, healthCheckKey)
		return err
	}
	b.closeFn = client.Close
	return &etcdConnector{base: b, client: client}, nil
}

func (c *etcdConnector) GetClient() *clientv3.Client {
	return c.client
}
