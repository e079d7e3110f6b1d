package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ceyewan/snowflake/clog"
	"github.com/ceyewan/snowflake/config"
	"github.com/ceyewan/snowflake/internal/server"
	"github.com/ceyewan/snowflake/ratelimit"
)

func newServeCommand(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP id service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, loader, err := loadConfig(ctx, flags.configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			rt, err := newRuntime(cfg, true)
			if err != nil {
				return err
			}
			defer rt.close()

			gen, err := rt.generator(ctx)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancelCause(ctx)
			defer cancel(nil)
			if rt.alloc != nil {
				errCh := rt.alloc.KeepAlive(ctx)
				go func() {
					select {
					case err := <-errCh:
						// 节点号可能已被其他实例占用，继续发号会产生重复 ID
						rt.logger.Error("node id lease lost, shutting down", clog.Error(err))
						cancel(err)
					case <-ctx.Done():
					}
				}()
			}
			watchLogLevel(ctx, loader, rt.logger)

			cfg.Server.MetricsPath = ""
			if cfg.Metrics.Enabled {
				cfg.Server.MetricsPath = cfg.Metrics.Path
			}

			opts := []server.Option{server.WithLogger(rt.logger), server.WithMeter(rt.meter)}
			if cfg.Server.RateLimit.Enabled && cfg.Server.RateLimit.Driver == ratelimit.DriverDistributed {
				conn, err := rt.redisConnector(ctx)
				if err != nil {
					return err
				}
				limiter, err := ratelimit.New(&cfg.Server.RateLimit.Config,
					ratelimit.WithRedisConnector(conn),
					ratelimit.WithLogger(rt.logger),
					ratelimit.WithMeter(rt.meter))
				if err != nil {
					return err
				}
				defer limiter.Close()
				opts = append(opts, server.WithLimiter(limiter))
			}

			srv, err := server.New(&cfg.Server, gen, opts...)
			if err != nil {
				return err
			}
			if err := srv.Run(ctx); err != nil {
				return err
			}
			if cause := context.Cause(ctx); cause != nil && cause != context.Canceled {
				return cause
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

// watchLogLevel 配置文件中 log.level 变化时调整日志级别
func watchLogLevel(ctx context.Context, loader config.Loader, logger clog.Logger) {
	events, err := loader.Watch(ctx, "log.level")
	if err != nil {
		logger.Warn("watch log.level failed", clog.Error(err))
		return
	}
	go func() {
		for ev := range events {
			s, _ := ev.Value.(string)
			level, err := clog.ParseLevel(s)
			if err != nil {
				logger.Warn("ignore invalid log level", clog.String("level", s))
				continue
			}
			if err := logger.SetLevel(level); err == nil {
				logger.Info("log level changed", clog.String("level", s))
			}
		}
	}()
}
