package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"
	"github.com/skynetlabs/skynet/configuration"
	"github.com/skynetlabs/skynet/internal/dcontext"
	"github.com/skynetlabs/skynet/portal"
	"github.com/spf13/cobra"
)

// defaultPortalAddr is the development portal's listen address when none is
// configured.
const defaultPortalAddr = "localhost:9980"

func newPortalCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portal",
		Short: "`portal` runs a development portal",
	}

	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "`serve` serves the registry and file API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, root)
			if err != nil {
				return err
			}
			defer env.close()

			config := env.config
			if addr != "" {
				config.HTTP.Addr = addr
			}
			if config.HTTP.Addr == "" {
				config.HTTP.Addr = defaultPortalAddr
			}

			ctx, stop := signal.NotifyContext(env.ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return servePortal(ctx, config)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address, overrides http.addr")

	cmd.AddCommand(serve)
	return cmd
}

// servePortal runs a portal configured by config until ctx is done.
func servePortal(ctx context.Context, config *configuration.Configuration) error {
	store, err := newStore(ctx, config)
	if err != nil {
		return err
	}

	app := portal.NewApp(ctx, store, portal.Options{
		APIKey:        config.HTTP.APIKey,
		MaxUploadSize: config.HTTP.MaxUploadSize,
		Metrics:       config.HTTP.Metrics,
	})
	defer func() {
		if err := app.Close(); err != nil {
			dcontext.GetLogger(ctx).Errorf("closing store: %v", err)
		}
	}()

	opts := portal.ServerOptions{
		Addr:         config.HTTP.Addr,
		DrainTimeout: config.HTTP.DrainTimeout,
	}
	if !config.Log.AccessLog.Disabled {
		opts.AccessLog = os.Stdout
	}
	server, err := portal.NewServer(app, opts)
	if err != nil {
		return err
	}
	return server.ListenAndServe(ctx)
}

// redisStoreParameters are the parameters of the redis store type.
type redisStoreParameters struct {
	Prefix string `mapstructure:"prefix"`
}

// newStore builds the configured store.
func newStore(ctx context.Context, config *configuration.Configuration) (portal.Store, error) {
	switch config.Store.Type() {
	case "", configuration.StoreInMemory:
		dcontext.GetLogger(ctx).Info("using inmemory store")
		return portal.NewMemoryStore(), nil
	case configuration.StoreRedis:
		var params redisStoreParameters
		if err := mapstructure.WeakDecode(map[string]interface{}(config.Store.Parameters()), &params); err != nil {
			return nil, fmt.Errorf("store.redis: %w", err)
		}
		pool := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:           []string{config.Redis.Addr},
			Username:        config.Redis.Username,
			Password:        config.Redis.Password,
			DB:              config.Redis.DB,
			DialTimeout:     config.Redis.DialTimeout,
			ReadTimeout:     config.Redis.ReadTimeout,
			WriteTimeout:    config.Redis.WriteTimeout,
			PoolSize:        config.Redis.Pool.MaxActive,
			MaxIdleConns:    config.Redis.Pool.MaxIdle,
			ConnMaxIdleTime: config.Redis.Pool.IdleTimeout,
		})
		if err := pool.Ping(ctx).Err(); err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", config.Redis.Addr, err)
		}
		dcontext.GetLogger(ctx).Infof("using redis store at %s", config.Redis.Addr)
		return portal.NewRedisStore(pool, params.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", config.Store.Type())
	}
}
