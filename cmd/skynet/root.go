package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/skynetlabs/skynet/client"
	"github.com/skynetlabs/skynet/configuration"
	"github.com/skynetlabs/skynet/internal/client/transport"
	"github.com/skynetlabs/skynet/internal/dcontext"
	"github.com/skynetlabs/skynet/notifications"
	"github.com/skynetlabs/skynet/skydb"
	"github.com/skynetlabs/skynet/tracing"
	"github.com/skynetlabs/skynet/version"
	"github.com/spf13/cobra"
)

// configurationPathEnv names the configuration file when --config is not
// given.
const configurationPathEnv = "SKYNET_CONFIGURATION_PATH"

// defaultConfiguration is parsed when no file is given, so that environment
// overrides still apply.
const defaultConfiguration = "version: 0.1\n"

// rootOptions holds the flags shared by every command.
type rootOptions struct {
	configPath  string
	showVersion bool
}

func newRootCmd() *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:           "skynet",
		Short:         "`skynet` talks to the registry and SkyDB of a Skynet portal",
		Long:          "`skynet` talks to the registry and SkyDB of a Skynet portal",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				version.FprintVersion(cmd.OutOrStdout())
				return nil
			}
			return cmd.Usage()
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (default $"+configurationPathEnv+")")
	cmd.Flags().BoolVarP(&opts.showVersion, "version", "v", false, "show the version and exit")

	cmd.AddCommand(
		newVersionCmd(),
		newKeysCmd(),
		newRegistryCmd(&opts),
		newDBCmd(&opts),
		newContentCmd(&opts),
		newPortalCmd(&opts),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "`version` prints the version and exits",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			version.FprintVersion(cmd.OutOrStdout())
		},
	}
}

func resolveConfiguration(path string) (*configuration.Configuration, error) {
	if path == "" {
		path = os.Getenv(configurationPathEnv)
	}
	if path == "" {
		return configuration.Parse(strings.NewReader(defaultConfiguration))
	}

	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	config, err := configuration.Parse(fp)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %v", path, err)
	}
	return config, nil
}

// environment is what a command runs with once configuration, logging and
// tracing are set up.
type environment struct {
	ctx      context.Context
	config   *configuration.Configuration
	shutdown func(context.Context) error
}

func setup(cmd *cobra.Command, opts *rootOptions) (*environment, error) {
	config, err := resolveConfiguration(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	ctx := dcontext.WithVersion(dcontext.Background(), version.Version())
	ctx, err = configureLogging(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to configure logging with config: %w", err)
	}

	shutdown, err := tracing.InitOpenTelemetry(ctx, tracing.Config{
		Enabled:       config.Tracing.Enabled,
		SamplingRatio: config.Tracing.SamplingRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to initialize tracing: %w", err)
	}

	if cmd.Context() != nil {
		ctx = mergeCancel(ctx, cmd.Context())
	}
	return &environment{ctx: ctx, config: config, shutdown: shutdown}, nil
}

func (env *environment) close() {
	if err := env.shutdown(context.Background()); err != nil {
		dcontext.GetLogger(env.ctx).Warnf("tracing shutdown: %v", err)
	}
}

// newClient builds a client from the portal section of the configuration.
func (env *environment) newClient() (*client.Client, error) {
	portal := env.config.Portal
	opts := client.Options{
		Options: transport.Options{
			PortalURL:    portal.URL,
			APIKey:       portal.APIKey,
			CustomCookie: portal.CustomCookie,
			UserAgent:    portal.UserAgent,
			RetryMax:     portal.RetryMax,
			Timeout:      portal.Timeout,
		},
		WriteTimeout: portal.WriteTimeout,
	}
	if err := client.DecodeParameters(portal.Upload, &opts.Upload); err != nil {
		return nil, fmt.Errorf("portal.upload: %w", err)
	}
	if err := client.DecodeParameters(portal.Download, &opts.Download); err != nil {
		return nil, fmt.Errorf("portal.download: %w", err)
	}
	for _, endpoint := range env.config.Notifications.Endpoints {
		opts.Endpoints = append(opts.Endpoints, client.Endpoint{
			Name:     endpoint.Name,
			URL:      endpoint.URL,
			Disabled: endpoint.Disabled,
			EndpointConfig: notifications.EndpointConfig{
				Headers:        endpoint.Headers,
				Timeout:        endpoint.Timeout,
				Threshold:      endpoint.Threshold,
				Backoff:        endpoint.Backoff,
				IgnoredActions: endpoint.IgnoredActions,
			},
		})
	}
	return client.New(env.ctx, opts)
}

// entryOptions returns the configured SkyDB defaults.
func (env *environment) entryOptions() (skydb.EntryOptions, error) {
	var opts skydb.EntryOptions
	if err := client.DecodeParameters(env.config.Portal.DB, &opts); err != nil {
		return opts, fmt.Errorf("portal.db: %w", err)
	}
	return opts, nil
}

// mergeCancel returns ctx, canceled when done is.
func mergeCancel(ctx, done context.Context) context.Context {
	merged, cancel := context.WithCancel(ctx)
	context.AfterFunc(done, cancel)
	return merged
}

// withClient runs fn with a configured environment and client.
func withClient(cmd *cobra.Command, root *rootOptions, fn func(env *environment, c *client.Client) error) error {
	env, err := setup(cmd, root)
	if err != nil {
		return err
	}
	defer env.close()

	c, err := env.newClient()
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			dcontext.GetLogger(env.ctx).Warnf("closing client: %v", err)
		}
	}()
	return fn(env, c)
}
