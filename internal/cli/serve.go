package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/fm3/internal/server"
	"github.com/matzehuels/fm3/pkg/errors"
)

// serveCmdFlags holds the command-line flags of the serve command.
type serveCmdFlags struct {
	config  string
	addr    string
	timeout time.Duration
	cache   cacheFlags
}

// serveCommand creates the serve command for running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var flags serveCmdFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the layout HTTP API",
		Long: `Run the layout HTTP API.

Endpoints:
  GET  /healthz
  POST /v1/layout           {"graph": {...}, "layout": {...}, "formats": [...]}
  POST /v1/render/{format}  same body, returns the raw svg, png or dot

Layouts are cached in the local cache directory, or in redis when --redis or
FM3_REDIS_URL is set so that several instances share results.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.config)
			if err != nil {
				return err
			}
			scfg, err := serverConfigFrom(cmd, cfg.Server, flags)
			if err != nil {
				return err
			}
			return c.runServe(cmd.Context(), scfg, flags.cache)
		},
	}

	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "TOML config file")
	cmd.Flags().StringVar(&flags.addr, "addr", server.DefaultAddr, "listen address")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", server.DefaultTimeout, "per-request timeout")
	flags.cache.register(cmd)

	return cmd
}

// serverConfigFrom merges the [server] table of the config file with flags.
func serverConfigFrom(cmd *cobra.Command, sc serverConfig, flags serveCmdFlags) (server.Config, error) {
	cfg := server.Config{
		Addr:        sc.Addr,
		MaxVertices: sc.MaxVertices,
		MaxEdges:    sc.MaxEdges,
		MaxBodySize: sc.MaxBodySize,
	}
	if sc.Timeout != "" {
		d, err := time.ParseDuration(sc.Timeout)
		if err != nil {
			return server.Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "server.timeout")
		}
		cfg.Timeout = d
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr = flags.addr
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = flags.timeout
	}
	return cfg, nil
}

func (c *CLI) runServe(ctx context.Context, cfg server.Config, flags cacheFlags) error {
	runner, err := c.newRunner(ctx, flags)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	srv := server.New(runner, cfg, c.Logger)
	printInfo("Serving on %s", StyleNumber.Render(srv.Addr()))
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	printSuccess("Server stopped")
	return nil
}
