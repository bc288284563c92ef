package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/masonry/pkg/config"
	"github.com/matzehuels/masonry/pkg/server"
	"github.com/matzehuels/masonry/pkg/source"
)

// serveCommand creates the serve command, which runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		logFile   string
		redisAddr string
		src       string
		watch     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the layout HTTP API",
		Long: `Run the layout HTTP API.

POST /v1/layout and /v1/window balance collections sent in the request
body. GET /v1/stream opens a websocket session that pages through the
configured source, so --source (or [source] uri) is needed for streaming.

With --watch, a manifest or image directory source is reopened when it
changes; sessions opened afterwards see the new collection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				c.Config.Server.Addr = addr
			}
			if logFile != "" {
				c.Config.Log.File = logFile
			}
			if redisAddr != "" {
				c.Config.Cache.Backend = config.CacheRedis
				c.Config.Cache.RedisAddr = redisAddr
			}
			if src != "" {
				c.Config.Source.URI = src
			}
			return c.runServe(cmd.Context(), watch)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "also write logs to this file, rotated by size")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "cache layouts in the Redis server at this address")
	cmd.Flags().StringVar(&src, "source", "", "photo source for stream sessions (default from config)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reopen the source when it changes on disk")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, watch bool) error {
	logger, logCloser, err := teeLogger(c.Logger, os.Stderr, c.Config.Log)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logCloser.Close()

	runner, err := c.newRunner(ctx, false)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()
	runner.Logger = logger

	scfg := server.Config{
		Addr:      c.Config.Server.Addr,
		RateLimit: c.Config.Server.RateLimit,
		RateBurst: c.Config.Server.RateBurst,
		Layout:    c.Config.Layout.Masonry(),
		Buffer:    c.Config.Layout.Buffer,
		Threshold: c.Config.Layout.BoundaryThreshold,
		PageSize:  c.Config.Source.PageSize,
	}

	uri := c.Config.Source.URI
	if uri != "" {
		src, err := source.Open(ctx, uri)
		if err != nil {
			return err
		}
		defer func() {
			// The server may have swapped it out.
			if scfg.Source != nil {
				scfg.Source.Close()
			}
		}()
		scfg.Source = src
		if _, ok := src.(source.Store); ok && watch {
			return fmt.Errorf("--watch needs a manifest file or image directory, got %s", uri)
		}
	} else if watch {
		return fmt.Errorf("--watch needs a source")
	}

	srv := server.New(scfg, runner, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	// Watched sources are manifests or directories; closing the previous
	// one does not disturb sessions still paging from it.
	if watch {
		g.Go(func() error {
			return source.Watch(ctx, uri, source.DefaultDebounce, func() {
				next, err := source.Open(ctx, uri)
				if err != nil {
					logger.Warn("reopen source", "uri", uri, "error", err)
					return
				}
				prev := srv.SetSource(next)
				scfg.Source = next
				if prev != nil {
					prev.Close()
				}
				logger.Info("source reloaded", "source", next.Name())
			})
		})
	}

	return g.Wait()
}
