package cli

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/masonry/pkg/source"
)

// browseCommand creates the interactive browser.
func (c *CLI) browseCommand() *cobra.Command {
	var (
		filter   string
		pageSize int
		watch    bool
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "browse [source]",
		Short: "Scroll through a collection in the terminal",
		Long: `Scroll through a collection in the terminal.

Photos are balanced into as many columns as the terminal is wide enough
for, and only the cards near the screen are drawn. More photos are fetched
page by page as you approach the end. With --watch, a manifest file or
image directory is reloaded when it changes on disk.

Photos opened with enter are printed on exit, one per line.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeSource,
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, err := c.sourceArg(args)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("page-size") {
				pageSize = c.Config.Source.PageSize
			}
			return c.runBrowse(cmd.Context(), uri, filter, pageSize, watch, noCache)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "initial fuzzy filter")
	cmd.Flags().IntVar(&pageSize, "page-size", source.DefaultPageSize, "photos fetched per page (default from config)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload when the source changes on disk")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching of fetched pages")

	return cmd
}

func (c *CLI) runBrowse(ctx context.Context, uri, filter string, pageSize int, watch, noCache bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	// The terminal belongs to the program while it runs, so logs only go
	// to the configured log file.
	logger, logCloser, err := teeLogger(newLogger(io.Discard, c.Logger.GetLevel()), io.Discard, c.Config.Log)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logCloser.Close()
	runner.Logger = logger

	src, err := source.Open(ctx, uri)
	if err != nil {
		return err
	}

	opts := browseOptions{
		Layout:   c.Config.Layout,
		PageSize: pageSize,
		Filter:   filter,
		Logger:   logger,
		Fetcher: func(s source.Source) source.FetchFunc {
			return runner.Fetcher(s, false)
		},
		Reopen: func(ctx context.Context) (source.Source, error) {
			return source.Open(ctx, uri)
		},
	}

	if watch {
		if _, ok := src.(source.Store); ok {
			src.Close()
			return fmt.Errorf("--watch needs a manifest file or image directory, got %s", uri)
		}
		w, err := source.NewWatcher(uri, source.DefaultDebounce)
		if err != nil {
			src.Close()
			return fmt.Errorf("watch %s: %w", uri, err)
		}
		defer w.Close()
		opts.Changes, opts.WatchErrs = w.Changes(), w.Errors()
	}

	model, err := newBrowseModel(ctx, src, opts)
	if err != nil {
		src.Close()
		return err
	}
	defer model.close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("browse: %w", err)
	}

	for _, photo := range model.activated {
		target := photo.URL
		if target == "" {
			target = photo.Src.Original
		}
		fmt.Printf("%s\t%s\n", photo.ID, target)
	}
	printRejected(len(model.pager.Rejected()))
	return nil
}
