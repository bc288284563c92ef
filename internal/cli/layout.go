package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/masonry/pkg/layout"
	"github.com/matzehuels/masonry/pkg/pipeline"
	"github.com/matzehuels/masonry/pkg/source"
)

// layoutFlags holds the flags shared by commands that balance a collection.
// Zero values fall back to the config file.
type layoutFlags struct {
	width          float64
	minColumnWidth float64
	maxColumns     int
	estimate       float64
	filter         string
	noCache        bool
	refresh        bool
}

func (f *layoutFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.width, "width", pipeline.DefaultWidth, "container width")
	cmd.Flags().Float64Var(&f.minColumnWidth, "min-column-width", 0, "minimum column width (default from config)")
	cmd.Flags().IntVar(&f.maxColumns, "max-columns", 0, "maximum number of columns (default from config)")
	cmd.Flags().Float64Var(&f.estimate, "estimated-card-height", 0, "estimated card height (default from config)")
	cmd.Flags().StringVar(&f.filter, "filter", "", "fuzzy filter on alt text, photographer or id")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "recompute and overwrite cached entries")
}

// options merges the flags over the config-derived options.
func (f *layoutFlags) options(base pipeline.Options) pipeline.Options {
	opts := base
	opts.Width = f.width
	opts.Refresh = f.refresh
	if f.minColumnWidth != 0 {
		opts.MinColumnWidth = f.minColumnWidth
	}
	if f.maxColumns != 0 {
		opts.MaxColumns = f.maxColumns
	}
	if f.estimate != 0 {
		opts.EstimatedCardHeight = f.estimate
	}
	return opts
}

// layoutCommand creates the layout command for balancing a collection.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		flags  layoutFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "layout [source]",
		Short: "Balance a photo collection into columns",
		Long: `Balance a photo collection into columns.

The source is a JSON or YAML manifest, a directory of images, or a
sqlite:// or mongodb:// store. When omitted, [source] uri from the config
file is used. The output is a layout.json file holding every column with
the position of each photo.

Results are cached locally for faster subsequent runs.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeSource,
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, err := c.sourceArg(args)
			if err != nil {
				return err
			}
			return c.runLayout(cmd.Context(), uri, flags, output)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <source>.layout.json)")

	return cmd
}

// runLayout loads the collection, balances it and writes the layout file.
func (c *CLI) runLayout(ctx context.Context, uri string, flags layoutFlags, output string) error {
	runner, err := c.newRunner(ctx, flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	photos, _, err := c.loadPhotos(ctx, runner, uri, flags.filter, flags.refresh)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Loaded %d photos", len(photos)))

	spinner := newSpinnerWithContext(ctx, "Balancing columns...")
	spinner.Start()

	l, cacheHit, err := runner.ComputeLayoutWithCacheInfo(ctx, photos, flags.options(c.layoutOptions()))
	if err != nil {
		spinner.StopWithError("Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	outputPath := output
	if outputPath == "" {
		outputPath = defaultLayoutPath(uri)
	}
	if err := layout.WriteLayoutFile(l, outputPath); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	printSuccess("Layout complete")
	printFile(outputPath)
	printStats(l.Len(), l.NumColumns, -1, cacheHit)
	printNewline()
	printNextStep("Window", appName+" window "+outputPath)

	return nil
}

// defaultLayoutPath derives the output path from a source: manifests and
// directories get a sibling file, stores a file in the working directory.
func defaultLayoutPath(uri string) string {
	switch {
	case source.IsManifest(uri):
		return strings.TrimSuffix(uri, filepath.Ext(uri)) + ".layout.json"
	case strings.Contains(uri, "://"):
		return appName + ".layout.json"
	default:
		return filepath.Clean(uri) + ".layout.json"
	}
}
