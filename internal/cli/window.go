package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/masonry/pkg/layout"
	"github.com/matzehuels/masonry/pkg/pipeline"
)

// windowCommand creates the window command, which prints the photos that
// would be materialized for one viewport.
func (c *CLI) windowCommand() *cobra.Command {
	var (
		flags    layoutFlags
		output   string
		scroll   float64
		viewport float64
		buffer   int
	)

	cmd := &cobra.Command{
		Use:   "window [source | layout.json]",
		Short: "Print the photos near a viewport",
		Long: `Print the photos near a viewport as JSON.

The input is either a source (balanced on the fly, like 'layout') or a
.layout.json file written by 'layout', in which case the layout flags are
ignored and the recorded configuration is used.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeSource,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := c.sourceArg(args)
			if err != nil {
				return err
			}
			opts := flags.options(c.layoutOptions())
			opts.ScrollOffset = scroll
			opts.ViewportHeight = viewport
			if cmd.Flags().Changed("buffer") {
				opts.Buffer = buffer
			}
			return c.runWindow(cmd.Context(), input, flags, opts, output)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().Float64Var(&scroll, "scroll", 0, "scroll offset")
	cmd.Flags().Float64Var(&viewport, "viewport", pipeline.DefaultViewportHeight, "viewport height")
	cmd.Flags().IntVar(&buffer, "buffer", 0, "margin in estimated cards above and below the viewport (default from config)")

	return cmd
}

// runWindow computes the window and writes it as JSON.
func (c *CLI) runWindow(ctx context.Context, input string, flags layoutFlags, opts pipeline.Options, output string) error {
	runner, err := c.newRunner(ctx, flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	var w layout.Window
	if strings.HasSuffix(input, ".layout.json") {
		l, err := layout.ReadLayoutFile(input)
		if err != nil {
			return err
		}
		if err := opts.ValidateForWindow(); err != nil {
			return err
		}
		w = runner.WindowLayout(ctx, l, opts)
	} else {
		photos, _, err := c.loadPhotos(ctx, runner, input, flags.filter, flags.refresh)
		if err != nil {
			return err
		}
		w, err = runner.ComputeWindow(ctx, photos, opts)
		if err != nil {
			return fmt.Errorf("compute window: %w", err)
		}
	}
	loggerFromContext(ctx).Debug("window", "visible", w.Visible(), "total", w.Total, "columns", w.NumColumns)

	if output == "" {
		return layout.WriteWindow(w, os.Stdout)
	}
	if err := layout.WriteWindowFile(w, output); err != nil {
		return fmt.Errorf("write output %s: %w", output, err)
	}
	printSuccess("Window written")
	printFile(output)
	printStats(w.Total, w.NumColumns, w.Visible(), false)
	return nil
}
