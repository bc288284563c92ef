package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/masonry/pkg/source"
)

// importCommand creates the import command, which copies a collection into
// a database store.
func (c *CLI) importCommand() *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "import <source> --to <store>",
		Short: "Copy a collection into a SQLite or MongoDB store",
		Long: `Copy a collection into a SQLite or MongoDB store.

The source is anything 'layout' accepts. Photos are upserted by id, so
re-importing updates existing entries in place and keeps their order.

  masonry import photos.json --to sqlite://photos.db
  masonry import ~/Pictures --to mongodb://localhost:27017/gallery?collection=photos`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeSource,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runImport(cmd.Context(), args[0], to)
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "destination store (sqlite:// or mongodb:// URI)")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func (c *CLI) runImport(ctx context.Context, from, to string) error {
	src, err := source.Open(ctx, from)
	if err != nil {
		return err
	}
	defer src.Close()

	store, err := source.OpenStore(ctx, to)
	if err != nil {
		return err
	}
	defer store.Close()

	spinner := newSpinnerWithContext(ctx, "Reading "+from+"...")
	spinner.Start()

	pager := source.NewPager(src, c.Config.Source.PageSize)
	for !pager.Exhausted() {
		if _, err := pager.Next(ctx); err != nil {
			spinner.StopWithError("Import failed")
			return fmt.Errorf("read %s: %w", from, err)
		}
	}
	spinner.Stop()

	logger := loggerFromContext(ctx)
	for _, r := range pager.Rejected() {
		logger.Debug("skipped photo", "index", r.Index, "id", r.Photo.ID, "reason", r.Err)
	}

	prog := newProgress(logger)
	if err := store.Put(ctx, pager.Photos()); err != nil {
		return fmt.Errorf("write %s: %w", store.Name(), err)
	}
	prog.done(fmt.Sprintf("Wrote %d photos", len(pager.Photos())))

	printSuccess("Imported %d photos", len(pager.Photos()))
	printDetail("Store: %s", store.Name())
	printRejected(len(pager.Rejected()))
	printNewline()
	printNextStep("Browse", appName+" browse "+to)
	return nil
}
