package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/brensch/flatpack/internal/db"
	"github.com/brensch/flatpack/internal/organizer"

	"github.com/spf13/cobra"
)

var organizeRemove bool

// organizeCmd flattens directories produced by an earlier extraction.
var organizeCmd = &cobra.Command{
	Use:   "organize [dirs...]",
	Short: "Flatten directories into their roots with normalized names",
	Long: `Moves every file under each directory up to the directory itself, renaming
it to NFC form with a lower-cased extension and a numeric suffix on conflict.
Empty files and the emptied sub-directories are removed.

With --remove the directories are deleted outright instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		ledger := db.NewLedger(getDB(), logger)
		l := logger.With(slog.String("run_id", ledger.RunID()))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		dirs, err := absPaths(args)
		if err != nil {
			return err
		}
		org := organizer.New(l, ledger)
		var failed int
		for _, dir := range dirs {
			if organizeRemove {
				if !org.DeleteFolder(ctx, dir) {
					failed++
				}
				continue
			}
			s := org.Organize(ctx, dir)
			fmt.Printf("%s: moved %d, deleted %d, kept %d, dirs removed %d, failures %d\n",
				dir, s.Moved, s.Deleted, s.Kept, s.DirsRemoved, s.Failures)
			failed += s.Failures
		}
		if failed > 0 {
			return fmt.Errorf("%d items could not be organized", failed)
		}
		return nil
	},
}

func init() {
	organizeCmd.Flags().BoolVar(&organizeRemove, "remove", false, "Delete the directories recursively instead of flattening them")
}
