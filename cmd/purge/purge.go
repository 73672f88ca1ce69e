// Package purge implements the catalog data purge command.
package purge

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/partswatch/partswatch/cmd/common"
	"github.com/partswatch/partswatch/internal/database"
)

// Command returns the purge command.
func Command() *cobra.Command {
	var (
		olderThanDays   int
		includeProducts bool
		deleteAll       bool
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete historical catalog data",
		Long:  `Deletes price history and change logs, optionally products too. Without --all a cutoff in days is required.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !deleteAll && olderThanDays <= 0 {
				return fmt.Errorf("either --older-than-days or --all is required")
			}

			opts := database.PurgeOptions{
				IncludeProducts: includeProducts,
				DeleteAll:       deleteAll,
			}
			if !deleteAll {
				opts.OlderThanDays = &olderThanDays
			}

			deps, err := common.NewDeps()
			if err != nil {
				return err
			}

			db, err := common.OpenDatabase(cmd.Context(), deps)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			result, err := database.NewPurgeRepository(db).Purge(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("purge failed: %w", err)
			}

			historyDays := olderThanDays
			if deleteAll {
				historyDays = 0
			}
			snapshots, err := database.NewHistoryRepository(db).Cleanup(cmd.Context(), historyDays)
			if err != nil {
				return fmt.Errorf("fetch history cleanup failed: %w", err)
			}

			fmt.Printf("Purged %d price history rows, %d change rows, %d products, %d fetch snapshots\n",
				result.PriceHistoryDeleted, result.ChangesDeleted, result.ProductsDeleted, snapshots)
			return nil
		},
	}

	cmd.Flags().IntVar(&olderThanDays, "older-than-days", 0, "delete rows older than this many days")
	cmd.Flags().BoolVar(&includeProducts, "include-products", false, "also delete product rows")
	cmd.Flags().BoolVar(&deleteAll, "all", false, "delete all historical data regardless of age")

	return cmd
}
