// Package categories implements the category discovery command. It runs
// discovery for a client and prints the resulting category list.
package categories

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/partswatch/partswatch/cmd/common"
	"github.com/partswatch/partswatch/internal/discover"
	"github.com/partswatch/partswatch/internal/domain"
	"github.com/partswatch/partswatch/internal/sites"
)

// Command returns the categories command.
func Command() *cobra.Command {
	var client string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Discover and list categories for a client",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewDeps()
			if err != nil {
				return err
			}

			adapter, err := sites.NewRegistry().ForClient(client)
			if err != nil {
				return err
			}
			if !adapter.SupportsDiscovery() {
				fmt.Printf("Client %q takes explicit category lists, nothing to discover\n", client)
				return nil
			}

			d := discover.New(common.NewFetchFactory(deps).Session(), deps.Logger)
			seeds := d.Discover(cmd.Context(), adapter)
			renderSeeds(client, seeds)
			return nil
		},
	}

	cmd.Flags().StringVar(&client, "client", "", "site client to discover (required)")
	_ = cmd.MarkFlagRequired("client")

	return cmd
}

func renderSeeds(client string, seeds []domain.CategorySeed) {
	if len(seeds) == 0 {
		fmt.Printf("No categories discovered for %q\n", client)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(plainStyle())
	t.AppendHeader(table.Row{"Label", "Slug", "URL"})
	for _, seed := range seeds {
		t.AppendRow(table.Row{seed.Label, seed.Slug, seed.URL})
	}
	t.Render()
	fmt.Printf("%d categories\n", len(seeds))
}

// plainStyle renders without borders or separators.
func plainStyle() table.Style {
	return table.Style{
		Box: table.BoxStyle{
			PaddingLeft:  "",
			PaddingRight: "  ",
		},
		Options: table.Options{
			DrawBorder:      false,
			SeparateColumns: false,
			SeparateHeader:  false,
			SeparateRows:    false,
		},
	}
}
