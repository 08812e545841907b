package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/christosporios/strategic-investments-gr/internal/model"
	"github.com/christosporios/strategic-investments-gr/internal/reconcile"
	"github.com/christosporios/strategic-investments-gr/internal/snapshot"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print a summary of the current snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := snapshot.Load(cfg.Snapshot.Path)
		if err != nil {
			return err
		}

		var total float64
		byCategory := make(map[model.Category]int)
		geocoded := 0
		for i := range snap.Investments {
			inv := &snap.Investments[i]
			total += inv.TotalAmount
			byCategory[inv.Category]++
			for _, loc := range inv.Locations {
				if loc.Lat != nil {
					geocoded++
					break
				}
			}
		}

		fmt.Printf("Snapshot: %s\n", cfg.Snapshot.Path)
		fmt.Printf("  generated at:       %s\n", snap.Metadata.GeneratedAt)
		fmt.Printf("  investments:        %d\n", len(snap.Investments))
		fmt.Printf("  total amount:       %.0f EUR\n", total)
		fmt.Printf("  revisions excluded: %d\n", len(snap.Metadata.RevisionsExcluded))
		fmt.Printf("  with coordinates:   %d\n", geocoded)

		categories := make([]string, 0, len(byCategory))
		for c := range byCategory {
			categories = append(categories, string(c))
		}
		sort.Strings(categories)
		fmt.Println("  by category:")
		for _, c := range categories {
			name := c
			if name == "" {
				name = "(unspecified)"
			}
			fmt.Printf("    %-14s %d\n", name, byCategory[model.Category(c)])
		}

		w := reconcile.CollectWarnings(snap)
		fmt.Println("  data quality:")
		fmt.Printf("    missing coordinates:    %d\n", w.MissingCoordinates)
		fmt.Printf("    funding sum mismatch:   %d\n", w.FundingSumMismatch)
		fmt.Printf("    breakdown mismatch:     %d\n", w.BreakdownMismatch)
		fmt.Printf("    zero total amount:      %d\n", w.ZeroTotalAmount)
		fmt.Printf("    missing registry code:  %d\n", w.MissingRegistryCode)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
