package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/christosporios/strategic-investments-gr/internal/snapshot"
)

var geocodeDryRun bool

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Backfill missing coordinates in the snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		snap, err := snapshot.Load(cfg.Snapshot.Path)
		if err != nil {
			return err
		}

		geocoder := buildGeocoder()
		var filled, failed, unmatched int
		for i := range snap.Investments {
			for j := range snap.Investments[i].Locations {
				loc := &snap.Investments[i].Locations[j]
				if loc.Lat != nil || loc.TextLocation == "" {
					continue
				}
				lat, lon, ok, err := geocoder.Geocode(ctx, loc.TextLocation)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					zap.L().Warn("geocode lookup failed",
						zap.String("location", loc.TextLocation),
						zap.Error(err),
					)
					failed++
					continue
				}
				if !ok {
					unmatched++
					continue
				}
				loc.Lat, loc.Lon = &lat, &lon
				filled++
			}
		}

		fmt.Printf("Geocoded %d locations (%d unmatched, %d failed)\n", filled, unmatched, failed)
		if geocodeDryRun || filled == 0 {
			return nil
		}
		return snapshot.Save(cfg.Snapshot.Path, snap)
	},
}

func init() {
	geocodeCmd.Flags().BoolVar(&geocodeDryRun, "dry-run", false, "look up coordinates but do not write the snapshot")
	rootCmd.AddCommand(geocodeCmd)
}
