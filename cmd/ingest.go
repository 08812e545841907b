package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/christosporios/strategic-investments-gr/internal/classify"
	"github.com/christosporios/strategic-investments-gr/internal/extract"
	"github.com/christosporios/strategic-investments-gr/internal/model"
	"github.com/christosporios/strategic-investments-gr/internal/reconcile"
	"github.com/christosporios/strategic-investments-gr/internal/revision"
	"github.com/christosporios/strategic-investments-gr/internal/source/diavgeia"
	"github.com/christosporios/strategic-investments-gr/internal/source/enterprisegreece"
	"github.com/christosporios/strategic-investments-gr/pkg/anthropic"
	"github.com/christosporios/strategic-investments-gr/pkg/geocode"
)

var (
	ingestStartDate    string
	ingestEndDate      string
	ingestFresh        bool
	ingestSkipDiavgeia bool
	ingestSkipEG       bool
	ingestDryRun       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Collect, extract and reconcile investment decisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Anthropic.Key == "" {
			return eris.New("ingest: anthropic.key is required (INVEST_ANTHROPIC_KEY)")
		}
		for _, d := range []string{ingestStartDate, ingestEndDate} {
			if d == "" {
				continue
			}
			if _, err := time.Parse("2006-01-02", d); err != nil {
				return eris.Errorf("ingest: invalid date %q, want YYYY-MM-DD", d)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		llm := anthropic.NewClient(cfg.Anthropic.Key)
		registry := diavgeia.NewClient(cfg.Diavgeia.BaseURL,
			diavgeia.WithPageSize(cfg.Diavgeia.PageSize),
			diavgeia.WithRateLimit(cfg.Diavgeia.RequestsPerSec),
			diavgeia.WithOrganization(cfg.Diavgeia.OrganizationUID),
		)
		projects := enterprisegreece.NewClient(cfg.EnterpriseGreece.URL)
		detector := revision.NewDetector(cfg.Revision.Keywords, registry)
		classifier := classify.NewLLMClassifier(llm, cfg.Anthropic.HaikuModel)
		extractor := extract.NewExtractor(llm, registry, cfg.Anthropic.SonnetModel)
		geocoder := buildGeocoder()

		engine := reconcile.NewEngine(registry, projects, detector, classifier, extractor, geocoder, cfg.Snapshot.Path)
		res, err := engine.Run(ctx, reconcile.Options{
			Range:         model.DateRange{From: ingestStartDate, To: ingestEndDate},
			Fresh:         ingestFresh,
			SkipPrimary:   ingestSkipDiavgeia,
			SkipSecondary: ingestSkipEG,
			DryRun:        ingestDryRun,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Run %s finished (%s)\n", res.RunID, res.FinalState)
		fmt.Printf("  investments:        %d\n", len(res.Snapshot.Investments))
		fmt.Printf("  new records:        %d\n", res.NewRecords)
		fmt.Printf("  kept prior:         %d\n", res.KeptPrior)
		fmt.Printf("  superseded dropped: %d\n", res.SupersededDropped)
		fmt.Printf("  duplicates dropped: %d\n", res.DuplicatesDropped)
		fmt.Printf("  skipped known:      %d\n", res.SkippedKnown)
		if res.UnresolvedRevisions > 0 {
			fmt.Printf("  unresolved revisions: %d\n", res.UnresolvedRevisions)
		}
		return nil
	},
}

// buildGeocoder assembles the geocode client. A cache failure degrades to an
// uncached client rather than blocking the run.
func buildGeocoder() *geocode.Client {
	opts := []geocode.Option{
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithThrottle(time.Duration(cfg.Geocode.ThrottleMS) * time.Millisecond),
	}
	if cfg.Geocode.CachePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Geocode.CachePath), 0o755); err == nil {
			if cache, err := geocode.OpenCache(cfg.Geocode.CachePath); err == nil {
				opts = append(opts, geocode.WithCache(cache))
			} else {
				zap.L().Warn("geocode cache unavailable", zap.Error(err))
			}
		}
	}
	return geocode.NewClient(cfg.Geocode.BaseURL, opts...)
}

func init() {
	ingestCmd.Flags().StringVar(&ingestStartDate, "start-date", "", "primary source window start (YYYY-MM-DD)")
	ingestCmd.Flags().StringVar(&ingestEndDate, "end-date", "", "primary source window end (YYYY-MM-DD)")
	ingestCmd.Flags().BoolVar(&ingestFresh, "fresh", false, "ignore the prior snapshot and start from scratch")
	ingestCmd.Flags().BoolVar(&ingestSkipDiavgeia, "skip-diavgeia", false, "skip the Diavgeia registry source")
	ingestCmd.Flags().BoolVar(&ingestSkipEG, "skip-eg", false, "skip the Enterprise Greece source")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "run the full pipeline but do not write the snapshot")
	rootCmd.AddCommand(ingestCmd)
}
