// Package reconcile orchestrates the ingestion run: collect candidates from
// both sources, detect revisions, filter relevance, extract records, dedupe
// across sources, and merge everything against the prior snapshot without
// losing, duplicating, or resurrecting records.
package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/christosporios/strategic-investments-gr/internal/classify"
	"github.com/christosporios/strategic-investments-gr/internal/model"
	"github.com/christosporios/strategic-investments-gr/internal/snapshot"
)

// State names a step of the run for logging and failure reporting.
type State string

const (
	StateIdle              State = "idle"
	StateLoadPrior         State = "load_prior"
	StateCollectCandidates State = "collect_candidates"
	StateDetectRevisions   State = "detect_revisions"
	StateClassifyRelevance State = "classify_relevance"
	StateFilterSuperseded  State = "filter_superseded"
	StateExtract           State = "extract"
	StateCrossSourceDedupe State = "cross_source_dedupe"
	StateMergeWithPrior    State = "merge_with_prior"
	StatePersist           State = "persist"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// ErrNoCandidates is the fatal precondition for a run where every source
// produced nothing: nothing to do, nothing is written.
var ErrNoCandidates = eris.New("reconcile: no candidates from any source")

// extractBatchSize is the fan-out width for extraction calls.
const extractBatchSize = 3

// interBatchPause is the mandatory pause between extraction batches.
const interBatchPause = time.Second

// PrimarySource queries the decision registry over a date window.
type PrimarySource interface {
	Search(ctx context.Context, r model.DateRange) ([]model.Candidate, error)
}

// SecondarySource fetches the curated investment list.
type SecondarySource interface {
	Fetch(ctx context.Context) ([]model.Candidate, error)
}

// RevisionDetector inspects one candidate for revision signals.
type RevisionDetector interface {
	Detect(ctx context.Context, cand model.Candidate) model.RevisionResult
}

// RecordExtractor turns one candidate into a record, nil on per-item failure.
type RecordExtractor interface {
	Extract(ctx context.Context, cand model.Candidate) (*model.Investment, error)
}

// Geocoder fills coordinates for a free-text location.
type Geocoder interface {
	Geocode(ctx context.Context, text string) (lat, lon float64, ok bool, err error)
}

// Options are the per-run switches surfaced by the CLI.
type Options struct {
	Range         model.DateRange
	Fresh         bool
	SkipPrimary   bool
	SkipSecondary bool
	DryRun        bool
}

// Result summarizes a completed run.
type Result struct {
	RunID             string
	FinalState        State
	Snapshot          *model.Snapshot
	NewRecords        int
	KeptPrior         int
	SupersededDropped int
	DuplicatesDropped int
	SkippedKnown      int
	// UnresolvedRevisions counts candidates flagged as revisions whose
	// superseded target could not be resolved to a code.
	UnresolvedRevisions int
	Warnings            WarningCounts
}

// Engine runs the reconciliation state machine. It is the only component
// that writes the persisted snapshot.
type Engine struct {
	primary    PrimarySource
	secondary  SecondarySource
	detector   RevisionDetector
	classifier classify.Classifier
	extractor  RecordExtractor
	geocoder   Geocoder

	snapshotPath string

	batchSize  int
	batchPause time.Duration
	nowFunc    func() time.Time
}

// NewEngine wires an engine from its collaborators. geocoder may be nil.
func NewEngine(primary PrimarySource, secondary SecondarySource, detector RevisionDetector, classifier classify.Classifier, extractor RecordExtractor, geocoder Geocoder, snapshotPath string) *Engine {
	return &Engine{
		primary:      primary,
		secondary:    secondary,
		detector:     detector,
		classifier:   classifier,
		extractor:    extractor,
		geocoder:     geocoder,
		snapshotPath: snapshotPath,
		batchSize:    extractBatchSize,
		batchPause:   interBatchPause,
		nowFunc:      time.Now,
	}
}

// Run executes a full reconciliation pass. Per-item failures are downgraded
// to skips; only fatal preconditions and persistence failures surface as
// errors, always before or instead of a write, never after a partial one.
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), FinalState: StateIdle}
	log := zap.L().With(zap.String("run_id", res.RunID))

	// LoadPrior
	res.FinalState = StateLoadPrior
	prior := &model.Snapshot{}
	if !opts.Fresh {
		var err error
		prior, err = snapshot.Load(e.snapshotPath)
		if err != nil {
			res.FinalState = StateFailed
			return res, eris.Wrap(err, "reconcile: load prior snapshot")
		}
	}
	knownADAs := prior.KnownADAs()
	supersededADAs := prior.SupersededADAs()
	log.Info("prior snapshot loaded",
		zap.Int("investments", len(prior.Investments)),
		zap.Int("revision_edges", len(prior.Metadata.RevisionsExcluded)),
		zap.Bool("fresh", opts.Fresh),
	)

	// CollectCandidates
	res.FinalState = StateCollectCandidates
	primaryCands, secondaryCands := e.collect(ctx, opts, log)
	if len(primaryCands) == 0 && len(secondaryCands) == 0 {
		res.FinalState = StateFailed
		return res, ErrNoCandidates
	}

	// Cost control and no-resurrection: skip candidates whose code is
	// already persisted or already superseded, from either source; they
	// were processed by an earlier run.
	primaryCands, res.SkippedKnown = skipKnown(primaryCands, knownADAs, supersededADAs, log)
	var skippedSecondary int
	secondaryCands, skippedSecondary = skipKnown(secondaryCands, knownADAs, supersededADAs, log)
	res.SkippedKnown += skippedSecondary

	// DetectRevisions
	res.FinalState = StateDetectRevisions
	revisions := make(map[string]model.RevisionResult, len(primaryCands))
	for _, cand := range primaryCands {
		r := e.detector.Detect(ctx, cand)
		if r.IsRevision {
			log.Info("revision detected",
				zap.String("ada", cand.ADA),
				zap.String("revises", r.RevisesADA),
			)
			if r.RevisesADA == "" {
				res.UnresolvedRevisions++
			}
			revisions[cand.ADA] = r
		}
	}

	// ClassifyRelevance
	res.FinalState = StateClassifyRelevance
	selected := e.classifyRelevant(ctx, primaryCands, log)

	// FilterSuperseded
	res.FinalState = StateFilterSuperseded
	filtered, droppedSuperseded := filterSuperseded(selected, revisions, log)
	res.SupersededDropped = len(droppedSuperseded)

	// Extract
	res.FinalState = StateExtract
	newPrimary := e.extractAll(ctx, filtered, revisions, log)
	newSecondary := e.extractAll(ctx, secondaryCands, nil, log)

	// CrossSourceDedupe
	primarySet := append(append([]model.Investment{}, prior.Investments...), newPrimary...)
	var newRecords []model.Investment
	if len(newSecondary) > 0 {
		res.FinalState = StateCrossSourceDedupe
		var exclusions int
		newRecords, exclusions = e.dedupeSecondary(ctx, primarySet, newPrimary, newSecondary, log)
		res.DuplicatesDropped = exclusions
	} else {
		newRecords = newPrimary
	}

	// MergeWithPrior
	res.FinalState = StateMergeWithPrior
	merged := mergeWithPrior(prior, newRecords, revisions, log)
	res.Snapshot = merged.snapshot(e.nowFunc())
	res.NewRecords = merged.added
	res.KeptPrior = merged.keptPrior
	res.SupersededDropped += merged.supersededDropped

	checkInvariants(res.Snapshot, log)

	// Geocode enrichment (sequential; the client throttles itself).
	if e.geocoder != nil {
		e.enrichCoordinates(ctx, res.Snapshot, log)
	}

	res.Warnings = CollectWarnings(res.Snapshot)
	res.Warnings.Log(log)

	// Persist
	if opts.DryRun {
		log.Info("dry run: skipping persist")
		res.FinalState = StateDone
		return res, nil
	}
	res.FinalState = StatePersist
	if err := snapshot.Save(e.snapshotPath, res.Snapshot); err != nil {
		res.FinalState = StateFailed
		return res, eris.Wrap(err, "reconcile: persist snapshot")
	}

	res.FinalState = StateDone
	log.Info("run complete",
		zap.Int("total_investments", len(res.Snapshot.Investments)),
		zap.Int("new_records", res.NewRecords),
		zap.Int("kept_prior", res.KeptPrior),
		zap.Int("superseded_dropped", res.SupersededDropped),
		zap.Int("duplicates_dropped", res.DuplicatesDropped),
		zap.Int("skipped_known", res.SkippedKnown),
		zap.Int("unresolved_revisions", res.UnresolvedRevisions),
	)
	return res, nil
}

// collect queries both sources. A source failure is downgraded to an empty
// set so the other source can still contribute; the zero-candidates fatal
// check happens at the caller.
func (e *Engine) collect(ctx context.Context, opts Options, log *zap.Logger) ([]model.Candidate, []model.Candidate) {
	var primaryCands, secondaryCands []model.Candidate

	if !opts.SkipPrimary && e.primary != nil {
		cands, err := e.primary.Search(ctx, opts.Range)
		if err != nil {
			log.Warn("primary source query failed", zap.Error(err))
		} else {
			primaryCands = cands
		}
		log.Info("primary source candidates",
			zap.Int("count", len(primaryCands)),
			zap.String("from", opts.Range.From),
			zap.String("to", opts.Range.To),
		)
	}

	if !opts.SkipSecondary && e.secondary != nil {
		cands, err := e.secondary.Fetch(ctx)
		if err != nil {
			log.Warn("secondary source fetch failed", zap.Error(err))
		} else {
			secondaryCands = cands
		}
		log.Info("secondary source candidates", zap.Int("count", len(secondaryCands)))
	}

	return primaryCands, secondaryCands
}

// skipKnown removes candidates whose code an earlier run already persisted
// or superseded, before any extraction cost is incurred.
func skipKnown(cands []model.Candidate, known, superseded map[string]bool, log *zap.Logger) ([]model.Candidate, int) {
	kept := cands[:0]
	skipped := 0
	for _, c := range cands {
		if c.ADA != "" && (known[c.ADA] || superseded[c.ADA]) {
			log.Debug("skipping already-known candidate", zap.String("ada", c.ADA))
			skipped++
			continue
		}
		kept = append(kept, c)
	}
	return kept, skipped
}

// classifyRelevant runs the relevance shim. A classifier failure drops the
// whole primary batch for this run (logged loudly); prior data and the
// secondary source are unaffected, and the next run will see the same
// candidates again.
func (e *Engine) classifyRelevant(ctx context.Context, cands []model.Candidate, log *zap.Logger) []model.Candidate {
	if len(cands) == 0 {
		return nil
	}
	codes, err := e.classifier.ClassifyRelevant(ctx, cands)
	if err != nil {
		log.Error("relevance classification failed; skipping primary batch", zap.Error(err))
		return nil
	}
	selectedSet := make(map[string]bool, len(codes))
	for _, c := range codes {
		selectedSet[c] = true
	}
	var out []model.Candidate
	for _, cand := range cands {
		if selectedSet[cand.ADA] {
			out = append(out, cand)
		}
	}
	log.Info("relevance classified",
		zap.Int("in", len(cands)),
		zap.Int("selected", len(out)),
	)
	return out
}

// extractAll processes candidates in fixed-size batches with an errgroup
// fan-out inside each batch and a pause between batches. Results keep the
// candidate-list order regardless of network completion order. revisions may
// be nil for sources without revision semantics.
func (e *Engine) extractAll(ctx context.Context, cands []model.Candidate, revisions map[string]model.RevisionResult, log *zap.Logger) []model.Investment {
	if len(cands) == 0 {
		return nil
	}

	results := make([]*model.Investment, len(cands))
	for start := 0; start < len(cands); start += e.batchSize {
		end := start + e.batchSize
		if end > len(cands) {
			end = len(cands)
		}

		g, gCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				inv, err := e.extractor.Extract(gCtx, cands[i])
				if err != nil {
					return err // only context cancellation propagates
				}
				results[i] = inv
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			log.Warn("extraction batch aborted", zap.Error(err))
			break
		}

		if end < len(cands) && e.batchPause > 0 {
			timer := time.NewTimer(e.batchPause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return collectExtracted(cands, results, revisions)
			case <-timer.C:
			}
		}
	}

	return collectExtracted(cands, results, revisions)
}

// collectExtracted flattens the indexed results in input order, attaching
// the revision target discovered for each candidate.
func collectExtracted(cands []model.Candidate, results []*model.Investment, revisions map[string]model.RevisionResult) []model.Investment {
	var out []model.Investment
	for i, inv := range results {
		if inv == nil {
			continue
		}
		if r, ok := revisions[cands[i].ADA]; ok && r.RevisesADA != "" {
			inv.Reference.RevisesADA = r.RevisesADA
		}
		out = append(out, *inv)
	}
	return out
}

// dedupeSecondary runs cross-source deduplication of the freshly extracted
// secondary records against the full primary set, returning the combined new
// contribution (new primary records plus surviving secondary records).
func (e *Engine) dedupeSecondary(ctx context.Context, primarySet, newPrimary, newSecondary []model.Investment, log *zap.Logger) ([]model.Investment, int) {
	merged, exclusions := dedupeRecords(ctx, primarySet, newSecondary, e.classifier)
	// dedupeRecords returns primarySet ++ survivors; the new contribution is
	// newPrimary plus whatever survived past the primary set.
	survivors := merged[len(primarySet):]
	out := append(append([]model.Investment{}, newPrimary...), survivors...)
	log.Info("cross-source dedupe complete",
		zap.Int("secondary_in", len(newSecondary)),
		zap.Int("secondary_kept", len(survivors)),
		zap.Int("duplicates_dropped", len(exclusions)),
	)
	return out, len(exclusions)
}

// enrichCoordinates fills missing location coordinates in place. Lookup
// failures leave the location untouched and are counted by the warning
// report.
func (e *Engine) enrichCoordinates(ctx context.Context, snap *model.Snapshot, log *zap.Logger) {
	for i := range snap.Investments {
		for j := range snap.Investments[i].Locations {
			loc := &snap.Investments[i].Locations[j]
			if loc.Lat != nil || loc.TextLocation == "" {
				continue
			}
			lat, lon, ok, err := e.geocoder.Geocode(ctx, loc.TextLocation)
			if err != nil {
				log.Warn("geocode lookup failed",
					zap.String("location", loc.TextLocation),
					zap.Error(err),
				)
				continue
			}
			if ok {
				loc.Lat, loc.Lon = &lat, &lon
			}
		}
	}
}
