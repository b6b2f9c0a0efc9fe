// Package pipeline orchestrates a budget run: discover datasets, pull and
// normalize their records, aggregate the spending hierarchy and write the
// JSON artifacts. Tracks are isolated: a failing track falls back to bundled
// reference data or is skipped, it never sinks the run.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SorbetUP/BudgetExplorer/internal/catalog"
	"github.com/SorbetUP/BudgetExplorer/internal/config"
	"github.com/SorbetUP/BudgetExplorer/internal/normalize"
	"github.com/SorbetUP/BudgetExplorer/internal/ods"
	"github.com/SorbetUP/BudgetExplorer/internal/ofgl"
	"github.com/SorbetUP/BudgetExplorer/internal/store"
)

// License is carried into every artifact built from portal data.
const License = "Licence Ouverte 2.0"

// FallbackDatasetID marks artifacts built from bundled reference files.
const FallbackDatasetID = "fallback_csv"

// Track names as recorded in the run log.
const (
	TrackSpending    = "spending"
	TrackRevenues    = "revenues"
	TrackGreen       = "green"
	TrackPerformance = "performance"
)

// Pipeline wires the discovery, retrieval and aggregation stages.
type Pipeline struct {
	cfg     *config.Config
	ods     ods.Client
	ofgl    ofgl.Client
	store   store.Store
	aliases *normalize.AliasTable
	policy  catalog.ScoringPolicy
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithStore enables run-log persistence.
func WithStore(st store.Store) Option {
	return func(p *Pipeline) { p.store = st }
}

// WithOFGL enables the local-finances tracks.
func WithOFGL(client ofgl.Client) Option {
	return func(p *Pipeline) { p.ofgl = client }
}

// WithAliases overrides the embedded alias table.
func WithAliases(t *normalize.AliasTable) Option {
	return func(p *Pipeline) { p.aliases = t }
}

// WithScoring overrides the default discovery scoring policy.
func WithScoring(policy catalog.ScoringPolicy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// New creates a pipeline around a portal client.
func New(cfg *config.Config, client ods.Client, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		ods:     client,
		aliases: normalize.DefaultAliases(),
		policy:  catalog.DefaultScoring(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result summarizes one run.
type Result struct {
	RunID     string              `json:"run_id,omitempty"`
	Year      int                 `json:"year"`
	Trace     *catalog.Trace      `json:"trace"`
	Tracks    []store.TrackResult `json:"tracks"`
	Artifacts []string            `json:"artifacts"`
}

// Run executes the full pipeline for one budget year. Only artifact write
// failures are fatal; everything upstream degrades per track.
func (p *Pipeline) Run(ctx context.Context, year int) (*Result, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.Int("year", year))
	log.Info("starting run")

	result := &Result{Year: year}

	if p.store != nil {
		run, err := p.store.CreateRun(ctx, year)
		if err != nil {
			log.Warn("failed to create run record", zap.Error(err))
		} else {
			result.RunID = run.ID
		}
	}

	trace, err := catalog.Discover(ctx, p.ods, year, p.cfg.API.Domain, p.policy)
	if err != nil {
		// Discovery is all-or-nothing; tracks degrade to bundled files.
		log.Warn("discovery failed, tracks use bundled files", zap.Error(err))
		trace = &catalog.Trace{Year: year, Domain: p.cfg.API.Domain}
	}
	result.Trace = trace

	catalogPath, err := writeJSON(p.cfg.Output.Dir, fmt.Sprintf("catalog_%d.json", year), trace)
	if err != nil {
		p.completeRun(ctx, result.RunID, store.RunStatusFailed)
		return nil, err
	}
	result.Artifacts = append(result.Artifacts, catalogPath)

	cache := ods.NewRecordCache()
	tracks := []func(context.Context) (store.TrackResult, error){
		func(ctx context.Context) (store.TrackResult, error) {
			return p.spendingTrack(ctx, cache, trace, year)
		},
		func(ctx context.Context) (store.TrackResult, error) {
			return p.revenuesTrack(ctx, cache, trace, year)
		},
		func(ctx context.Context) (store.TrackResult, error) {
			return p.greenTrack(ctx, cache, trace, year)
		},
		func(ctx context.Context) (store.TrackResult, error) {
			return p.performanceTrack(ctx, cache, trace, year)
		},
	}
	if p.ofgl != nil && p.cfg.OFGL.Enabled {
		for _, dataset := range []string{ofgl.DatasetCommunes, ofgl.DatasetDepartements, ofgl.DatasetRegions} {
			dataset := dataset
			tracks = append(tracks, func(ctx context.Context) (store.TrackResult, error) {
				return p.ofglTrack(ctx, dataset, year)
			})
		}
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	for _, fn := range tracks {
		fn := fn
		g.Go(func() error {
			tr, err := fn(gCtx)
			if err != nil {
				return err
			}
			mu.Lock()
			result.Tracks = append(result.Tracks, tr)
			if tr.Status != store.TrackStatusSkipped && tr.Artifact != "" {
				result.Artifacts = append(result.Artifacts, tr.Artifact)
			}
			mu.Unlock()

			if p.store != nil && result.RunID != "" {
				if rerr := p.store.RecordTrack(gCtx, result.RunID, tr); rerr != nil {
					log.Warn("failed to record track", zap.String("track", tr.Track), zap.Error(rerr))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.completeRun(ctx, result.RunID, store.RunStatusFailed)
		return nil, err
	}

	sort.Slice(result.Tracks, func(i, j int) bool {
		return result.Tracks[i].Track < result.Tracks[j].Track
	})
	sort.Strings(result.Artifacts)

	p.completeRun(ctx, result.RunID, store.RunStatusCompleted)
	log.Info("run complete",
		zap.Int("tracks", len(result.Tracks)),
		zap.Int("artifacts", len(result.Artifacts)),
	)
	return result, nil
}

func (p *Pipeline) completeRun(ctx context.Context, runID string, status store.RunStatus) {
	if p.store == nil || runID == "" {
		return
	}
	if err := p.store.CompleteRun(ctx, runID, status); err != nil {
		zap.L().Warn("failed to complete run record", zap.String("run_id", runID), zap.Error(err))
	}
}

// fetchRows pulls every record of a dataset, filtered server-side to the year
// when a year column is present.
func (p *Pipeline) fetchRows(ctx context.Context, cache *ods.RecordCache, dataset string, year int) ([]ods.Record, error) {
	if dataset == "" {
		return nil, eris.New("pipeline: no candidate dataset")
	}
	fields, err := ods.ProbeFields(ctx, p.ods, dataset)
	if err != nil {
		return nil, err
	}
	var opts []ods.RecordOption
	if where := ods.BuildYearWhere(year, fields); where != "" {
		opts = append(opts, ods.WithWhere(where))
	}
	return cache.FetchAllRecords(ctx, p.ods, dataset, opts...)
}
