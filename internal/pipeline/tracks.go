package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/SorbetUP/BudgetExplorer/internal/catalog"
	"github.com/SorbetUP/BudgetExplorer/internal/fallback"
	"github.com/SorbetUP/BudgetExplorer/internal/lolf"
	"github.com/SorbetUP/BudgetExplorer/internal/normalize"
	"github.com/SorbetUP/BudgetExplorer/internal/ods"
	"github.com/SorbetUP/BudgetExplorer/internal/store"
)

// spendingTrack builds the aggregated LOLF hierarchy. Live retrieval first,
// then the bundled state_spending file, then skip.
func (p *Pipeline) spendingTrack(ctx context.Context, cache *ods.RecordCache, trace *catalog.Trace, year int) (store.TrackResult, error) {
	log := zap.L().With(zap.String("track", TrackSpending), zap.Int("year", year))
	res := store.TrackResult{Track: TrackSpending, DatasetID: trace.Chosen.Spending}

	var rows []normalize.Row
	records, err := p.fetchRows(ctx, cache, trace.Chosen.Spending, year)
	if err != nil {
		log.Warn("live retrieval failed", zap.Error(err))
		res.Error = err.Error()
	}
	for _, rec := range records {
		if row := p.aliases.Resolve(rec.Fields); row.Placeable() {
			rows = append(rows, row)
		}
	}
	res.Status = store.TrackStatusLive

	if len(rows) == 0 {
		raw, fbErr := fallback.Rows(p.cfg.Fallback.Dir, "state_spending", year)
		if fbErr != nil {
			log.Warn("no usable rows and no bundled file, skipping", zap.Error(fbErr))
			res.Status = store.TrackStatusSkipped
			return res, nil
		}
		for _, rec := range raw {
			if row := p.aliases.Resolve(rec); row.Placeable() {
				rows = append(rows, row)
			}
		}
		if len(rows) == 0 {
			res.Status = store.TrackStatusSkipped
			return res, nil
		}
		res.Status = store.TrackStatusFallback
		res.DatasetID = FallbackDatasetID
	}

	tree := lolf.BuildTree(rows, year)
	tree.Sources = &lolf.Sources{DatasetID: res.DatasetID, License: License}

	path, err := writeJSON(p.cfg.Output.Dir, fmt.Sprintf("state_budget_tree_%d.json", year), tree)
	if err != nil {
		return res, err
	}
	res.Rows = len(rows)
	res.Artifact = path
	log.Info("track complete", zap.String("status", string(res.Status)), zap.Int("rows", res.Rows))
	return res, nil
}

// revenuesTrack writes the flat revenue lines.
func (p *Pipeline) revenuesTrack(ctx context.Context, cache *ods.RecordCache, trace *catalog.Trace, year int) (store.TrackResult, error) {
	log := zap.L().With(zap.String("track", TrackRevenues), zap.Int("year", year))
	res := store.TrackResult{Track: TrackRevenues, DatasetID: trace.Chosen.Revenues}

	revenues := normalize.Revenues(p.rawRows(ctx, cache, trace.Chosen.Revenues, year, &res))
	res.Status = store.TrackStatusLive

	if len(revenues) == 0 {
		raw, fbErr := fallback.Rows(p.cfg.Fallback.Dir, "state_revenues", year)
		if fbErr != nil {
			log.Warn("no usable rows and no bundled file, skipping", zap.Error(fbErr))
			res.Status = store.TrackStatusSkipped
			return res, nil
		}
		revenues = normalize.Revenues(raw)
		if len(revenues) == 0 {
			res.Status = store.TrackStatusSkipped
			return res, nil
		}
		res.Status = store.TrackStatusFallback
		res.DatasetID = FallbackDatasetID
	}

	path, err := writeJSON(p.cfg.Output.Dir, fmt.Sprintf("state_revenues_%d.json", year), revenues)
	if err != nil {
		return res, err
	}
	res.Rows = len(revenues)
	res.Artifact = path
	log.Info("track complete", zap.String("status", string(res.Status)), zap.Int("rows", res.Rows))
	return res, nil
}

// greenTrack writes the environmental tagging ("budget vert") lines.
func (p *Pipeline) greenTrack(ctx context.Context, cache *ods.RecordCache, trace *catalog.Trace, year int) (store.TrackResult, error) {
	log := zap.L().With(zap.String("track", TrackGreen), zap.Int("year", year))
	res := store.TrackResult{Track: TrackGreen, DatasetID: trace.Chosen.Green}

	green := normalize.Green(p.rawRows(ctx, cache, trace.Chosen.Green, year, &res))
	res.Status = store.TrackStatusLive

	if len(green) == 0 {
		raw, fbErr := fallback.Rows(p.cfg.Fallback.Dir, "budget_vert", year)
		if fbErr != nil {
			log.Warn("no usable rows and no bundled file, skipping", zap.Error(fbErr))
			res.Status = store.TrackStatusSkipped
			return res, nil
		}
		green = normalize.Green(raw)
		if len(green) == 0 {
			res.Status = store.TrackStatusSkipped
			return res, nil
		}
		res.Status = store.TrackStatusFallback
		res.DatasetID = FallbackDatasetID
	}

	path, err := writeJSON(p.cfg.Output.Dir, fmt.Sprintf("budget_vert_%d.json", year), green)
	if err != nil {
		return res, err
	}
	res.Rows = len(green)
	res.Artifact = path
	log.Info("track complete", zap.String("status", string(res.Status)), zap.Int("rows", res.Rows))
	return res, nil
}

// performanceTrack writes the spending performance indicators. The indicator
// datasets have no stable schema, so rows are passed through with lower-cased
// keys. There is no bundled fallback: missing indicators are not critical.
func (p *Pipeline) performanceTrack(ctx context.Context, cache *ods.RecordCache, trace *catalog.Trace, year int) (store.TrackResult, error) {
	log := zap.L().With(zap.String("track", TrackPerformance), zap.Int("year", year))
	res := store.TrackResult{Track: TrackPerformance, DatasetID: trace.Chosen.Performance}

	rows := p.rawRows(ctx, cache, trace.Chosen.Performance, year, &res)
	if len(rows) == 0 {
		res.Status = store.TrackStatusSkipped
		return res, nil
	}
	res.Status = store.TrackStatusLive

	path, err := writeJSON(p.cfg.Output.Dir, fmt.Sprintf("state_performance_%d.json", year), rows)
	if err != nil {
		return res, err
	}
	res.Rows = len(rows)
	res.Artifact = path
	log.Info("track complete", zap.Int("rows", res.Rows))
	return res, nil
}

// ofglTrack pulls one local-finances dataset. No fallback: the portal is an
// optional enrichment.
func (p *Pipeline) ofglTrack(ctx context.Context, dataset string, year int) (store.TrackResult, error) {
	name := strings.TrimPrefix(dataset, "ofgl-base-")
	track := "ofgl_" + name
	log := zap.L().With(zap.String("track", track), zap.Int("year", year))
	res := store.TrackResult{Track: track, DatasetID: dataset}

	rows, err := p.ofgl.Search(ctx, dataset, year, p.cfg.OFGL.MaxRows)
	if err != nil {
		log.Warn("retrieval failed, skipping", zap.Error(err))
		res.Status = store.TrackStatusSkipped
		res.Error = err.Error()
		return res, nil
	}
	if len(rows) == 0 {
		res.Status = store.TrackStatusSkipped
		return res, nil
	}
	res.Status = store.TrackStatusLive

	path, err := writeJSON(p.cfg.Output.Dir, fmt.Sprintf("ofgl_%s_%d.json", name, year), rows)
	if err != nil {
		return res, err
	}
	res.Rows = len(rows)
	res.Artifact = path
	log.Info("track complete", zap.Int("rows", res.Rows))
	return res, nil
}

// rawRows fetches a dataset and returns its records as lower-cased maps,
// recording any retrieval error on the track result. Failures yield nil so
// callers move on to their fallback.
func (p *Pipeline) rawRows(ctx context.Context, cache *ods.RecordCache, dataset string, year int, res *store.TrackResult) []map[string]any {
	records, err := p.fetchRows(ctx, cache, dataset, year)
	if err != nil {
		zap.L().Warn("live retrieval failed",
			zap.String("track", res.Track), zap.String("dataset", dataset), zap.Error(err))
		res.Error = err.Error()
		return nil
	}
	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, normalize.LowerKeys(rec.Fields))
	}
	return rows
}
