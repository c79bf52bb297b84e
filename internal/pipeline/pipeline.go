// Package pipeline orchestrates the ingest and derivation flows: raw fetch,
// normalization into silver partitions, and gold day/summary builds. The CLI
// and the scheduler both drive runs through it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"fudata/internal/calendar"
	"fudata/internal/config"
	"fudata/internal/expiry"
	"fudata/internal/fetch"
	"fudata/internal/gold"
	"fudata/internal/manifest"
	"fudata/internal/parse"
	"fudata/internal/silver"
	"fudata/pkg/contracts/domain"
)

// Pipeline wires the stages over one storage root.
type Pipeline struct {
	cfg    *config.Config
	paths  *config.Paths
	store  *silver.Store
	logger *slog.Logger
}

// New assembles a pipeline from validated configuration.
func New(cfg *config.Config, paths *config.Paths, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:    cfg,
		paths:  paths,
		store:  silver.NewStore(paths, logger),
		logger: logger,
	}
}

// Store exposes the silver store for read-side collaborators.
func (p *Pipeline) Store() *silver.Store {
	return p.store
}

// IngestUDiFF fetches the bhavcopy for date and normalizes it into the
// fo_bhavcopy_day partition. The raw artifact is cached; re-running a date
// re-parses the cached bytes and overwrites the partition in place.
func (p *Pipeline) IngestUDiFF(ctx context.Context, date time.Time, rec *manifest.Recorder) error {
	date = domain.Date(date)
	src := p.cfg.Sources.UDiFF

	fetcher := fetch.NewFetcher(src, p.paths, p.logger)
	url := fetch.BuildURL(src.URLPattern, date)
	res, err := fetcher.Fetch(ctx, config.SourceFOUDiFF, date, url)
	if err != nil {
		return err
	}
	if rec != nil {
		rec.RecordInput(res)
	}
	return p.IngestUDiFFFile(ctx, res.Path)
}

// IngestUDiFFFile normalizes an already-downloaded bhavcopy archive. Rows
// are grouped by trade date, one silver partition per date.
func (p *Pipeline) IngestUDiFFFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	parser := parse.NewUDiFFParser(p.cfg.Sources.UDiFF.ColumnAliases, p.logger)
	records, err := parser.ParseZip(path)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		p.logger.Warn("bhavcopy contained no stock-futures rows",
			slog.String("path", path))
		return nil
	}

	for date, dayRecords := range groupByDate(records, func(r domain.SilverDayRecord) time.Time { return r.TradeDate }) {
		if err := p.store.WriteDayPartition(date, dayRecords); err != nil {
			return err
		}
	}
	return nil
}

// IngestMWPL fetches and normalizes the combined OI report for date.
func (p *Pipeline) IngestMWPL(ctx context.Context, date time.Time, rec *manifest.Recorder) error {
	date = domain.Date(date)
	src := p.cfg.Sources.MWPL
	if src.URLPattern == "" {
		return fmt.Errorf("mwpl_combined source has no url_pattern configured")
	}

	fetcher := fetch.NewFetcher(src, p.paths, p.logger)
	url := fetch.BuildURL(src.URLPattern, date)
	res, err := fetcher.Fetch(ctx, config.SourceMWPLCombined, date, url)
	if err != nil {
		return err
	}
	if rec != nil {
		rec.RecordInput(res)
	}
	return p.IngestMWPLFile(ctx, res.Path)
}

// IngestMWPLFile normalizes an already-downloaded combined OI report.
func (p *Pipeline) IngestMWPLFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	parser := parse.NewMWPLParser(p.cfg.Sources.MWPL.ColumnAliases, p.logger)
	records, err := parser.ParseFile(path)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		p.logger.Warn("combined OI report contained no rows",
			slog.String("path", path))
		return nil
	}

	for date, dayRecords := range groupByDate(records, func(r domain.PositionLimitRecord) time.Time { return r.TradeDate }) {
		if err := p.store.WriteMWPLPartition(date, dayRecords); err != nil {
			return err
		}
	}
	return nil
}

// BuildResult summarizes one build-gold run.
type BuildResult struct {
	Symbol         string
	DaysBuilt      int
	SummariesBuilt int
}

// BuildGold rebuilds the gold layer for the given symbols and trade dates:
// the per-day aggregate for every (symbol, date), then the summary of every
// expiry whose window contains one of the dates. Symbols run concurrently;
// each symbol's dates run in order so summary rebuilds see the final days.
func (p *Pipeline) BuildGold(ctx context.Context, symbols []string, dates []time.Time) ([]BuildResult, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols requested")
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("no trade dates requested")
	}

	cal, err := calendar.BuildIndex(p.paths, p.logger)
	if err != nil {
		return nil, err
	}
	resolver := expiry.NewResolver(p.store, cal, p.logger)
	dayBuilder := gold.NewDayBuilder(p.store, p.paths, p.logger)
	summaryBuilder := gold.NewSummaryBuilder(resolver, p.paths, p.cfg.Windows.Scope(), p.logger)

	results := make([]BuildResult, len(symbols))
	g, ctx := errgroup.WithContext(ctx)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			res, err := p.buildSymbol(ctx, symbol, dates, resolver, dayBuilder, summaryBuilder)
			if err != nil {
				return fmt.Errorf("build %s: %w", symbol, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) buildSymbol(ctx context.Context, symbol string, dates []time.Time,
	resolver *expiry.Resolver, dayBuilder *gold.DayBuilder, summaryBuilder *gold.SummaryBuilder) (BuildResult, error) {

	res := BuildResult{Symbol: symbol}
	impacted := make(map[time.Time]struct{})
	for _, date := range dates {
		date = domain.Date(date)
		records, err := dayBuilder.Build(ctx, symbol, date)
		if err != nil {
			return res, err
		}
		if len(records) == 0 {
			continue
		}
		res.DaysBuilt++

		expiries, err := resolver.ImpactedExpiries(symbol, date)
		if err != nil {
			return res, err
		}
		for _, e := range expiries {
			impacted[e] = struct{}{}
		}
	}

	expiries := make([]time.Time, 0, len(impacted))
	for e := range impacted {
		expiries = append(expiries, e)
	}
	sort.Slice(expiries, func(i, j int) bool { return expiries[i].Before(expiries[j]) })

	for _, e := range expiries {
		summary, err := summaryBuilder.Build(ctx, symbol, e)
		if err != nil {
			return res, err
		}
		if !summary.Empty() {
			res.SummariesBuilt++
		}
	}

	p.logger.Info("gold build finished",
		slog.String("symbol", symbol),
		slog.Int("days_built", res.DaysBuilt),
		slog.Int("summaries_built", res.SummariesBuilt))
	return res, nil
}

// RunDaily is the scheduler entry point: ingest both sources for date, then
// rebuild gold for the configured symbols.
func (p *Pipeline) RunDaily(ctx context.Context, date time.Time, symbols []string) error {
	rec := manifest.NewRecorder("daily", p.paths, p.logger)
	err := p.runDaily(ctx, date, symbols, rec)
	if closeErr := rec.Close(err); closeErr != nil {
		p.logger.Error("failed to write run manifest",
			slog.String("error", closeErr.Error()))
	}
	return err
}

func (p *Pipeline) runDaily(ctx context.Context, date time.Time, symbols []string, rec *manifest.Recorder) error {
	start := time.Now()
	err := p.IngestUDiFF(ctx, date, rec)
	rec.RecordStep("ingest_udiff", date.Format(domain.DateOnly), time.Since(start), err)
	if err != nil {
		return err
	}

	if p.cfg.Sources.MWPL.URLPattern != "" {
		start = time.Now()
		err = p.IngestMWPL(ctx, date, rec)
		rec.RecordStep("ingest_mwpl", date.Format(domain.DateOnly), time.Since(start), err)
		if err != nil {
			// A missing position-limit report must not block the day
			// build; thresholds simply stay absent.
			p.logger.Warn("mwpl ingest failed, continuing without position limits",
				slog.String("date", date.Format(domain.DateOnly)),
				slog.String("error", err.Error()))
		}
	}

	start = time.Now()
	_, err = p.BuildGold(ctx, symbols, []time.Time{date})
	rec.RecordStep("build_gold", date.Format(domain.DateOnly), time.Since(start), err)
	return err
}

func groupByDate[T any](records []T, key func(T) time.Time) map[time.Time][]T {
	grouped := make(map[time.Time][]T)
	for _, r := range records {
		d := domain.Date(key(r))
		grouped[d] = append(grouped[d], r)
	}
	return grouped
}
