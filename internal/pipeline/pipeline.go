// Package pipeline runs the full analysis: acquire, clean, derive, encode,
// split, fit, and evaluate.
package pipeline

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/kpritch24/nypd-shooting-incident/internal/calendar"
	"github.com/kpritch24/nypd-shooting-incident/internal/config"
	"github.com/kpritch24/nypd-shooting-incident/internal/evaluate"
	"github.com/kpritch24/nypd-shooting-incident/internal/features"
	"github.com/kpritch24/nypd-shooting-incident/internal/frame"
	"github.com/kpritch24/nypd-shooting-incident/internal/impute"
	"github.com/kpritch24/nypd-shooting-incident/internal/ingest"
	"github.com/kpritch24/nypd-shooting-incident/internal/model"
	"github.com/kpritch24/nypd-shooting-incident/internal/report"
	"github.com/kpritch24/nypd-shooting-incident/internal/split"
)

// Pipeline wires the stages together under one configuration.
type Pipeline struct {
	cfg    *config.Config
	logger *zap.Logger
	mem    memory.Allocator
}

// New builds a pipeline. A nil logger falls back to a no-op logger and a
// nil allocator to the Go allocator.
func New(cfg *config.Config, logger *zap.Logger, mem memory.Allocator) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Pipeline{cfg: cfg, logger: logger, mem: mem}
}

// Run executes every stage and returns the run summary. The input frame is
// acquired from the configured file or URL.
func (p *Pipeline) Run(ctx context.Context) (*report.Summary, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	client := ingest.New(p.cfg, p.logger, p.mem)
	raw, err := client.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return p.RunFrame(raw)
}

// RunFrame executes every stage after acquisition on an already-loaded
// frame.
func (p *Pipeline) RunFrame(raw *frame.Frame) (*report.Summary, error) {
	cfg := p.cfg
	summary := &report.Summary{
		Source:     source(cfg),
		RawRows:    raw.Len(),
		Seed:       cfg.Seed,
		Resampling: cfg.Resampling,
	}

	deduped := raw.DropDuplicates(p.mem)
	summary.Duplicates = raw.Len() - deduped.Len()
	p.logger.Info("deduplicated",
		zap.Int("rows", deduped.Len()),
		zap.Int("duplicates", summary.Duplicates))

	imputed, err := impute.Impute(deduped, cfg, p.logger, p.mem)
	if err != nil {
		return nil, err
	}
	summary.Missingness = imputed.Missingness
	summary.Means = imputed.Means
	summary.DroppedCategories = imputed.DroppedCategories
	summary.DroppedRows = imputed.DroppedRows

	cleaned, err := calendar.AppendColumns(imputed.Frame, cfg.Calendar, p.mem)
	if err != nil {
		return nil, err
	}
	summary.Rows = cleaned.Len()
	summary.Columns = cleaned.Width()

	table, err := features.Build(cleaned, cfg)
	if err != nil {
		return nil, err
	}
	summary.Frequencies = frequencies(table)

	train, test, err := split.Stratified(table, 1-cfg.TestFraction, cfg.Seed)
	if err != nil {
		return nil, err
	}
	p.logger.Info("split",
		zap.Int("train", train.Len()),
		zap.Int("test", test.Len()),
		zap.Int64("seed", cfg.Seed))

	train, test, removed := split.RemoveNearZeroVariance(train, test, cfg.NearZeroFreqCutoff, cfg.NearZeroMinDistinct)
	summary.RemovedFeatures = removed
	if len(removed) > 0 {
		p.logger.Info("removed near-zero-variance features", zap.Strings("columns", removed))
	}

	train, test = features.Align(train, test)

	neg, pos := train.ClassCounts()
	summary.BalanceBefore = report.Balance{Negative: neg, Positive: pos}
	if cfg.Resampling == config.ResampleUndersample {
		train = split.Undersample(train, cfg.Seed)
	}
	neg, pos = train.ClassCounts()
	summary.BalanceAfter = report.Balance{Negative: neg, Positive: pos}
	summary.TrainRows = train.Len()
	summary.TestRows = test.Len()

	m := model.New()
	if err := m.Fit(train); err != nil {
		return nil, err
	}
	summary.Coefficients = m.Coefficients()
	p.logger.Info("fitted", zap.Int("iterations", m.Iterations()), zap.Int("terms", len(summary.Coefficients)))

	probs, err := m.PredictProba(test)
	if err != nil {
		return nil, err
	}
	actual := make([]bool, test.Len())
	for i := range actual {
		actual[i] = test.Target().Code(i) == test.PositiveCode()
	}

	evaluation, err := evaluate.Evaluate(probs, actual, cfg.DecisionThreshold)
	if err != nil {
		return nil, err
	}
	summary.Evaluation = evaluation
	p.logger.Info("evaluated",
		zap.Int("scored", evaluation.Scored),
		zap.Int("unscored", evaluation.Unscored))

	return summary, nil
}

// frequencies tabulates each categorical feature on the full cleaned data.
func frequencies(t *features.Table) []report.FrequencyTable {
	var tables []report.FrequencyTable
	for _, c := range t.Categoricals() {
		counts := c.Counts()
		ft := report.FrequencyTable{Column: c.Name()}
		for i, level := range c.Levels() {
			if counts[i] > 0 {
				ft.Levels = append(ft.Levels, report.Frequency{Level: level, Count: counts[i]})
			}
		}
		tables = append(tables, ft)
	}
	return tables
}

func source(cfg *config.Config) string {
	if cfg.SourceFile != "" {
		return cfg.SourceFile
	}
	return cfg.SourceURL
}
