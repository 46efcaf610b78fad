// Package pipeline orchestrates the warehouse rebuild: schema init, raw
// ingestion, staging, dimensions, facts, and the reporting marts, in that
// fixed order.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"shopdw/internal/config"
	"shopdw/internal/dimension"
	"shopdw/internal/fact"
	"shopdw/internal/ingest"
	"shopdw/internal/metrics"
	"shopdw/internal/schema"
	"shopdw/internal/staging"
	"shopdw/internal/storage"
)

// Step selects which part of the pipeline runs.
const (
	StepLoad  = "load"
	StepBuild = "build"
	StepAll   = "all"
)

// Pipeline wires the stage builders onto one store.
type Pipeline struct {
	Store storage.Store
	Log   *zap.Logger
	Cfg   config.Config
}

// Run executes the selected steps. "load" initializes the schema and lands
// the raw exports; "build" rebuilds staging through marts; "all" does both.
func (p *Pipeline) Run(ctx context.Context, step string, useSample bool) error {
	switch step {
	case StepLoad, StepBuild, StepAll:
	default:
		return fmt.Errorf("unknown step %q (want %s, %s or %s)", step, StepLoad, StepBuild, StepAll)
	}

	if step == StepAll || step == StepLoad {
		if err := p.runStage(ctx, "schema", p.initSchema); err != nil {
			return err
		}
		loader := &ingest.Loader{Store: p.Store, Log: p.Log, Cfg: p.Cfg}
		if err := p.runStage(ctx, "ingest", func(ctx context.Context) error {
			return loader.LoadRaw(ctx, useSample)
		}); err != nil {
			return err
		}
	}

	if step == StepAll || step == StepBuild {
		normalizer := &staging.Normalizer{Store: p.Store, Log: p.Log}
		if err := p.runStage(ctx, "staging", normalizer.Run); err != nil {
			return err
		}

		dims := &dimension.Builder{
			Store:         p.Store,
			Log:           p.Log,
			DefaultVendor: p.Cfg.Defaults.Vendor,
			DefaultPrice:  p.Cfg.Defaults.VariantPrice,
		}
		if err := p.runStage(ctx, "dimensions", dims.Run); err != nil {
			return err
		}

		facts := &fact.Builder{Store: p.Store, Log: p.Log}
		if err := p.runStage(ctx, "facts", facts.Run); err != nil {
			return err
		}

		if err := p.runStage(ctx, "marts", p.buildMarts); err != nil {
			return err
		}

		p.emitRowCounts(ctx)
	}

	return nil
}

// runStage wraps one stage with logging and metrics.
func (p *Pipeline) runStage(ctx context.Context, name string, fn func(context.Context) error) error {
	p.Log.Info("stage started", zap.String("stage", name))
	start := time.Now()

	err := fn(ctx)

	status := "ok"
	if err != nil {
		status = "error"
	}
	labels := metrics.Labels{"stage": name, "status": status}
	metrics.IncCounter("warehouse_stage_total", 1, labels)
	metrics.ObserveHistogram("warehouse_stage_duration_seconds", time.Since(start).Seconds(), labels)

	if err != nil {
		p.Log.Error("stage failed",
			zap.String("stage", name),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return fmt.Errorf("stage %s: %w", name, err)
	}
	p.Log.Info("stage complete",
		zap.String("stage", name),
		zap.Duration("took", time.Since(start)))
	return nil
}

// initSchema creates warehouse tables and seeds the static channel rows.
// "already exists" noise from concurrent or repeated runs is suppressed.
func (p *Pipeline) initSchema(ctx context.Context) error {
	if err := p.Store.EnsureTables(ctx, schema.Tables()); err != nil {
		if isAlreadyExists(err) {
			p.Log.Debug("schema objects already exist", zap.Error(err))
		} else {
			return err
		}
	}
	columns, rows := schema.ChannelSeed()
	return p.Store.SeedRows(ctx, schema.DimChannel, columns, rows, []string{"channel_code"})
}

func isAlreadyExists(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// emitRowCounts publishes warehouse table sizes after a build. Failures only
// cost a metric, never the run.
func (p *Pipeline) emitRowCounts(ctx context.Context) {
	tables := []string{
		schema.DimProduct, schema.DimCustomer, schema.DimShippingMethod,
		schema.DimChannel, schema.DimMaterial,
		schema.FactOrder, schema.FactOrderLine, schema.FactCOGSEstimate,
		schema.FactMarketingSpend, schema.FactSearchDaily,
	}
	for _, t := range tables {
		n, err := p.Store.CountRows(ctx, t)
		if err != nil {
			p.Log.Warn("could not count rows", zap.String("table", t), zap.Error(err))
			continue
		}
		metrics.IncCounter("warehouse_rows_total", float64(n), metrics.Labels{"table": t})
	}
}
