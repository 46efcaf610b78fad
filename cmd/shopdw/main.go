// Command shopdw rebuilds the e-commerce warehouse from storefront exports.
//
// Usage:
//
//	shopdw                       run the full pipeline with default config
//	shopdw -config etl.json      run with an explicit config
//	shopdw -step load            schema init + raw ingestion only
//	shopdw -step build           staging through marts only
//	shopdw -sample               use the bundled sample exports
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"shopdw/internal/config"
	"shopdw/internal/logging"
	"shopdw/internal/metrics"
	"shopdw/internal/metrics/datadog"
	"shopdw/internal/pipeline"
	"shopdw/internal/storage"

	// register all backends with the storage factory.
	_ "shopdw/internal/storage/all"
)

const usage = "usage: shopdw [-config file.json] [-step load|build|all] [-sample] [-metrics-backend none|datadog] [-v]"

// appDeps are the side-effecting collaborators of runMain, injectable so CLI
// orchestration is unit-testable without real I/O.
type appDeps struct {
	loadConfig  func(path string) (config.Config, error)
	newLogger   func() (*zap.Logger, error)
	openStore   func(ctx context.Context, cfg storage.Config) (storage.Store, error)
	initMetrics func(ctx context.Context, jobName, backendName string) (func(), error)
	run         func(ctx context.Context, p *pipeline.Pipeline, step string, useSample bool) error
	summarize   func(ctx context.Context, p *pipeline.Pipeline, w io.Writer) error
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:  config.Load,
		newLogger:   logging.New,
		openStore:   storage.Open,
		initMetrics: initMetrics,
		run: func(ctx context.Context, p *pipeline.Pipeline, step string, useSample bool) error {
			return p.Run(ctx, step, useSample)
		},
		summarize: func(ctx context.Context, p *pipeline.Pipeline, w io.Writer) error {
			s, err := p.Summarize(ctx)
			if err != nil {
				return err
			}
			s.Write(w)
			return nil
		},
	}
}

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr, defaultDeps()))
}

// runMain is the testable CLI body. Exit codes: 0 success, 1 runtime
// failure, 2 usage error.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("shopdw", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfgPath := fs.String("config", "", "pipeline config JSON path (defaults apply when empty)")
	step := fs.String("step", pipeline.StepAll, "pipeline step: load, build or all")
	sample := fs.Bool("sample", false, "load the sample exports instead of real data")
	metricsBackendFlg := fs.String("metrics-backend", "", "metrics backend (none, datadog); env METRICS_BACKEND when empty")
	verbose := fs.Bool("v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(stderr, usage)
		return 2
	}
	switch *step {
	case pipeline.StepLoad, pipeline.StepBuild, pipeline.StepAll:
	default:
		fmt.Fprintf(stderr, "invalid -step %q\n%s\n", *step, usage)
		return 2
	}

	if *verbose && os.Getenv("LOG_LEVEL") == "" {
		os.Setenv("LOG_LEVEL", "debug")
	}

	cfg, err := deps.loadConfig(strings.TrimSpace(*cfgPath))
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		fmt.Fprintln(stderr, "configuration is invalid")
		return 1
	}

	backendName := *metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	cleanup, err := deps.initMetrics(ctx, cfg.Job, backendName)
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	logger, err := deps.newLogger()
	if err != nil {
		fmt.Fprintf(stderr, "init logging: %v\n", err)
		return 1
	}
	defer logger.Sync()

	st, err := deps.openStore(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN})
	if err != nil {
		fmt.Fprintf(stderr, "open storage: %v\n", err)
		return 1
	}
	defer st.Close()

	p := &pipeline.Pipeline{Store: st, Log: logger, Cfg: cfg}
	if err := deps.run(ctx, p, *step, *sample); err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}

	if err := deps.summarize(ctx, p, stdout); err != nil {
		logger.Warn("could not print summary", zap.Error(err))
	}
	return 0
}

// metricsBackend is the slice of the Datadog backend the CLI owns: clean
// shutdown. Kept narrow so tests can fake it.
type metricsBackend interface {
	Close() error
}

// Seams for initMetrics tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	setMetricsBackend = func(b any) {
		if mb, ok := b.(metrics.Backend); ok {
			metrics.SetBackend(mb)
		}
	}
	logPrintf = log.Printf
)

// initMetrics wires the requested metrics backend and returns its cleanup.
// The cleanup is always non-nil and safe to call, even on error.
func initMetrics(ctx context.Context, jobName, backendName string) (func(), error) {
	switch backendName {
	case "", "none", "noop":
		return func() {}, nil

	case "datadog", "dd":
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName: jobName,
			Tags:    datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
		})
		if err != nil {
			return func() {}, err
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
		}, nil

	default:
		return func() {}, fmt.Errorf("unknown metrics backend %q (want none|datadog)", backendName)
	}
}
