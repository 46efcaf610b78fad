package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"shopdw/internal/config"
	"shopdw/internal/metrics/datadog"
	"shopdw/internal/pipeline"
	"shopdw/internal/storage"
)

// fakeStore satisfies storage.Store without touching a database. Only Close
// is observed; the pipeline itself is faked out through deps.run.
type fakeStore struct {
	closed atomic.Int64
}

func (s *fakeStore) Close() { s.closed.Add(1) }

func (s *fakeStore) EnsureTables(context.Context, []storage.TableSpec) error { return nil }

func (s *fakeStore) SeedRows(context.Context, string, []string, [][]any, []string) error {
	return nil
}

func (s *fakeStore) ReplaceRawTable(context.Context, string, []string, [][]string) error {
	return nil
}

func (s *fakeStore) ColumnNames(context.Context, string) ([]string, error) { return nil, nil }

func (s *fakeStore) Truncate(context.Context, string) error { return nil }

func (s *fakeStore) InsertRows(context.Context, string, []string, [][]any) error { return nil }

func (s *fakeStore) UpdateRows(context.Context, string, string, []string, [][]any) error {
	return nil
}

func (s *fakeStore) SelectRows(context.Context, string, []string) ([][]any, error) { return nil, nil }

func (s *fakeStore) SelectKeyValue(context.Context, string, string, string) (map[string]int64, error) {
	return nil, nil
}

func (s *fakeStore) CountRows(context.Context, string) (int64, error) { return 0, nil }

func (s *fakeStore) SumColumn(context.Context, string, string) (float64, error) { return 0, nil }

func (s *fakeStore) ReplaceView(context.Context, string, string) error { return nil }

// fakeMetricsBackend is a deterministic metrics backend used by initMetrics tests.
type fakeMetricsBackend struct {
	closeErr error
	closed   atomic.Int64
}

func (b *fakeMetricsBackend) Close() error {
	b.closed.Add(1)
	return b.closeErr
}

// fatalDeps returns deps whose every seam fails the test when called. Usage
// errors must short-circuit before any side effects.
func fatalDeps(t *testing.T) appDeps {
	t.Helper()
	return appDeps{
		loadConfig: func(string) (config.Config, error) {
			t.Fatalf("loadConfig must not be called on usage errors")
			return config.Config{}, nil
		},
		newLogger: func() (*zap.Logger, error) {
			t.Fatalf("newLogger must not be called on usage errors")
			return nil, nil
		},
		openStore: func(context.Context, storage.Config) (storage.Store, error) {
			t.Fatalf("openStore must not be called on usage errors")
			return nil, nil
		},
		initMetrics: func(context.Context, string, string) (func(), error) {
			t.Fatalf("initMetrics must not be called on usage errors")
			return func() {}, nil
		},
		run: func(context.Context, *pipeline.Pipeline, string, bool) error {
			t.Fatalf("run must not be called on usage errors")
			return nil
		},
		summarize: func(context.Context, *pipeline.Pipeline, io.Writer) error {
			t.Fatalf("summarize must not be called on usage errors")
			return nil
		},
	}
}

func TestRunMain_UsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		args          []string
		wantStderrSub string
	}{
		{
			name:          "unknown_flag",
			args:          []string{"-nope"},
			wantStderrSub: "flag provided but not defined",
		},
		{
			name:          "invalid_step",
			args:          []string{"-step", "deploy"},
			wantStderrSub: `invalid -step "deploy"`,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer
			code := runMain(context.Background(), tc.args, &stdout, &stderr, fatalDeps(t))

			if code != 2 {
				t.Fatalf("exit code=%d, want 2; stderr=%q", code, stderr.String())
			}
			if !strings.Contains(stderr.String(), tc.wantStderrSub) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantStderrSub)
			}
			if !strings.Contains(stderr.String(), "usage: shopdw") {
				t.Fatalf("stderr=%q, want usage line", stderr.String())
			}
			if stdout.Len() != 0 {
				t.Fatalf("stdout=%q, want empty", stdout.String())
			}
		})
	}
}

func TestRunMain_FullFlow(t *testing.T) {
	t.Parallel()

	// Validates error precedence (config -> metrics -> logging -> storage ->
	// run), that the pipeline only runs after all setup succeeded, and that
	// metrics cleanup and store close each happen exactly once.
	tests := []struct {
		name             string
		loadErr          error
		badConfig        bool
		initMetricsErr   error
		loggerErr        error
		openErr          error
		runErr           error
		summarizeErr     error
		wantCode         int
		wantStderrSub    string
		wantRunCalls     int64
		wantCleanupCalls int64
		wantCloseCalls   int64
	}{
		{
			name:          "load_config_error",
			loadErr:       errors.New("no such file"),
			wantCode:      1,
			wantStderrSub: "load config:",
		},
		{
			name:          "invalid_config",
			badConfig:     true,
			wantCode:      1,
			wantStderrSub: "configuration is invalid",
		},
		{
			name:           "init_metrics_error",
			initMetricsErr: errors.New("metrics unavailable"),
			wantCode:       1,
			wantStderrSub:  "init metrics:",
		},
		{
			name:             "logger_error",
			loggerErr:        errors.New("bad level"),
			wantCode:         1,
			wantStderrSub:    "init logging:",
			wantCleanupCalls: 1,
		},
		{
			name:             "open_store_error",
			openErr:          errors.New("dial failed"),
			wantCode:         1,
			wantStderrSub:    "open storage:",
			wantCleanupCalls: 1,
		},
		{
			name:             "run_error",
			runErr:           errors.New("stage failed"),
			wantCode:         1,
			wantStderrSub:    "run:",
			wantRunCalls:     1,
			wantCleanupCalls: 1,
			wantCloseCalls:   1,
		},
		{
			name:             "summary_error_is_not_fatal",
			summarizeErr:     errors.New("count failed"),
			wantCode:         0,
			wantRunCalls:     1,
			wantCleanupCalls: 1,
			wantCloseCalls:   1,
		},
		{
			name:             "success",
			wantCode:         0,
			wantRunCalls:     1,
			wantCleanupCalls: 1,
			wantCloseCalls:   1,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer
			var runCalls, cleanupCalls atomic.Int64
			st := &fakeStore{}

			deps := appDeps{
				loadConfig: func(path string) (config.Config, error) {
					if path != "etl.json" {
						t.Fatalf("loadConfig path=%q, want %q", path, "etl.json")
					}
					if tc.loadErr != nil {
						return config.Config{}, tc.loadErr
					}
					cfg := config.Default()
					if tc.badConfig {
						cfg.Storage.DSN = ""
					}
					return cfg, nil
				},
				newLogger: func() (*zap.Logger, error) {
					if tc.loggerErr != nil {
						return nil, tc.loggerErr
					}
					return zap.NewNop(), nil
				},
				openStore: func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
					if cfg.Kind != "sqlite" {
						t.Fatalf("openStore kind=%q, want sqlite", cfg.Kind)
					}
					if tc.openErr != nil {
						return nil, tc.openErr
					}
					return st, nil
				},
				initMetrics: func(ctx context.Context, jobName, backendName string) (func(), error) {
					if jobName != "shopdw" {
						t.Fatalf("jobName=%q, want shopdw", jobName)
					}
					if backendName != "none" {
						t.Fatalf("backendName=%q, want none", backendName)
					}
					if tc.initMetricsErr != nil {
						return func() {}, tc.initMetricsErr
					}
					return func() { cleanupCalls.Add(1) }, nil
				},
				run: func(ctx context.Context, p *pipeline.Pipeline, step string, useSample bool) error {
					runCalls.Add(1)
					if step != pipeline.StepBuild {
						t.Fatalf("step=%q, want %q", step, pipeline.StepBuild)
					}
					if !useSample {
						t.Fatalf("useSample=false, want true")
					}
					return tc.runErr
				},
				summarize: func(ctx context.Context, p *pipeline.Pipeline, w io.Writer) error {
					if tc.summarizeErr != nil {
						return tc.summarizeErr
					}
					fmt.Fprintln(w, "summary")
					return nil
				},
			}

			code := runMain(
				context.Background(),
				[]string{"-config", "etl.json", "-step", "build", "-sample", "-metrics-backend", "none"},
				&stdout,
				&stderr,
				deps,
			)

			if code != tc.wantCode {
				t.Fatalf("exit code=%d, want %d; stderr=%q", code, tc.wantCode, stderr.String())
			}
			if tc.wantStderrSub != "" && !strings.Contains(stderr.String(), tc.wantStderrSub) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantStderrSub)
			}
			if got := runCalls.Load(); got != tc.wantRunCalls {
				t.Fatalf("run calls=%d, want %d", got, tc.wantRunCalls)
			}
			if got := cleanupCalls.Load(); got != tc.wantCleanupCalls {
				t.Fatalf("cleanup calls=%d, want %d", got, tc.wantCleanupCalls)
			}
			if got := st.closed.Load(); got != tc.wantCloseCalls {
				t.Fatalf("store close calls=%d, want %d", got, tc.wantCloseCalls)
			}
			if tc.wantCode == 0 && tc.summarizeErr == nil && !strings.Contains(stdout.String(), "summary") {
				t.Fatalf("stdout=%q, want summary output", stdout.String())
			}
		})
	}
}

func TestInitMetrics_None_DoesNotMutateGlobalState(t *testing.T) {
	// Not parallel: swaps package-level seams.
	oldSet := setMetricsBackend
	defer func() { setMetricsBackend = oldSet }()

	setMetricsBackend = func(any) {
		t.Fatalf("setMetricsBackend must not be called for none/noop")
	}

	for _, name := range []string{"", "none", "noop"} {
		cleanup, err := initMetrics(context.Background(), "job", name)
		if err != nil {
			t.Fatalf("initMetrics(%q) err=%v, want nil", name, err)
		}
		if cleanup == nil {
			t.Fatalf("cleanup=nil, want non-nil")
		}
		cleanup()
	}
}

func TestInitMetrics_Datadog_WiresBackendAndCloses(t *testing.T) {
	b := &fakeMetricsBackend{}

	var (
		newCalls atomic.Int64
		setCalls atomic.Int64
		gotOpts  datadog.Options
	)

	oldNew := newDatadogBackend
	oldSet := setMetricsBackend
	oldLog := logPrintf
	defer func() {
		newDatadogBackend = oldNew
		setMetricsBackend = oldSet
		logPrintf = oldLog
	}()

	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		newCalls.Add(1)
		gotOpts = opts
		return b, nil
	}
	setMetricsBackend = func(any) { setCalls.Add(1) }

	var logged bytes.Buffer
	logPrintf = func(format string, v ...any) {
		fmt.Fprintf(&logged, format, v...)
	}

	cleanup, err := initMetrics(context.Background(), "jobA", "datadog")
	if err != nil {
		t.Fatalf("initMetrics err=%v, want nil", err)
	}
	if gotOpts.JobName != "jobA" {
		t.Fatalf("datadog options JobName=%q, want %q", gotOpts.JobName, "jobA")
	}
	if newCalls.Load() != 1 {
		t.Fatalf("newDatadogBackend calls=%d, want 1", newCalls.Load())
	}
	if setCalls.Load() != 1 {
		t.Fatalf("setMetricsBackend calls=%d, want 1", setCalls.Load())
	}

	cleanup()
	if b.closed.Load() != 1 {
		t.Fatalf("backend closed=%d, want 1", b.closed.Load())
	}
	// Close succeeded, so nothing may be logged.
	if logged.Len() != 0 {
		t.Fatalf("unexpected log output: %q", logged.String())
	}
}

func TestInitMetrics_Datadog_CloseErrorIsLogged(t *testing.T) {
	b := &fakeMetricsBackend{closeErr: errors.New("flush failed")}

	oldNew := newDatadogBackend
	oldSet := setMetricsBackend
	oldLog := logPrintf
	defer func() {
		newDatadogBackend = oldNew
		setMetricsBackend = oldSet
		logPrintf = oldLog
	}()

	newDatadogBackend = func(context.Context, datadog.Options) (metricsBackend, error) { return b, nil }
	setMetricsBackend = func(any) {}

	var logged bytes.Buffer
	logPrintf = func(format string, v ...any) {
		fmt.Fprintf(&logged, format, v...)
	}

	cleanup, err := initMetrics(context.Background(), "job", "dd")
	if err != nil {
		t.Fatalf("initMetrics err=%v, want nil", err)
	}
	cleanup()

	if b.closed.Load() != 1 {
		t.Fatalf("backend closed=%d, want 1", b.closed.Load())
	}
	if !strings.Contains(logged.String(), "metrics: datadog close error") {
		t.Fatalf("log=%q, want close error prefix", logged.String())
	}
	if !strings.Contains(logged.String(), "flush failed") {
		t.Fatalf("log=%q, want underlying error", logged.String())
	}
}

func TestInitMetrics_UnknownBackendErrors(t *testing.T) {
	t.Parallel()

	cleanup, err := initMetrics(context.Background(), "job", "statsd")
	if err == nil {
		t.Fatalf("initMetrics err=nil, want error")
	}
	if cleanup == nil {
		t.Fatalf("cleanup=nil, want non-nil")
	}
	cleanup()

	if !strings.Contains(err.Error(), "unknown metrics backend") {
		t.Fatalf("err=%q, want contains %q", err.Error(), "unknown metrics backend")
	}
	if !strings.Contains(err.Error(), "none|datadog") {
		t.Fatalf("err=%q, want contains %q", err.Error(), "none|datadog")
	}
}
