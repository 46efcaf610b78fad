package datadog

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"shopdw/internal/metrics"
)

// fakeSubmitter records submitted payloads instead of hitting the API.
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func newTestBackend(t *testing.T, sub *fakeSubmitter) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:    "testjob",
		FlushEvery: time.Hour, // keep the loop quiet; tests flush explicitly
		now:        func() time.Time { return time.Unix(1700000000, 0) },
		submitter:  sub,
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	return b
}

func TestFlush_SubmitsBufferedSeriesOnce(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)
	defer b.Close()

	b.IncCounter("warehouse_stage_total", 1, metrics.Labels{"stage": "facts", "status": "ok"})
	b.IncCounter("warehouse_stage_total", 1, metrics.Labels{"stage": "facts", "status": "ok"})
	b.IncCounter("warehouse_rows_total", 42, metrics.Labels{"table": "fact_order"})
	b.ObserveHistogram("warehouse_stage_duration_seconds", 1.5, metrics.Labels{"stage": "facts", "status": "ok"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if sub.count() != 1 {
		t.Fatalf("submissions=%d, want 1", sub.count())
	}

	series := sub.payloads[0].Series
	byMetric := map[string]datadogV2.MetricSeries{}
	for _, s := range series {
		byMetric[s.Metric] = s
	}

	stage, ok := byMetric["shopdw.stage.total"]
	if !ok {
		t.Fatalf("missing shopdw.stage.total in %v", metricNames(series))
	}
	if got := *stage.Points[0].Value; got != 2 {
		t.Fatalf("stage.total=%v, want 2", got)
	}
	wantTags := []string{"job:testjob", "stage:facts", "status:ok"}
	for _, tag := range wantTags {
		if !hasTag(stage.Tags, tag) {
			t.Fatalf("stage.total tags=%v, want contains %q", stage.Tags, tag)
		}
	}

	rows, ok := byMetric["shopdw.rows.total"]
	if !ok || *rows.Points[0].Value != 42 {
		t.Fatalf("rows.total missing or wrong: %v", byMetric)
	}
	if !hasTag(rows.Tags, "table:fact_order") {
		t.Fatalf("rows.total tags=%v", rows.Tags)
	}

	for _, m := range []string{
		"shopdw.stage.duration_seconds.p50",
		"shopdw.stage.duration_seconds.p95",
		"shopdw.stage.duration_seconds.max",
		"shopdw.stage.duration_seconds.samples",
	} {
		if _, ok := byMetric[m]; !ok {
			t.Fatalf("missing %s in %v", m, metricNames(series))
		}
	}

	// Buffers reset: an immediate second flush submits nothing.
	if err := b.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if sub.count() != 1 {
		t.Fatalf("empty flush still submitted; submissions=%d", sub.count())
	}
}

func TestIncCounter_IgnoresUnusableObservations(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)
	defer b.Close()

	b.IncCounter("warehouse_stage_total", 0, metrics.Labels{"stage": "x", "status": "ok"})
	b.IncCounter("warehouse_stage_total", -3, metrics.Labels{"stage": "x", "status": "ok"})
	b.IncCounter("warehouse_rows_total", 5, metrics.Labels{}) // no table label
	b.IncCounter("some_other_metric", 1, nil)
	b.ObserveHistogram("warehouse_stage_duration_seconds", -1, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if sub.count() != 0 {
		t.Fatalf("submissions=%d, want 0 (all observations unusable)", sub.count())
	}
}

func TestPercentileNearestRank(t *testing.T) {
	t.Parallel()

	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentileNearestRank(sorted, 0.50); got != 5 {
		t.Fatalf("p50=%v, want 5", got)
	}
	if got := percentileNearestRank(sorted, 0.95); got != 10 {
		t.Fatalf("p95=%v, want 10", got)
	}
	if got := percentileNearestRank([]float64{7}, 0.95); got != 7 {
		t.Fatalf("single sample p95=%v, want 7", got)
	}
	if got := percentileNearestRank(nil, 0.5); got != 0 {
		t.Fatalf("empty p50=%v, want 0", got)
	}
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	got := ParseTagsCSV(" env:prod , team:data ,, ")
	want := []string{"env:prod", "team:data"}
	if len(got) != len(want) {
		t.Fatalf("tags=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tags=%v, want %v", got, want)
		}
	}
	if got := ParseTagsCSV("  "); got != nil {
		t.Fatalf("blank input tags=%v, want nil", got)
	}
}

func metricNames(series []datadogV2.MetricSeries) []string {
	names := make([]string, 0, len(series))
	for _, s := range series {
		names = append(names, s.Metric)
	}
	sort.Strings(names)
	return names
}

func hasTag(tags []string, want string) bool {
	for _, tag := range tags {
		if strings.EqualFold(tag, want) {
			return true
		}
	}
	return false
}
