// Package ingest lands CSV exports in raw tables, schema-on-read.
//
// Every cell is kept as text; typing happens later in the staging stage.
// Raw tables are dropped and recreated from the file's headers on each run,
// so a changed export layout never needs a migration.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"shopdw/internal/config"
	"shopdw/internal/schema"
	"shopdw/internal/storage"
)

// Loader reads export files from disk into raw tables.
type Loader struct {
	Store storage.Store
	Log   *zap.Logger
	Cfg   config.Config

	// Now stamps loaded_at; nil means time.Now.
	Now func() time.Time
}

func (l *Loader) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// LoadRaw loads every configured export. Missing or unreadable files are
// logged and skipped; a partial load is still useful and downstream stages
// handle absent raw tables.
func (l *Loader) LoadRaw(ctx context.Context, useSample bool) error {
	dataDir := l.Cfg.Data.RawDir
	mappings := l.Cfg.Files.Raw
	if useSample {
		dataDir = l.Cfg.Data.SampleDir
		mappings = l.Cfg.Files.Sample
		l.Log.Info("loading sample exports", zap.String("dir", dataDir))
	} else {
		l.Log.Info("loading raw exports", zap.String("dir", dataDir))
	}

	for _, m := range mappings {
		l.loadFile(ctx, filepath.Join(dataDir, m.File), m.Table)
	}

	for _, m := range l.Cfg.Files.Reference {
		l.loadFile(ctx, filepath.Join(l.Cfg.Data.ReferenceDir, m.File), m.Table)
	}

	// Costs and recipes live next to the raw exports but outside the
	// reference directory, since they are not meant to be published.
	for _, m := range l.Cfg.Files.Private {
		l.loadFile(ctx, filepath.Join(l.Cfg.Data.RawDir, m.File), m.Table)
	}

	for _, m := range l.Cfg.Files.Optional {
		path := filepath.Join(l.Cfg.Data.RawDir, m.File)
		if _, err := os.Stat(path); err != nil {
			l.Log.Info("optional file not found, skipping", zap.String("file", m.File))
			continue
		}
		l.loadFile(ctx, path, m.Table)
	}

	return nil
}

// loadFile loads one CSV into its raw table. Failures are warnings, not
// errors: one bad export must not block the rest of the load.
func (l *Loader) loadFile(ctx context.Context, path, table string) {
	columns, rows, err := readCSV(path)
	if err != nil {
		l.Log.Warn("skipping file",
			zap.String("file", path),
			zap.String("table", table),
			zap.Error(err))
		return
	}
	if len(rows) == 0 {
		l.Log.Warn("empty file, skipping", zap.String("file", path))
		return
	}

	if table == schema.RawMetaAds {
		columns, rows = remapMetaAdsColumns(columns, rows)
	}

	columns, rows = appendLoadedAt(columns, rows, l.now())

	if err := l.Store.ReplaceRawTable(ctx, table, columns, rows); err != nil {
		l.Log.Warn("could not load table",
			zap.String("file", path),
			zap.String("table", table),
			zap.Error(err))
		return
	}

	l.Log.Info("loaded raw table",
		zap.String("table", table),
		zap.Int("rows", len(rows)))
}

// CleanColumnName converts an export header to a snake_case identifier.
func CleanColumnName(col string) string {
	r := strings.NewReplacer(
		" ", "_",
		"(", "",
		")", "",
		"/", "_",
		"-", "_",
		".", "_",
		":", "_",
	)
	return r.Replace(strings.ToLower(col))
}

// stripApostrophePrefix removes the leading apostrophe spreadsheet tools add
// to force text formatting (e.g. '77083 for a ZIP code).
func stripApostrophePrefix(v string) string {
	return strings.TrimPrefix(v, "'")
}

// readCSV reads path and returns cleaned header names and string rows.
// Headers are deduplicated with numeric suffixes; ragged rows are padded or
// truncated to the header width.
func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := readAllRecords(f)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := CleanColumnName(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		columns[i] = name
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(columns))
		for i := range columns {
			if i < len(rec) {
				row[i] = stripApostrophePrefix(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return columns, rows, nil
}

// readAllRecords parses CSV tolerating ragged rows and stray quotes, which
// both show up in hand-edited exports.
func readAllRecords(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

// metaAdsColumns maps cleaned ad-export headers to the raw_meta_ads layout,
// in landing order. Unmapped export columns are dropped.
var metaAdsColumns = []struct {
	from string
	to   string
}{
	{"campaign_name", "campaign_name"},
	{"reach", "reach"},
	{"frequency", "frequency"},
	{"impressions", "impressions"},
	{"cpm_cost_per_1,000_impressions", "cpm"},
	{"cpm_cost_per_1_000_impressions", "cpm"},
	{"amount_spent_usd", "amount_spent"},
	{"amount_spent", "amount_spent"},
	{"link_clicks", "link_clicks"},
	{"cpc_cost_per_link_click", "cpc"},
	{"ctr_link_click_through_rate", "ctr"},
	{"landing_page_views", "landing_page_views"},
}

func remapMetaAdsColumns(columns []string, rows [][]string) ([]string, [][]string) {
	srcIndex := make(map[string]int, len(columns))
	for i, c := range columns {
		srcIndex[c] = i
	}

	var outCols []string
	var srcIdx []int
	taken := make(map[string]bool)
	for _, m := range metaAdsColumns {
		i, ok := srcIndex[m.from]
		if !ok || taken[m.to] {
			continue
		}
		taken[m.to] = true
		outCols = append(outCols, m.to)
		srcIdx = append(srcIdx, i)
	}
	if len(outCols) == 0 {
		return columns, rows
	}

	outRows := make([][]string, len(rows))
	for r, row := range rows {
		out := make([]string, len(srcIdx))
		for j, i := range srcIdx {
			if i < len(row) {
				out[j] = row[i]
			}
		}
		outRows[r] = out
	}
	return outCols, outRows
}

func appendLoadedAt(columns []string, rows [][]string, now time.Time) ([]string, [][]string) {
	stamp := now.UTC().Format(time.RFC3339Nano)
	out := make([]string, 0, len(columns)+1)
	out = append(out, columns...)
	out = append(out, "loaded_at")
	for i, row := range rows {
		rows[i] = append(row, stamp)
	}
	return out, rows
}
