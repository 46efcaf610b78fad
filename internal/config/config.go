// Package config holds the pipeline configuration: where the export files
// live, which tables they land in, and which warehouse backend to use.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Severity levels for validation issues.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue is one validation finding.
type Issue struct {
	Severity string
	Path     string
	Message  string
}

// FileMapping binds one export file to its raw landing table.
type FileMapping struct {
	File  string `json:"file"`
	Table string `json:"table"`
}

// StorageConfig selects the warehouse backend.
type StorageConfig struct {
	Kind string `json:"kind"` // "postgres" | "sqlite"
	DSN  string `json:"dsn"`  // ${ENV} references are expanded
}

// DataConfig locates the export directories.
type DataConfig struct {
	RawDir       string `json:"raw_dir"`
	ReferenceDir string `json:"reference_dir"`
	SampleDir    string `json:"sample_dir"`
}

// Defaults are the fallback values used when product metadata is missing,
// so every product dimension row is fully populated.
type Defaults struct {
	Vendor       string  `json:"vendor"`
	VariantPrice float64 `json:"variant_price"`
}

// Files groups the file→table mappings by how they are loaded.
//
//   - Raw/Sample: storefront exports (orders, products, customers, discounts);
//     Sample replaces Raw when the pipeline runs with the sample flag.
//   - Reference: the public SKU map.
//   - Private: costs and recipes, kept out of version control.
//   - Optional: ad spend and search-console exports; absence or parse failure
//     must never abort a run.
type Files struct {
	Raw       []FileMapping `json:"raw"`
	Sample    []FileMapping `json:"sample"`
	Reference []FileMapping `json:"reference"`
	Private   []FileMapping `json:"private"`
	Optional  []FileMapping `json:"optional"`
}

// Config is the root pipeline configuration.
type Config struct {
	Job      string        `json:"job"`
	Storage  StorageConfig `json:"storage"`
	Data     DataConfig    `json:"data"`
	Defaults Defaults      `json:"defaults"`
	Files    Files         `json:"files"`
}

// Default returns the configuration used when no config file is given:
// a local SQLite warehouse over the conventional data layout.
func Default() Config {
	return Config{
		Job: "shopdw",
		Storage: StorageConfig{
			Kind: "sqlite",
			DSN:  "file:warehouse.db",
		},
		Data: DataConfig{
			RawDir:       "data/raw",
			ReferenceDir: "data/reference",
			SampleDir:    "data/sample",
		},
		Defaults: Defaults{
			Vendor:       "House Brand",
			VariantPrice: 10.50,
		},
		Files: Files{
			Raw: []FileMapping{
				{File: "orders_export.csv", Table: "raw_orders"},
				{File: "products_export.csv", Table: "raw_products"},
				{File: "customers_export.csv", Table: "raw_customers"},
				{File: "discounts_export.csv", Table: "raw_discounts"},
			},
			Sample: []FileMapping{
				{File: "sample_orders.csv", Table: "raw_orders"},
				{File: "sample_products.csv", Table: "raw_products"},
				{File: "sample_customers.csv", Table: "raw_customers"},
				{File: "sample_discounts.csv", Table: "raw_discounts"},
			},
			Reference: []FileMapping{
				{File: "product_sku_map.csv", Table: "raw_product_sku_map"},
			},
			Private: []FileMapping{
				{File: "material_costs.csv", Table: "raw_material_costs"},
				{File: "recipes.csv", Table: "raw_recipes"},
			},
			Optional: []FileMapping{
				{File: "meta_ads.csv", Table: "raw_meta_ads"},
				{File: "search_console_daily.csv", Table: "raw_search_daily"},
			},
		},
	}
}

// Load reads a JSON config file over the defaults. An empty path returns the
// defaults unchanged. The storage DSN has environment references expanded.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		dec := json.NewDecoder(f)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}

	cfg.Storage.DSN = os.ExpandEnv(cfg.Storage.DSN)
	return cfg, nil
}

// Validate reports configuration problems. Errors make the config unusable;
// warnings are advisory.
func Validate(cfg Config) []Issue {
	var issues []Issue

	add := func(severity, path, msg string) {
		issues = append(issues, Issue{Severity: severity, Path: path, Message: msg})
	}

	switch cfg.Storage.Kind {
	case "postgres", "sqlite":
	case "":
		add(SeverityError, "storage.kind", "must be set")
	default:
		add(SeverityError, "storage.kind", fmt.Sprintf("unsupported kind %q", cfg.Storage.Kind))
	}
	if strings.TrimSpace(cfg.Storage.DSN) == "" {
		add(SeverityError, "storage.dsn", "must be set")
	}

	if len(cfg.Files.Raw) == 0 {
		add(SeverityError, "files.raw", "at least one raw export mapping is required")
	}
	if len(cfg.Files.Sample) == 0 {
		add(SeverityWarning, "files.sample", "no sample mappings; -sample runs will load nothing")
	}

	seen := map[string]string{}
	for _, group := range []struct {
		path string
		maps []FileMapping
	}{
		{"files.raw", cfg.Files.Raw},
		{"files.reference", cfg.Files.Reference},
		{"files.private", cfg.Files.Private},
		{"files.optional", cfg.Files.Optional},
	} {
		for i, m := range group.maps {
			p := fmt.Sprintf("%s[%d]", group.path, i)
			if m.File == "" {
				add(SeverityError, p+".file", "must be set")
			}
			if m.Table == "" {
				add(SeverityError, p+".table", "must be set")
			}
			if prev, dup := seen[m.Table]; dup {
				add(SeverityWarning, p+".table", fmt.Sprintf("table %q already mapped by %s", m.Table, prev))
			} else if m.Table != "" {
				seen[m.Table] = p
			}
		}
	}

	if cfg.Defaults.VariantPrice < 0 {
		add(SeverityError, "defaults.variant_price", "must not be negative")
	}

	return issues
}

// HasError reports whether any issue is severity error.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
