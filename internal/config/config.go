// Package config loads pipeline configuration from a YAML file with
// environment-variable overrides. Every setting has a default, so running
// with no file and no environment produces a working local pipeline.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"prismview/internal/artifact"
	"prismview/internal/catalog"
)

// Site names one study sub-county and its output slug.
type Site struct {
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
}

// Config is the full pipeline configuration.
type Config struct {
	// DataDir holds the raw tab-separated source tables.
	DataDir string `yaml:"data_dir"`
	// Sites to reshape and render, in output order.
	Sites []Site `yaml:"sites"`

	Artifacts ArtifactConfig `yaml:"artifacts"`
	Catalog   CatalogConfig  `yaml:"catalog"`
	Metrics   MetricsConfig  `yaml:"metrics"`
}

// ArtifactConfig selects where cleaned CSVs and viewer pages land.
type ArtifactConfig struct {
	Driver      string `yaml:"driver"` // fs (default), s3, memory
	Root        string `yaml:"root"`   // fs output directory
	S3Region    string `yaml:"s3_region"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// CatalogConfig selects where run records are kept.
type CatalogConfig struct {
	Driver      string `yaml:"driver"` // memory (default), sqlite, postgres
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// MetricsConfig controls the Prometheus textfile flush.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// Default returns the configuration used when no file is given: local data
// directory, filesystem outputs under ./site, in-memory catalog, and the
// three PRISM cohort sub-counties.
func Default() Config {
	return Config{
		DataDir: "./data",
		Sites: []Site{
			{Name: "Nagongera", Slug: "nagongera"},
			{Name: "Walukuba", Slug: "walukuba"},
			{Name: "Kihihi", Slug: "kihihi"},
		},
		Artifacts: ArtifactConfig{Driver: "fs", Root: "./site"},
		Catalog:   CatalogConfig{Driver: "memory"},
	}
}

// Load reads path (optional) over the defaults and applies PRISMVIEW_*
// environment overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setenv := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setenv(&c.DataDir, "PRISMVIEW_DATA_DIR")
	setenv(&c.Artifacts.Driver, "PRISMVIEW_ARTIFACT_DRIVER")
	setenv(&c.Artifacts.Root, "PRISMVIEW_ARTIFACT_ROOT")
	setenv(&c.Artifacts.S3Region, "PRISMVIEW_S3_REGION")
	setenv(&c.Artifacts.S3Bucket, "PRISMVIEW_S3_BUCKET")
	setenv(&c.Artifacts.S3Endpoint, "PRISMVIEW_S3_ENDPOINT")
	setenv(&c.Catalog.Driver, "PRISMVIEW_CATALOG_DRIVER")
	setenv(&c.Catalog.SQLitePath, "PRISMVIEW_CATALOG_SQLITE_PATH")
	setenv(&c.Catalog.PostgresDSN, "PRISMVIEW_CATALOG_POSTGRES_DSN")
	setenv(&c.Metrics.TextfilePath, "PRISMVIEW_METRICS_TEXTFILE")
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if len(c.Sites) == 0 {
		return fmt.Errorf("config: at least one site is required")
	}
	seen := make(map[string]struct{}, len(c.Sites))
	for i := range c.Sites {
		s := &c.Sites[i]
		if s.Name == "" {
			return fmt.Errorf("config: site %d has no name", i)
		}
		if s.Slug == "" {
			s.Slug = slugify(s.Name)
		}
		if _, dup := seen[s.Slug]; dup {
			return fmt.Errorf("config: duplicate site slug %q", s.Slug)
		}
		seen[s.Slug] = struct{}{}
	}
	return nil
}

// SiteNames returns the configured site names in order.
func (c *Config) SiteNames() []string {
	out := make([]string, len(c.Sites))
	for i, s := range c.Sites {
		out[i] = s.Name
	}
	return out
}

// SlugFor maps a site name to its output slug.
func (c *Config) SlugFor(name string) string {
	for _, s := range c.Sites {
		if s.Name == name {
			return s.Slug
		}
	}
	return slugify(name)
}

// ArtifactOptions translates the config into store options.
func (c *Config) ArtifactOptions() artifact.Options {
	return artifact.Options{
		Driver: artifact.Driver(c.Artifacts.Driver),
		FSRoot: c.Artifacts.Root,
		S3: artifact.S3Config{
			Region:    c.Artifacts.S3Region,
			Bucket:    c.Artifacts.S3Bucket,
			Endpoint:  c.Artifacts.S3Endpoint,
			PathStyle: c.Artifacts.S3PathStyle,
		},
	}
}

// CatalogOptions translates the config into catalog options.
func (c *Config) CatalogOptions() catalog.Options {
	return catalog.Options{
		Driver:      catalog.Driver(c.Catalog.Driver),
		SQLitePath:  c.Catalog.SQLitePath,
		PostgresDSN: c.Catalog.PostgresDSN,
	}
}

// slugify lowercases ASCII letters and maps everything else to hyphens.
func slugify(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch >= 'a' && ch <= 'z' || ch >= '0' && ch <= '9':
			out = append(out, ch)
		case ch >= 'A' && ch <= 'Z':
			out = append(out, ch+('a'-'A'))
		default:
			if len(out) > 0 && out[len(out)-1] != '-' {
				out = append(out, '-')
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}
	return string(out)
}
