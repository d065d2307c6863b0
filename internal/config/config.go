// Package config handles loading, validating, and managing site
// configuration for the Bengal static site generator (spec C1).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level, typed configuration tree for a Bengal site.
type Config struct {
	Site       SiteSection      `mapstructure:"site"`
	Build      BuildSection     `mapstructure:"build"`
	Markdown   MarkdownSection  `mapstructure:"markdown"`
	Theme      ThemeSection     `mapstructure:"theme"`
	Menu       MenuSection      `mapstructure:"menu"`
	Taxonomies []string         `mapstructure:"taxonomies"`
	Server     ServerSection    `mapstructure:"server"`
	Assets     AssetsSection    `mapstructure:"assets"`
	Sitemap    SitemapSection   `mapstructure:"sitemap"`
	RSS        RSSSection       `mapstructure:"rss"`
	Redirects  RedirectsSection `mapstructure:"redirects"`
	Security   SecuritySection  `mapstructure:"security"`

	// Unknown top-level keys, preserved as loaded; never consulted or
	// reported by the core build.
	Unknown map[string]any `mapstructure:"-"`
}

// SiteSection holds site-wide identity fields.
type SiteSection struct {
	Title       string `mapstructure:"title"`
	BaseURL     string `mapstructure:"baseurl"`
	Language    string `mapstructure:"language"`
	Description string `mapstructure:"description"`
}

// BuildSection controls the build pipeline's execution strategy.
type BuildSection struct {
	Parallel    bool   `mapstructure:"parallel"`
	MaxWorkers  int    `mapstructure:"max_workers"`
	OutputDir   string `mapstructure:"output_dir"`
	Incremental bool   `mapstructure:"incremental"`
	PrettyURLs  bool   `mapstructure:"pretty_urls"`
}

// MarkdownSection controls the C7 markdown pipeline.
type MarkdownSection struct {
	Extensions  []string `mapstructure:"extensions"`
	SmartQuotes bool     `mapstructure:"smart_quotes"`
	Typographer bool     `mapstructure:"typographer"`
}

// SyntaxHighlighting controls chroma/semantic code-block rendering.
type SyntaxHighlighting struct {
	Theme         string `mapstructure:"theme"`
	CSSClassStyle string `mapstructure:"css_class_style"` // "semantic" | "pygments"
}

// ThemeSection controls theme selection and features.
type ThemeSection struct {
	Name           string             `mapstructure:"name"`
	DefaultPalette string             `mapstructure:"default_palette"`
	Features       []string           `mapstructure:"features"`
	Highlight      SyntaxHighlighting `mapstructure:"syntax_highlighting"`
}

// MenuEntry is one declarative navigation entry.
type MenuEntry struct {
	Name   string `mapstructure:"name"`
	URL    string `mapstructure:"url"`
	Weight int    `mapstructure:"weight"`
	Parent string `mapstructure:"parent"`
}

// MenuSection holds declarative menus keyed by menu name.
type MenuSection struct {
	Entries map[string][]MenuEntry `mapstructure:",remain"`
}

// ServerSection controls the dev server (C9).
type ServerSection struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	WatchDebounceMs int    `mapstructure:"watch_debounce_ms"`
	LiveReload      bool   `mapstructure:"livereload"`
}

// AssetsSection controls the assets phase (C8).
type AssetsSection struct {
	Minify      bool `mapstructure:"minify"`
	Fingerprint bool `mapstructure:"fingerprint"`
	Optimize    bool `mapstructure:"optimize"`
}

// SitemapSection toggles sitemap.xml generation.
type SitemapSection struct {
	Enabled bool `mapstructure:"enabled"`
}

// RSSSection toggles RSS/Atom feed generation.
type RSSSection struct {
	Enabled  bool     `mapstructure:"enabled"`
	Atom     bool     `mapstructure:"atom"`
	Limit    int      `mapstructure:"limit"`
	Sections []string `mapstructure:"sections"`
}

// RedirectsSection toggles alias redirect emission.
type RedirectsSection struct {
	Enabled bool   `mapstructure:"enabled"`
	Format  string `mapstructure:"format"` // "_redirects" | "meta"
}

// CSPConfig lists site-specific Content-Security-Policy additions layered
// onto the production policy's baseline (internal/security.ProdPolicy),
// for sites that embed third-party scripts, fonts, or analytics.
type CSPConfig struct {
	ScriptSrc  []string `mapstructure:"script_src"`
	StyleSrc   []string `mapstructure:"style_src"`
	ImgSrc     []string `mapstructure:"img_src"`
	FontSrc    []string `mapstructure:"font_src"`
	ConnectSrc []string `mapstructure:"connect_src"`
}

// SecuritySection controls response security headers for the dev server
// and any static-hosting deployment hints (C9).
type SecuritySection struct {
	CSP CSPConfig `mapstructure:"csp"`
}

// Default returns a Config populated with sensible default values,
// mirroring the teacher's Default() constructor.
func Default() *Config {
	return &Config{
		Site: SiteSection{
			Language: "en",
		},
		Build: BuildSection{
			Parallel:   true,
			PrettyURLs: true,
		},
		Markdown: MarkdownSection{
			SmartQuotes: true,
			Typographer: true,
		},
		Theme: ThemeSection{
			Name: "default",
			Highlight: SyntaxHighlighting{
				Theme:         "github",
				CSSClassStyle: "semantic",
			},
		},
		Taxonomies: []string{"tags"},
		Server: ServerSection{
			Host:            "localhost",
			Port:            1313,
			WatchDebounceMs: 250,
			LiveReload:      true,
		},
		Sitemap: SitemapSection{Enabled: true},
		RSS:     RSSSection{Enabled: true, Atom: true, Limit: 20},
		Redirects: RedirectsSection{
			Enabled: true,
			Format:  "_redirects",
		},
	}
}

// Load reads a configuration file (YAML, TOML, or JSON, detected by
// extension) and returns a Config with defaults applied first and file
// values overlaid on top. Unknown top-level keys are preserved in
// cfg.Unknown rather than rejected; they are not reported as warnings.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	ext := strings.TrimPrefix(filepath.Ext(configPath), ".")
	switch ext {
	case "yaml", "yml":
		v.SetConfigType("yaml")
	case "toml":
		v.SetConfigType("toml")
	case "json":
		v.SetConfigType("json")
	default:
		v.SetConfigType("yaml")
	}

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("BENGAL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", configPath, err)
	}

	cfg.Unknown = unknownKeys(v.AllSettings(), knownTopLevelKeys)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validating %s: %w", configPath, err)
	}

	return cfg, nil
}

var knownTopLevelKeys = map[string]bool{
	"site": true, "build": true, "markdown": true, "theme": true,
	"menu": true, "taxonomies": true, "server": true, "assets": true,
	"sitemap": true, "rss": true, "redirects": true, "security": true,
}

func unknownKeys(all map[string]any, known map[string]bool) map[string]any {
	out := make(map[string]any)
	for k, v := range all {
		if !known[k] {
			out[k] = v
		}
	}
	return out
}

// Validate checks the Config for common errors: a missing title, or a
// trailing-slash baseurl.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Site.Title) == "" {
		return fmt.Errorf("config: site.title is required")
	}
	if c.Site.BaseURL != "" && strings.HasSuffix(c.Site.BaseURL, "/") {
		return fmt.Errorf("config: site.baseurl must not have a trailing slash (got %q)", c.Site.BaseURL)
	}
	return nil
}

// Overrides holds CLI-flag-sourced overrides, applied with highest
// precedence (CLI > env > file > defaults).
type Overrides struct {
	BaseURL     *string
	OutputDir   *string
	Parallel    *bool
	MaxWorkers  *int
	Incremental *bool
	Port        *int
	Host        *string
}

// WithOverrides applies CLI flag overrides to the config, returning the
// same Config for chaining.
func (c *Config) WithOverrides(o Overrides) *Config {
	if o.BaseURL != nil {
		c.Site.BaseURL = *o.BaseURL
	}
	if o.OutputDir != nil {
		c.Build.OutputDir = *o.OutputDir
	}
	if o.Parallel != nil {
		c.Build.Parallel = *o.Parallel
	}
	if o.MaxWorkers != nil {
		c.Build.MaxWorkers = *o.MaxWorkers
	}
	if o.Incremental != nil {
		c.Build.Incremental = *o.Incremental
	}
	if o.Port != nil {
		c.Server.Port = *o.Port
	}
	if o.Host != nil {
		c.Server.Host = *o.Host
	}
	return c
}

// EnvOverrides reads the BENGAL_BASEURL and BENGAL_OUTPUT_DIR environment
// variables and returns an Overrides struct reflecting whichever are set,
// for precedence between file config and CLI flags. No other BENGAL_*
// variable is read here.
func EnvOverrides() Overrides {
	var o Overrides
	if v, ok := os.LookupEnv("BENGAL_BASEURL"); ok {
		o.BaseURL = &v
	}
	if v, ok := os.LookupEnv("BENGAL_OUTPUT_DIR"); ok {
		o.OutputDir = &v
	}
	return o
}
