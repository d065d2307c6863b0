package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bengal-ssg/bengal/internal/bengallog"
	"github.com/bengal-ssg/bengal/internal/cacheregistry"
	"github.com/bengal-ssg/bengal/internal/config"
	"github.com/bengal-ssg/bengal/internal/markdown"
	"github.com/bengal-ssg/bengal/internal/nav"
	"github.com/bengal-ssg/bengal/internal/orchestrator"
	"github.com/bengal-ssg/bengal/internal/tmplengine"
)

// siteDirs centralises the on-disk directory layout every command derives
// from the project root and resolved config.
type siteDirs struct {
	ProjectRoot string
	ContentDir  string
	AssetsDir   string
	DataDir     string
	ThemeDir    string
	OutputDir   string
	CachePath   string
}

func resolveDirs(cfg *config.Config, projectRoot, destination string) siteDirs {
	theme := cfg.Theme.Name
	if theme == "" {
		theme = "default"
	}
	outputDir := destination
	if outputDir == "" {
		outputDir = cfg.Build.OutputDir
	}
	if outputDir == "" {
		outputDir = "public"
	}
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(projectRoot, outputDir)
	}

	return siteDirs{
		ProjectRoot: projectRoot,
		ContentDir:  filepath.Join(projectRoot, "content"),
		AssetsDir:   filepath.Join(projectRoot, "assets"),
		DataDir:     filepath.Join(projectRoot, "data"),
		ThemeDir:    filepath.Join(projectRoot, "themes", theme),
		OutputDir:   outputDir,
		CachePath:   filepath.Join(projectRoot, ".bengal", "cache", "build.json"),
	}
}

// newOrchestrator wires one Orchestrator instance from resolved config and
// directories, shared by the build and serve commands.
func newOrchestrator(cfg *config.Config, dirs siteDirs) (*orchestrator.Orchestrator, *cacheregistry.Registry, *nav.Cache, error) {
	engine, err := tmplengine.New(dirs.ThemeDir, "", cfg.Site.BaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading theme %q: %w", dirs.ThemeDir, err)
	}

	mdPipeline := markdown.New(markdown.Config{
		SmartQuotes:    cfg.Markdown.SmartQuotes,
		Typographer:    cfg.Markdown.Typographer,
		HighlightTheme: cfg.Theme.Highlight.Theme,
		CSSClassStyle:  cfg.Theme.Highlight.CSSClassStyle,
	})

	registry := cacheregistry.New(bengallog.L())
	navCache := nav.NewCache()

	registry.Register(&cacheregistry.Entry{
		Name:    "nav_tree",
		ClearFn: navCache.Clear,
		InvalidateOn: map[cacheregistry.Reason]bool{
			cacheregistry.ReasonConfigChanged:    true,
			cacheregistry.ReasonStructuralChange: true,
			cacheregistry.ReasonNavChange:        true,
			cacheregistry.ReasonFullRebuild:      true,
		},
	})
	registry.Register(&cacheregistry.Entry{
		Name:    "template_lru",
		ClearFn: engine.ClearCache,
		InvalidateOn: map[cacheregistry.Reason]bool{
			cacheregistry.ReasonTemplateChange: true,
			cacheregistry.ReasonConfigChanged:  true,
			cacheregistry.ReasonFullRebuild:    true,
		},
	})

	return orchestrator.New(engine, mdPipeline, registry, navCache), registry, navCache, nil
}

func persistentFlagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Root().PersistentFlags().GetString(name)
	return v
}

func persistentFlagBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Root().PersistentFlags().GetBool(name)
	return v
}
