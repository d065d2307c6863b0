package orchestrator

import (
	"github.com/bengal-ssg/bengal/internal/content"
	"github.com/bengal-ssg/bengal/internal/nav"
)

// runTaxonomy builds the taxonomy indexes, synthesizes per-term and
// overview taxonomy pages, links section prev/next navigation, and builds
// every configured NavTree (spec §4.8 "phase: taxonomy").
func (o *Orchestrator) runTaxonomy(site *content.Site, opts Options, stats *BuildStats) map[string]*nav.Tree {
	// Sort a copy: a PageID is its index in site.Pages, so the arena's
	// order must not change.
	pages := append([]*content.Page(nil), site.AllPages()...)
	content.SortByDate(pages, false)

	ts := content.BuildTaxonomies(pages, opts.Config.Taxonomies)
	site.Taxonomies = ts

	bySourcePath := make(map[string]*content.Page, len(pages))
	for _, p := range pages {
		bySourcePath[p.SourcePath] = p
	}

	generated := content.GenerateTaxonomyPages(ts, func(taxName, slug string) []*content.Page {
		rec := ts.Forward[taxName][slug]
		if rec == nil {
			return nil
		}
		out := make([]*content.Page, 0, len(rec.PagePaths))
		for identity := range rec.PagePaths {
			if p := bySourcePath[identity]; p != nil {
				out = append(out, p)
			}
		}
		content.SortByDate(out, false)
		return out
	})
	for _, p := range generated {
		site.AddPage(p)
	}
	stats.Counts.Regular = len(pages)
	stats.Counts.Generated = len(generated)
	stats.Counts.Tag = countByType(generated, content.PageTypeTaxonomy) + countByType(generated, content.PageTypeTaxonomyList)

	content.SetSectionNavigation(site)

	return o.buildMenus(site, opts)
}

func countByType(pages []*content.Page, t content.PageType) int {
	n := 0
	for _, p := range pages {
		if p.Type == t {
			n++
		}
	}
	return n
}

// buildMenus constructs every named menu: declared menus come from
// config.Menu.Entries; a derived "main" menu is built from the section
// tree unless config already declares one under that name (spec §4.5
// "Menu derivation"). Results are cached by name and cleared by the
// cacheregistry on nav_change/structural_change (spec §9 OQ3).
func (o *Orchestrator) buildMenus(site *content.Site, opts Options) map[string]*nav.Tree {
	menus := make(map[string]*nav.Tree, len(opts.Config.Menu.Entries)+1)

	for name, entries := range opts.Config.Menu.Entries {
		if cached, ok := o.navCache.Get(name); ok {
			menus[name] = cached
			continue
		}
		tree := nav.BuildFromConfig(name, entries)
		o.navCache.Set(name, tree)
		menus[name] = tree
	}

	if _, declared := opts.Config.Menu.Entries["main"]; !declared {
		if cached, ok := o.navCache.Get("main"); ok {
			menus["main"] = cached
		} else {
			tree := nav.BuildFromSections(site)
			o.navCache.Set("main", tree)
			menus["main"] = tree
		}
	}

	return menus
}
