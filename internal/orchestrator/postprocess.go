package orchestrator

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bengal-ssg/bengal/internal/bengalerr"
	"github.com/bengal-ssg/bengal/internal/content"
	"github.com/bengal-ssg/bengal/internal/feed"
	"github.com/bengal-ssg/bengal/internal/search"
	"github.com/bengal-ssg/bengal/internal/seo"
)

// runPostprocess emits the build's site-wide artifacts: sitemap.xml,
// robots.txt, index.xml (RSS), atom.xml, redirect stubs, and the search index
// (spec §4.8 "phase: postprocess"). Each emitter is independent; one
// failing does not prevent the others from running, matching the other
// phases' non-fatal-by-default posture for this stage.
func (o *Orchestrator) runPostprocess(site *content.Site, opts Options, session *bengalerr.Session, stats *BuildStats) {
	pages := content.FilterDrafts(site.AllPages())
	pages = content.FilterFuture(pages)

	if opts.Config.Sitemap.Enabled {
		o.emitSitemap(pages, opts, session, stats)
		o.emitRobots(opts, stats)
	}
	if opts.Config.RSS.Enabled {
		o.emitFeeds(site, pages, opts, session, stats)
	}
	if opts.Config.Redirects.Enabled {
		o.emitRedirects(pages, opts, session, stats)
	}
	o.emitSearchIndex(pages, opts, session, stats)
}

func (o *Orchestrator) emitSitemap(pages []*content.Page, opts Options, session *bengalerr.Session, stats *BuildStats) {
	entries := make([]seo.SitemapEntry, 0, len(pages))
	for _, p := range pages {
		entries = append(entries, seo.SitemapEntry{URL: p.AbsoluteHref, Lastmod: lastmodOf(p)})
	}
	data, err := seo.GenerateSitemap(entries)
	if err != nil {
		recordPostprocessError(session, stats, "sitemap", err)
		return
	}
	if err := WriteFileAtomic(filepath.Join(opts.OutputDir, "sitemap.xml"), data); err != nil {
		recordPostprocessError(session, stats, "sitemap", err)
		return
	}
	stats.RecordWrite(int64(len(data)))
}

func (o *Orchestrator) emitRobots(opts Options, stats *BuildStats) {
	sitemapURL := strings.TrimSuffix(opts.Config.Site.BaseURL, "/") + "/sitemap.xml"
	data := seo.GenerateRobotsTxt(sitemapURL)
	if err := WriteFileAtomic(filepath.Join(opts.OutputDir, "robots.txt"), data); err == nil {
		stats.RecordWrite(int64(len(data)))
	}
}

func (o *Orchestrator) emitFeeds(site *content.Site, pages []*content.Page, opts Options, session *bengalerr.Session, stats *BuildStats) {
	content.SortByDate(pages, false)

	allowed := make(map[string]bool, len(opts.Config.RSS.Sections))
	for _, s := range opts.Config.RSS.Sections {
		allowed[strings.TrimPrefix(s, "/")] = true
	}

	items := make([]feed.FeedItem, 0, len(pages))
	for _, p := range pages {
		if len(allowed) > 0 {
			sec := site.Section(p.SectionID)
			if sec == nil || !allowed[strings.TrimPrefix(sec.Path, "/")] {
				continue
			}
		}
		items = append(items, feed.FeedItem{
			Title:       p.Title,
			Link:        p.AbsoluteHref,
			Description: p.Summary,
			Content:     p.ParsedAST,
			Author:      p.Author,
			PubDate:     p.Date,
			GUID:        p.AbsoluteHref,
			Categories:  p.Tags,
		})
	}

	feedOpts := feed.FeedOptions{
		Title:       opts.Config.Site.Title,
		Description: opts.Config.Site.Description,
		Link:        strings.TrimSuffix(opts.Config.Site.BaseURL, "/"),
		FeedLink:    strings.TrimSuffix(opts.Config.Site.BaseURL, "/") + "/index.xml",
		Language:    opts.Config.Site.Language,
		MaxItems:    opts.Config.RSS.Limit,
	}

	rssData, err := feed.GenerateRSS(items, feedOpts)
	if err != nil {
		recordPostprocessError(session, stats, "rss", err)
	} else if err := WriteFileAtomic(filepath.Join(opts.OutputDir, "index.xml"), rssData); err != nil {
		recordPostprocessError(session, stats, "rss", err)
	} else {
		stats.RecordWrite(int64(len(rssData)))
	}

	if !opts.Config.RSS.Atom {
		return
	}
	atomData, err := feed.GenerateAtom(items, feedOpts)
	if err != nil {
		recordPostprocessError(session, stats, "atom", err)
		return
	}
	if err := WriteFileAtomic(filepath.Join(opts.OutputDir, "atom.xml"), atomData); err != nil {
		recordPostprocessError(session, stats, "atom", err)
		return
	}
	stats.RecordWrite(int64(len(atomData)))
}

func (o *Orchestrator) emitRedirects(pages []*content.Page, opts Options, session *bengalerr.Session, stats *BuildStats) {
	var lines []string
	for _, p := range pages {
		for _, alias := range p.Aliases {
			switch opts.Config.Redirects.Format {
			case "meta":
				html := metaRefreshPage(p.Href)
				path := OutputPathForPage(opts.OutputDir, strings.TrimSuffix(alias, "/")+"/")
				if err := WriteFileAtomic(path, []byte(html)); err != nil {
					recordPostprocessError(session, stats, "redirects", err)
					continue
				}
				stats.RecordWrite(int64(len(html)))
			default:
				lines = append(lines, fmt.Sprintf("%s %s 301", alias, p.Href))
			}
		}
	}
	if opts.Config.Redirects.Format == "meta" || len(lines) == 0 {
		return
	}
	data := []byte(strings.Join(lines, "\n") + "\n")
	if err := WriteFileAtomic(filepath.Join(opts.OutputDir, "_redirects"), data); err != nil {
		recordPostprocessError(session, stats, "redirects", err)
		return
	}
	stats.RecordWrite(int64(len(data)))
}

func metaRefreshPage(target string) string {
	return fmt.Sprintf(`<!DOCTYPE html><html><head><meta charset="utf-8"><meta http-equiv="refresh" content="0; url=%s"><link rel="canonical" href="%s"></head><body></body></html>`, target, target)
}

func (o *Orchestrator) emitSearchIndex(pages []*content.Page, opts Options, session *bengalerr.Session, stats *BuildStats) {
	entries := make([]search.IndexEntry, 0, len(pages))
	for _, p := range pages {
		entries = append(entries, search.IndexEntry{
			Title:   p.Title,
			URL:     p.Href,
			Tags:    p.Tags,
			Summary: p.Summary,
			Content: search.StripHTML(p.ParsedAST),
		})
	}
	data, err := search.GenerateIndex(entries, 5000)
	if err != nil {
		recordPostprocessError(session, stats, "search_index", err)
		return
	}
	if err := WriteFileAtomic(filepath.Join(opts.OutputDir, "search-index.json"), data); err != nil {
		recordPostprocessError(session, stats, "search_index", err)
		return
	}
	stats.RecordWrite(int64(len(data)))
}

func lastmodOf(p *content.Page) (t time.Time) {
	if !p.Lastmod.IsZero() {
		return p.Lastmod
	}
	return p.Date
}

func recordPostprocessError(session *bengalerr.Session, stats *BuildStats, category string, err error) {
	session.RecordError(bengalerr.New(bengalerr.KindIO, "postprocess/"+category+"_failed", err.Error(),
		bengalerr.InPhase("postprocess"), bengalerr.Because(err)))
	stats.RecordError(category)
}
