package tmplengine

import (
	"html/template"
	"time"

	"github.com/bengal-ssg/bengal/internal/config"
	"github.com/bengal-ssg/bengal/internal/content"
	"github.com/bengal-ssg/bengal/internal/nav"
)

// PageContext is the data passed to every template as "." for a single-page
// render. It carries the canonical URL fields (Href/Path/AbsoluteHref,
// spec §4.6 "URL helpers"). The legacy aliases (url, relative_url,
// site_path, permalink) are FuncMap functions, not fields, and log a
// deprecation warning.
type PageContext struct {
	Title       string
	Description string
	Summary     template.HTML
	Content     template.HTML
	TOC         template.HTML

	Date       time.Time
	Lastmod    time.Time
	ExpiryDate time.Time
	Draft      bool

	Slug string
	Type string

	// Canonical URL contract.
	Href         string // includes baseurl
	Path         string // excludes baseurl ("_path" in spec terms)
	AbsoluteHref string // scheme://host/path when baseurl is absolute

	Tags        []string
	Cover       *CoverContext
	Author      string
	WordCount   int
	ReadingTime int

	Params   map[string]any
	Metadata map[string]any

	Section  *SectionContext
	PrevPage *PageContext
	NextPage *PageContext

	Site *SiteContext
}

// CoverContext mirrors content.CoverImage for templates.
type CoverContext struct {
	Image   string
	Alt     string
	Caption string
}

// SectionContext is the template-facing view of a content.Section.
type SectionContext struct {
	Title  string
	Href   string
	Path   string
	Weight int
}

// AssetContext is the template-facing view of a content.Asset.
type AssetContext struct {
	Href        string
	Path        string
	ContentHash string
	Fingerprint string
}

// NavNodeContext is the template-facing view of a nav.Node.
type NavNodeContext struct {
	Name     string
	Href     string
	Path     string
	Weight   int
	Children []*NavNodeContext
}

// SiteContext holds site-wide data accessible as .Site in templates.
type SiteContext struct {
	Title       string
	Description string
	BaseURL     string
	Language    string

	Params map[string]any
	Data   map[string]any

	Menus map[string][]*NavNodeContext

	Pages      []*PageContext
	Taxonomies map[string]map[string][]*PageContext

	BuildDate time.Time
}

// NewSiteContext builds the shared, build-wide SiteContext once; every
// PageContext for the build references the same pointer.
func NewSiteContext(cfg *config.Config, site *content.Site, menus map[string]*nav.Tree, data map[string]any) *SiteContext {
	sc := &SiteContext{
		Title:       cfg.Site.Title,
		Description: cfg.Site.Description,
		BaseURL:     cfg.Site.BaseURL,
		Language:    cfg.Site.Language,
		Params:      map[string]any{},
		Data:        data,
		Menus:       make(map[string][]*NavNodeContext, len(menus)),
		BuildDate:   site.BuildDate,
	}
	for name, tree := range menus {
		sc.Menus[name] = navNodesToContext(tree.Roots)
	}
	return sc
}

func navNodesToContext(nodes []*nav.Node) []*NavNodeContext {
	out := make([]*NavNodeContext, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &NavNodeContext{
			Name:     n.Name,
			Href:     n.Href,
			Path:     n.Path,
			Weight:   n.Weight,
			Children: navNodesToContext(n.Children),
		})
	}
	return out
}

// NewPageContext projects a content.Page into its render-time PageContext.
// site is used to resolve the page's owning Section. prev/next are
// converted one level deep (via newPageContext) to avoid recursing
// through an entire section's page chain.
func NewPageContext(site *content.Site, p *content.Page, siteCtx *SiteContext) *PageContext {
	pc := newPageContext(site, p, siteCtx)
	if prev := site.Page(p.PrevID); prev != nil {
		pc.PrevPage = newPageContext(site, prev, nil)
	}
	if next := site.Page(p.NextID); next != nil {
		pc.NextPage = newPageContext(site, next, nil)
	}
	return pc
}

func newPageContext(site *content.Site, p *content.Page, siteCtx *SiteContext) *PageContext {
	pc := &PageContext{
		Title:        p.Title,
		Description:  p.Description,
		Content:      template.HTML(p.ParsedAST),
		TOC:          template.HTML(p.TOC),
		Date:         p.Date,
		Lastmod:      p.Lastmod,
		ExpiryDate:   p.ExpiryDate,
		Draft:        p.Draft,
		Slug:         p.Slug,
		Type:         p.Type.String(),
		Href:         p.Href,
		Path:         p.Path,
		AbsoluteHref: p.AbsoluteHref,
		Tags:         p.Tags,
		Author:       p.Author,
		WordCount:    p.WordCount,
		ReadingTime:  p.ReadingTime,
		Params:       p.Params,
		Metadata:     p.Metadata,
		Site:         siteCtx,
	}
	if p.Summary != "" {
		pc.Summary = template.HTML(p.Summary)
	}
	if p.Cover != nil {
		pc.Cover = &CoverContext{Image: p.Cover.Image, Alt: p.Cover.Alt, Caption: p.Cover.Caption}
	}
	if sec := site.Section(p.SectionID); sec != nil {
		pc.Section = &SectionContext{Title: sec.Title, Href: sec.Href, Path: sec.Path, Weight: sec.Weight}
	}
	return pc
}
