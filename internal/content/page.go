package content

import (
	"sort"
	"strings"
	"time"
)

// PageType identifies the kind of page being rendered, used by the
// template engine's layout resolution (C6 §4.6).
type PageType int

// Recognised page types.
const (
	PageTypeSingle PageType = iota
	PageTypeList
	PageTypeTaxonomy
	PageTypeTaxonomyList
	PageTypeHome
)

// String returns the human-readable name for a PageType, used both in
// layout resolution candidate names and in template contexts.
func (pt PageType) String() string {
	switch pt {
	case PageTypeSingle:
		return "single"
	case PageTypeList:
		return "list"
	case PageTypeTaxonomy:
		return "taxonomy"
	case PageTypeTaxonomyList:
		return "taxonomylist"
	case PageTypeHome:
		return "home"
	default:
		return "unknown"
	}
}

// CoverImage holds metadata for a page's cover/hero image.
type CoverImage struct {
	Image   string
	Alt     string
	Caption string
}

// Page is the central renderable unit (spec §3). Identity is SourcePath;
// two pages must never resolve to the same OutputPath.
//
// Lifecycle: created by Discover from a content file, or synthesized
// (taxonomy/archive/pagination pages, the virtual home page). ParsedAST is
// populated by the markdown pipeline (C7); RenderedHTML and OutputPath are
// populated by the template engine / writer (C6/C8). Mutated only by the
// single worker that owns it during the rendering phase (spec §5).
type Page struct {
	ID        PageID
	SectionID SectionID // NoSectionID only for Virtual pages

	// Identity & source.
	SourcePath string // absolute or content-root-relative path; unique across the build
	SourceDir  string

	// Front matter / metadata.
	Metadata map[string]any

	// Content.
	RawContent   string // raw markdown body
	ParsedAST    string // rendered HTML fragment (set by C7)
	RenderedHTML string // final full page (set by C6)
	TOC          string

	// URL model (spec §3 invariants: Path starts with "/"; Href = baseurl + Path).
	Path         string // site-root-absolute, no baseurl
	Href         string // includes baseurl
	AbsoluteHref string // scheme://host/path when baseurl is absolute

	OutputPath string // destination file, set once rendering writes it

	// Classification.
	Title       string
	Slug        string
	Description string
	Summary     string
	Type        PageType
	Layout      string
	Weight      int
	Draft       bool
	Virtual     bool // true for synthesized pages (home, taxonomy, pagination)
	Generated   bool // metadata._generated: true for machine-created pages

	// Dates.
	Date       time.Time
	Lastmod    time.Time
	ExpiryDate time.Time

	// Taxonomies.
	Tags []string

	// Navigation.
	PrevID  PageID
	NextID  PageID
	Aliases []string

	Cover  *CoverImage
	Author string

	// Page bundles.
	IsBundle    bool
	BundleDir   string
	BundleFiles []string

	WordCount   int
	ReadingTime int

	Params map[string]any
}

// NewPage returns a Page with ID/Section sentinels initialized so an
// unattached Page never resolves to bogus IDs.
func NewPage() *Page {
	return &Page{
		ID:        NoPageID,
		SectionID: NoSectionID,
		PrevID:    NoPageID,
		NextID:    NoPageID,
		Metadata:  map[string]any{},
		Params:    map[string]any{},
	}
}

// SortByDate sorts pages by Date. ascending=true puts older pages first.
func SortByDate(pages []*Page, ascending bool) {
	sort.SliceStable(pages, func(i, j int) bool {
		if ascending {
			return pages[i].Date.Before(pages[j].Date)
		}
		return pages[i].Date.After(pages[j].Date)
	})
}

// SortByWeight sorts pages by Weight ascending; Weight==0 (unset) sorts
// last, stable.
func SortByWeight(pages []*Page) {
	sort.SliceStable(pages, func(i, j int) bool {
		wi, wj := pages[i].Weight, pages[j].Weight
		if wi == 0 && wj == 0 {
			return false
		}
		if wi == 0 {
			return false
		}
		if wj == 0 {
			return true
		}
		return wi < wj
	})
}

// SortByTitle sorts pages alphabetically, case-insensitively.
func SortByTitle(pages []*Page) {
	sort.SliceStable(pages, func(i, j int) bool {
		return strings.ToLower(pages[i].Title) < strings.ToLower(pages[j].Title)
	})
}

// FilterDrafts returns pages excluding drafts.
func FilterDrafts(pages []*Page) []*Page {
	out := make([]*Page, 0, len(pages))
	for _, p := range pages {
		if !p.Draft {
			out = append(out, p)
		}
	}
	return out
}

// FilterFuture returns pages whose Date is not in the future.
func FilterFuture(pages []*Page) []*Page {
	now := time.Now()
	out := make([]*Page, 0, len(pages))
	for _, p := range pages {
		if !p.Date.After(now) {
			out = append(out, p)
		}
	}
	return out
}

// FilterExpired returns pages whose ExpiryDate is zero or in the future.
func FilterExpired(pages []*Page) []*Page {
	now := time.Now()
	out := make([]*Page, 0, len(pages))
	for _, p := range pages {
		if p.ExpiryDate.IsZero() || p.ExpiryDate.After(now) {
			out = append(out, p)
		}
	}
	return out
}
