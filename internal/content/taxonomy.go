package content

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// TermRecord is one entry of a taxonomy's forward index: a term, its slug,
// and the set of page identities carrying it (spec §3 Taxonomy).
type TermRecord struct {
	Term      string
	Slug      string
	PagePaths map[string]bool // keyed by Page.SourcePath (page identity)
	PageCount int
}

// TaxonomySet holds the two-layer forward/reverse index described in spec
// §3: Forward maps taxonomy name -> term slug -> TermRecord; Reverse maps
// page identity -> taxonomy name -> sorted term slugs. The two must always
// agree; VerifySync checks this on load (spec §8 invariant 3).
type TaxonomySet struct {
	Forward map[string]map[string]*TermRecord
	Reverse map[string]map[string][]string
}

// NewTaxonomySet returns an empty TaxonomySet.
func NewTaxonomySet() *TaxonomySet {
	return &TaxonomySet{
		Forward: make(map[string]map[string]*TermRecord),
		Reverse: make(map[string]map[string][]string),
	}
}

// BuildTaxonomies derives forward and reverse indexes from pages for the
// named taxonomies. "tags" reads Page.Tags; any other configured taxonomy
// name is read from Page.Params[name] (a []string or []any of strings).
func BuildTaxonomies(pages []*Page, taxonomyNames []string) *TaxonomySet {
	ts := NewTaxonomySet()
	for _, name := range taxonomyNames {
		ts.Forward[name] = make(map[string]*TermRecord)
	}

	for _, p := range pages {
		if p.Virtual {
			continue
		}
		identity := p.SourcePath
		for _, name := range taxonomyNames {
			terms := termsForPage(p, name)
			if len(terms) == 0 {
				continue
			}

			slugs := make([]string, 0, len(terms))
			for _, term := range terms {
				term = strings.TrimSpace(term)
				if term == "" {
					continue
				}
				slug := slugify(term)
				if slug == "" {
					continue
				}
				rec, ok := ts.Forward[name][slug]
				if !ok {
					rec = &TermRecord{Term: term, Slug: slug, PagePaths: map[string]bool{}}
					ts.Forward[name][slug] = rec
				}
				if !rec.PagePaths[identity] {
					rec.PagePaths[identity] = true
					rec.PageCount++
				}
				slugs = append(slugs, slug)
			}
			if len(slugs) == 0 {
				continue
			}
			sort.Strings(slugs)
			if ts.Reverse[identity] == nil {
				ts.Reverse[identity] = make(map[string][]string)
			}
			ts.Reverse[identity][name] = slugs
		}
	}

	return ts
}

// termsForPage extracts the raw (unslugified) term strings for a page and
// taxonomy name.
func termsForPage(p *Page, name string) []string {
	if name == "tags" {
		return p.Tags
	}
	v, ok := p.Params[name]
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{vv}
	default:
		return nil
	}
}

// VerifySync checks invariant 3 from spec §8: for every (term, page) pair in
// Forward, the page's Reverse entry must contain that term, and vice versa.
// A mismatch means the index is corrupt (e.g. a partially written cache
// file) and must be discarded and rebuilt rather than trusted.
func (ts *TaxonomySet) VerifySync() error {
	for taxName, terms := range ts.Forward {
		for slug, rec := range terms {
			for identity := range rec.PagePaths {
				slugs := ts.Reverse[identity][taxName]
				if !containsString(slugs, slug) {
					return fmt.Errorf("taxonomy: forward entry %s/%s references %s, missing from reverse index", taxName, slug, identity)
				}
			}
		}
	}
	for identity, byTax := range ts.Reverse {
		for taxName, slugs := range byTax {
			for _, slug := range slugs {
				rec, ok := ts.Forward[taxName][slug]
				if !ok || !rec.PagePaths[identity] {
					return fmt.Errorf("taxonomy: reverse entry %s/%s references %s, missing from forward index", identity, taxName, slug)
				}
			}
		}
	}
	return nil
}

func containsString(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}

// GenerateTaxonomyPages synthesizes the per-term and overview taxonomy
// pages described in spec §4 (phase: taxonomy). Synthesized pages carry
// Generated = true. termPages supplies each term's member pages, already
// resolved from the Site arena and sorted by date, so callers can paginate
// them (C5 pagination) before handing them to the template engine.
func GenerateTaxonomyPages(ts *TaxonomySet, termPages func(taxName, slug string) []*Page) []*Page {
	var pages []*Page

	taxNames := make([]string, 0, len(ts.Forward))
	for name := range ts.Forward {
		taxNames = append(taxNames, name)
	}
	sort.Strings(taxNames)

	for _, name := range taxNames {
		terms := ts.Forward[name]

		listPage := NewPage()
		listPage.Title = capitalizeFirst(name)
		listPage.Path = fmt.Sprintf("/%s/", name)
		listPage.Type = PageTypeTaxonomyList
		listPage.Virtual = true
		listPage.Generated = true
		listPage.Metadata["_generated"] = true
		pages = append(pages, listPage)

		slugs := make([]string, 0, len(terms))
		for slug := range terms {
			slugs = append(slugs, slug)
		}
		sort.Strings(slugs)

		for _, slug := range slugs {
			rec := terms[slug]
			termPage := NewPage()
			termPage.Title = rec.Term
			termPage.Path = fmt.Sprintf("/%s/%s/", name, slug)
			termPage.Type = PageTypeTaxonomy
			termPage.Virtual = true
			termPage.Generated = true
			termPage.Metadata["_generated"] = true
			termPage.Params["term"] = rec.Term
			termPage.Params["taxonomy"] = name
			termPage.Params["count"] = rec.PageCount
			if termPages != nil {
				termPage.Params["pages"] = termPages(name, slug)
			}
			pages = append(pages, termPage)
		}
	}

	return pages
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return titleCaser.String(strings.ReplaceAll(s, "-", " "))
}
