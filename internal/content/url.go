package content

import "strings"

// ApplyBaseURL prepends baseURL to a site-root-absolute path, leaving
// already-absolute URLs (containing "://") untouched. This is the same
// contract the template engine's `href` filter applies to raw paths
// written in templates (spec §4.6 "URL helpers"); Site discovery uses it
// to populate every Page/Section/Asset's Href up front.
func ApplyBaseURL(baseURL, path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	if baseURL == "" {
		return path
	}
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// FinalizeURLs populates Href (and AbsoluteHref) for every Page, Section,
// and Asset in the arena from their Path, per the URL contract: Path never
// carries baseurl, Href always does. AbsoluteHref is the same value as
// Href since baseurl is expected to already be an absolute origin
// (scheme://host); a relative or empty baseurl yields a relative Href,
// matching the degraded-but-still-correct behaviour of the `href` filter.
func FinalizeURLs(site *Site, baseURL string) {
	for _, p := range site.Pages {
		p.Href = ApplyBaseURL(baseURL, p.Path)
		p.AbsoluteHref = p.Href
	}
	for _, sec := range site.Sections {
		sec.Href = ApplyBaseURL(baseURL, sec.Path)
	}
	for _, a := range site.Assets {
		a.Href = ApplyBaseURL(baseURL, a.Path)
	}
}
