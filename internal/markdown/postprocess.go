package markdown

import (
	"regexp"
	"strings"
)

// templateSyntaxRe matches literal template delimiters left in rendered
// Markdown, which must be escaped so the template engine does not attempt
// to re-execute them (spec §4.7 step 1).
var (
	tmplOpenRe  = regexp.MustCompile(`\{%`)
	tmplCloseRe = regexp.MustCompile(`%\}`)
)

// mdLinkRe matches href="...foo.md" or href="...foo.md#anchor" so internal
// markdown cross-links normalize to clean URLs (step 2).
var mdLinkRe = regexp.MustCompile(`href="([^"]+?)\.md(#[^"]*)?"`)

// internalHrefRe matches href="/..." attributes not already baseurl-qualified
// (step 3).
var internalHrefRe = regexp.MustCompile(`href="(/[^"]*)"`)

// xrefRe matches [[page/path]] cross-reference syntax (step 4), gated on
// presence of "[[" before this regex runs at all.
var xrefRe = regexp.MustCompile(`\[\[([^\]]+)\]\]`)

// headingRe matches a whole <h2>..<h4> element for anchor injection (step 5).
var headingRe = regexp.MustCompile(`(?i)<(h[2-4])([^>]*)>(.*?)</h[2-4]>`)

// explicitAnchorRe extracts an explicit {#id} override from heading text.
var explicitAnchorRe = regexp.MustCompile(`\s*\{#([\w-]+)\}\s*$`)

// badgeMarkers maps an API-doc marker to its badge CSS class, applied only
// when PostprocessOptions.InjectBadges is set (step 6).
var badgeMarkers = map[string]string{
	"@async":       "badge-async",
	"@property":    "badge-property",
	"@classmethod": "badge-classmethod",
	"@staticmethod": "badge-staticmethod",
	"@deprecated":  "badge-deprecated",
}

// XRefIndex maps a cross-reference target ("page/path", no leading slash)
// to its resolved href, built once per build for O(1) lookups (spec §4.7
// step 4).
type XRefIndex map[string]string

// PostprocessOptions configures the ordered HTML transform pipeline.
type PostprocessOptions struct {
	BaseURL      string
	XRefs        XRefIndex
	InjectBadges bool // the orchestrator sets it for every single (regular) page; no page type is reserved for API documentation
}

// Postprocess runs the six ordered HTML transforms from spec §4.7 over a
// rendered page fragment and returns the transformed HTML.
func Postprocess(htmlFragment string, opts PostprocessOptions) string {
	out := escapeTemplateSyntax(htmlFragment)
	out = normalizeMarkdownLinks(out)
	if opts.BaseURL != "" {
		out = applyBaseURL(out, opts.BaseURL)
	}
	if strings.Contains(out, "[[") {
		out = substituteXRefs(out, opts.XRefs)
	}
	out = injectHeadingAnchors(out)
	if opts.InjectBadges {
		out = injectAPIBadges(out)
	}
	return out
}

func escapeTemplateSyntax(s string) string {
	s = tmplOpenRe.ReplaceAllString(s, "&#123;%")
	s = tmplCloseRe.ReplaceAllString(s, "%&#125;")
	return s
}

func normalizeMarkdownLinks(s string) string {
	return mdLinkRe.ReplaceAllString(s, `href="$1/$2"`)
}

func applyBaseURL(s, baseURL string) string {
	return internalHrefRe.ReplaceAllStringFunc(s, func(match string) string {
		if strings.Contains(match, baseURL) {
			return match // already applied
		}
		sub := internalHrefRe.FindStringSubmatch(match)
		return `href="` + baseURL + sub[1] + `"`
	})
}

// ExtractXRefTargets scans raw Markdown source for [[page/path]] references
// and returns the deduplicated target strings, for the build cache's
// per-page dependency tracking (spec §4.4 "Dependency sources": "all pages
// whose cross-reference target they resolve").
func ExtractXRefTargets(source string) []string {
	if !strings.Contains(source, "[[") {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, m := range xrefRe.FindAllStringSubmatch(source, -1) {
		target := strings.TrimSpace(m[1])
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, target)
	}
	return out
}

func substituteXRefs(s string, xrefs XRefIndex) string {
	segments := splitOnCodeRegions(s)
	var b strings.Builder
	for _, seg := range segments {
		if seg.isCode {
			b.WriteString(seg.text)
			continue
		}
		b.WriteString(xrefRe.ReplaceAllStringFunc(seg.text, func(match string) string {
			target := strings.TrimSpace(xrefRe.FindStringSubmatch(match)[1])
			if href, ok := xrefs[target]; ok {
				return `<a href="` + href + `">` + target + `</a>`
			}
			return match // unresolved xref left as-is
		}))
	}
	return b.String()
}

type textSegment struct {
	text   string
	isCode bool
}

// preOrCodeRe matches <pre>...</pre> and <code>...</code> blocks so xref
// substitution can skip their contents.
var preOrCodeRe = regexp.MustCompile(`(?is)<(pre|code)[^>]*>.*?</(pre|code)>`)

func splitOnCodeRegions(s string) []textSegment {
	var segments []textSegment
	matches := preOrCodeRe.FindAllStringIndex(s, -1)
	last := 0
	for _, m := range matches {
		if m[0] > last {
			segments = append(segments, textSegment{text: s[last:m[0]]})
		}
		segments = append(segments, textSegment{text: s[m[0]:m[1]], isCode: true})
		last = m[1]
	}
	if last < len(s) {
		segments = append(segments, textSegment{text: s[last:]})
	}
	return segments
}

func injectHeadingAnchors(s string) string {
	if strings.Contains(strings.ToLower(s), "<blockquote") {
		return injectHeadingAnchorsSlow(s)
	}
	return headingRe.ReplaceAllStringFunc(s, injectOneAnchor)
}

// injectHeadingAnchorsSlow walks the string once, skipping headings nested
// inside <blockquote> regions, rather than running the fast single regex
// pass that cannot tell blockquote context apart (spec §4.7 step 5).
func injectHeadingAnchorsSlow(s string) string {
	bqRanges := tagRanges(s, "blockquote")
	return replaceOutsideRanges(s, headingRe, bqRanges, injectOneAnchor)
}

func injectOneAnchor(match string) string {
	sub := headingRe.FindStringSubmatch(match)
	tag, attrs, text := sub[1], sub[2], sub[3]
	if strings.Contains(attrs, "id=") {
		return match
	}
	slug := text
	id := ""
	if m := explicitAnchorRe.FindStringSubmatch(text); m != nil {
		id = m[1]
		slug = explicitAnchorRe.ReplaceAllString(text, "")
	} else {
		id = slugifyHeading(stripTags(text))
	}
	return "<" + tag + attrs + ` id="` + id + `">` + slug + "</" + tag + ">"
}

var tagStripRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return tagStripRe.ReplaceAllString(s, "")
}

var headingSlugInvalidRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugifyHeading(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = headingSlugInvalidRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func tagRanges(s, tag string) []byteRange {
	openRe := regexp.MustCompile(`(?i)<` + tag + `[^>]*>`)
	closeRe := regexp.MustCompile(`(?i)</` + tag + `>`)
	var ranges []byteRange
	pos := 0
	for pos < len(s) {
		om := openRe.FindStringIndex(s[pos:])
		if om == nil {
			break
		}
		start := pos + om[0]
		cm := closeRe.FindStringIndex(s[start:])
		if cm == nil {
			break
		}
		end := start + cm[1]
		ranges = append(ranges, byteRange{Start: start, End: end})
		pos = end
	}
	return ranges
}

func replaceOutsideRanges(s string, re *regexp.Regexp, ranges []byteRange, fn func(string) string) string {
	var b strings.Builder
	last := 0
	for _, m := range re.FindAllStringIndex(s, -1) {
		b.WriteString(s[last:m[0]])
		if inFencedRegion(ranges, m[0]) {
			b.WriteString(s[m[0]:m[1]]) // inside blockquote: leave untouched
		} else {
			b.WriteString(fn(s[m[0]:m[1]]))
		}
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func injectAPIBadges(s string) string {
	for marker, class := range badgeMarkers {
		s = strings.ReplaceAll(s, marker, `<span class="`+class+`">`+strings.TrimPrefix(marker, "@")+`</span>`)
	}
	return s
}
