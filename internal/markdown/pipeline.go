// Package markdown implements the C7 Markdown Pipeline: goldmark-based
// rendering extended with fenced directives, syntax highlighting, and the
// ordered HTML post-processing pass described in spec §4.7.
package markdown

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
	"go.uber.org/zap"

	"github.com/bengal-ssg/bengal/internal/bengallog"
)

// Config controls pipeline construction, mirroring config.MarkdownSection
// and config.ThemeSection.Highlight.
type Config struct {
	SmartQuotes    bool
	Typographer    bool
	HighlightTheme string // chroma style name
	CSSClassStyle  string // "semantic" | "pygments"
	Contracts      map[string]Contract
}

// Pipeline owns the shared configuration and the generation counter used
// to invalidate per-worker parser caches when configuration changes
// (spec §4.7 "Parser cache").
type Pipeline struct {
	cfg Config

	generation    atomic.Uint64
	activeRenders atomic.Int64

	logger *zap.Logger
}

// New returns a Pipeline for cfg.
func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg, logger: bengallog.L()}
}

// Generation returns the current build generation.
func (p *Pipeline) Generation() uint64 { return p.generation.Load() }

// BumpGeneration invalidates every worker's cached parser. If renders are
// currently in flight, the invalidation still takes effect but is logged,
// per the "_active_render_count guards against invalidation while renders
// are in flight" contract — workers pick up the new generation on their
// next render rather than mid-render.
func (p *Pipeline) BumpGeneration() {
	if n := p.activeRenders.Load(); n > 0 {
		p.logger.Warn("markdown: parser cache invalidated while renders are active",
			zap.Int64("active_renders", n))
	}
	p.generation.Add(1)
}

// WorkerParser is a per-worker cached goldmark instance (spec: parsers are
// expensive to construct and are cached per-thread; Go's nearest analogue
// is "per-worker", since goroutines are not OS threads).
type WorkerParser struct {
	pipeline   *Pipeline
	generation uint64
	md         goldmark.Markdown
}

// AcquireParser returns a WorkerParser for the pipeline's current
// generation. Callers should retain one WorkerParser per worker for the
// build and call Stale() before reuse across builds.
func (p *Pipeline) AcquireParser() *WorkerParser {
	return &WorkerParser{
		pipeline:   p,
		generation: p.generation.Load(),
		md:         p.buildMarkdown(),
	}
}

// Stale reports whether the pipeline's configuration has changed since wp
// was built, requiring a fresh WorkerParser.
func (wp *WorkerParser) Stale() bool {
	return wp.generation != wp.pipeline.generation.Load()
}

func (p *Pipeline) buildMarkdown() goldmark.Markdown {
	exts := []goldmark.Extender{
		extension.GFM,
		extension.Footnote,
		highlighting.NewHighlighting(
			highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
		),
	}
	if p.cfg.Typographer {
		exts = append(exts, extension.Typographer)
	}
	return goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithAttribute(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)
}

// Result is the output of rendering one page's markdown source.
type Result struct {
	HTML string
	TOC  string
}

// Render converts raw Markdown source into a Result: extracts fenced
// directives, renders the remaining Markdown (and, recursively, each
// directive's block-kind body) through goldmark, splices the rendered
// directive HTML back in, and runs the ordered HTML post-processing pass.
// contractErrs collects any directive contract violations found; the page
// is still rendered best-effort even when contracts are violated.
func (wp *WorkerParser) Render(source []byte, opts PostprocessOptions) (Result, []error) {
	p := wp.pipeline
	p.activeRenders.Add(1)
	defer p.activeRenders.Add(-1)

	directives, errs := ExtractDirectives(source, p.cfg.Contracts)
	topLevel := make([]Directive, 0, len(directives))
	for _, d := range directives {
		if d.Parent == "" {
			topLevel = append(topLevel, d)
		}
	}
	sort.Slice(topLevel, func(i, j int) bool { return topLevel[i].StartOffset < topLevel[j].StartOffset })

	transformed, renderedDirectives := wp.spliceDirectivePlaceholders(source, topLevel)

	htmlOut, tocOut, err := wp.renderGoldmark(transformed)
	if err != nil {
		return Result{}, append(errs, err)
	}

	for token, rendered := range renderedDirectives {
		htmlOut = strings.Replace(htmlOut, token, rendered, 1)
	}

	final := Postprocess(htmlOut, opts)
	return Result{HTML: final, TOC: tocOut}, errs
}

// spliceDirectivePlaceholders replaces each top-level directive's source
// span with a unique placeholder paragraph, and pre-renders each
// directive's body (recursing for nested directives via ExtractDirectives)
// into a <div class="directive directive-{name}" data-...> wrapper keyed
// by that placeholder.
func (wp *WorkerParser) spliceDirectivePlaceholders(source []byte, topLevel []Directive) ([]byte, map[string]string) {
	if len(topLevel) == 0 {
		return source, nil
	}

	var out bytes.Buffer
	rendered := make(map[string]string, len(topLevel))
	last := 0
	for i, d := range topLevel {
		out.Write(source[last:d.StartOffset])
		token := fmt.Sprintf("\n\nBENGAL-DIRECTIVE-PLACEHOLDER-%d\n\n", i)
		out.WriteString(token)
		rendered[strings.TrimSpace(token)] = wp.renderDirectiveHTML(d)
		last = d.EndOffset
	}
	out.Write(source[last:])
	return out.Bytes(), rendered
}

func (wp *WorkerParser) renderDirectiveHTML(d Directive) string {
	var body string
	switch {
	case strings.Contains(d.Body, ":::"):
		// Nested directives in the body: recurse so they render too.
		nested, _ := ExtractDirectives([]byte(d.Body), wp.pipeline.cfg.Contracts)
		topNested := make([]Directive, 0, len(nested))
		for _, nd := range nested {
			if nd.Parent == "" {
				topNested = append(topNested, nd)
			}
		}
		transformed, renderedNested := wp.spliceDirectivePlaceholders([]byte(d.Body), topNested)
		inner, _, _ := wp.renderGoldmark(transformed)
		for token, r := range renderedNested {
			inner = strings.Replace(inner, token, r, 1)
		}
		body = inner
	default:
		inner, _, _ := wp.renderGoldmark([]byte(d.Body))
		body = inner
	}

	var attrs strings.Builder
	for k, v := range d.Options {
		fmt.Fprintf(&attrs, ` data-%s="%s"`, k, htmlAttrEscape(v))
	}
	return fmt.Sprintf(`<div class="directive directive-%s"%s>%s</div>`, d.Name, attrs.String(), body)
}

func htmlAttrEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}

func (wp *WorkerParser) renderGoldmark(source []byte) (htmlOut string, tocOut string, err error) {
	doc := wp.md.Parser().Parse(text.NewReader(source))

	tocTree, tocErr := toc.Inspect(doc, source)
	if tocErr == nil && tocTree != nil {
		if list := toc.RenderList(tocTree); list != nil {
			var tocBuf bytes.Buffer
			if err := wp.md.Renderer().Render(&tocBuf, source, list); err == nil {
				tocOut = tocBuf.String()
			}
		}
	}

	var buf bytes.Buffer
	if err := wp.md.Renderer().Render(&buf, source, doc); err != nil {
		return "", "", fmt.Errorf("markdown render: %w", err)
	}
	return buf.String(), tocOut, nil
}

// GenerateChromaCSS produces CSS for syntax-highlighted code blocks,
// returning separate light/dark stylesheets. The dark stylesheet has every
// .chroma selector prefixed with .dark so it can be scoped under a
// dark-mode class (spec §4.7 "Syntax highlighting").
func GenerateChromaCSS(lightStyle, darkStyle string) (lightCSS, darkCSS string, err error) {
	formatter := chromahtml.New(chromahtml.WithClasses(true))

	lightSty := styles.Get(lightStyle)
	var lightBuf bytes.Buffer
	if err := formatter.WriteCSS(&lightBuf, lightSty); err != nil {
		return "", "", fmt.Errorf("generate light CSS: %w", err)
	}

	darkSty := styles.Get(darkStyle)
	var darkBuf bytes.Buffer
	if err := formatter.WriteCSS(&darkBuf, darkSty); err != nil {
		return "", "", fmt.Errorf("generate dark CSS: %w", err)
	}
	dark := strings.ReplaceAll(darkBuf.String(), ".chroma", ".dark .chroma")

	return lightBuf.String(), dark, nil
}
