package tmplengine

import (
	"fmt"
	"html"
	"html/template"
	"reflect"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bengal-ssg/bengal/internal/markdown"
)

// legacyWarned tracks (templateName, alias) pairs already warned about, so a
// template hitting a deprecated alias in a loop logs once per process
// rather than once per call (spec §9 Open Question 1 resolution).
var legacyWarned sync.Map

func warnLegacyOnce(logger *zap.Logger, templateName, alias, replacement string) {
	key := templateName + "\x00" + alias
	if _, already := legacyWarned.LoadOrStore(key, true); already {
		return
	}
	if logger != nil {
		logger.Warn("deprecated template alias",
			zap.String("template", templateName),
			zap.String("alias", alias),
			zap.String("use_instead", replacement),
		)
	}
}

// FuncMap returns the sandboxed filters and globals available to every
// Bengal template (spec §4.6 "Sandboxed globals and filters"). Filters are
// purely functional; none mutate shared state.
func (e *Engine) FuncMap(templateName string, mdPipeline *markdown.Pipeline) template.FuncMap {
	href := func(path string) string {
		return applyBaseURL(e.baseURL, path)
	}

	fm := template.FuncMap{
		// Resilient attribute access.
		"attr": func(v any, path string) any { return LookupAttr(v, path) },

		// Core filters named in spec §4.6.
		"default": func(fallback, v any) any {
			if v == nil {
				return fallback
			}
			if s, ok := v.(string); ok && s == "" {
				return fallback
			}
			return v
		},
		"length": func(v any) int { return filterLength(v) },
		"sort":   func(key string, items any) any { return sortByKeyNilLast(items, key) },
		"date": func(layout string, v any) string {
			t, ok := toTime(v)
			if !ok {
				return ""
			}
			return t.Format(layout)
		},
		"slugify":  slugifyFilter,
		"truncate": truncateFilter,
		"markdown": func(s string) template.HTML {
			if mdPipeline == nil {
				return template.HTML(html.EscapeString(s))
			}
			wp := mdPipeline.AcquireParser()
			res, _ := wp.Render([]byte(s), markdown.PostprocessOptions{BaseURL: e.baseURL})
			return template.HTML(res.HTML)
		},
		"escape": func(v any) string { return html.EscapeString(AsString(v)) },

		// URL contract (spec §4.6 "URL helpers").
		"href": href,
		"partial": func(name string, ctx any) (template.HTML, error) {
			return e.ExecutePartial(name, ctx)
		},
		"url_for": func(identity string) string {
			if e.pageIndex == nil {
				return ""
			}
			return e.pageIndex[identity]
		},

		// Legacy aliases, retained but deprecated (spec §4.6 + §9 OQ1).
		"url": func(v any) string {
			warnLegacyOnce(e.logger, templateName, "url", "href or _path")
			return AsString(v)
		},
		"relative_url": func(path string) string {
			warnLegacyOnce(e.logger, templateName, "relative_url", "_path")
			return path
		},
		"site_path": func(path string) string {
			warnLegacyOnce(e.logger, templateName, "site_path", "_path")
			return path
		},
		"permalink": func(v any) string {
			warnLegacyOnce(e.logger, templateName, "permalink", "absolute_href")
			return AsString(v)
		},
	}
	return fm
}

func filterLength(v any) int {
	if s, ok := v.(string); ok {
		return len([]rune(s))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len()
	default:
		return 0
	}
}

func toTime(v any) (time.Time, bool) {
	switch tv := v.(type) {
	case time.Time:
		return tv, !tv.IsZero()
	default:
		return time.Time{}, false
	}
}

func slugifyFilter(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prevHyphen := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		case !prevHyphen && b.Len() > 0:
			b.WriteRune('-')
			prevHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

func truncateFilter(n int, s string) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// applyBaseURL implements the `href` filter contract: apply baseurl to a
// raw site-relative path, leaving already-absolute URLs untouched.
func applyBaseURL(baseURL, path string) string {
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
	return fmt.Sprintf("%s%s", base, path)
}
