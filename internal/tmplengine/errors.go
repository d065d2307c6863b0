package tmplengine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bengal-ssg/bengal/internal/bengalerr"
)

// execErrorRe extracts the line (and, when present, column) html/template
// embeds in its own error text, e.g.
// `template: post/single.html:14:9: executing "post/single.html" at ...`.
var execErrorRe = regexp.MustCompile(`template:\s*([^:]+):(\d+)(?::(\d+))?:\s*(.*)`)

// wrapExecError attaches template name and source line to a raw
// html/template execution error, per spec §4.6 "Line-aware errors": "When a
// runtime error occurs, the engine attaches template name and the line of
// the offending expression; errors carry a suggestion and, where possible,
// a short code sample fix."
func wrapExecError(templateName string, err error) *bengalerr.Error {
	if err == nil {
		return nil
	}
	m := execErrorRe.FindStringSubmatch(err.Error())
	if m == nil {
		return bengalerr.New(bengalerr.KindTemplate, "template/exec_failed", err.Error(),
			bengalerr.At(templateName, 0),
			bengalerr.Because(err),
		)
	}
	line, _ := strconv.Atoi(m[2])
	return bengalerr.New(bengalerr.KindTemplate, "template/exec_failed", m[4],
		bengalerr.At(m[1], line),
		bengalerr.Suggest(suggestionFor(m[4])),
		bengalerr.Because(err),
	)
}

// suggestionFor maps a few common html/template failure substrings to a
// short, actionable remediation hint. Anything unrecognised gets no
// suggestion rather than a misleading generic one.
func suggestionFor(msg string) string {
	switch {
	case containsAny(msg, "can't evaluate field", "is not a field"):
		return "check the field name, or use `attr . \"name\"` for dynamic frontmatter access"
	case containsAny(msg, "nil pointer evaluating"):
		return "the value may be unset; wrap with `default` or check truthiness with `if` first"
	case containsAny(msg, "wrong number of args"):
		return "check the function's argument order and count against its definition"
	default:
		return ""
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
