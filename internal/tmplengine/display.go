package tmplengine

import (
	"fmt"
	"time"
)

// toDisplayString renders a value the way templates print it by default,
// special-casing time.Time since its zero-value Stringer output ("0001-01-01
// 00:00:00 +0000 UTC") is never what a template author wants to see.
func toDisplayString(v any) string {
	switch tv := v.(type) {
	case time.Time:
		if tv.IsZero() {
			return ""
		}
		return tv.Format("2006-01-02")
	default:
		return fmt.Sprint(v)
	}
}
