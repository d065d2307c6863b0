package tmplengine

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// LookupAttr resolves a dotted path (e.g. "cover.alt") against v, descending
// through maps, slices (numeric segments), struct fields, and pointers.
// Per spec §4.6 "Resilient attribute access", a missing key, an out-of-range
// index, or any attempt to dereference a nil value returns "" rather than
// panicking or erroring — templates never need defensive nil checks before
// reading frontmatter-derived data.
func LookupAttr(v any, path string) any {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			continue
		}
		cur = lookupOne(cur, seg)
		if cur == nil {
			return ""
		}
	}
	return cur
}

func lookupOne(v any, seg string) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		key := reflect.ValueOf(seg)
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		mv := rv.MapIndex(key.Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil
		}
		return mv.Interface()
	case reflect.Slice, reflect.Array:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= rv.Len() {
			return nil
		}
		return rv.Index(idx).Interface()
	case reflect.Struct:
		f := rv.FieldByName(exportedName(seg))
		if !f.IsValid() || !f.CanInterface() {
			return nil
		}
		return f.Interface()
	default:
		return nil
	}
}

// exportedName upper-cases the first rune so lowercase frontmatter-style
// path segments ("title") reach exported Go struct fields ("Title").
func exportedName(seg string) string {
	if seg == "" {
		return seg
	}
	r := []rune(seg)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] = r[0] - ('a' - 'A')
	}
	return string(r)
}

// AsString renders any attribute value the nil-safe way: nil becomes "",
// everything else uses its default string form. Truthiness tests (`if x`)
// on the original value remain correct because both nil and "" are falsy in
// html/template; AsString only governs display.
func AsString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return toDisplayString(v)
}

// sortByKeyNilLast sorts items (any slice type — []*PageContext, []any,
// etc.) by the named attribute, ascending, placing nil-valued keys last and
// never panicking on mixed-nil or heterogeneous input (spec §4.6 "Sort
// stability with nil"). The returned value has the same concrete slice type
// as items.
func sortByKeyNilLast(items any, key string) any {
	rv := reflect.ValueOf(items)
	if rv.Kind() != reflect.Slice {
		return items
	}
	out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	reflect.Copy(out, rv)

	sort.SliceStable(out.Interface(), func(i, j int) bool {
		vi := LookupAttr(out.Index(i).Interface(), key)
		vj := LookupAttr(out.Index(j).Interface(), key)
		si, iNil := isNilAttr(vi)
		sj, jNil := isNilAttr(vj)
		if iNil && jNil {
			return false
		}
		if iNil {
			return false
		}
		if jNil {
			return true
		}
		return less(si, sj)
	})
	return out.Interface()
}

func isNilAttr(v any) (string, bool) {
	if v == nil {
		return "", true
	}
	if s, ok := v.(string); ok && s == "" {
		return "", true
	}
	return toDisplayString(v), false
}

func less(a, b string) bool {
	af, aerr := strconv.ParseFloat(a, 64)
	bf, berr := strconv.ParseFloat(b, 64)
	if aerr == nil && berr == nil {
		return af < bf
	}
	return a < b
}
