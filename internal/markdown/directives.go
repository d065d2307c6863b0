package markdown

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// openerRe matches a directive opener: "::: name key=val key2="quoted"".
// The brace form "::: {name}" is also accepted.
var openerRe = regexp.MustCompile(`^:::\s*\{?([A-Za-z][\w-]*)\}?(.*)$`)

// closerRe matches a bare closer "::: " or a named closer "::: {/name}".
var closerRe = regexp.MustCompile(`^:::\s*(?:\{/([A-Za-z][\w-]*)\})?\s*$`)

// optionRe matches one key=value or key="quoted value" pair.
var optionRe = regexp.MustCompile(`([A-Za-z][\w-]*)=("(?:[^"\\]|\\.)*"|\S+)`)

// ContentKind describes what shape of content a directive accepts.
type ContentKind int

// Recognised content kinds.
const (
	ContentInline ContentKind = iota
	ContentBlock
	ContentRaw
)

// Contract declares a directive's accepted parents and child content shape
// (spec §4.7 "Contracts").
type Contract struct {
	Name            string
	AllowedParents  []string // empty means "any"
	Content         ContentKind
	RequiresOptions []string
}

// Directive is one matched `::: name ... :::` span.
type Directive struct {
	Name    string
	Options map[string]string
	Body    string
	Line    int
	Parent  string // enclosing directive name, "" at top level

	StartOffset int // byte offset of the opener line
	EndOffset   int // byte offset just past the closer line
}

// ContractError is a coded rendering/directive_contract_* violation with
// file+line, per spec §4.7.
type ContractError struct {
	Code    string
	Message string
	Line    int
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: line %d: %s", e.Code, e.Line, e.Message)
}

// ExtractDirectives scans source for fenced directives, skipping regions
// inside fenced code blocks, and returns the matched Directives (with
// their byte spans) and any contract errors; source is not modified, and
// WorkerParser.spliceDirectivePlaceholders replaces the spans. Unmatched
// openers produce a ContractError (rendering/directive_contract_unclosed).
func ExtractDirectives(source []byte, contracts map[string]Contract) ([]Directive, []error) {
	fenced := fencedCodeRanges(source)
	lines := splitLinesKeepOffsets(source)

	type openerEvt struct {
		name    string
		options string
		offset  int
		lineNum int
	}
	type closerEvt struct {
		name    string // "" for bare closer
		offset  int
		lineNum int
	}

	var openers []openerEvt
	var closers []closerEvt

	for i, ln := range lines {
		text := strings.TrimRight(string(ln.text), "\r")
		trimmed := strings.TrimSpace(text)
		if !strings.HasPrefix(trimmed, ":::") {
			continue
		}
		if inFencedRegion(fenced, ln.offset) {
			continue
		}
		if m := closerRe.FindStringSubmatch(trimmed); m != nil {
			closers = append(closers, closerEvt{name: m[1], offset: ln.offset, lineNum: i + 1})
			continue
		}
		if m := openerRe.FindStringSubmatch(trimmed); m != nil {
			openers = append(openers, openerEvt{name: m[1], options: strings.TrimSpace(m[2]), offset: ln.offset, lineNum: i + 1})
		}
	}

	sort.Slice(openers, func(i, j int) bool { return openers[i].offset < openers[j].offset })
	sort.Slice(closers, func(i, j int) bool { return closers[i].offset < closers[j].offset })

	// Per-name sorted offset lists, used by findMatchingCloser's two-iterator
	// heap-merge (spec §4.7 "Named-closer search").
	openersByName := map[string][]int{}
	closersByName := map[string][]int{}
	for _, o := range openers {
		openersByName[o.name] = append(openersByName[o.name], o.offset)
	}
	for _, c := range closers {
		if c.name != "" {
			closersByName[c.name] = append(closersByName[c.name], c.offset)
		}
	}

	var allClosersOffsets []int
	for _, c := range closers {
		allClosersOffsets = append(allClosersOffsets, c.offset)
	}
	sort.Ints(allClosersOffsets)

	var directives []Directive
	var errs []error

	type stackFrame struct {
		evt   openerEvt
		depth int
	}
	var stack []stackFrame

	closerIdx := 0
	openerIdx := 0
	for openerIdx < len(openers) || closerIdx < len(closers) {
		nextOpener := len(source) + 1
		if openerIdx < len(openers) {
			nextOpener = openers[openerIdx].offset
		}
		nextCloser := len(source) + 1
		if closerIdx < len(closers) {
			nextCloser = closers[closerIdx].offset
		}

		if nextOpener <= nextCloser && openerIdx < len(openers) {
			stack = append(stack, stackFrame{evt: openers[openerIdx], depth: len(stack)})
			openerIdx++
			continue
		}
		if closerIdx >= len(closers) {
			break
		}
		c := closers[closerIdx]
		closerIdx++

		if len(stack) == 0 {
			errs = append(errs, &ContractError{
				Code: "rendering/directive_contract_stray_closer", Line: c.lineNum,
				Message: "closer with no matching opener",
			})
			continue
		}

		top := stack[len(stack)-1]
		if c.name != "" && c.name != top.evt.name {
			// Named closer: confirm via the heap-merge search over this
			// name's opener/closer streams rather than trusting the naive
			// stack top, since an intervening same-named directive may be
			// the true match.
			if pos, ok := findMatchingCloser(openersByName[c.name], closersByName[c.name], top.evt.offset-1); !ok || pos != c.offset {
				errs = append(errs, &ContractError{
					Code: "rendering/directive_contract_closer_mismatch", Line: c.lineNum,
					Message: fmt.Sprintf("closer {/%s} does not match open directive %q", c.name, top.evt.name),
				})
				continue
			}
		}

		stack = stack[:len(stack)-1]
		parent := ""
		if len(stack) > 0 {
			parent = stack[len(stack)-1].evt.name
		}

		bodyStart := lineEndOffset(lines, top.evt.lineNum)
		body := ""
		if bodyStart >= 0 && c.offset > bodyStart {
			body = string(source[bodyStart:c.offset])
		}

		closerLineEnd := lineEndOffset(lines, c.lineNum)
		if closerLineEnd < 0 {
			closerLineEnd = len(source)
		}
		d := Directive{
			Name:        top.evt.name,
			Options:     parseOptions(top.evt.options),
			Body:        strings.TrimRight(body, "\n"),
			Line:        top.evt.lineNum,
			Parent:      parent,
			StartOffset: top.evt.offset,
			EndOffset:   closerLineEnd,
		}
		if contract, ok := contracts[d.Name]; ok {
			if err := checkContract(d, contract); err != nil {
				errs = append(errs, err)
			}
		}
		directives = append(directives, d)
	}

	for _, frame := range stack {
		errs = append(errs, &ContractError{
			Code: "rendering/directive_contract_unclosed", Line: frame.evt.lineNum,
			Message: fmt.Sprintf("directive %q was never closed", frame.evt.name),
		})
	}

	return directives, errs
}

// findMatchingCloser locates the closer position that balances the opener
// immediately following startOffset, by merging two pre-sorted position
// lists (openers and closers of the same directive name) and tracking
// nesting depth — a streaming heap-merge over two iterators rather than
// sorting the full combined event list (spec §4.7).
func findMatchingCloser(openers, closers []int, startOffset int) (int, bool) {
	oi := sort.SearchInts(openers, startOffset+1)
	ci := sort.SearchInts(closers, startOffset+1)
	depth := 1
	for {
		hasO := oi < len(openers)
		hasC := ci < len(closers)
		if !hasO && !hasC {
			return 0, false
		}
		if hasO && (!hasC || openers[oi] < closers[ci]) {
			depth++
			oi++
			continue
		}
		depth--
		pos := closers[ci]
		ci++
		if depth == 0 {
			return pos, true
		}
	}
}

func lineEndOffset(lines []lineOffset, lineNum int) int {
	if lineNum < 1 || lineNum > len(lines) {
		return -1
	}
	ln := lines[lineNum-1]
	return ln.offset + len(ln.text) + 1
}

func parseOptions(raw string) map[string]string {
	opts := map[string]string{}
	for _, m := range optionRe.FindAllStringSubmatch(raw, -1) {
		key, val := m[1], m[2]
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			if unquoted, err := strconv.Unquote(val); err == nil {
				val = unquoted
			}
		}
		opts[key] = val
	}
	return opts
}

func checkContract(d Directive, c Contract) error {
	if len(c.AllowedParents) > 0 {
		allowed := false
		for _, p := range c.AllowedParents {
			if p == d.Parent {
				allowed = true
				break
			}
		}
		if !allowed {
			return &ContractError{
				Code: "rendering/directive_contract_parent", Line: d.Line,
				Message: fmt.Sprintf("directive %q is not allowed inside %q", d.Name, d.Parent),
			}
		}
	}
	for _, req := range c.RequiresOptions {
		if _, ok := d.Options[req]; !ok {
			return &ContractError{
				Code: "rendering/directive_contract_missing_option", Line: d.Line,
				Message: fmt.Sprintf("directive %q is missing required option %q", d.Name, req),
			}
		}
	}
	return nil
}
