package markdown

import (
	"bytes"
	"sort"
)

// byteRange is a half-open [Start, End) byte range, used to mark the
// extent of fenced code blocks in a source document so directive scanning
// can skip over them (spec §4.7 code-block region exclusion).
type byteRange struct {
	Start, End int
}

// fencedCodeRanges scans source for ``` and ~~~ fenced code blocks and
// returns their byte ranges in ascending order of Start, so membership can
// be tested with a binary search (O(log r) per check).
func fencedCodeRanges(source []byte) []byteRange {
	var ranges []byteRange
	lines := splitLinesKeepOffsets(source)

	var openFence []byte
	var openOffset int
	open := false

	for _, ln := range lines {
		trimmed := bytes.TrimLeft(ln.text, " \t")
		indent := len(ln.text) - len(trimmed)
		if indent > 3 {
			continue // indented code blocks are not directive-relevant here
		}
		isFenceLine := bytes.HasPrefix(trimmed, []byte("```")) || bytes.HasPrefix(trimmed, []byte("~~~"))

		if !open && isFenceLine {
			open = true
			openOffset = ln.offset
			if bytes.HasPrefix(trimmed, []byte("```")) {
				openFence = []byte("```")
			} else {
				openFence = []byte("~~~")
			}
			continue
		}
		if open && bytes.HasPrefix(trimmed, openFence) {
			ranges = append(ranges, byteRange{Start: openOffset, End: ln.offset + len(ln.text)})
			open = false
			openFence = nil
		}
	}
	if open {
		ranges = append(ranges, byteRange{Start: openOffset, End: len(source)})
	}

	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })
	return ranges
}

// inFencedRegion reports whether pos falls within any of ranges, using a
// binary search on Start since ranges is sorted and non-overlapping.
func inFencedRegion(ranges []byteRange, pos int) bool {
	i := sort.Search(len(ranges), func(i int) bool { return ranges[i].Start > pos })
	if i == 0 {
		return false
	}
	r := ranges[i-1]
	return pos >= r.Start && pos < r.End
}

type lineOffset struct {
	text   []byte
	offset int
}

// splitLinesKeepOffsets splits source into lines, retaining each line's
// starting byte offset (without the trailing newline).
func splitLinesKeepOffsets(source []byte) []lineOffset {
	var out []lineOffset
	offset := 0
	for offset <= len(source) {
		nl := bytes.IndexByte(source[offset:], '\n')
		if nl == -1 {
			if offset < len(source) {
				out = append(out, lineOffset{text: source[offset:], offset: offset})
			}
			break
		}
		out = append(out, lineOffset{text: source[offset : offset+nl], offset: offset})
		offset += nl + 1
	}
	return out
}
