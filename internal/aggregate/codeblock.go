package aggregate

import (
	"regexp"
	"sort"
	"strings"
)

var (
	fencedPattern = regexp.MustCompile("(?s)```([A-Za-z0-9_+#.-]*)[ \t]*\n?(.*?)```")
	inlinePattern = regexp.MustCompile("`([^`\n]+)`")
)

// ExtractCodeBlocks finds fenced and inline code regions in text, ordered
// by start offset. Fenced blocks take precedence: inline spans overlapping
// an already-matched fenced span are discarded. Deterministic for
// identical input.
func ExtractCodeBlocks(text string) []CodeBlock {
	var blocks []CodeBlock

	fenced := fencedPattern.FindAllStringSubmatchIndex(text, -1)
	for _, m := range fenced {
		lang := text[m[2]:m[3]]
		code := text[m[4]:m[5]]
		blocks = append(blocks, CodeBlock{
			Kind:     KindFenced,
			Language: lang,
			Code:     strings.TrimRight(code, "\n"),
			Start:    m[0],
			End:      m[1],
		})
	}

	inline := inlinePattern.FindAllStringSubmatchIndex(text, -1)
	for _, m := range inline {
		if overlapsAny(m[0], m[1], fenced) {
			continue
		}
		blocks = append(blocks, CodeBlock{
			Kind:  KindInline,
			Code:  text[m[2]:m[3]],
			Start: m[0],
			End:   m[1],
		})
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Start < blocks[j].Start
	})

	return blocks
}

// overlapsAny reports whether [start,end) intersects any matched span.
func overlapsAny(start, end int, spans [][]int) bool {
	for _, s := range spans {
		if start < s[1] && end > s[0] {
			return true
		}
	}
	return false
}

// fencedBlocks filters a block list down to fenced entries.
func fencedBlocks(blocks []CodeBlock) []CodeBlock {
	var out []CodeBlock
	for _, b := range blocks {
		if b.Kind == KindFenced {
			out = append(out, b)
		}
	}
	return out
}
