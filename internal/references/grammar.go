package references

import (
	"regexp"
	"sort"
	"strings"

	"imagenamer/internal/errors"
	"imagenamer/pkg/types"
)

// grammar describes one reference syntax. Go's RE2 has no lookbehind, so
// the "not preceded by !" rule of links lives in notAfterBang.
type grammar struct {
	kind         types.RefType
	re           *regexp.Regexp
	notAfterBang bool
}

var grammars = []grammar{
	{kind: types.RefImage, re: regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)},
	{kind: types.RefLink, re: regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`), notAfterBang: true},
	{kind: types.RefWikiEmbed, re: regexp.MustCompile(`!\[\[([^\]|]+)(?:\|([^\]]+))?\]\]`)},
	{kind: types.RefWikiLink, re: regexp.MustCompile(`\[\[([^\]|]+)(?:\|([^\]]+))?\]\]`), notAfterBang: true},
}

var titleRe = regexp.MustCompile(`^(\S+)(\s+(?:"[^"]*"|'[^']*')\s*)$`)

func grammarFor(kind types.RefType) (grammar, bool) {
	for _, g := range grammars {
		if g.kind == kind {
			return g, true
		}
	}
	return grammar{}, false
}

// span is one syntactic match inside a line.
type span struct {
	start, end int
	kind       types.RefType
	text       string
	capture    types.Capture
}

// findAll returns every match of g in line. A match rejected by the bang
// rule resumes the search one byte later, so an inner match is still found.
func (g grammar) findAll(line string) []span {
	var out []span
	for off := 0; off < len(line); {
		loc := g.re.FindStringSubmatchIndex(line[off:])
		if loc == nil {
			break
		}
		start, end := off+loc[0], off+loc[1]
		if g.notAfterBang && start > 0 && line[start-1] == '!' {
			off = start + 1
			continue
		}
		out = append(out, span{
			start:   start,
			end:     end,
			kind:    g.kind,
			text:    line[start:end],
			capture: g.capture(line, off, loc),
		})
		off = end
	}
	return out
}

func (g grammar) capture(line string, off int, loc []int) types.Capture {
	group := func(i int) (string, bool) {
		if loc[2*i] < 0 {
			return "", false
		}
		return line[off+loc[2*i] : off+loc[2*i+1]], true
	}
	if g.kind.IsWiki() {
		target, _ := group(1)
		alias, ok := group(2)
		return types.WikiCapture{Target: target, Alias: alias, HasAlias: ok}
	}
	text, _ := group(1)
	inner, _ := group(2)
	return splitTarget(text, inner)
}

// splitTarget separates the destination of a standard reference from an
// optional title. The split is lossless: rendering the capture reproduces
// inner exactly.
func splitTarget(text, inner string) types.StandardCapture {
	c := types.StandardCapture{Text: text, Target: inner}
	if strings.HasPrefix(inner, "<") {
		if i := strings.IndexByte(inner, '>'); i > 0 {
			c.Target = inner[1:i]
			c.Title = inner[i+1:]
			c.Angle = true
			return c
		}
	}
	if m := titleRe.FindStringSubmatch(inner); m != nil {
		c.Target = m[1]
		c.Title = m[2]
	}
	return c
}

// scanLine returns the non-overlapping matches of all grammars in line,
// ordered by column. When spans overlap, the earlier grammar wins.
func scanLine(line string) []span {
	var kept []span
	for _, g := range grammars {
		for _, s := range g.findAll(line) {
			if !overlapsAny(s, kept) {
				kept = append(kept, s)
			}
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].start < kept[j].start })
	return kept
}

func overlapsAny(s span, kept []span) bool {
	for _, k := range kept {
		if s.start < k.end && k.start < s.end {
			return true
		}
	}
	return false
}

// ParseReference parses text as a reference of the given kind. The whole
// text must be a single match.
func ParseReference(kind types.RefType, text string) (types.Capture, error) {
	g, ok := grammarFor(kind)
	if !ok {
		return nil, errors.Newf("unknown reference type %q", kind)
	}
	loc := g.re.FindStringSubmatchIndex(text)
	if loc == nil || loc[0] != 0 || loc[1] != len(text) {
		return nil, errors.Newf("%q is not a %s reference", text, kind)
	}
	return g.capture(text, 0, loc), nil
}

// Render writes a capture back in the syntax of kind.
func Render(kind types.RefType, c types.Capture) (string, error) {
	switch c := c.(type) {
	case types.StandardCapture:
		target := c.Target
		if c.Angle {
			target = "<" + target + ">"
		}
		switch kind {
		case types.RefImage:
			return "![" + c.Text + "](" + target + c.Title + ")", nil
		case types.RefLink:
			return "[" + c.Text + "](" + target + c.Title + ")", nil
		}
	case types.WikiCapture:
		alias := ""
		if c.HasAlias {
			alias = "|" + c.Alias
		}
		switch kind {
		case types.RefWikiEmbed:
			return "![[" + c.Target + alias + "]]", nil
		case types.RefWikiLink:
			return "[[" + c.Target + alias + "]]", nil
		}
	}
	return "", errors.Newf("capture %T does not fit a %s reference", c, kind)
}
