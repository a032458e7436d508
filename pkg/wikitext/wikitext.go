// Package wikitext pulls templates and plain text out of MediaWiki markup.
//
// It understands enough of the grammar to read infoboxes: templates with
// nested templates and links in their arguments, comments, ref tags, and the
// inline formatting that shows up in parameter values. It is not a renderer.
package wikitext

import (
	"strconv"
	"strings"
)

// InfoboxPrefix starts the name of every infobox template.
const InfoboxPrefix = "Infobox"

// Param is one argument of a template. Positional arguments are named by
// their 1-based position, as MediaWiki does.
type Param struct {
	Name  string
	Value string
}

// Template is a parsed {{...}} transclusion. Name and Value keep their raw
// markup; pass them through StripCode for display text.
type Template struct {
	Name   string
	Params []Param
}

// Get returns the raw value of the named parameter.
func (t Template) Get(name string) (string, bool) {
	for _, p := range t.Params {
		if strings.TrimSpace(p.Name) == name {
			return p.Value, true
		}
	}
	return "", false
}

// Parse returns every template in markup, including templates nested inside
// other templates' arguments. A template comes before the templates nested
// in it, and siblings keep document order.
func Parse(markup string) []Template {
	var out []Template
	collect(stripComments(markup), &out)
	return out
}

func collect(s string, out *[]Template) {
	i := 0
	for i < len(s) {
		j := strings.Index(s[i:], "{{")
		if j < 0 {
			return
		}
		start := i + j
		end := matchPair(s, start, "{{", "}}")
		if end < 0 {
			// Unbalanced braces: skip the opener and keep scanning.
			i = start + 2
			continue
		}
		inner := s[start+2 : end-2]
		*out = append(*out, parseTemplate(inner))
		collect(inner, out)
		i = end
	}
}

func parseTemplate(inner string) Template {
	parts := splitTop(inner, '|')
	t := Template{Name: strings.TrimSpace(parts[0])}
	positional := 0
	for _, part := range parts[1:] {
		if eq := indexTop(part, '='); eq >= 0 {
			t.Params = append(t.Params, Param{Name: part[:eq], Value: part[eq+1:]})
			continue
		}
		positional++
		t.Params = append(t.Params, Param{Name: strconv.Itoa(positional), Value: part})
	}
	return t
}

// matchPair returns the index just past the closer that balances the opener
// at s[start:], or -1 if the markup ends first.
func matchPair(s string, start int, open, close string) int {
	depth := 0
	for i := start; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], open):
			depth++
			i += len(open)
		case strings.HasPrefix(s[i:], close):
			depth--
			i += len(close)
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return -1
}

// splitTop splits s on sep wherever sep is not inside a nested template or
// link.
func splitTop(s string, sep byte) []string {
	var parts []string
	last := 0
	walkTop(s, func(i int) bool {
		if s[i] == sep {
			parts = append(parts, s[last:i])
			last = i + 1
		}
		return true
	})
	return append(parts, s[last:])
}

// indexTop is strings.IndexByte restricted to the top nesting level.
func indexTop(s string, c byte) int {
	found := -1
	walkTop(s, func(i int) bool {
		if s[i] == c {
			found = i
			return false
		}
		return true
	})
	return found
}

// walkTop calls fn with the index of every byte of s that sits outside
// {{...}} and [[...]]. fn returns false to stop the walk.
func walkTop(s string, fn func(i int) bool) {
	braces, brackets := 0, 0
	for i := 0; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "{{"):
			braces++
			i++
			continue
		case strings.HasPrefix(s[i:], "}}") && braces > 0:
			braces--
			i++
			continue
		case strings.HasPrefix(s[i:], "[["):
			brackets++
			i++
			continue
		case strings.HasPrefix(s[i:], "]]") && brackets > 0:
			brackets--
			i++
			continue
		}
		if braces == 0 && brackets == 0 && !fn(i) {
			return
		}
	}
}

func stripComments(s string) string {
	for {
		start := strings.Index(s, "<!--")
		if start < 0 {
			return s
		}
		end := strings.Index(s[start+4:], "-->")
		if end < 0 {
			// An unterminated comment runs to the end of the page.
			return s[:start]
		}
		s = s[:start] + s[start+4+end+3:]
	}
}

// Infobox returns the parameters of the last template in markup whose name
// starts with "Infobox", mapping each trimmed parameter name to its value as
// plain text. Parameters that are empty once stripped are left out. Markup
// without an infobox yields an empty map.
func Infobox(markup string) map[string]string {
	infobox := map[string]string{}
	for _, t := range Parse(markup) {
		if !strings.HasPrefix(strings.TrimSpace(StripCode(t.Name)), InfoboxPrefix) {
			continue
		}
		box := make(map[string]string, len(t.Params))
		for _, p := range t.Params {
			value := strings.TrimSpace(StripCode(p.Value))
			if value == "" {
				continue
			}
			box[strings.TrimSpace(p.Name)] = value
		}
		infobox = box
	}
	return infobox
}
