package wikitext

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Tags whose contents never show up in the rendered text.
var invisibleTags = []string{
	"ref", "references", "gallery", "math", "timeline", "imagemap",
	"score", "templatedata", "graph", "section", "categorytree",
}

var (
	reInvisible    []*regexp.Regexp
	reExternalLink = regexp.MustCompile(`\[(?:https?:|ftp:|//)[^\s\]]+(?:\s+([^\]]*))?\]`)
	reEmphasis     = regexp.MustCompile(`'{2,}`)
	reBlankLines   = regexp.MustCompile(`\n{3,}`)
)

func init() {
	for _, tag := range invisibleTags {
		reInvisible = append(reInvisible,
			regexp.MustCompile(`(?is)<`+tag+`\b[^>]*/>`),
			regexp.MustCompile(`(?is)<`+tag+`\b[^>]*>.*?</`+tag+`\s*>`),
		)
	}
}

// StripCode reduces markup to the text a reader would see: templates,
// comments and ref-like tags disappear, links become their label, bold and
// italic quotes and HTML tags are dropped, and character references are
// decoded.
func StripCode(markup string) string {
	s := stripComments(markup)
	for _, re := range reInvisible {
		s = re.ReplaceAllString(s, "")
	}
	s = stripTemplates(s)
	s = stripLinks(s)
	s = reExternalLink.ReplaceAllString(s, "$1")
	s = stripTags(s)
	s = reEmphasis.ReplaceAllString(s, "")
	return reBlankLines.ReplaceAllString(s, "\n\n")
}

func stripTemplates(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			break
		}
		end := matchPair(s, start, "{{", "}}")
		if end < 0 {
			break
		}
		b.WriteString(s[:start])
		s = s[end:]
	}
	b.WriteString(s)
	return b.String()
}

// stripLinks replaces [[target|label]] with label and [[target]] with target.
// Labels may themselves contain links, as image captions often do.
func stripLinks(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "[[")
		if start < 0 {
			break
		}
		end := matchPair(s, start, "[[", "]]")
		if end < 0 {
			break
		}
		b.WriteString(s[:start])
		inner := s[start+2 : end-2]
		if bar := indexTop(inner, '|'); bar >= 0 {
			b.WriteString(stripLinks(inner[bar+1:]))
		} else {
			b.WriteString(inner)
		}
		s = s[end:]
	}
	b.WriteString(s)
	return b.String()
}

// stripTags keeps only the text nodes of any inline HTML.
func stripTags(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}
