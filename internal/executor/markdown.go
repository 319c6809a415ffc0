package executor

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/agentmesh/x402-gateway/internal/parse"
)

// HTMLExecutor renders markdown to an HTML document. It is the one free
// skill and runs entirely in-process.
type HTMLExecutor struct{}

func (e *HTMLExecutor) Execute(_ context.Context, req parse.Request) (*Result, error) {
	body := RenderHTML(req.Content)
	doc := "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"></head>\n<body>\n" + body + "</body>\n</html>\n"
	return &Result{
		Data: map[string]any{"html": doc},
		Body: []byte(doc),
		Mime: "text/html",
	}, nil
}

var (
	boldRe   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe = regexp.MustCompile(`\*([^*]+)\*`)
	codeRe   = regexp.MustCompile("`([^`]+)`")
	linkRe   = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
)

// RenderHTML converts a small markdown subset (headings, emphasis, inline
// code, fenced code blocks, links, unordered lists, paragraphs) to HTML.
// Input is escaped before any markup is applied.
func RenderHTML(md string) string {
	var b strings.Builder
	lines := strings.Split(md, "\n")
	inCode := false
	inList := false

	closeList := func() {
		if inList {
			b.WriteString("</ul>\n")
			inList = false
		}
	}

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			closeList()
			if inCode {
				b.WriteString("</code></pre>\n")
			} else {
				b.WriteString("<pre><code>")
			}
			inCode = !inCode
			continue
		}
		if inCode {
			b.WriteString(html.EscapeString(line))
			b.WriteString("\n")
			continue
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			closeList()
		case strings.HasPrefix(trimmed, "#"):
			closeList()
			level := 0
			for level < len(trimmed) && trimmed[level] == '#' && level < 6 {
				level++
			}
			text := strings.TrimSpace(trimmed[level:])
			fmt.Fprintf(&b, "<h%d>%s</h%d>\n", level, inline(text), level)
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			if !inList {
				b.WriteString("<ul>\n")
				inList = true
			}
			fmt.Fprintf(&b, "<li>%s</li>\n", inline(trimmed[2:]))
		default:
			closeList()
			fmt.Fprintf(&b, "<p>%s</p>\n", inline(trimmed))
		}
	}
	closeList()
	if inCode {
		b.WriteString("</code></pre>\n")
	}
	return b.String()
}

func inline(text string) string {
	s := html.EscapeString(text)
	s = boldRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicRe.ReplaceAllString(s, "<em>$1</em>")
	s = codeRe.ReplaceAllString(s, "<code>$1</code>")
	s = linkRe.ReplaceAllString(s, `<a href="$2">$1</a>`)
	return s
}
