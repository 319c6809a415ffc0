// Package parse turns free-form message text into a (skill, arguments)
// request using keyword and URL heuristics. The rule order is load-bearing:
// first match wins, and changing it changes observable routing.
package parse

import (
	"regexp"
	"strings"

	"github.com/agentmesh/x402-gateway/internal/catalog"
)

// Request is the parsed outcome: which skill to run and its arguments.
// Content carries the text payload for markdown and analysis skills; URL the
// target for screenshots.
type Request struct {
	SkillID string `json:"skillId"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

var (
	urlRe = regexp.MustCompile(`https?://[^\s<>"]+`)

	aiCues = []string{"analyze", "analysis", "summarize", "summary", "gemini", "ai "}

	// One pattern per cue, matched against the original text so the
	// reported byte offsets stay valid: lowering the text first shifts
	// offsets whenever a rune changes width under case mapping.
	aiCueRes = compileCues(aiCues)
)

func compileCues(cues []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(cues))
	for i, cue := range cues {
		res[i] = regexp.MustCompile("(?i)" + regexp.QuoteMeta(cue))
	}
	return res
}

// Parse classifies text. Rules, in order, first match wins:
//  1. an AI cue word routes to ai-analysis
//  2. "pdf" (when the text is not URL-led) routes to markdown-to-pdf
//  3. "html" (when the text is not URL-led) routes to markdown-to-html
//  4. an http(s) URL routes to screenshot
//  5. everything else renders as markdown-to-html
func Parse(text string) Request {
	lower := strings.ToLower(text)
	trimmed := strings.TrimSpace(lower)
	startsWithURL := strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://")

	for _, re := range aiCueRes {
		if loc := re.FindStringIndex(text); loc != nil {
			return Request{SkillID: catalog.SkillAIAnalysis, Content: afterCue(text, loc[1])}
		}
	}

	if strings.Contains(lower, "pdf") && !startsWithURL {
		return Request{SkillID: catalog.SkillMarkdownToPDF, Content: stripPreamble(text, "convert to pdf:")}
	}

	if strings.Contains(lower, "html") && !startsWithURL {
		return Request{SkillID: catalog.SkillMarkdownToHTML, Content: stripPreamble(text, "convert to html:")}
	}

	if url := urlRe.FindString(text); url != "" {
		return Request{SkillID: catalog.SkillScreenshot, URL: url}
	}

	return Request{SkillID: catalog.SkillMarkdownToHTML, Content: text}
}

// afterCue returns the text after the cue, skipping separator punctuation.
// When nothing usable follows the cue, the whole text is the content.
func afterCue(text string, end int) string {
	rest := strings.TrimLeft(text[end:], " \t:,-")
	if rest == "" {
		return text
	}
	return rest
}

// stripPreamble removes a leading "Convert to X:" instruction when present.
func stripPreamble(text, preamble string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(strings.ToLower(trimmed), preamble) {
		return strings.TrimSpace(trimmed[len(preamble):])
	}
	return trimmed
}
