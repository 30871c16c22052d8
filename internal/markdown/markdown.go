// Package markdown implements text-edit application and derived-content
// helpers for document bodies. The markdown source is the document's source
// of truth; everything else here is derived from it.
package markdown

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"scribe/api/internal/store"
)

const previewLength = 280

// Apply merges new text into the document. With append set the text is added
// after the existing body, otherwise it replaces the body. The document's
// plain-text preview is re-derived as a side effect.
func Apply(document store.Document, text string, append bool) store.Document {
	if append && document.Text != "" {
		document.Text = strings.TrimRight(document.Text, "\n") + "\n\n" + text
	} else {
		document.Text = text
	}
	document.Preview = Preview(document.Text)
	return document
}

var (
	reHeading   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reEmphasis  = regexp.MustCompile(`(\*\*|__|\*|_|~~)`)
	reLink      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	reCodeFence = regexp.MustCompile("(?s)```.*?```")
	reInline    = regexp.MustCompile("`([^`]*)`")
)

// Preview strips markdown syntax and collapses whitespace into a short
// plain-text summary.
func Preview(text string) string {
	out := reCodeFence.ReplaceAllString(text, " ")
	out = reHeading.ReplaceAllString(out, "")
	out = reLink.ReplaceAllString(out, "$1")
	out = reInline.ReplaceAllString(out, "$1")
	out = reEmphasis.ReplaceAllString(out, "")
	out = strings.Join(strings.Fields(out), " ")
	if len(out) > previewLength {
		end := previewLength
		for end > 0 && !utf8.RuneStart(out[end]) {
			end--
		}
		cut := out[:end]
		if idx := strings.LastIndex(cut, " "); idx > 0 {
			cut = cut[:idx]
		}
		out = cut + "…"
	}
	return out
}

// ToHTML renders a small, predictable subset of markdown: headings,
// paragraphs, unordered/ordered lists, fenced code blocks, blockquotes, and
// the inline marks handled by renderInline.
func ToHTML(text string) string {
	var out strings.Builder
	lines := strings.Split(text, "\n")

	var paragraph []string
	var listItems []string
	listTag := ""

	flushParagraph := func() {
		if len(paragraph) == 0 {
			return
		}
		out.WriteString("<p>" + renderInline(strings.Join(paragraph, " ")) + "</p>\n")
		paragraph = nil
	}
	flushList := func() {
		if listTag == "" {
			return
		}
		out.WriteString("<" + listTag + ">\n")
		for _, item := range listItems {
			out.WriteString("<li>" + renderInline(item) + "</li>\n")
		}
		out.WriteString("</" + listTag + ">\n")
		listItems = nil
		listTag = ""
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "```"):
			flushParagraph()
			flushList()
			var code []string
			for i++; i < len(lines); i++ {
				if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
					break
				}
				code = append(code, lines[i])
			}
			out.WriteString("<pre><code>" + html.EscapeString(strings.Join(code, "\n")) + "</code></pre>\n")
		case strings.HasPrefix(trimmed, "#"):
			flushParagraph()
			flushList()
			level := 0
			for level < len(trimmed) && trimmed[level] == '#' && level < 6 {
				level++
			}
			heading := strings.TrimSpace(trimmed[level:])
			out.WriteString(fmt.Sprintf("<h%d>%s</h%d>\n", level, renderInline(heading), level))
		case strings.HasPrefix(trimmed, "> "):
			flushParagraph()
			flushList()
			out.WriteString("<blockquote><p>" + renderInline(strings.TrimPrefix(trimmed, "> ")) + "</p></blockquote>\n")
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			flushParagraph()
			if listTag != "ul" {
				flushList()
				listTag = "ul"
			}
			listItems = append(listItems, trimmed[2:])
		case isOrderedItem(trimmed):
			flushParagraph()
			if listTag != "ol" {
				flushList()
				listTag = "ol"
			}
			listItems = append(listItems, trimmed[strings.Index(trimmed, " ")+1:])
		case trimmed == "":
			flushParagraph()
			flushList()
		default:
			flushList()
			paragraph = append(paragraph, trimmed)
		}
	}
	flushParagraph()
	flushList()
	return out.String()
}

func isOrderedItem(line string) bool {
	dot := strings.Index(line, ". ")
	if dot <= 0 {
		return false
	}
	for _, ch := range line[:dot] {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

var (
	reBold       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	reItalic     = regexp.MustCompile(`\*([^*]+)\*`)
	reStrike     = regexp.MustCompile(`~~([^~]+)~~`)
	reInlineCode = regexp.MustCompile("`([^`]+)`")
	reLinkHTML   = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
)

func renderInline(text string) string {
	out := html.EscapeString(text)
	out = reInlineCode.ReplaceAllString(out, "<code>$1</code>")
	out = reBold.ReplaceAllString(out, "<strong>$1</strong>")
	out = reItalic.ReplaceAllString(out, "<em>$1</em>")
	out = reStrike.ReplaceAllString(out, "<s>$1</s>")
	out = reLinkHTML.ReplaceAllString(out, `<a href="$2">$1</a>`)
	return out
}
