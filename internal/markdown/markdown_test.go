package markdown

import (
	"strings"
	"testing"
	"unicode/utf8"

	"scribe/api/internal/store"
)

func TestApplyReplace(t *testing.T) {
	doc := store.Document{Text: "old body", Preview: "old body"}
	doc = Apply(doc, "# Title\n\nnew body", false)
	if doc.Text != "# Title\n\nnew body" {
		t.Fatalf("unexpected text %q", doc.Text)
	}
	if doc.Preview != "Title new body" {
		t.Fatalf("unexpected preview %q", doc.Preview)
	}
}

func TestApplyAppend(t *testing.T) {
	doc := store.Document{Text: "first\n"}
	doc = Apply(doc, "second", true)
	if doc.Text != "first\n\nsecond" {
		t.Fatalf("unexpected text %q", doc.Text)
	}
	if !strings.Contains(doc.Preview, "first") || !strings.Contains(doc.Preview, "second") {
		t.Fatalf("preview should cover both parts, got %q", doc.Preview)
	}
}

func TestApplyAppendToEmptyBody(t *testing.T) {
	doc := Apply(store.Document{}, "only", true)
	if doc.Text != "only" {
		t.Fatalf("unexpected text %q", doc.Text)
	}
}

func TestPreviewStripsSyntax(t *testing.T) {
	md := "## Heading\n\nSome **bold** and `code` and [a link](https://example.com).\n\n```\nignored block\n```"
	got := Preview(md)
	want := "Heading Some bold and code and a link."
	if got != want {
		t.Fatalf("Preview = %q, want %q", got, want)
	}
}

func TestPreviewTruncates(t *testing.T) {
	long := strings.Repeat("word ", 200)
	got := Preview(long)
	if len(got) > 300 {
		t.Fatalf("preview too long: %d chars", len(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}

func TestPreviewTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("文書", 200)
	got := Preview(long)
	if !utf8.ValidString(got) {
		t.Fatalf("preview contains invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}

func TestToHTMLBlocks(t *testing.T) {
	md := "# Title\n\nA paragraph with **bold**.\n\n- one\n- two\n\n1. first\n2. second\n\n> quoted\n\n```\ncode <here>\n```"
	html := ToHTML(md)

	for _, want := range []string{
		"<h1>Title</h1>",
		"<p>A paragraph with <strong>bold</strong>.</p>",
		"<ul>\n<li>one</li>\n<li>two</li>\n</ul>",
		"<ol>\n<li>first</li>\n<li>second</li>\n</ol>",
		"<blockquote><p>quoted</p></blockquote>",
		"<pre><code>code &lt;here&gt;</code></pre>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("ToHTML missing %q in:\n%s", want, html)
		}
	}
}

func TestToHTMLEscapesText(t *testing.T) {
	html := ToHTML("a <script> tag")
	if strings.Contains(html, "<script>") {
		t.Fatalf("unescaped html in output: %s", html)
	}
}

func TestToHTMLInlineMarks(t *testing.T) {
	html := ToHTML("try `x > 1` and [docs](https://docs.example.com) and ~~gone~~")
	for _, want := range []string{
		"<code>x &gt; 1</code>",
		`<a href="https://docs.example.com">docs</a>`,
		"<s>gone</s>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("ToHTML missing %q in:\n%s", want, html)
		}
	}
}
