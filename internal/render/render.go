// Package render turns recognized text into HTML for the non-streaming API.
package render

import (
	"bytes"
	"strings"

	treeblood "github.com/wyatt915/goldmark-treeblood"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer converts Markdown with LaTeX math ($...$, $$...$$) to HTML + MathML.
// It is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// New returns a Renderer with GFM tables and MathML output.
func New() *Renderer {
	return &Renderer{md: goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			treeblood.MathML(),
		),
	)}
}

// HTML renders text for the given mode. Table output that is already HTML is
// passed through untouched; everything else is treated as Markdown. On a
// conversion error the text is returned escaped inside <pre>.
func (r *Renderer) HTML(mode, text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	if mode == "table" && strings.HasPrefix(trimmed, "<") {
		return trimmed
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "<pre>" + escape(text) + "</pre>"
	}
	return buf.String()
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&#34;", "'", "&#39;")

func escape(s string) string { return escaper.Replace(s) }
