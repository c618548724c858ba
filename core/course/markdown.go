package course

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// RenderMarkdown converts note content to HTML. Raw HTML in the source is dropped.
func RenderMarkdown(src string) string {
	if src == "" {
		return ""
	}
	// parsers are not reusable
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.SkipHTML | html.HrefTargetBlank,
	})
	return string(markdown.ToHTML([]byte(src), p, renderer))
}
