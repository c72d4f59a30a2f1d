package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

var (
	mdConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	strictPolicy = bluemonday.StrictPolicy()
)

// Markdown converts an HTML document or fragment to Markdown.
func Markdown(src string) (string, error) {
	md, err := mdConverter.ConvertString(src)
	if err != nil {
		return "", fmt.Errorf("parser: markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// Digest renders a compact Markdown summary of markup, truncated to max
// runes. It falls back to the plain text when conversion fails.
func Digest(src string, max int) string {
	md, err := Markdown(src)
	if err != nil || md == "" {
		md = PlainText(src)
	}
	return truncate(md, max)
}

// PlainText strips all markup from user-entered text, leaving entities for
// characters that are unsafe inside HTML.
func PlainText(s string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(s))
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}
