// Package render turns the assembled book markdown into on-disk artifacts.
package render

import (
	"fmt"
	stdhtml "html"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	ghtml "github.com/yuin/goldmark/renderer/html"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(ghtml.WithUnsafe()),
)

const htmlShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { max-width: 46rem; margin: 2rem auto; padding: 0 1rem; font-family: Georgia, serif; line-height: 1.6; }
h1, h2 { font-family: Helvetica, Arial, sans-serif; }
blockquote { color: #666; border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; }
</style>
</head>
<body>
%s</body>
</html>
`

// BookHTML converts the book markdown into a standalone HTML document.
// The markdown contains raw anchor tags for chapter links, so unsafe
// rendering is required.
func BookHTML(title, markdown string) ([]byte, error) {
	var body strings.Builder
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return nil, eris.Wrap(err, "render: converting markdown")
	}
	return []byte(fmt.Sprintf(htmlShell, stdhtml.EscapeString(title), body.String())), nil
}

// WriteBook writes book.md and book.html into dir, creating it if needed,
// and returns the markdown path.
func WriteBook(dir, title, markdown string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "render: creating %s", dir)
	}

	mdPath := filepath.Join(dir, "book.md")
	if err := os.WriteFile(mdPath, []byte(markdown), 0o644); err != nil {
		return "", eris.Wrapf(err, "render: writing %s", mdPath)
	}

	doc, err := BookHTML(title, markdown)
	if err != nil {
		return "", err
	}
	htmlPath := filepath.Join(dir, "book.html")
	if err := os.WriteFile(htmlPath, doc, 0o644); err != nil {
		return "", eris.Wrapf(err, "render: writing %s", htmlPath)
	}
	return mdPath, nil
}
