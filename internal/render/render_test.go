package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookHTML(t *testing.T) {
	t.Parallel()

	md := "# My Book\n\n## <a id=\"ch1\"></a>1. Intro\n\nSome **prose**.\n"
	doc, err := BookHTML("My Book", md)
	require.NoError(t, err)

	html := string(doc)
	assert.Contains(t, html, "<title>My Book</title>")
	assert.Contains(t, html, `<a id="ch1"></a>`)
	assert.Contains(t, html, "<strong>prose</strong>")
}

func TestBookHTML_TitleEscaped(t *testing.T) {
	t.Parallel()

	doc, err := BookHTML(`Tips & <Tricks>`, "# x\n")
	require.NoError(t, err)
	assert.Contains(t, string(doc), "<title>Tips &amp; &lt;Tricks&gt;</title>")
}

func TestWriteBook(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	mdPath, err := WriteBook(dir, "T", "# T\n\nbody\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "book.md"), mdPath)

	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# T")

	html, err := os.ReadFile(filepath.Join(dir, "book.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<!DOCTYPE html>")
}
