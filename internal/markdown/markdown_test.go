package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHTMLRendersMarkdown(t *testing.T) {
	out, err := ToHTML("# Fire drill\n\nMeet at **gate 3**.\n\n| a | b |\n|---|---|\n| 1 | 2 |")
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, `<h1 id="fire-drill">Fire drill</h1>`)
	assert.Contains(t, html, "<strong>gate 3</strong>")
	assert.Contains(t, html, "<table>")
}

func TestToHTMLHighlightsCode(t *testing.T) {
	out, err := ToHTML("```go\nfunc main() {}\n```")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<pre")
	assert.Contains(t, string(out), "style=")
}

func TestToHTMLEscapesRawHTML(t *testing.T) {
	out, err := ToHTML("hello <script>alert(1)</script>")
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(out), "<script>"))
}
