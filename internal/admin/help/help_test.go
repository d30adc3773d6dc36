package help

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLoadBundledDocs(t *testing.T) {
	t.Parallel()

	lib, err := Load()
	require.NoError(t, err)

	docs := lib.List()
	require.GreaterOrEqual(t, len(docs), 3)
	require.Equal(t, "getting-started", docs[0].Slug)
	require.Equal(t, "Getting started", docs[0].Title)

	quotas, err := lib.Get("quotas")
	require.NoError(t, err)
	require.Contains(t, string(quotas.HTML), "<table>")
	require.Contains(t, string(quotas.HTML), "unlimited")

	_, err = lib.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadSanitisesMarkup(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"docs/b.md": {Data: []byte("---\ntitle: Second\norder: 2\n---\nplain **bold**\n")},
		"docs/a.md": {Data: []byte("---\ntitle: First\norder: 1\n---\n<script>alert(1)</script>\n\n[x](javascript:alert(1))\n")},
		"docs/c.md": {Data: []byte("no front matter\n")},
	}
	lib, err := LoadFS(fsys, "docs")
	require.NoError(t, err)

	docs := lib.List()
	require.Len(t, docs, 3)
	require.Equal(t, []string{"c", "a", "b"}, []string{docs[0].Slug, docs[1].Slug, docs[2].Slug})
	require.Equal(t, "c", docs[0].Title)

	first, err := lib.Get("a")
	require.NoError(t, err)
	require.False(t, strings.Contains(string(first.HTML), "<script"))
	require.False(t, strings.Contains(string(first.HTML), "javascript:"))

	second, err := lib.Get("b")
	require.NoError(t, err)
	require.Contains(t, string(second.HTML), "<strong>bold</strong>")
}

func TestLoadRejectsBrokenFrontMatter(t *testing.T) {
	t.Parallel()

	_, err := LoadFS(fstest.MapFS{"docs/x.md": {Data: []byte("---\ntitle: x\n")}}, "docs")
	require.Error(t, err)
}
