package help

import (
	"bytes"
	"context"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/help"
)

func TestIndexRendersCurrentDocument(t *testing.T) {
	t.Parallel()

	lib, err := help.Load()
	require.NoError(t, err)
	doc, err := lib.Get("batch")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Index(PageData{Docs: lib.List(), Current: &doc, BaseURL: "/admin/help"}).Render(context.Background(), &buf))

	page, err := goquery.NewDocumentFromReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, "Batch processing | Bilibili Download Console", page.Find("title").Text())
	require.Equal(t, "page", page.Find(`[data-help-topic="batch"]`).AttrOr("aria-current", ""))
	require.Equal(t, "/admin/help/quotas", page.Find(`[data-help-topic="quotas"]`).AttrOr("href", ""))
	require.Equal(t, 1, page.Find("[data-help-body] h1").Length())
	require.Contains(t, page.Find("[data-help-body] code").First().Text(), "auto")
}
