package ui

import (
	"context"
	"net/url"

	custommw "github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver/middleware"
)

func consolePath(ctx context.Context, suffix string) string {
	return custommw.PathFor(ctx, suffix)
}

// consolePathf joins escaped segments onto suffix, e.g. consolePathf(ctx, "/videos/library", id, "download-link").
func consolePathf(ctx context.Context, suffix string, segments ...string) string {
	out := consolePath(ctx, suffix)
	for _, seg := range segments {
		out += "/" + url.PathEscape(seg)
	}
	return out
}
