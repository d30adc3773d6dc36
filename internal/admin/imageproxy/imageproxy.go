// Package imageproxy serves Bilibili thumbnails through the console so browsers never
// hotlink hdslb.com directly.
package imageproxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// Referer is sent upstream; hdslb.com rejects requests without a bilibili.com referer.
	Referer   = "https://www.bilibili.com/"
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/85.0.4183.102 Safari/537.36"
)

// Route maps a local prefix onto an image host.
type Route struct {
	Prefix string
	Host   string
}

// Routes lists the proxied image hosts. Longer prefixes come first so matching is unambiguous.
var Routes = []Route{
	{Prefix: "/bilibili-img1", Host: "i1.hdslb.com"},
	{Prefix: "/bilibili-img2", Host: "i2.hdslb.com"},
	{Prefix: "/bilibili-img", Host: "i0.hdslb.com"},
}

// Rewrite turns an hdslb.com image URL into its proxied path. Other URLs are returned unchanged.
func Rewrite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return raw
	}
	for _, route := range Routes {
		if strings.EqualFold(u.Host, route.Host) {
			out := route.Prefix + u.EscapedPath()
			if u.RawQuery != "" {
				out += "?" + u.RawQuery
			}
			return out
		}
	}
	return raw
}

// Options tunes the proxy handler.
type Options struct {
	Transport http.RoundTripper
	Logger    *zap.Logger
	// Scheme used upstream, "https" unless overridden in tests.
	Scheme string
	// Hosts overrides the upstream host per prefix, for tests.
	Hosts map[string]string
}

// Handler proxies GET and HEAD requests under every route prefix.
type Handler struct {
	proxies map[string]*httputil.ReverseProxy
}

// NewHandler builds the proxy.
func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Scheme == "" {
		opts.Scheme = "https"
	}
	if opts.Transport == nil {
		opts.Transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConnsPerHost:   8,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
		}
	}
	h := &Handler{proxies: make(map[string]*httputil.ReverseProxy, len(Routes))}
	for _, route := range Routes {
		host := route.Host
		if override, ok := opts.Hosts[route.Prefix]; ok {
			host = override
		}
		h.proxies[route.Prefix] = newProxy(route.Prefix, opts.Scheme, host, opts)
	}
	return h
}

func newProxy(prefix, scheme, host string, opts Options) *httputil.ReverseProxy {
	logger := opts.Logger.With(zap.String("upstream", host))
	return &httputil.ReverseProxy{
		Transport: opts.Transport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = scheme
			pr.Out.URL.Host = host
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, prefix)
			pr.Out.URL.RawPath = ""
			pr.Out.Host = host
			pr.Out.Header.Set("Referer", Referer)
			pr.Out.Header.Set("User-Agent", UserAgent)
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del("Authorization")
		},
		ModifyResponse: func(resp *http.Response) error {
			resp.Header.Del("Set-Cookie")
			if resp.StatusCode == http.StatusOK && resp.Header.Get("Cache-Control") == "" {
				resp.Header.Set("Cache-Control", "public, max-age=86400")
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("image proxy failed", zap.String("path", r.URL.Path), zap.Error(err))
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}

// Prefixes returns the mounted route prefixes.
func (h *Handler) Prefixes() []string {
	out := make([]string, 0, len(Routes))
	for _, route := range Routes {
		out = append(out, route.Prefix)
	}
	return out
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	for _, route := range Routes {
		rest := strings.TrimPrefix(r.URL.Path, route.Prefix)
		if rest == r.URL.Path || !strings.HasPrefix(rest, "/") || len(rest) < 2 {
			continue
		}
		h.proxies[route.Prefix].ServeHTTP(w, r)
		return
	}
	http.NotFound(w, r)
}
