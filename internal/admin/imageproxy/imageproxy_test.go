package imageproxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRewrite(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://i0.hdslb.com/bfs/archive/a.jpg":       "/bilibili-img/bfs/archive/a.jpg",
		"http://i1.hdslb.com/bfs/face/b.png@100w.webp": "/bilibili-img1/bfs/face/b.png@100w.webp",
		"https://i2.hdslb.com/bfs/c.jpg?x=1":           "/bilibili-img2/bfs/c.jpg?x=1",
		"//i0.hdslb.com/bfs/d.jpg":                     "/bilibili-img/bfs/d.jpg",
		"https://example.com/e.jpg":                    "https://example.com/e.jpg",
		"/local/f.jpg":                                 "/local/f.jpg",
		"   ":                                          "",
	}
	for in, want := range cases {
		require.Equal(t, want, Rewrite(in), in)
	}
}

func TestHandlerProxiesWithReferer(t *testing.T) {
	t.Parallel()

	var seen *http.Request
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(r.Context())
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Set-Cookie", "tracker=1")
		_, _ = io.WriteString(w, "jpeg-bytes")
	}))
	t.Cleanup(upstream.Close)
	host := mustHost(t, upstream.URL)

	h := NewHandler(Options{
		Scheme: "http",
		Hosts:  map[string]string{"/bilibili-img": host, "/bilibili-img1": host, "/bilibili-img2": host},
	})

	req := httptest.NewRequest(http.MethodGet, "/bilibili-img1/bfs/face/b.png", nil)
	req.Header.Set("Cookie", "console_session=secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "jpeg-bytes", rr.Body.String())
	require.Empty(t, rr.Header().Get("Set-Cookie"))
	require.Equal(t, "public, max-age=86400", rr.Header().Get("Cache-Control"))
	require.NotNil(t, seen)
	require.Equal(t, "/bfs/face/b.png", seen.URL.Path)
	require.Equal(t, Referer, seen.Header.Get("Referer"))
	require.Equal(t, UserAgent, seen.Header.Get("User-Agent"))
	require.Empty(t, seen.Header.Get("Cookie"))
}

func TestHandlerRejectsOtherMethodsAndPaths(t *testing.T) {
	t.Parallel()

	h := NewHandler(Options{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/bilibili-img/a.jpg", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/bilibili-imgX/a.jpg", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func mustHost(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Host
}
