package httpapi

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediamux/streamgate/internal/domain"
)

// passthroughHeaders are copied verbatim from upstream to the client so
// range semantics and caching behave as if the client talked to the CDN.
var passthroughHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Last-Modified",
	"ETag",
	"Cache-Control",
}

const proxyChunkSize = 256 * 1024

// proxyClient has no overall timeout: streams legitimately run for
// minutes. Dial and header phases are still bounded.
var proxyClient = &http.Client{
	Transport: &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
	},
}

// proxyStream relays upstream bytes to the client, forwarding range
// requests both ways. Returns an error only before any byte has been
// written; mid-stream failures just end the response early.
func proxyStream(c *gin.Context, url string, headers map[string]string, filename string) error {
	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if r := c.GetHeader("Range"); r != "" {
		req.Header.Set("Range", r)
	}
	if ir := c.GetHeader("If-Range"); ir != "" {
		req.Header.Set("If-Range", ir)
	}

	resp, err := proxyClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusGone ||
			resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: upstream returned %d", domain.ErrResolutionExpired, resp.StatusCode)
		}
		return fmt.Errorf("%w: upstream returned %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	for _, h := range passthroughHeaders {
		if v := resp.Header.Get(h); v != "" {
			c.Header(h, v)
		}
	}
	if filename != "" {
		c.Header("Content-Disposition", contentDisposition(filename))
	}

	c.Status(resp.StatusCode)
	if c.Request.Method == http.MethodHead {
		return nil
	}

	buf := make([]byte, proxyChunkSize)
	if _, err := io.CopyBuffer(c.Writer, resp.Body, buf); err != nil {
		// Headers are gone; the client sees a short body. Log and move on.
		log.Printf("[proxy] stream ended early: %v", err)
	}
	return nil
}

// contentDisposition builds an attachment header that survives
// non-ASCII filenames.
func contentDisposition(filename string) string {
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`,
		sanitizeASCII(filename), rfc5987Escape(filename))
}

func sanitizeASCII(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			out = append(out, '_')
		case c < 0x20 || c > 0x7e:
			out = append(out, '_')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

func rfc5987Escape(s string) string {
	const hexDigits = "0123456789ABCDEF"
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			out = append(out, c)
		} else {
			out = append(out, '%', hexDigits[c>>4], hexDigits[c&0xf])
		}
	}
	return string(out)
}
