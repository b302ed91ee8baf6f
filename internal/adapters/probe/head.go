// Package probe checks that upstream media URLs still serve bytes before
// a client is pointed at them.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mediamux/streamgate/internal/domain"
	"github.com/mediamux/streamgate/internal/ports"
)

// HeadProber probes with a HEAD request, falling back to a one-byte
// ranged GET for CDNs that reject HEAD outright.
type HeadProber struct {
	client  *http.Client
	timeout time.Duration
}

// NewHeadProber builds a prober with its own client; redirects are
// followed because CDNs bounce between edge hosts.
func NewHeadProber(timeout time.Duration) *HeadProber {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HeadProber{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

func (p *HeadProber) Alive(ctx context.Context, url string, headers map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	status, err := p.request(ctx, http.MethodHead, url, headers, "")
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrResolutionExpired, err)
	}
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		status, err = p.request(ctx, http.MethodGet, url, headers, "bytes=0-0")
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrResolutionExpired, err)
		}
	}

	if status >= 400 {
		return fmt.Errorf("%w: upstream returned %d", domain.ErrResolutionExpired, status)
	}
	return nil
}

func (p *HeadProber) request(ctx context.Context, method, url string, headers map[string]string, byteRange string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

var _ ports.LivenessProber = (*HeadProber)(nil)
