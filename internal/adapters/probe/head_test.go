package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mediamux/streamgate/internal/domain"
)

func TestAlive_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHeadProber(time.Second)
	if err := p.Alive(context.Background(), srv.URL, nil); err != nil {
		t.Errorf("Alive() error = %v, want nil", err)
	}
}

func TestAlive_SendsHeaders(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	p := NewHeadProber(time.Second)
	_ = p.Alive(context.Background(), srv.URL, map[string]string{"User-Agent": "probe-test"})
	if gotUA != "probe-test" {
		t.Errorf("upstream saw User-Agent %q, want probe-test", gotUA)
	}
}

func TestAlive_ExpiredURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewHeadProber(time.Second)
	err := p.Alive(context.Background(), srv.URL, nil)
	if !errors.Is(err, domain.ErrResolutionExpired) {
		t.Errorf("Alive() error = %v, want ErrResolutionExpired", err)
	}
}

func TestAlive_HeadRejectedFallsBackToRangedGet(t *testing.T) {
	var sawRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sawRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	p := NewHeadProber(time.Second)
	if err := p.Alive(context.Background(), srv.URL, nil); err != nil {
		t.Fatalf("Alive() error = %v, want nil", err)
	}
	if sawRange != "bytes=0-0" {
		t.Errorf("fallback GET Range = %q, want bytes=0-0", sawRange)
	}
}

func TestAlive_ConnectionRefused(t *testing.T) {
	p := NewHeadProber(200 * time.Millisecond)
	err := p.Alive(context.Background(), "http://127.0.0.1:1/nothing", nil)
	if !errors.Is(err, domain.ErrResolutionExpired) {
		t.Errorf("Alive() error = %v, want ErrResolutionExpired", err)
	}
}
