package httpapi

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mediamux/streamgate/internal/domain"
)

func TestSigner_RoundTrip(t *testing.T) {
	s := NewSigner("test-secret")

	token, err := s.Sign(signedLink{
		Platform: "youtube",
		URL:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		FormatID: "22",
		Filename: "clip.mp4",
	}, time.Minute)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	link, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if link.URL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" || link.FormatID != "22" {
		t.Errorf("Verify() link = %+v", link)
	}
}

func TestSigner_TamperedToken(t *testing.T) {
	s := NewSigner("test-secret")
	token, _ := s.Sign(signedLink{URL: "https://example.com/a"}, time.Minute)

	tampered := strings.Replace(token, token[:4], "AAAA", 1)
	if _, err := s.Verify(tampered); !errors.Is(err, domain.ErrBadSignature) {
		t.Errorf("Verify(tampered) error = %v, want ErrBadSignature", err)
	}
}

func TestSigner_WrongSecret(t *testing.T) {
	token, _ := NewSigner("secret-a").Sign(signedLink{URL: "https://example.com/a"}, time.Minute)

	if _, err := NewSigner("secret-b").Verify(token); !errors.Is(err, domain.ErrBadSignature) {
		t.Errorf("Verify() across secrets error = %v, want ErrBadSignature", err)
	}
}

func TestSigner_Expired(t *testing.T) {
	s := NewSigner("test-secret")
	token, _ := s.Sign(signedLink{URL: "https://example.com/a"}, -time.Minute)

	if _, err := s.Verify(token); !errors.Is(err, domain.ErrLinkExpired) {
		t.Errorf("Verify(expired) error = %v, want ErrLinkExpired", err)
	}
}

func TestSigner_Garbage(t *testing.T) {
	s := NewSigner("test-secret")
	for _, token := range []string{"", "no-dot", "a.b.c.d", "!!!.???"} {
		if _, err := s.Verify(token); !errors.Is(err, domain.ErrBadSignature) {
			t.Errorf("Verify(%q) error = %v, want ErrBadSignature", token, err)
		}
	}
}
