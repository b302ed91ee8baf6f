package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mediamux/streamgate/internal/domain"
)

// signedLink is the payload inside a shareable download token.
type signedLink struct {
	Platform string `json:"p"`
	URL      string `json:"u"`
	FormatID string `json:"f,omitempty"`
	Filename string `json:"n,omitempty"`
	Expires  int64  `json:"e"`
}

// Signer mints and verifies HMAC-signed download tokens so a resolved
// link can be handed to a third party without exposing the API.
type Signer struct {
	secret []byte
}

// NewSigner builds a signer from the configured secret; an empty secret
// gets a random per-process key, which invalidates tokens on restart.
func NewSigner(secret string) *Signer {
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err == nil {
			secret = hex.EncodeToString(buf)
		}
	}
	return &Signer{secret: []byte(secret)}
}

// Sign produces an opaque token for the link, valid for ttl.
func (s *Signer) Sign(link signedLink, ttl time.Duration) (string, error) {
	link.Expires = time.Now().Add(ttl).Unix()
	payload, err := json.Marshal(link)
	if err != nil {
		return "", err
	}

	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + s.mac(body), nil
}

// Verify checks a token's signature and expiry, returning the embedded
// link.
func (s *Signer) Verify(token string) (signedLink, error) {
	var link signedLink

	dot := -1
	for i := len(token) - 1; i >= 0; i-- {
		if token[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 1 {
		return link, domain.ErrBadSignature
	}
	body, sig := token[:dot], token[dot+1:]

	if !hmac.Equal([]byte(sig), []byte(s.mac(body))) {
		return link, domain.ErrBadSignature
	}

	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return link, domain.ErrBadSignature
	}
	if err := json.Unmarshal(payload, &link); err != nil {
		return link, domain.ErrBadSignature
	}

	if time.Now().Unix() > link.Expires {
		return link, fmt.Errorf("%w: expired %s ago", domain.ErrLinkExpired,
			time.Since(time.Unix(link.Expires, 0)).Round(time.Second))
	}
	return link, nil
}

func (s *Signer) mac(body string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
