package ports

import "context"

// LivenessProber checks whether an upstream media URL still serves
// bytes. CDN URLs handed out by extractors expire on their own schedule,
// so every cached URL is probed before being handed to a client.
type LivenessProber interface {
	// Alive issues a lightweight probe with the given request headers.
	// A nil error means the URL is usable right now.
	Alive(ctx context.Context, url string, headers map[string]string) error
}
