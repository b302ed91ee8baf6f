package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mediamux/streamgate/internal/classify"
	"github.com/mediamux/streamgate/internal/domain"
	"github.com/mediamux/streamgate/internal/platform"
	"github.com/mediamux/streamgate/internal/ports"
)

// ResolverService turns a media URL plus a format selector into a
// concrete delivery plan, caching extraction results so repeated
// requests for the same content do not re-run the extraction tool.
type ResolverService struct {
	extractor ports.Extractor
	cache     ports.ResolutionCache
	prober    ports.LivenessProber

	ttl          time.Duration
	slots        chan struct{}
	queueTimeout time.Duration
}

// NewResolverService creates a resolver. slots bounds concurrent
// extractions; requests past the bound wait up to queueTimeout.
func NewResolverService(extractor ports.Extractor, cache ports.ResolutionCache, prober ports.LivenessProber, ttl time.Duration, slots int, queueTimeout time.Duration) *ResolverService {
	if slots <= 0 {
		slots = 5
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if queueTimeout <= 0 {
		queueTimeout = 30 * time.Second
	}
	return &ResolverService{
		extractor:    extractor,
		cache:        cache,
		prober:       prober,
		ttl:          ttl,
		slots:        make(chan struct{}, slots),
		queueTimeout: queueTimeout,
	}
}

// Info returns the full metadata snapshot for a URL, from cache when
// fresh.
func (s *ResolverService) Info(ctx context.Context, rawURL string, prof *platform.Profile) (*domain.MediaItem, error) {
	url, err := domain.CanonicalURL(rawURL)
	if err != nil {
		return nil, err
	}
	return s.getItem(ctx, url, prof)
}

// InfoFlat returns a shallow listing for playlist-like URLs. Flat
// listings are not cached; they are cheap relative to full extraction
// and change often.
func (s *ResolverService) InfoFlat(ctx context.Context, rawURL string, prof *platform.Profile, limit int) (*domain.MediaCollection, error) {
	url, err := domain.CanonicalURL(rawURL)
	if err != nil {
		return nil, err
	}
	release, err := s.acquireSlot(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.extractor.ExtractFlat(ctx, ports.FlatRequest{URL: url, Platform: prof, Limit: limit})
}

// Resolve maps a selector onto the URL's format listing and verifies
// direct URLs are still alive. A dead cached URL triggers exactly one
// fresh extraction; if the fresh URL is dead too the resolution has
// expired for real.
func (s *ResolverService) Resolve(ctx context.Context, rawURL, rawSelector string, prof *platform.Profile) (domain.Resolution, error) {
	sel, err := domain.ParseSelector(rawSelector)
	if err != nil {
		return domain.Resolution{}, err
	}
	url, err := domain.CanonicalURL(rawURL)
	if err != nil {
		return domain.Resolution{}, err
	}

	item, err := s.getItem(ctx, url, prof)
	if err != nil {
		return domain.Resolution{}, err
	}

	res, err := s.match(item, sel)
	if err != nil {
		return domain.Resolution{}, err
	}

	if res.Kind != domain.Direct || res.URL == "" {
		return res, nil
	}

	if err := s.prober.Alive(ctx, res.URL, prof.Headers); err == nil {
		return res, nil
	}

	// Stale CDN URL: drop cached state and extract once more.
	log.Printf("[resolver] direct URL dead for %s, re-extracting", item.ID)
	s.invalidate(ctx, url, item.ID)

	item, err = s.getItem(ctx, url, prof)
	if err != nil {
		return domain.Resolution{}, err
	}
	res, err = s.match(item, sel)
	if err != nil {
		return domain.Resolution{}, err
	}
	if res.Kind == domain.Direct && res.URL != "" {
		if err := s.prober.Alive(ctx, res.URL, prof.Headers); err != nil {
			return domain.Resolution{}, fmt.Errorf("%w after refresh", domain.ErrResolutionExpired)
		}
	}
	return res, nil
}

// Invalidate drops all cached state for a URL.
func (s *ResolverService) Invalidate(ctx context.Context, rawURL string) error {
	url, err := domain.CanonicalURL(rawURL)
	if err != nil {
		return err
	}
	if data, err := s.cache.Get(ctx, keyMap(url)); err == nil {
		s.invalidate(ctx, url, string(data))
	} else {
		_ = s.cache.Delete(ctx, keyMap(url))
	}
	return nil
}

func keyMap(url string) string { return "map:" + url }
func keyInfo(id string) string { return "info:" + id }

func (s *ResolverService) invalidate(ctx context.Context, url, id string) {
	_ = s.cache.Delete(ctx, keyMap(url))
	if id != "" {
		_ = s.cache.Delete(ctx, keyInfo(id))
	}
}

// getItem serves the metadata snapshot from cache or extracts it under
// a concurrency slot.
func (s *ResolverService) getItem(ctx context.Context, url string, prof *platform.Profile) (*domain.MediaItem, error) {
	if idBytes, err := s.cache.Get(ctx, keyMap(url)); err == nil {
		if data, err := s.cache.Get(ctx, keyInfo(string(idBytes))); err == nil {
			var item domain.MediaItem
			if err := json.Unmarshal(data, &item); err == nil {
				return &item, nil
			}
			// Corrupt entry; fall through to a fresh extraction.
			_ = s.cache.Delete(ctx, keyInfo(string(idBytes)))
		}
	}

	release, err := s.acquireSlot(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	item, err := s.extractor.Extract(ctx, ports.ExtractRequest{URL: url, Platform: prof})
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(item); err == nil {
		_ = s.cache.Set(ctx, keyMap(url), []byte(item.ID), s.ttl)
		_ = s.cache.Set(ctx, keyInfo(item.ID), data, s.ttl)
	}
	return item, nil
}

// acquireSlot blocks until an extraction slot frees up or the queue
// timeout passes.
func (s *ResolverService) acquireSlot(ctx context.Context) (func(), error) {
	timer := time.NewTimer(s.queueTimeout)
	defer timer.Stop()

	select {
	case s.slots <- struct{}{}:
		return func() { <-s.slots }, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: waited %s for an extraction slot", domain.ErrTimeout, s.queueTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
	}
}

// match applies selection semantics to an extracted item.
func (s *ResolverService) match(item *domain.MediaItem, sel domain.Selector) (domain.Resolution, error) {
	listing := classify.Split(item.Formats)

	if sel.MP3 {
		audio, ok := listing.BestAudio()
		if !ok {
			// Some extractions offer only muxed streams; ffmpeg can
			// still pull the audio track out of one.
			if best, ok := listing.BestProgressive(); ok {
				audio = best
			} else if item.BestURL != "" {
				audio = domain.FormatDescriptor{URL: item.BestURL}
			} else {
				return domain.Resolution{}, domain.ErrFormatNotFound
			}
		}
		return domain.Resolution{
			Kind:    domain.TranscodeAudio,
			URL:     audio.URL,
			Format:  audio,
			Bitrate: sel.MP3Bitrate,
			Item:    item,
		}, nil
	}

	if id := sel.FormatID(); id != "" {
		var chosen domain.FormatDescriptor
		found := false
		for _, f := range item.Formats {
			if f.FormatID == id {
				chosen, found = f, true
				break
			}
		}
		if !found {
			return domain.Resolution{}, fmt.Errorf("%w: %s", domain.ErrFormatNotFound, id)
		}

		if chosen.VideoOnly() {
			if audio, ok := listing.BestAudio(); ok {
				return domain.Resolution{
					Kind:        domain.MergeAV,
					URL:         chosen.URL,
					AudioURL:    audio.URL,
					Format:      chosen,
					AudioFormat: audio,
					Item:        item,
				}, nil
			}
			// No separate audio to pair with; hand out the silent track
			// rather than failing.
		}
		return domain.Resolution{Kind: domain.Direct, URL: chosen.URL, Format: chosen, Item: item}, nil
	}

	// Automatic best selection.
	if best, ok := listing.BestProgressive(); ok {
		return domain.Resolution{Kind: domain.Direct, URL: best.URL, Format: best, Item: item}, nil
	}
	video, vok := listing.BestVideoOnly()
	audio, aok := listing.BestAudio()
	if vok && aok {
		return domain.Resolution{
			Kind:        domain.MergeAV,
			URL:         video.URL,
			AudioURL:    audio.URL,
			Format:      video,
			AudioFormat: audio,
			Item:        item,
		}, nil
	}
	if aok {
		return domain.Resolution{Kind: domain.Direct, URL: audio.URL, Format: audio, Item: item}, nil
	}
	if item.BestURL != "" {
		return domain.Resolution{Kind: domain.Direct, URL: item.BestURL, Item: item}, nil
	}
	return domain.Resolution{}, domain.ErrNoPlayableFormat
}

// ErrIsRetryable reports whether a resolve error could succeed on a
// later attempt, used by handlers to pick status codes.
func ErrIsRetryable(err error) bool {
	return errors.Is(err, domain.ErrTimeout) || errors.Is(err, domain.ErrUpstreamUnavailable)
}
