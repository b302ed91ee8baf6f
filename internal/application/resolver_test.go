package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mediamux/streamgate/internal/domain"
	"github.com/mediamux/streamgate/internal/platform"
	"github.com/mediamux/streamgate/internal/ports"
)

// mockExtractor implements ports.Extractor for resolver testing
type mockExtractor struct {
	mu     sync.Mutex
	item   *domain.MediaItem
	err    error
	calls  int
	block  chan struct{} // when set, Extract waits until closed
	onCall func(n int) *domain.MediaItem
}

func (m *mockExtractor) Extract(ctx context.Context, req ports.ExtractRequest) (*domain.MediaItem, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.mu.Unlock()

	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.onCall != nil {
		return m.onCall(n), nil
	}
	return m.item, nil
}

func (m *mockExtractor) ExtractFlat(ctx context.Context, req ports.FlatRequest) (*domain.MediaCollection, error) {
	return &domain.MediaCollection{}, nil
}

func (m *mockExtractor) Download(ctx context.Context, req ports.DownloadRequest, progress ports.DownloadProgress) (*ports.DownloadResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockExtractor) IsAvailable() bool                           { return true }
func (m *mockExtractor) BinaryPath() string                          { return "/usr/bin/yt-dlp" }
func (m *mockExtractor) Version(ctx context.Context) (string, error) { return "test", nil }

func (m *mockExtractor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockCache is a map-backed ports.ResolutionCache
type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// mockProber fails the first failN probes, then succeeds
type mockProber struct {
	mu    sync.Mutex
	failN int
	calls int
}

func (m *mockProber) Alive(ctx context.Context, url string, headers map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failN {
		return domain.ErrResolutionExpired
	}
	return nil
}

const testURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func testItem() *domain.MediaItem {
	return &domain.MediaItem{
		ID:    "dQw4w9WgXcQ",
		Title: "Test Clip",
		Kind:  domain.KindVideo,
		Formats: []domain.FormatDescriptor{
			{FormatID: "18", Ext: "mp4", VideoCodec: "avc1.42001E", AudioCodec: "mp4a.40.2", Height: 360, Bitrate: 400, Protocol: "https", URL: "https://cdn/18"},
			{FormatID: "22", Ext: "mp4", VideoCodec: "avc1.64001F", AudioCodec: "mp4a.40.2", Height: 720, Bitrate: 800, Protocol: "https", URL: "https://cdn/22"},
			{FormatID: "137", Ext: "mp4", VideoCodec: "avc1.640028", AudioCodec: "none", Height: 1080, Bitrate: 4000, Protocol: "https", URL: "https://cdn/137"},
			{FormatID: "140", Ext: "m4a", VideoCodec: "none", AudioCodec: "mp4a.40.2", ABR: 128, Protocol: "https", URL: "https://cdn/140"},
		},
	}
}

func newTestResolver(ext *mockExtractor, prober *mockProber) *ResolverService {
	return NewResolverService(ext, newMockCache(), prober, 30*time.Minute, 5, time.Second)
}

func yt() *platform.Profile { return platform.ForName("youtube") }

func TestResolve_BestPrefers720Progressive(t *testing.T) {
	ext := &mockExtractor{item: testItem()}
	svc := newTestResolver(ext, &mockProber{})

	res, err := svc.Resolve(context.Background(), testURL, "best", yt())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Kind != domain.Direct {
		t.Errorf("Kind = %v, want Direct", res.Kind)
	}
	if res.Format.FormatID != "22" {
		t.Errorf("format = %s, want 22 (720p progressive)", res.Format.FormatID)
	}
}

func TestResolve_ExplicitVideoOnlyGetsMerged(t *testing.T) {
	ext := &mockExtractor{item: testItem()}
	svc := newTestResolver(ext, &mockProber{})

	res, err := svc.Resolve(context.Background(), testURL, "137", yt())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Kind != domain.MergeAV {
		t.Fatalf("Kind = %v, want MergeAV", res.Kind)
	}
	if res.URL != "https://cdn/137" || res.AudioURL != "https://cdn/140" {
		t.Errorf("streams = %s + %s, want 137 video with 140 audio", res.URL, res.AudioURL)
	}
}

func TestResolve_UnknownFormatID(t *testing.T) {
	ext := &mockExtractor{item: testItem()}
	svc := newTestResolver(ext, &mockProber{})

	_, err := svc.Resolve(context.Background(), testURL, "9999", yt())
	if !errors.Is(err, domain.ErrFormatNotFound) {
		t.Errorf("Resolve() error = %v, want ErrFormatNotFound", err)
	}
}

func TestResolve_MP3Selector(t *testing.T) {
	ext := &mockExtractor{item: testItem()}
	svc := newTestResolver(ext, &mockProber{})

	res, err := svc.Resolve(context.Background(), testURL, "mp3_128", yt())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Kind != domain.TranscodeAudio {
		t.Errorf("Kind = %v, want TranscodeAudio", res.Kind)
	}
	if res.Bitrate != 128 {
		t.Errorf("Bitrate = %d, want 128", res.Bitrate)
	}
	if res.URL != "https://cdn/140" {
		t.Errorf("URL = %s, want best audio stream", res.URL)
	}
}

func TestResolve_InvalidSelector(t *testing.T) {
	ext := &mockExtractor{item: testItem()}
	svc := newTestResolver(ext, &mockProber{})

	_, err := svc.Resolve(context.Background(), testURL, "a b; c", yt())
	if !errors.Is(err, domain.ErrInvalidSelector) {
		t.Errorf("Resolve() error = %v, want ErrInvalidSelector", err)
	}
}

func TestResolve_CachesExtraction(t *testing.T) {
	ext := &mockExtractor{item: testItem()}
	svc := newTestResolver(ext, &mockProber{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Resolve(ctx, testURL, "best", yt()); err != nil {
			t.Fatalf("Resolve() #%d error = %v", i, err)
		}
	}
	if got := ext.callCount(); got != 1 {
		t.Errorf("extractor calls = %d, want 1 (cached afterwards)", got)
	}
}

func TestResolve_DeadURLReExtractsOnce(t *testing.T) {
	ext := &mockExtractor{item: testItem()}
	svc := newTestResolver(ext, &mockProber{failN: 1})
	ctx := context.Background()

	// First probe reports the URL dead, the refreshed one is alive.
	res, err := svc.Resolve(ctx, testURL, "best", yt())
	if err != nil {
		t.Fatalf("Resolve() after stale URL error = %v", err)
	}
	if res.Format.FormatID != "22" {
		t.Errorf("format = %s, want 22", res.Format.FormatID)
	}
	if got := ext.callCount(); got != 2 {
		t.Errorf("extractor calls = %d, want 2 (one refresh)", got)
	}
}

func TestResolve_ExpiredAfterRefresh(t *testing.T) {
	ext := &mockExtractor{item: testItem()}
	svc := newTestResolver(ext, &mockProber{failN: 10})

	_, err := svc.Resolve(context.Background(), testURL, "best", yt())
	if !errors.Is(err, domain.ErrResolutionExpired) {
		t.Errorf("Resolve() error = %v, want ErrResolutionExpired", err)
	}
	if got := ext.callCount(); got != 2 {
		t.Errorf("extractor calls = %d, want exactly 2 (no retry loop)", got)
	}
}

func TestResolve_SlotQueueTimeout(t *testing.T) {
	block := make(chan struct{})
	ext := &mockExtractor{item: testItem(), block: block}
	svc := NewResolverService(ext, newMockCache(), &mockProber{}, 30*time.Minute, 1, 50*time.Millisecond)
	defer close(block)

	// Occupy the only slot.
	go svc.Resolve(context.Background(), testURL, "best", yt())
	time.Sleep(10 * time.Millisecond)

	_, err := svc.Resolve(context.Background(), "https://example.com/other.mp4", "best", platform.ForName("generic"))
	if !errors.Is(err, domain.ErrTimeout) {
		t.Errorf("Resolve() error = %v, want ErrTimeout when queue full", err)
	}
}

func TestResolve_NoFormatsFallsBackToBestURL(t *testing.T) {
	ext := &mockExtractor{item: &domain.MediaItem{ID: "x", BestURL: "https://cdn/direct.mp4"}}
	svc := newTestResolver(ext, &mockProber{})

	res, err := svc.Resolve(context.Background(), "https://example.com/clip", "best", platform.ForName("generic"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Kind != domain.Direct || res.URL != "https://cdn/direct.mp4" {
		t.Errorf("resolution = %+v, want direct BestURL", res)
	}
}

func TestResolve_ExtractionErrorPassesThrough(t *testing.T) {
	ext := &mockExtractor{err: domain.ErrAuthRequired}
	svc := newTestResolver(ext, &mockProber{})

	_, err := svc.Resolve(context.Background(), testURL, "best", yt())
	if !errors.Is(err, domain.ErrAuthRequired) {
		t.Errorf("Resolve() error = %v, want ErrAuthRequired", err)
	}
}
