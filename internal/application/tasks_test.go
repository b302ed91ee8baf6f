package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mediamux/streamgate/internal/domain"
	"github.com/mediamux/streamgate/internal/platform"
	"github.com/mediamux/streamgate/internal/ports"
)

// mockDownloader implements ports.Extractor with scriptable Download
// behavior for task testing.
type mockDownloader struct {
	mu       sync.Mutex
	failN    int // first failN attempts error
	attempts []ports.DownloadRequest
	block    chan struct{} // when set, Download waits until closed or ctx done
	failErr  error
}

func (m *mockDownloader) Download(ctx context.Context, req ports.DownloadRequest, progress ports.DownloadProgress) (*ports.DownloadResult, error) {
	m.mu.Lock()
	m.attempts = append(m.attempts, req)
	n := len(m.attempts)
	m.mu.Unlock()

	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= m.failN {
		if m.failErr != nil {
			return nil, m.failErr
		}
		return nil, domain.ErrExtractionFailed
	}

	if progress != nil {
		progress(50, "1.00MiB/s", 5)
		progress(100, "1.00MiB/s", 0)
	}
	path := filepath.Join(req.DestDir, req.BaseName+".mp4")
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		return nil, err
	}
	return &ports.DownloadResult{FilePath: path}, nil
}

func (m *mockDownloader) Extract(ctx context.Context, req ports.ExtractRequest) (*domain.MediaItem, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDownloader) ExtractFlat(ctx context.Context, req ports.FlatRequest) (*domain.MediaCollection, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDownloader) IsAvailable() bool                           { return true }
func (m *mockDownloader) BinaryPath() string                          { return "/usr/bin/yt-dlp" }
func (m *mockDownloader) Version(ctx context.Context) (string, error) { return "test", nil }

func (m *mockDownloader) attemptList() []ports.DownloadRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.DownloadRequest(nil), m.attempts...)
}

func waitForStatus(t *testing.T, svc *TaskService, id string, want domain.TaskStatus) domain.DownloadTask {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := svc.Get(id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if task.Status == want {
			return task
		}
		if task.Status.Terminal() && task.Status != want {
			t.Fatalf("task ended %s, want %s (err=%s)", task.Status, want, task.Err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task never reached %s", want)
	return domain.DownloadTask{}
}

func TestTasks_HappyPath(t *testing.T) {
	dl := &mockDownloader{}
	svc := NewTaskService(dl, t.TempDir(), 2, time.Hour)
	defer svc.Close()

	id, err := svc.Start(testURL, "best", platform.ForName("youtube"))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	task := waitForStatus(t, svc, id, domain.TaskFinished)
	if task.Percent != 100 {
		t.Errorf("Percent = %v, want 100", task.Percent)
	}
	if task.Filename == "" || task.FileSize == 0 {
		t.Errorf("file metadata missing: %+v", task)
	}

	path, err := svc.FilePath(id)
	if err != nil {
		t.Fatalf("FilePath() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("finished file missing: %v", err)
	}
}

func TestTasks_FallbackLadder(t *testing.T) {
	dl := &mockDownloader{failN: 5} // all 4 personas plus first fallback fail
	svc := NewTaskService(dl, t.TempDir(), 2, time.Hour)
	defer svc.Close()

	id, err := svc.Start(testURL, "best", platform.ForName("youtube"))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitForStatus(t, svc, id, domain.TaskFinished)

	attempts := dl.attemptList()
	if len(attempts) != 6 {
		t.Fatalf("attempts = %d, want 6", len(attempts))
	}
	if attempts[0].Persona != "android_creator" || attempts[1].Persona != "android_music" {
		t.Errorf("persona order wrong: %s, %s", attempts[0].Persona, attempts[1].Persona)
	}
	if attempts[4].FormatExpr != "best[ext=mp4][height<=720]" {
		t.Errorf("first fallback format = %q", attempts[4].FormatExpr)
	}
	if attempts[5].FormatExpr != "18" {
		t.Errorf("second fallback format = %q", attempts[5].FormatExpr)
	}
}

func TestTasks_ErrorKeepsLastMessage(t *testing.T) {
	dl := &mockDownloader{failN: 100, failErr: errors.New("ERROR: fragment 3 not found")}
	svc := NewTaskService(dl, t.TempDir(), 2, time.Hour)
	defer svc.Close()

	id, _ := svc.Start(testURL, "best", platform.ForName("youtube"))
	task := waitForStatus(t, svc, id, domain.TaskError)
	if task.Err != "ERROR: fragment 3 not found" {
		t.Errorf("Err = %q, want last tool error verbatim", task.Err)
	}
}

func TestTasks_Cancel(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	dl := &mockDownloader{block: block}
	svc := NewTaskService(dl, t.TempDir(), 2, time.Hour)
	defer svc.Close()

	id, _ := svc.Start(testURL, "best", platform.ForName("youtube"))
	time.Sleep(50 * time.Millisecond)

	if err := svc.Cancel(id); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	waitForStatus(t, svc, id, domain.TaskCancelled)

	// Cancelling again reports the terminal state.
	if err := svc.Cancel(id); !errors.Is(err, domain.ErrTaskFinished) {
		t.Errorf("second Cancel() = %v, want ErrTaskFinished", err)
	}
}

func TestTasks_GetUnknown(t *testing.T) {
	svc := NewTaskService(&mockDownloader{}, t.TempDir(), 2, time.Hour)
	defer svc.Close()

	if _, err := svc.Get("nope"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("Get() error = %v, want ErrTaskNotFound", err)
	}
}

func TestTasks_PlatformPolicy(t *testing.T) {
	svc := NewTaskService(&mockDownloader{}, t.TempDir(), 2, time.Hour)
	defer svc.Close()

	_, err := svc.Start("https://fb.watch/abc/", "best", platform.ForName("facebook"))
	if !errors.Is(err, domain.ErrServerSideOff) {
		t.Errorf("Start() error = %v, want ErrServerSideOff", err)
	}
}

func TestTasks_GCDropsOldRecords(t *testing.T) {
	dl := &mockDownloader{}
	svc := NewTaskService(dl, t.TempDir(), 2, time.Hour)
	defer svc.Close()

	id, _ := svc.Start(testURL, "best", platform.ForName("youtube"))
	task := waitForStatus(t, svc, id, domain.TaskFinished)

	svc.collect(time.Now().Add(2 * time.Hour))

	if _, err := svc.Get(id); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("Get() after gc = %v, want ErrTaskNotFound", err)
	}
	if _, err := os.Stat(task.FilePath); !os.IsNotExist(err) {
		t.Errorf("gc should remove the file, stat err = %v", err)
	}
}

func TestTasks_MP3SelectorSkipsFormatFallbacks(t *testing.T) {
	dl := &mockDownloader{}
	svc := NewTaskService(dl, t.TempDir(), 2, time.Hour)
	defer svc.Close()

	id, _ := svc.Start(testURL, "mp3_128", platform.ForName("youtube"))
	waitForStatus(t, svc, id, domain.TaskFinished)

	attempts := dl.attemptList()
	if len(attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(attempts))
	}
	if !attempts[0].MP3 || attempts[0].Bitrate != 128 {
		t.Errorf("mp3 request not threaded: %+v", attempts[0])
	}
}
