package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mediamux/streamgate/internal/domain"
	"github.com/mediamux/streamgate/internal/platform"
	"github.com/mediamux/streamgate/internal/ports"
)

// fallbackFormats are tried in order when the requested format fails on
// every persona. The last rungs trade quality for getting anything at
// all; the final error only surfaces once the whole ladder is exhausted.
var fallbackFormats = []string{
	"best[ext=mp4][height<=720]",
	"18",
	"bestaudio",
	"worst",
}

type taskState struct {
	task      domain.DownloadTask
	cancel    context.CancelFunc
	cancelled bool
}

// TaskService runs server-side downloads in the background. Each task is
// owned by one worker goroutine; all record mutations go through the
// service mutex so Get always sees a consistent snapshot.
type TaskService struct {
	extractor   ports.Extractor
	downloadDir string
	maxAge      time.Duration

	mu    sync.RWMutex
	tasks map[string]*taskState

	workers chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewTaskService creates the manager and starts its garbage collector.
func NewTaskService(extractor ports.Extractor, downloadDir string, workers int, maxAge time.Duration) *TaskService {
	if workers <= 0 {
		workers = 2
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	s := &TaskService{
		extractor:   extractor,
		downloadDir: downloadDir,
		maxAge:      maxAge,
		tasks:       make(map[string]*taskState),
		workers:     make(chan struct{}, workers),
		stop:        make(chan struct{}),
	}
	s.wg.Add(1)
	go s.gcLoop()
	return s
}

// Close stops the garbage collector and cancels running tasks.
func (s *TaskService) Close() {
	close(s.stop)
	s.mu.Lock()
	for _, st := range s.tasks {
		if st.cancel != nil {
			st.cancel()
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Start validates and enqueues a download, returning the task id.
func (s *TaskService) Start(rawURL, rawSelector string, prof *platform.Profile) (string, error) {
	if !prof.ServerDownloads {
		return "", fmt.Errorf("%w: %s", domain.ErrServerSideOff, prof.Name)
	}
	sel, err := domain.ParseSelector(rawSelector)
	if err != nil {
		return "", err
	}
	url, err := domain.CanonicalURL(rawURL)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := time.Now()
	ctx, cancel := context.WithCancel(context.Background())

	st := &taskState{
		task: domain.DownloadTask{
			ID:        id,
			URL:       url,
			Selector:  sel.Raw,
			Platform:  string(prof.Name),
			Status:    domain.TaskQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
	}

	s.mu.Lock()
	s.tasks[id] = st
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, id, sel, prof)

	return id, nil
}

// Get returns a snapshot of a task record.
func (s *TaskService) Get(id string) (domain.DownloadTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.tasks[id]
	if !ok {
		return domain.DownloadTask{}, domain.ErrTaskNotFound
	}
	return st.task, nil
}

// Cancel requests a task stop. Finished tasks cannot be cancelled.
func (s *TaskService) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if st.task.Status.Terminal() {
		return domain.ErrTaskFinished
	}
	st.cancelled = true
	if st.cancel != nil {
		st.cancel()
	}
	return nil
}

// FilePath returns the on-disk path of a finished task's file.
func (s *TaskService) FilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.tasks[id]
	if !ok {
		return "", domain.ErrTaskNotFound
	}
	if st.task.Status != domain.TaskFinished || st.task.FilePath == "" {
		return "", domain.ErrTaskNotFound
	}
	return st.task.FilePath, nil
}

func (s *TaskService) update(id string, fn func(*domain.DownloadTask)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tasks[id]
	if !ok {
		return
	}
	fn(&st.task)
	st.task.UpdatedAt = time.Now()
}

func (s *TaskService) isCancelled(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.tasks[id]
	return ok && st.cancelled
}

func (s *TaskService) run(ctx context.Context, id string, sel domain.Selector, prof *platform.Profile) {
	defer s.wg.Done()

	// Wait for a worker slot; cancellation while queued is still honored.
	select {
	case s.workers <- struct{}{}:
		defer func() { <-s.workers }()
	case <-ctx.Done():
		s.finishCancelled(id)
		return
	}

	s.update(id, func(t *domain.DownloadTask) { t.Status = domain.TaskInitializing })

	// Cosmetic ramp while the extraction tool warms up, so pollers see
	// movement before real progress lines arrive.
	rampDone := make(chan struct{})
	go s.prepareRamp(ctx, id, rampDone)

	result, err := s.attemptLadder(ctx, id, sel, prof)
	close(rampDone)

	switch {
	case err == nil:
		s.update(id, func(t *domain.DownloadTask) { t.Status = domain.TaskProcessing })
		fi, statErr := os.Stat(result.FilePath)
		s.update(id, func(t *domain.DownloadTask) {
			t.Status = domain.TaskFinished
			t.Percent = 100
			t.FilePath = result.FilePath
			t.Filename = filepath.Base(result.FilePath)
			if statErr == nil {
				t.FileSize = fi.Size()
			}
		})
	case s.isCancelled(id) || errors.Is(err, context.Canceled):
		s.finishCancelled(id)
	default:
		log.Printf("[tasks] %s failed: %v", id, err)
		s.update(id, func(t *domain.DownloadTask) {
			t.Status = domain.TaskError
			t.Err = err.Error()
		})
	}
}

func (s *TaskService) finishCancelled(id string) {
	s.update(id, func(t *domain.DownloadTask) { t.Status = domain.TaskCancelled })
}

// prepareRamp walks Percent toward 90 while the task is still preparing.
func (s *TaskService) prepareRamp(ctx context.Context, id string, done <-chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.update(id, func(t *domain.DownloadTask) {
				if t.Status != domain.TaskInitializing && t.Status != domain.TaskPreparing {
					return
				}
				t.Status = domain.TaskPreparing
				if t.Percent < 90 {
					t.Percent += 4.5
				}
			})
		}
	}
}

// attemptLadder tries the requested format on each persona, then the
// fallback formats, keeping the last error verbatim.
func (s *TaskService) attemptLadder(ctx context.Context, id string, sel domain.Selector, prof *platform.Profile) (*ports.DownloadResult, error) {
	// One budget for the whole ladder, not per attempt. Each rung still
	// carries its own per-call deadline inside the extractor.
	if prof.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*prof.DownloadTimeout)
		defer cancel()
	}

	personas := prof.Personas
	if len(personas) == 0 {
		personas = []string{""}
	}

	type attempt struct {
		persona string
		expr    string
	}
	var attempts []attempt
	for _, p := range personas {
		attempts = append(attempts, attempt{persona: p, expr: s.formatExpr(sel)})
	}
	if !sel.MP3 {
		for _, expr := range fallbackFormats {
			attempts = append(attempts, attempt{persona: personas[0], expr: expr})
		}
	}

	var lastErr error
	for i, a := range attempts {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if i > 0 {
			log.Printf("[tasks] %s retrying with persona=%q format=%q", id, a.persona, a.expr)
		}

		result, err := s.extractor.Download(ctx, ports.DownloadRequest{
			URL:        s.taskURL(id),
			Platform:   prof,
			Persona:    a.persona,
			FormatExpr: a.expr,
			MP3:        sel.MP3,
			Bitrate:    sel.MP3Bitrate,
			DestDir:    s.downloadDir,
			BaseName:   id,
		}, s.progressFn(id))
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Hard stops that another persona cannot fix.
		if errors.Is(err, domain.ErrYtDlpNotFound) || errors.Is(err, context.Canceled) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (s *TaskService) taskURL(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.tasks[id]; ok {
		return st.task.URL
	}
	return ""
}

// formatExpr maps a selector onto the extraction tool's format language.
func (s *TaskService) formatExpr(sel domain.Selector) string {
	switch {
	case sel.MP3:
		return ""
	case sel.Best():
		return "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	default:
		return sel.Raw
	}
}

func (s *TaskService) progressFn(id string) ports.DownloadProgress {
	return func(percent float64, speed string, etaSeconds int) {
		s.update(id, func(t *domain.DownloadTask) {
			t.Status = domain.TaskDownloading
			t.Percent = percent
			t.Progress = speed
			if etaSeconds >= 0 {
				t.ETASeconds = etaSeconds
			}
		})
	}
}

// gcLoop drops task records past their retention age. Files on disk are
// removed together with the record.
func (s *TaskService) gcLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.collect(time.Now())
		}
	}
}

func (s *TaskService) collect(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range s.tasks {
		if now.Sub(st.task.CreatedAt) < s.maxAge {
			continue
		}
		if st.cancel != nil {
			st.cancel()
		}
		if st.task.FilePath != "" {
			if err := os.Remove(st.task.FilePath); err != nil && !os.IsNotExist(err) {
				log.Printf("[tasks] gc could not remove %s: %v", st.task.FilePath, err)
			}
		}
		delete(s.tasks, id)
	}
}
