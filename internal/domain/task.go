package domain

import "time"

// TaskStatus is the lifecycle state of a server-side download task.
type TaskStatus string

const (
	TaskQueued       TaskStatus = "queued"
	TaskInitializing TaskStatus = "initializing"
	TaskPreparing    TaskStatus = "preparing"
	TaskDownloading  TaskStatus = "downloading"
	TaskProcessing   TaskStatus = "processing"
	TaskFinished     TaskStatus = "finished"
	TaskError        TaskStatus = "error"
	TaskCancelled    TaskStatus = "cancelled"
)

// Terminal reports whether the task will never change state again.
func (s TaskStatus) Terminal() bool {
	return s == TaskFinished || s == TaskError || s == TaskCancelled
}

// DownloadTask tracks one server-side download from submission to a file
// on disk. A single worker goroutine owns all mutations; readers get
// copies.
type DownloadTask struct {
	ID       string     `json:"id"`
	URL      string     `json:"url"`
	Selector string     `json:"format"`
	Platform string     `json:"platform"`
	Status   TaskStatus `json:"status"`

	// Progress is a human line ("12.3MiB/s"), Percent the 0..100 figure
	// parsed from extractor output.
	Progress   string  `json:"progress,omitempty"`
	Percent    float64 `json:"percent"`
	ETASeconds int     `json:"eta_seconds,omitempty"`

	Filename string `json:"filename,omitempty"`
	FilePath string `json:"-"`
	FileSize int64  `json:"file_size,omitempty"`

	Err string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
