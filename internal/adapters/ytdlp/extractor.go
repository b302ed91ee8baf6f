package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/mediamux/streamgate/internal/domain"
	"github.com/mediamux/streamgate/internal/platform"
	"github.com/mediamux/streamgate/internal/ports"
)

// Extractor implements ports.Extractor by shelling out to yt-dlp. All
// site knowledge stays inside the tool; this adapter only builds
// argument lists and parses JSON.
type Extractor struct {
	binPath     string
	configPath  string // explicit binary override from config
	cookiesFile string
}

// NewExtractor creates a yt-dlp extractor. binOverride and cookiesFile
// may be empty.
func NewExtractor(binOverride, cookiesFile string) *Extractor {
	return &Extractor{configPath: binOverride, cookiesFile: cookiesFile}
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "yt-dlp.exe"
	}
	return "yt-dlp"
}

func (e *Extractor) findBinary() string {
	if e.configPath != "" {
		if _, err := os.Stat(e.configPath); err == nil {
			return e.configPath
		}
	}
	if path, err := exec.LookPath(binaryName()); err == nil {
		return path
	}
	return ""
}

func (e *Extractor) BinaryPath() string {
	if e.binPath != "" {
		return e.binPath
	}
	e.binPath = e.findBinary()
	return e.binPath
}

func (e *Extractor) IsAvailable() bool {
	return e.BinaryPath() != ""
}

func (e *Extractor) Version(ctx context.Context) (string, error) {
	binPath := e.BinaryPath()
	if binPath == "" {
		return "", domain.ErrYtDlpNotFound
	}
	out, err := exec.CommandContext(ctx, binPath, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("yt-dlp --version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// baseArgs are shared by every invocation.
func (e *Extractor) baseArgs(prof *platform.Profile, persona string) []string {
	args := []string{"--no-warnings"}
	if e.cookiesFile != "" {
		args = append(args, "--cookies", e.cookiesFile)
	}
	if prof != nil && prof.Name == platform.YouTube {
		client := persona
		if client == "" && len(prof.Personas) > 0 {
			client = prof.Personas[0]
		}
		if client != "" {
			args = append(args, "--extractor-args", "youtube:player_client="+client)
		}
	}
	return args
}

func (e *Extractor) Extract(ctx context.Context, req ports.ExtractRequest) (*domain.MediaItem, error) {
	binPath := e.BinaryPath()
	if binPath == "" {
		return nil, domain.ErrYtDlpNotFound
	}

	if req.Platform != nil && req.Platform.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Platform.ExtractTimeout)
		defer cancel()
	}

	args := append(e.baseArgs(req.Platform, req.Persona), "-J", "--no-playlist", req.URL)

	cmd := exec.CommandContext(ctx, binPath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, e.classifyError(ctx, err)
	}

	var info rawInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("%w: unparseable metadata: %v", domain.ErrExtractionFailed, err)
	}

	item := info.toItem()
	return &item, nil
}

func (e *Extractor) ExtractFlat(ctx context.Context, req ports.FlatRequest) (*domain.MediaCollection, error) {
	binPath := e.BinaryPath()
	if binPath == "" {
		return nil, domain.ErrYtDlpNotFound
	}

	if req.Platform != nil && req.Platform.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Platform.ExtractTimeout)
		defer cancel()
	}

	args := append(e.baseArgs(req.Platform, ""), "--flat-playlist", "--print-json")
	if req.Limit > 0 {
		args = append(args, "-I", fmt.Sprintf("1:%d", req.Limit))
	}
	args = append(args, req.URL)

	cmd := exec.CommandContext(ctx, binPath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, e.classifyError(ctx, err)
	}

	coll := &domain.MediaCollection{}
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line == "" {
			continue
		}
		var info rawInfo
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			continue
		}
		if coll.ID == "" {
			coll.ID = info.PlaylistID
			coll.Title = info.PlaylistTitle
			coll.Uploader = info.PlaylistUploader
		}
		coll.Items = append(coll.Items, info.toItem())
	}
	return coll, nil
}

// progressPattern matches yt-dlp --newline download lines:
// [download]  12.3% of 10.00MiB at 2.41MiB/s ETA 00:12
var progressPattern = regexp.MustCompile(`\[download\]\s+([\d.]+)%(?:.*?at\s+(\S+))?(?:.*?ETA\s+(\S+))?`)

func (e *Extractor) Download(ctx context.Context, req ports.DownloadRequest, progress ports.DownloadProgress) (*ports.DownloadResult, error) {
	binPath := e.BinaryPath()
	if binPath == "" {
		return nil, domain.ErrYtDlpNotFound
	}

	if err := os.MkdirAll(req.DestDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	if req.Platform != nil && req.Platform.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Platform.DownloadTimeout)
		defer cancel()
	}

	outputTemplate := filepath.Join(req.DestDir, req.BaseName+".%(ext)s")
	args := append(e.baseArgs(req.Platform, req.Persona), "--newline", "-o", outputTemplate)

	if req.MP3 {
		bitrate := req.Bitrate
		if bitrate <= 0 {
			bitrate = 192
		}
		args = append(args, "-x", "--audio-format", "mp3", "--audio-quality", fmt.Sprintf("%dK", bitrate))
	} else if req.FormatExpr != "" {
		args = append(args, "-f", req.FormatExpr)
	}
	args = append(args, req.URL)

	cmd := exec.CommandContext(ctx, binPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if progress == nil {
			continue
		}
		if m := progressPattern.FindStringSubmatch(scanner.Text()); m != nil {
			percent, _ := strconv.ParseFloat(m[1], 64)
			progress(percent, m[2], parseETA(m[3]))
		}
	}

	if err := cmd.Wait(); err != nil {
		return nil, e.classifyError(ctx, wrapStderr(err, stderr.String()))
	}

	path, err := locateOutput(req.DestDir, req.BaseName)
	if err != nil {
		return nil, err
	}
	return &ports.DownloadResult{FilePath: path}, nil
}

// parseETA converts "00:12" or "01:02:03" to seconds, -1 when unknown.
func parseETA(s string) int {
	if s == "" {
		return -1
	}
	parts := strings.Split(s, ":")
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return -1
		}
		total = total*60 + n
	}
	return total
}

// locateOutput finds the finished file. The tool may change the
// extension after post-processing, so the newest matching file wins;
// partial artifacts are skipped.
func locateOutput(destDir, baseName string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(destDir, baseName+".*"))
	if err != nil {
		return "", err
	}

	var newest string
	var newestMod time.Time
	for _, m := range matches {
		ext := filepath.Ext(m)
		if ext == ".part" || ext == ".ytdl" || ext == ".temp" {
			continue
		}
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		if newest == "" || fi.ModTime().After(newestMod) {
			newest, newestMod = m, fi.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("%w: no output file for %s", domain.ErrExtractionFailed, baseName)
	}
	return newest, nil
}

// stderrError keeps tool stderr attached to an exit error for
// classification.
type stderrError struct {
	err    error
	stderr string
}

func (s *stderrError) Error() string { return s.err.Error() }
func (s *stderrError) Unwrap() error { return s.err }

func wrapStderr(err error, stderr string) error {
	if stderr == "" {
		return err
	}
	return &stderrError{err: err, stderr: stderr}
}

// classifyError maps tool failures onto the domain error taxonomy by
// sniffing stderr.
func (e *Extractor) classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
	}

	var stderr string
	var se *stderrError
	if errors.As(err, &se) {
		stderr = se.stderr
	} else if exitErr, ok := err.(*exec.ExitError); ok {
		stderr = string(exitErr.Stderr)
	}

	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "sign in") ||
		strings.Contains(lower, "login required") ||
		strings.Contains(lower, "cookies") ||
		strings.Contains(lower, "private video") ||
		strings.Contains(lower, "age-restricted") ||
		strings.Contains(lower, "members-only"):
		return fmt.Errorf("%w: %s", domain.ErrAuthRequired, firstLine(stderr))
	case strings.Contains(lower, "unsupported url"):
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedURL, firstLine(stderr))
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate-limit") ||
		strings.Contains(lower, "too many requests"):
		return fmt.Errorf("%w: %s", domain.ErrUpstreamUnavailable, firstLine(stderr))
	case stderr != "":
		return fmt.Errorf("%w: %s", domain.ErrExtractionFailed, firstLine(stderr))
	default:
		return fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	// yt-dlp prefixes real failures with "ERROR:"; surface that line.
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(line)
		}
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var _ ports.Extractor = (*Extractor)(nil)
