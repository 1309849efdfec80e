// Package mirror shells out to lftp to bulk-download FTPS directory trees
// into a local download root.
package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrLftpNotFound indicates the lftp executable could not be resolved on the
// host.
var ErrLftpNotFound = errors.New("lftp executable not found")

// ErrAllMirrorsFailed indicates every discovered link failed to mirror.
var ErrAllMirrorsFailed = errors.New("all mirrors failed")

// Status classifies the outcome of one link.
type Status string

const (
	StatusMirrored Status = "mirrored"
	StatusFailed   Status = "failed"
	StatusTimeout  Status = "timeout"
	StatusSkipped  Status = "skipped"
)

// Result is the per-link outcome, including the remote vs local directory
// count comparison used to sanity-check a mirror.
type Result struct {
	URL        string
	Status     Status
	RemoteDirs int
	LocalDirs  int
	Err        error
}

// Summary aggregates the outcomes of a mirroring run.
type Summary struct {
	Total    int
	Mirrored int
	Failed   int
	TimedOut int
	Skipped  int
	Results  []Result
}

// Mirrorer drives lftp for a set of FTPS links.
type Mirrorer struct {
	LftpPath      string
	Root          string
	Workers       int
	ListTimeout   time.Duration
	MirrorTimeout time.Duration
}

// New resolves the lftp executable (LFTP_PATH overrides PATH lookup) and
// returns a mirrorer writing under root.
func New(root string, workers int) (*Mirrorer, error) {
	lftpPath := os.Getenv("LFTP_PATH")
	if lftpPath == "" {
		resolved, err := exec.LookPath("lftp")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLftpNotFound, err)
		}
		lftpPath = resolved
	}

	if workers <= 0 {
		workers = 8
	}

	return &Mirrorer{
		LftpPath:      lftpPath,
		Root:          root,
		Workers:       workers,
		ListTimeout:   2 * time.Minute,
		MirrorTimeout: 3 * time.Hour,
	}, nil
}

// MirrorAll mirrors every link in two phases: first the remote directory
// counts are fetched for verification, then each link is mirrored and its
// local directory count compared. Links whose remote count could not be
// obtained are skipped. Partially downloaded data is never removed.
func (m *Mirrorer) MirrorAll(ctx context.Context, links []string) (*Summary, error) {
	if err := os.MkdirAll(m.Root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download root: %w", err)
	}

	slog.Info("Fetching remote directory counts", "links", len(links), "workers", m.Workers)
	remoteCounts := m.remoteCounts(ctx, links)

	slog.Info("Mirroring links", "links", len(links))

	summary := &Summary{Total: len(links)}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, m.Workers)
	resultsChan := make(chan Result, len(links))

	for _, link := range links {
		expected, ok := remoteCounts[link]
		if !ok || expected < 0 {
			slog.Warn("Skipping mirror, remote count unavailable", "url", link)
			resultsChan <- Result{URL: link, Status: StatusSkipped, RemoteDirs: -1}
			continue
		}

		wg.Add(1)
		go func(link string, expected int) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			resultsChan <- m.mirrorOne(ctx, link, expected)
		}(link, expected)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for result := range resultsChan {
		summary.Results = append(summary.Results, result)
		switch result.Status {
		case StatusMirrored:
			summary.Mirrored++
		case StatusTimeout:
			summary.TimedOut++
			summary.Failed++
		case StatusSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	slog.Info("Mirroring complete",
		"total", summary.Total,
		"mirrored", summary.Mirrored,
		"failed", summary.Failed,
		"timed_out", summary.TimedOut,
		"skipped", summary.Skipped)

	if summary.Total > 0 && summary.Mirrored == 0 {
		return summary, ErrAllMirrorsFailed
	}
	return summary, nil
}

// remoteCounts runs the listing phase concurrently and returns a count per
// link; -1 marks a failed listing.
func (m *Mirrorer) remoteCounts(ctx context.Context, links []string) map[string]int {
	counts := make(map[string]int, len(links))

	var wg sync.WaitGroup
	var mu sync.Mutex
	semaphore := make(chan struct{}, m.Workers)

	for _, link := range links {
		wg.Add(1)
		go func(link string) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			count, err := m.remoteDirCount(ctx, link)
			if err != nil {
				slog.Error("Failed to list remote directory", "url", link, "error", err)
				count = -1
			} else {
				slog.Info("Remote directory listed", "url", link, "dirs", count)
			}

			mu.Lock()
			counts[link] = count
			mu.Unlock()
		}(link)
	}

	wg.Wait()
	return counts
}

// remoteDirCount lists the remote path and counts its immediate
// subdirectories.
func (m *Mirrorer) remoteDirCount(ctx context.Context, link string) (int, error) {
	host, remotePath, err := splitFTPSURL(link)
	if err != nil {
		return -1, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.ListTimeout)
	defer cancel()

	script := fmt.Sprintf("set ssl:check-hostname no; open ftps://%s; cls -1 %s; bye", host, remotePath)
	cmd := exec.CommandContext(ctx, m.LftpPath, "-e", script)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return -1, fmt.Errorf("lftp cls failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return CountRemoteDirs(stdout.String()), nil
}

// mirrorOne mirrors a single link into <root>/<last-path-segment>/ and
// verifies the local directory count against the remote one.
func (m *Mirrorer) mirrorOne(ctx context.Context, link string, expected int) Result {
	result := Result{URL: link, RemoteDirs: expected}

	host, remotePath, err := splitFTPSURL(link)
	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		return result
	}

	dest := filepath.Join(m.Root, LocalDirName(remotePath))
	if err := os.MkdirAll(dest, 0755); err != nil {
		result.Status = StatusFailed
		result.Err = fmt.Errorf("failed to create %s: %w", dest, err)
		return result
	}

	slog.Info("Mirroring", "url", link, "dest", dest)

	ctx, cancel := context.WithTimeout(ctx, m.MirrorTimeout)
	defer cancel()

	script := fmt.Sprintf("set ssl:check-hostname no; open ftps://%s; mirror --use-pget-n=4 --only-newer --continue --verbose %s .; bye", host, remotePath)
	cmd := exec.CommandContext(ctx, m.LftpPath, "-e", script)
	cmd.Dir = dest

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			result.Status = StatusTimeout
			result.Err = fmt.Errorf("mirror timed out after %s", m.MirrorTimeout)
		} else {
			result.Status = StatusFailed
			result.Err = fmt.Errorf("lftp mirror failed: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		slog.Error("Mirror failed", "url", link, "status", result.Status, "error", result.Err)
		return result
	}

	result.Status = StatusMirrored

	localDirs, err := localDirCount(dest)
	if err != nil {
		slog.Warn("Could not count local directories", "dest", dest, "error", err)
		localDirs = -1
	}
	result.LocalDirs = localDirs

	if localDirs != expected {
		slog.Warn("Directory count mismatch", "url", link, "remote", expected, "local", localDirs)
	} else {
		slog.Info("Directory count matches", "url", link, "dirs", localDirs)
	}

	return result
}

// CountRemoteDirs counts directory entries in `cls -1` output, which marks
// directories with a trailing slash.
func CountRemoteDirs(listing string) int {
	count := 0
	for _, line := range strings.Split(listing, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && strings.HasSuffix(line, "/") {
			count++
		}
	}
	return count
}

// LocalDirName derives the local mirror directory name from the remote path:
// its last non-empty segment, or "ftps_root" for the root path.
func LocalDirName(remotePath string) string {
	trimmed := strings.Trim(remotePath, "/")
	if trimmed == "" {
		return "ftps_root"
	}
	return path.Base(trimmed)
}

func splitFTPSURL(link string) (host, remotePath string, err error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", "", fmt.Errorf("invalid ftps url %q: %w", link, err)
	}
	if u.Scheme != "ftps" || u.Hostname() == "" {
		return "", "", fmt.Errorf("invalid ftps url %q", link)
	}
	return u.Host, u.Path, nil
}

// localDirCount counts the immediate subdirectories of dir.
func localDirCount(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			count++
		}
	}
	return count, nil
}
