//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/installtool/internal/logger"
)

// MarkerFilename is the run marker created in the working directory.
const MarkerFilename = ".installtool.lock"

// ErrAlreadyRunning is returned when another live run holds the marker.
var ErrAlreadyRunning = errors.New("another installtool run is in progress")

// processFinder looks a process up by PID; nil means it is gone.
type processFinder func(pid int) (ps.Process, error)

// RunMarker is a held run marker.
type RunMarker struct {
	// path is the marker file location.
	path string
}

// AcquireRunMarker creates the run marker in dir. A marker left by a process
// that no longer exists is treated as stale and replaced.
func AcquireRunMarker(ctx context.Context, dir string) (*RunMarker, error) {
	return acquireRunMarker(ctx, dir, os.Getpid(), ps.FindProcess)
}

func acquireRunMarker(ctx context.Context, dir string, pid int, find processFinder) (*RunMarker, error) {
	path := filepath.Join(dir, MarkerFilename)

	for attempt := 0; attempt < 2; attempt++ {
		err := writeMarker(path, pid)
		if err == nil {
			logger.DebugKV(ctx, "Run marker acquired", "path", path, "pid", pid)

			return &RunMarker{path: path}, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create run marker: %w", err)
		}

		holder, live := markerHolder(path, find)
		if live {
			return nil, fmt.Errorf("%w (pid %d, marker %s)", ErrAlreadyRunning, holder, path)
		}

		logger.InfoKV(ctx, "Removing stale run marker", "path", path, "pid", holder)

		err = os.Remove(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale run marker: %w", err)
		}
	}

	return nil, fmt.Errorf("%w (marker %s)", ErrAlreadyRunning, path)
}

// Release removes the marker. It is safe to call on a nil marker.
func (m *RunMarker) Release() error {
	if m == nil {
		return nil
	}

	err := os.Remove(m.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove run marker: %w", err)
	}

	return nil
}

func writeMarker(path string, pid int) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // Fixed file name.
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(file, "%d %s\n", pid, currentExecutable())
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	return err
}

// markerHolder reads the marker and reports whether its process still runs
// the same executable. Unreadable markers count as stale. Process names may
// be truncated by the OS, so a prefix match is enough.
func markerHolder(path string, find processFinder) (int, bool) {
	data, err := os.ReadFile(path) //nolint:gosec // Fixed file name.
	if err != nil {
		return 0, false
	}

	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, false
	}

	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return 0, false
	}

	process, err := find(pid)
	if err != nil {
		// Cannot tell; assume the holder is alive.
		return pid, true
	}

	if process == nil {
		return pid, false
	}

	if len(fields) > 1 && !strings.HasPrefix(fields[1], process.Executable()) {
		return pid, false
	}

	return pid, true
}

func currentExecutable() string {
	executable, err := os.Executable()
	if err != nil {
		return filepath.Base(os.Args[0])
	}

	return filepath.Base(executable)
}
