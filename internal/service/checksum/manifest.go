package checksum

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/installtool/internal/logger"
)

const (
	// fieldSeparator frames manifest records.
	fieldSeparator = "|"
	// digestField is the position of the hex digest.
	digestField = 0
	// filenameField is the position of the artifact filename.
	filenameField = 2
)

// ErrManifestUnavailable is returned when the manifest file cannot be opened or read.
var ErrManifestUnavailable = errors.New("checksum manifest unavailable")

// Manifest maps artifact filename to expected lowercase hex digest.
type Manifest map[string]string

// LoadManifest opens and parses the manifest at path.
func LoadManifest(ctx context.Context, path string) (Manifest, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrManifestUnavailable, err)
	}

	defer func() {
		_ = file.Close()
	}()

	manifest, err := ParseManifest(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrManifestUnavailable, err)
	}

	return manifest, nil
}

// ParseManifest reads pipe-framed records from r.
// Non-conforming lines are skipped; a repeated filename keeps its last digest.
// Lines have no length limit and the last one may omit its newline.
func ParseManifest(ctx context.Context, r io.Reader) (Manifest, error) {
	manifest := make(Manifest)
	reader := bufio.NewReader(r)

	for lineNumber := 1; ; lineNumber++ {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read manifest: %w", err)
		}

		if digest, filename, ok := parseLine(strings.TrimSuffix(line, "\n")); ok {
			if previous, found := manifest[filename]; found && previous != digest {
				logger.WarnKV(ctx, "Manifest lists a file twice, keeping the later digest",
					"file", filename, "line", lineNumber)
			}

			manifest[filename] = digest
		}

		if err != nil {
			return manifest, nil
		}
	}
}

// parseLine extracts digest and filename from one manifest line.
func parseLine(line string) (string, string, bool) {
	line = strings.TrimSuffix(line, "\r")

	if !strings.HasPrefix(line, fieldSeparator) || !strings.HasSuffix(line, fieldSeparator) {
		return "", "", false
	}

	fields := strings.Fields(strings.ReplaceAll(line, fieldSeparator, ""))
	if len(fields) <= filenameField {
		return "", "", false
	}

	return strings.ToLower(fields[digestField]), fields[filenameField], true
}
