package checksum

import (
	"crypto/md5" //nolint:gosec // MD5 is what the manifest producers publish.
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// chunkSize is the read size used while hashing.
const chunkSize = 8192

// FileDigest streams the file at path through MD5 and returns lowercase hex.
func FileDigest(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := md5.New() //nolint:gosec // See import.
	buffer := make([]byte, chunkSize)

	if _, err = io.CopyBuffer(hasher, onlyReader{file}, buffer); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// onlyReader hides WriterTo/ReaderFrom so io.CopyBuffer really uses the buffer.
type onlyReader struct {
	io.Reader
}
