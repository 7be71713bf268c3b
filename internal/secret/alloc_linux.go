//go:build linux

package secret

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// allocate maps size bytes outside the Go heap, locks them in RAM and
// excludes them from core dumps.
func allocate(size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap secret: %w", err)
	}

	if err = unix.Mlock(data); err != nil {
		_ = unix.Munmap(data)

		return nil, nil, fmt.Errorf("mlock secret: %w", err)
	}

	if err = unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		_ = unix.Munlock(data)
		_ = unix.Munmap(data)

		return nil, nil, fmt.Errorf("madvise secret: %w", err)
	}

	return data, release, nil
}

func release(data []byte) error {
	if err := unix.Munlock(data); err != nil {
		_ = unix.Munmap(data)

		return fmt.Errorf("munlock secret: %w", err)
	}

	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap secret: %w", err)
	}

	return nil
}
