package secret

import (
	"errors"
	"sync"
)

var (
	// errEmptySecret is returned when a buffer would hold nothing.
	errEmptySecret = errors.New("secret is empty")
	// errClosed is returned when a closed buffer is read.
	errClosed = errors.New("secret buffer is closed")
)

// Buffer holds sensitive bytes and zeroes them on Close.
// A Buffer must not be copied after creation.
type Buffer struct {
	// mu guards data and closed.
	mu sync.Mutex
	// data is the protected region; nil after Close.
	data []byte
	// release returns the region to the system once it has been zeroed.
	release func([]byte) error
	// closed reports whether Close has already run.
	closed bool
}

// NewFromBytes copies source into a protected buffer and zeroes source,
// so the caller's slice no longer holds the secret.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, errEmptySecret
	}

	data, release, err := allocate(len(source))
	if err != nil {
		Zero(source)

		return nil, err
	}

	copy(data, source)
	Zero(source)

	return &Buffer{
		data:    data,
		release: release,
	}, nil
}

// NewFromString is NewFromBytes for values that arrive as strings
// (flags, environment). The string itself cannot be wiped.
func NewFromString(source string) (*Buffer, error) {
	return NewFromBytes([]byte(source))
}

// Use calls fn with the secret bytes while holding the buffer lock.
// fn must not retain the slice.
func (b *Buffer) Use(fn func(secret []byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed
	}

	return fn(b.data)
}

// Len returns the size of the secret, or zero after Close.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.data)
}

// String never reveals the contents; it exists so a Buffer that slips into
// a log line prints a placeholder.
func (b *Buffer) String() string {
	return "[REDACTED]"
}

// Close zeroes and releases the buffer. It is idempotent and nil-safe.
func (b *Buffer) Close() error {
	if b == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	Zero(b.data)

	err := b.release(b.data)
	b.data = nil

	return err
}

// Zero overwrites data with zero bytes.
func Zero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
