// Package remotetest provides an in-memory remote.Session for tests.
package remotetest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/oshokin/installtool/internal/secret"
	"github.com/oshokin/installtool/internal/service/remote"
)

// ErrUnknownHost is returned when dialing an address with no scripted Host.
var ErrUnknownHost = errors.New("no route to host")

// Call is one recorded command.
type Call struct {
	// Command is the command as requested by the caller.
	Command string
	// Privileged marks RunPrivileged calls.
	Privileged bool
	// Password is the password fed to a privileged command.
	Password string
}

// Upload is one recorded batch transfer.
type Upload struct {
	// Paths are the local files sent.
	Paths []string
	// Dir is the remote target directory.
	Dir string
	// PreserveTimes mirrors the caller's flag.
	PreserveTimes bool
}

// Host scripts the behaviour of one remote address and records what happened on it.
type Host struct {
	// DialErr makes Dial fail.
	DialErr error
	// MkdirStatus is the exit status of plain commands.
	MkdirStatus int
	// UploadErr makes Upload fail.
	UploadErr error
	// InstallStatus maps a substring of the install command to its exit status.
	InstallStatus map[string]int
	// InstallErr maps a substring of the install command to a transport error.
	InstallErr map[string]error

	mu       sync.Mutex
	username string
	password string
	calls    []Call
	uploads  []Upload
	dials    int
	closed   int
}

// FailInstall makes install commands mentioning name exit with status.
func (h *Host) FailInstall(name string, status int) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.InstallStatus == nil {
		h.InstallStatus = make(map[string]int)
	}

	h.InstallStatus[name] = status

	return h
}

// Calls returns the recorded commands in order.
func (h *Host) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]Call(nil), h.calls...)
}

// Uploads returns the recorded transfers in order.
func (h *Host) Uploads() []Upload {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]Upload(nil), h.uploads...)
}

// Login returns the username and password of the last Dial.
func (h *Host) Login() (username, password string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.username, h.password
}

// Dials returns how many times the host was dialed.
func (h *Host) Dials() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.dials
}

// Closed returns how many sessions were closed.
func (h *Host) Closed() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.closed
}

// Dialer hands out Sessions for scripted hosts.
type Dialer struct {
	mu    sync.Mutex
	hosts map[string]*Host
	order []string
}

// NewDialer returns a Dialer with no hosts.
func NewDialer() *Dialer {
	return &Dialer{hosts: make(map[string]*Host)}
}

// Host returns the scripted host for address, creating it on first use.
func (d *Dialer) Host(address string) *Host {
	d.mu.Lock()
	defer d.mu.Unlock()

	host, ok := d.hosts[address]
	if !ok {
		host = new(Host)
		d.hosts[address] = host
	}

	return host
}

// Order returns dialed addresses in order.
func (d *Dialer) Order() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.order...)
}

// Dial opens a session on the scripted host for address.
//
//nolint:ireturn // Satisfies the deployer's Dialer.
func (d *Dialer) Dial(ctx context.Context, address, username string, password *secret.Buffer) (remote.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.order = append(d.order, address)
	host, ok := d.hosts[address]
	d.mu.Unlock()

	if !ok {
		return nil, ErrUnknownHost
	}

	host.mu.Lock()
	defer host.mu.Unlock()

	host.dials++
	host.username = username

	err := password.Use(func(value []byte) error {
		host.password = string(value)

		return nil
	})
	if err != nil {
		return nil, err
	}

	if host.DialErr != nil {
		return nil, host.DialErr
	}

	return &session{host: host}, nil
}

// session implements remote.Session against a Host script.
type session struct {
	host *Host
}

func (s *session) Run(ctx context.Context, command string) (*remote.CommandResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.host.mu.Lock()
	defer s.host.mu.Unlock()

	s.host.calls = append(s.host.calls, Call{Command: command})

	result := &remote.CommandResult{Command: command, ExitStatus: s.host.MkdirStatus}
	if result.ExitStatus != 0 {
		result.Stderr = []string{"mkdir: cannot create directory: Permission denied"}
	}

	return result, nil
}

func (s *session) RunPrivileged(ctx context.Context, command string, password []byte) (*remote.CommandResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.host.mu.Lock()
	defer s.host.mu.Unlock()

	s.host.calls = append(s.host.calls, Call{Command: command, Privileged: true, Password: string(password)})

	for fragment, err := range s.host.InstallErr {
		if strings.Contains(command, fragment) {
			return nil, err
		}
	}

	result := &remote.CommandResult{Command: remote.PrivilegedCommand(command)}

	for fragment, status := range s.host.InstallStatus {
		if strings.Contains(command, fragment) {
			result.ExitStatus = status
			result.Stderr = []string{"error: " + fragment + ": install failed"}

			return result, nil
		}
	}

	result.Stdout = []string{"Preparing...", "Updating / installing..."}

	return result, nil
}

func (s *session) Upload(ctx context.Context, localPaths []string, remoteDir string, preserveTimes bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.host.mu.Lock()
	defer s.host.mu.Unlock()

	s.host.uploads = append(s.host.uploads, Upload{
		Paths:         append([]string(nil), localPaths...),
		Dir:           remoteDir,
		PreserveTimes: preserveTimes,
	})

	return s.host.UploadErr
}

func (s *session) Close() error {
	s.host.mu.Lock()
	defer s.host.mu.Unlock()

	s.host.closed++

	return nil
}
