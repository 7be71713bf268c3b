package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/oshokin/installtool/internal/secret"
	"github.com/oshokin/installtool/internal/version"
)

// DefaultConnectTimeout bounds TCP connect plus the SSH handshake.
const DefaultConnectTimeout = 10 * time.Second

var (
	// errAddressRequired is returned when Dial is called without an address.
	errAddressRequired = errors.New("address must be provided")
	// errUsernameRequired is returned when Dial is called without a username.
	errUsernameRequired = errors.New("username must be provided")
	// errPasswordRequired is returned when Dial is called without a password.
	errPasswordRequired = errors.New("password must be provided")
	// errHostKeyPolicy is returned when no host key callback was configured.
	errHostKeyPolicy = errors.New("host key callback must be provided")
	// errClientClosed is returned when a closed client is used.
	errClientClosed = errors.New("client is closed")
)

// Session is the set of remote operations a deployment needs from one host.
type Session interface {
	// Run executes command as the login user.
	Run(ctx context.Context, command string) (*CommandResult, error)
	// RunPrivileged executes command through sudo, feeding password on stdin.
	RunPrivileged(ctx context.Context, command string, password []byte) (*CommandResult, error)
	// Upload copies localPaths into remoteDir in one transfer session.
	Upload(ctx context.Context, localPaths []string, remoteDir string, preserveTimes bool) error
	// Close releases the connection.
	Close() error
}

// CommandResult is the captured outcome of one remote command.
type CommandResult struct {
	// Command is the command line as sent to the host.
	Command string
	// ExitStatus is the remote exit code.
	ExitStatus int
	// Stdout holds standard output split into lines.
	Stdout []string
	// Stderr holds standard error split into lines.
	Stderr []string
}

// Succeeded reports whether the command exited with status zero.
func (r *CommandResult) Succeeded() bool {
	return r != nil && r.ExitStatus == 0
}

// Option configures how Dial connects.
type Option func(*dialOptions)

// dialOptions collects the settings applied by Option values.
type dialOptions struct {
	// connectTimeout bounds connect plus handshake.
	connectTimeout time.Duration
	// hostKeyCallback verifies the server key.
	hostKeyCallback ssh.HostKeyCallback
	// hostKeyErr remembers a failure to build hostKeyCallback.
	hostKeyErr error
}

// WithConnectTimeout overrides DefaultConnectTimeout.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(o *dialOptions) {
		if timeout > 0 {
			o.connectTimeout = timeout
		}
	}
}

// WithHostKeyCallback sets the callback used to verify the server key.
func WithHostKeyCallback(callback ssh.HostKeyCallback) Option {
	return func(o *dialOptions) {
		o.hostKeyCallback = callback
		o.hostKeyErr = nil
	}
}

// WithKnownHosts verifies server keys against an OpenSSH known_hosts file.
// A leading "~/" is expanded to the current user's home directory.
func WithKnownHosts(path string) Option {
	return func(o *dialOptions) {
		o.hostKeyCallback, o.hostKeyErr = LoadKnownHosts(path)
	}
}

// WithInsecureHostKey accepts any server key.
func WithInsecureHostKey() Option {
	return WithHostKeyCallback(ssh.InsecureIgnoreHostKey()) //nolint:gosec // Explicit operator opt-in.
}

// Client is an authenticated SSH connection to one host.
type Client struct {
	// conn is the underlying SSH client; nil after Close.
	conn *ssh.Client
	// address is the host:port the client is connected to.
	address string
}

// Dial connects to address and authenticates with username and password.
// The context bounds the TCP connect; the handshake is bounded by the
// connect timeout.
func Dial(
	ctx context.Context,
	address, username string,
	password *secret.Buffer,
	opts ...Option,
) (*Client, error) {
	switch {
	case address == "":
		return nil, errAddressRequired
	case username == "":
		return nil, errUsernameRequired
	case password == nil:
		return nil, errPasswordRequired
	}

	options := dialOptions{connectTimeout: DefaultConnectTimeout}
	for _, opt := range opts {
		opt(&options)
	}

	if options.hostKeyErr != nil {
		return nil, fmt.Errorf("load host keys: %w", options.hostKeyErr)
	}

	if options.hostKeyCallback == nil {
		return nil, errHostKeyPolicy
	}

	if err := password.Use(func([]byte) error { return nil }); err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}

	config := &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{ssh.PasswordCallback(passwordCallback(password))},
		HostKeyCallback: options.hostKeyCallback,
		ClientVersion:   version.SSHClientVersion(),
		Timeout:         options.connectTimeout,
	}

	dialer := net.Dialer{Timeout: options.connectTimeout}

	netConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", address, err)
	}

	err = netConn.SetDeadline(time.Now().Add(options.connectTimeout))
	if err != nil {
		_ = netConn.Close()

		return nil, fmt.Errorf("set handshake deadline: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, address, config)
	if err != nil {
		_ = netConn.Close()

		return nil, fmt.Errorf("ssh handshake with %s: %w", address, err)
	}

	// Clear the handshake deadline; long installs must not time out.
	err = netConn.SetDeadline(time.Time{})
	if err != nil {
		_ = sshConn.Close()

		return nil, fmt.Errorf("clear handshake deadline: %w", err)
	}

	return &Client{
		conn:    ssh.NewClient(sshConn, chans, reqs),
		address: address,
	}, nil
}

// Address returns the host:port the client is connected to.
func (c *Client) Address() string {
	return c.address
}

// Run executes command as the login user and captures its output.
// A non-zero exit is reported in the result, not as an error.
func (c *Client) Run(ctx context.Context, command string) (*CommandResult, error) {
	return c.exec(ctx, command, nil)
}

// RunPrivileged executes command through sudo. The password and a newline
// are written to stdin right after the command starts, then stdin is closed.
func (c *Client) RunPrivileged(ctx context.Context, command string, password []byte) (*CommandResult, error) {
	return c.exec(ctx, PrivilegedCommand(command), password)
}

func (c *Client) exec(ctx context.Context, command string, password []byte) (*CommandResult, error) {
	if c == nil || c.conn == nil {
		return nil, errClientClosed
	}

	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	session, err := c.conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	defer session.Close()

	var stdout, stderr bytes.Buffer

	session.Stdout = &stdout
	session.Stderr = &stderr

	if password == nil {
		return newResult(command, &stdout, &stderr, session.Run(command))
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin: %w", err)
	}

	err = session.Start(command)
	if err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	err = feedPassword(stdin, password)
	if err != nil {
		_ = session.Wait()

		return nil, err
	}

	return newResult(command, &stdout, &stderr, session.Wait())
}

// Close releases the SSH connection. It is safe to call more than once.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close connection to %s: %w", c.address, err)
	}

	return nil
}

// Dialer opens Sessions with a fixed set of options.
type Dialer struct {
	// opts are applied to every Dial call.
	opts []Option
}

// NewDialer returns a Dialer that applies opts to every connection.
func NewDialer(opts ...Option) *Dialer {
	return &Dialer{opts: opts}
}

// Dial connects to address and returns the connection as a Session.
//
//nolint:ireturn // Callers consume the Session interface.
func (d *Dialer) Dial(ctx context.Context, address, username string, password *secret.Buffer) (Session, error) {
	client, err := Dial(ctx, address, username, password, d.opts...)
	if err != nil {
		return nil, err
	}

	return client, nil
}

// passwordCallback reads the password from the buffer only when the server asks for it,
// so the client config never holds a copy.
func passwordCallback(password *secret.Buffer) func() (string, error) {
	return func() (string, error) {
		var plain string

		err := password.Use(func(data []byte) error {
			plain = string(data)

			return nil
		})
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}

		return plain, nil
	}
}
