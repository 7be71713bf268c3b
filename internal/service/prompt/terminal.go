package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/oshokin/installtool/internal/domain/release"
	"github.com/oshokin/installtool/internal/logger"
	"github.com/oshokin/installtool/internal/secret"
)

var (
	// errNoTerminal is returned when a password prompt has no terminal to read from.
	errNoTerminal = errors.New("no terminal available for password prompt (use --password-file)")
	// errEmptyPasswordFile is returned when the password file holds only line breaks.
	errEmptyPasswordFile = errors.New("password file is empty")
	// errEmptyUsername is returned when neither the operator nor the profile gave a username.
	errEmptyUsername = errors.New("username is empty")
)

// Terminal talks to the operator over a reader and a writer.
type Terminal struct {
	// in reads answers line by line.
	in *bufio.Reader
	// out receives questions.
	out io.Writer
	// passwordFile replaces the interactive password prompt when set.
	passwordFile string
	// readPassword reads one password without echo.
	readPassword func() ([]byte, error)
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithPasswordFile reads every password from path instead of prompting.
func WithPasswordFile(path string) Option {
	return func(t *Terminal) {
		t.passwordFile = path
	}
}

// WithPasswordReader replaces the no-echo terminal read.
func WithPasswordReader(read func() ([]byte, error)) Option {
	return func(t *Terminal) {
		t.readPassword = read
	}
}

// New returns a Terminal reading from in and writing to out. Passwords are
// read without echo when in is a terminal.
func New(in io.Reader, out io.Writer, opts ...Option) *Terminal {
	t := &Terminal{
		in:  bufio.NewReader(in),
		out: out,
	}

	t.readPassword = func() ([]byte, error) {
		file, ok := in.(*os.File)
		if !ok || !term.IsTerminal(int(file.Fd())) {
			return nil, errNoTerminal
		}

		return term.ReadPassword(int(file.Fd()))
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Credentials asks for the login of host. With a password file the
// profile's username is used as is.
func (t *Terminal) Credentials(ctx context.Context, host release.HostProfile) (string, *secret.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	if t.passwordFile != "" {
		if host.Username == "" {
			return "", nil, fmt.Errorf("%s: %w", host.ID, errEmptyUsername)
		}

		password, err := readPasswordFile(t.passwordFile)
		if err != nil {
			return "", nil, err
		}

		logger.DebugKV(ctx, "Password read from file", "host", string(host.ID))

		return host.Username, password, nil
	}

	username, err := t.ask(fmt.Sprintf("Username for %s (%s) [%s]: ", host.ID, host.Address, host.Username))
	if err != nil {
		return "", nil, fmt.Errorf("read username: %w", err)
	}

	if username == "" {
		username = host.Username
	}

	if username == "" {
		return "", nil, fmt.Errorf("%s: %w", host.ID, errEmptyUsername)
	}

	_, _ = fmt.Fprintf(t.out, "Password for %s@%s: ", username, host.ID)

	data, err := t.readPassword()

	_, _ = fmt.Fprintln(t.out)

	if err != nil {
		secret.Zero(data)

		return "", nil, fmt.Errorf("read password: %w", err)
	}

	password, err := secret.NewFromBytes(data)
	if err != nil {
		return "", nil, fmt.Errorf("read password: %w", err)
	}

	return username, password, nil
}

// ContinueAfterFailure shows why host failed and asks whether the remaining hosts
// should still be deployed. Anything but an explicit yes halts.
func (t *Terminal) ContinueAfterFailure(ctx context.Context, failed *release.HostRun) bool {
	_, _ = fmt.Fprintf(t.out, "%s failed: %v\n", failed.Host.ID, failed.Outcome.Err())

	return t.confirm(ctx, "Continue with the remaining hosts? [y/N]: ")
}

// ConfirmIncomplete shows the classification gaps and asks whether to deploy anyway.
func (t *Terminal) ConfirmIncomplete(ctx context.Context, result *release.ClassificationResult) bool {
	_, _ = fmt.Fprintln(t.out, result.Err())

	return t.confirm(ctx, "Deploy the incomplete set anyway? [y/N]: ")
}

// ConfirmDeploy prints the pack list of every host and asks for the final
// go-ahead. The system software must be shut down before packages are replaced.
func (t *Terminal) ConfirmDeploy(ctx context.Context, classification *release.ClassificationResult) bool {
	_, _ = fmt.Fprintln(t.out, "Pack list:")

	for _, group := range classification.Groups {
		names := "(none)"
		if len(group.Artifacts) > 0 {
			names = strings.Join(release.Names(group.Artifacts), ", ")
		}

		_, _ = fmt.Fprintf(t.out, "  %s (%s): %s\n", group.Host.ID, group.Host.Address, names)
	}

	return t.confirm(ctx, "Is the system software shut down, and should the deployment start? [y/N]: ")
}

func (t *Terminal) confirm(ctx context.Context, question string) bool {
	if ctx.Err() != nil {
		return false
	}

	answer, err := t.ask(question)
	if err != nil {
		logger.WarnKV(ctx, "No answer from operator", "error", err)

		return false
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (t *Terminal) ask(question string) (string, error) {
	_, _ = fmt.Fprint(t.out, question)

	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}

	return strings.TrimSpace(line), nil
}

// readPasswordFile loads a password, dropping trailing line breaks.
func readPasswordFile(path string) (*secret.Buffer, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Operator-supplied path.
	if err != nil {
		return nil, fmt.Errorf("read password file: %w", err)
	}

	trimmed := data
	for len(trimmed) > 0 && (trimmed[len(trimmed)-1] == '\n' || trimmed[len(trimmed)-1] == '\r') {
		trimmed = trimmed[:len(trimmed)-1]
	}

	if len(trimmed) == 0 {
		secret.Zero(data)

		return nil, fmt.Errorf("%s: %w", path, errEmptyPasswordFile)
	}

	buffer, err := secret.NewFromBytes(trimmed)

	secret.Zero(data)

	if err != nil {
		return nil, err
	}

	return buffer, nil
}
