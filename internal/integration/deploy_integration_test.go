package integration

import (
	"bytes"
	"crypto/md5" //nolint:gosec // Manifest format is MD5.
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/installtool/internal/config"
	"github.com/oshokin/installtool/internal/domain/release"
	"github.com/oshokin/installtool/internal/report"
	"github.com/oshokin/installtool/internal/service/deployer"
	"github.com/oshokin/installtool/internal/service/installer"
	"github.com/oshokin/installtool/internal/service/prompt"
	"github.com/oshokin/installtool/internal/service/remote"
	"github.com/oshokin/installtool/internal/service/remote/sshtest"
)

const (
	testUser     = "service"
	testPassword = "correct horse battery staple"
	stagingDir   = "installtool-20261019"
	sudoPrefix   = "sudo -S -p '' -- sh -c "
)

// host is a simulated target: it creates directories for mkdir, checks the
// sudo password and records which staged packages were installed.
type host struct {
	server *sshtest.Server

	mu        sync.Mutex
	installed []string
	failing   map[string]bool
}

func startHost(t *testing.T, password string, failing ...string) *host {
	t.Helper()

	h := &host{failing: make(map[string]bool)}
	for _, name := range failing {
		h.failing[name] = true
	}

	h.server = sshtest.Start(t, testUser, password, h.shell)

	return h
}

func (h *host) shell(exec *sshtest.Exec) uint32 {
	if fields := strings.Fields(exec.Command); len(fields) == 3 && fields[0] == "mkdir" && fields[1] == "-p" {
		if err := os.MkdirAll(filepath.Join(exec.Dir, fields[2]), 0o750); err != nil {
			_, _ = fmt.Fprintln(exec.Stderr, err)

			return 1
		}

		return 0
	}

	if !strings.HasPrefix(exec.Command, sudoPrefix) {
		return 127
	}

	stdin, _ := io.ReadAll(exec.Stdin)
	if string(stdin) != testPassword+"\n" {
		_, _ = fmt.Fprintln(exec.Stderr, "sudo: 1 incorrect password attempt")

		return 1
	}

	inner := strings.Trim(strings.TrimPrefix(exec.Command, sudoPrefix), "'")
	fields := strings.Fields(inner)
	staged := fields[len(fields)-1]

	if _, err := os.Stat(filepath.Join(exec.Dir, staged)); err != nil {
		_, _ = fmt.Fprintf(exec.Stderr, "error: open of %s failed\n", staged)

		return 1
	}

	name := filepath.Base(staged)
	if h.failing[name] {
		_, _ = fmt.Fprintf(exec.Stderr, "error: %s: dependency problem\n", name)

		return 1
	}

	h.mu.Lock()
	h.installed = append(h.installed, name)
	h.mu.Unlock()

	_, _ = fmt.Fprintf(exec.Stdout, "Preparing...\nUpdating / installing...\n%s\n", name)

	return 0
}

func (h *host) Installed() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string(nil), h.installed...)
}

type releaseFixture struct {
	dir          string
	passwordFile string
	knownHosts   string
	packages     map[release.HostID][]string
}

// newRelease writes packages, a manifest, a password file and a known_hosts
// file trusting every host.
func newRelease(t *testing.T, hosts map[release.HostID]*host) *releaseFixture {
	t.Helper()

	r := &releaseFixture{
		dir: t.TempDir(),
		packages: map[release.HostID][]string{
			release.HostRCC: {"ckct-DataHandler-4.2-1.x86_64.rpm", "ckct-ReconGPU-4.2-1.x86_64.rpm"},
			release.HostDCC: {"ckct-Acquisition-4.2-1.armv7l.rpm"},
			release.HostBCC: {"ckct-BaseCC-4.2-1.armv7l.rpm"},
		},
	}

	var manifest strings.Builder

	for _, names := range r.packages {
		for _, name := range names {
			body := []byte("rpm payload " + name)
			require.NoError(t, os.WriteFile(filepath.Join(r.dir, name), body, 0o640))

			digest := md5.Sum(body) //nolint:gosec // Manifest format is MD5.
			fmt.Fprintf(&manifest, "| %s | - | %s |\n", hex.EncodeToString(digest[:]), name)
		}
	}

	require.NoError(t, os.WriteFile(filepath.Join(r.dir, "md5sums.txt"), []byte(manifest.String()), 0o600))

	r.passwordFile = filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(r.passwordFile, []byte(testPassword+"\n"), 0o600))

	var knownHosts []byte

	for _, id := range release.HostOrder {
		data, err := os.ReadFile(hosts[id].server.KnownHostsFile(t))
		require.NoError(t, err)

		knownHosts = append(knownHosts, data...)
	}

	r.knownHosts = filepath.Join(t.TempDir(), "known_hosts")
	require.NoError(t, os.WriteFile(r.knownHosts, knownHosts, 0o600))

	return r
}

func (r *releaseFixture) options(t *testing.T, hosts map[release.HostID]*host, out io.Writer) *installer.Options {
	t.Helper()

	callback, err := remote.LoadKnownHosts(r.knownHosts)
	require.NoError(t, err)

	return &installer.Options{
		Config: &config.Config{
			Hosts: []config.HostConfig{
				{ID: "RCC", Address: hosts[release.HostRCC].server.Addr, Username: testUser,
					Prefixes: []string{"ckct-DataHandler", "ckct-ReconGPU"}},
				{ID: "DCC", Address: hosts[release.HostDCC].server.Addr, Username: testUser,
					Prefixes: []string{"ckct-Acquisition"}},
				{ID: "BCC", Address: hosts[release.HostBCC].server.Addr, Username: testUser,
					Prefixes: []string{"ckct-BaseCC"}},
			},
			Manifest: filepath.Join(r.dir, "md5sums.txt"),
			Search:   config.SearchConfig{Root: r.dir},
			SSH:      config.SSHConfig{KnownHosts: r.knownHosts},
		},
		AssumeYes: true,
		WorkDir:   r.dir,
		Out:       out,
		Prompter:  prompt.New(strings.NewReader(""), io.Discard, prompt.WithPasswordFile(r.passwordFile)),
		Dialer: remote.NewDialer(
			remote.WithHostKeyCallback(callback),
			remote.WithConnectTimeout(5*time.Second),
		),
		Now: func() time.Time {
			return time.Date(2026, 10, 19, 14, 0, 0, 0, time.Local)
		},
	}
}

func startHosts(t *testing.T, passwords map[release.HostID]string, failing map[release.HostID][]string) map[release.HostID]*host {
	t.Helper()

	hosts := make(map[release.HostID]*host, len(release.HostOrder))
	for _, id := range release.HostOrder {
		password := testPassword
		if override, ok := passwords[id]; ok {
			password = override
		}

		hosts[id] = startHost(t, password, failing[id]...)
	}

	return hosts
}

// TestDeploy_EndToEnd uploads and installs a complete release on three hosts.
func TestDeploy_EndToEnd(t *testing.T) {
	t.Parallel()

	hosts := startHosts(t, nil, nil)
	rel := newRelease(t, hosts)
	recorder := report.NewRecorder()

	var out bytes.Buffer

	opts := rel.options(t, hosts, &out)
	opts.Sink = recorder

	result, err := installer.Deploy(t.Context(), opts)
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	for _, id := range release.HostOrder {
		h := hosts[id]
		require.Equal(t, rel.packages[id], h.Installed(), "host %s", id)

		for _, name := range rel.packages[id] {
			staged := filepath.Join(h.server.Dir, stagingDir, name)

			data, readErr := os.ReadFile(staged)
			require.NoError(t, readErr)
			require.Equal(t, "rpm payload "+name, string(data))

			info, statErr := os.Stat(staged)
			require.NoError(t, statErr)
			require.Equal(t, os.FileMode(0o640), info.Mode().Perm())
		}

		commands := h.server.Commands()
		require.Equal(t, "mkdir -p "+stagingDir, commands[0])

		for _, command := range commands {
			require.NotContains(t, command, testPassword)
		}
	}

	for _, event := range recorder.OfKind(report.KindRemoteCommand) {
		require.NotContains(t, strings.Join(append(event.Stdout, event.Stderr...), "\n"), testPassword)
	}

	require.Contains(t, out.String(), "Deployment summary")
	require.Contains(t, out.String(), "4 of 4 packages verified")
}

// TestDeploy_InstallFailureHalts stops after a host whose install fails.
func TestDeploy_InstallFailureHalts(t *testing.T) {
	t.Parallel()

	hosts := startHosts(t, nil, map[release.HostID][]string{
		release.HostDCC: {"ckct-Acquisition-4.2-1.armv7l.rpm"},
	})
	rel := newRelease(t, hosts)

	result, err := installer.Deploy(t.Context(), rel.options(t, hosts, io.Discard))
	require.ErrorIs(t, err, deployer.ErrRemoteCommand)
	require.True(t, result.Halted)

	dcc, _ := result.Run(release.HostDCC)
	require.Equal(t, release.StateFailed, dcc.State)
	require.True(t, dcc.Outcome.Uploaded)
	require.Equal(t, map[string]bool{"ckct-Acquisition-4.2-1.armv7l.rpm": false}, dcc.Outcome.Installed)

	bcc, _ := result.Run(release.HostBCC)
	require.Equal(t, release.StateSkipped, bcc.State)
	require.Empty(t, hosts[release.HostBCC].server.Commands())
	require.Len(t, hosts[release.HostRCC].Installed(), 2)
}

// TestDeploy_AuthenticationFailure reports a session failure and never
// touches the host.
func TestDeploy_AuthenticationFailure(t *testing.T) {
	t.Parallel()

	hosts := startHosts(t, map[release.HostID]string{release.HostBCC: "another password"}, nil)
	rel := newRelease(t, hosts)

	result, err := installer.Deploy(t.Context(), rel.options(t, hosts, io.Discard))
	require.ErrorIs(t, err, deployer.ErrSessionEstablish)

	bcc, _ := result.Run(release.HostBCC)
	require.Equal(t, release.StateFailed, bcc.State)
	require.False(t, bcc.Outcome.Uploaded)
	require.Empty(t, hosts[release.HostBCC].server.Commands())

	rcc, _ := result.Run(release.HostRCC)
	require.Equal(t, release.StateDone, rcc.State)
}

// TestDeploy_UnknownHostKey refuses hosts missing from known_hosts.
func TestDeploy_UnknownHostKey(t *testing.T) {
	t.Parallel()

	hosts := startHosts(t, nil, nil)
	rel := newRelease(t, hosts)

	opts := rel.options(t, hosts, io.Discard)
	stranger := startHost(t, testPassword)
	opts.Config.Hosts[0].Address = stranger.server.Addr

	result, err := installer.Deploy(t.Context(), opts)
	require.ErrorIs(t, err, deployer.ErrSessionEstablish)
	require.True(t, result.Halted)
	require.Empty(t, stranger.server.Commands())
}
