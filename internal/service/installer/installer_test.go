package installer

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // Manifest format is MD5.
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/installtool/internal/config"
	"github.com/oshokin/installtool/internal/domain/release"
	"github.com/oshokin/installtool/internal/logger"
	"github.com/oshokin/installtool/internal/report"
	"github.com/oshokin/installtool/internal/secret"
	"github.com/oshokin/installtool/internal/service/checksum"
	"github.com/oshokin/installtool/internal/service/common"
	"github.com/oshokin/installtool/internal/service/remote/remotetest"
)

const (
	rccAddress = "10.0.0.1:22"
	dccAddress = "10.0.0.2:22"
	bccAddress = "10.0.0.3:22"
)

// scriptedPrompter answers every question from its fields.
type scriptedPrompter struct {
	acceptIncomplete bool
	acceptDeploy     bool
	continueOnFail   bool

	askedIncomplete int
	askedDeploy     int
}

func (p *scriptedPrompter) Credentials(_ context.Context, host release.HostProfile) (string, *secret.Buffer, error) {
	password, err := secret.NewFromString("s3cret")

	return host.Username, password, err
}

func (p *scriptedPrompter) ContinueAfterFailure(context.Context, *release.HostRun) bool {
	return p.continueOnFail
}

func (p *scriptedPrompter) ConfirmIncomplete(context.Context, *release.ClassificationResult) bool {
	p.askedIncomplete++

	return p.acceptIncomplete
}

func (p *scriptedPrompter) ConfirmDeploy(context.Context, *release.ClassificationResult) bool {
	p.askedDeploy++

	return p.acceptDeploy
}

type fixture struct {
	dir      string
	dialer   *remotetest.Dialer
	prompter *scriptedPrompter
	recorder *report.Recorder
	out      bytes.Buffer
	manifest strings.Builder
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()

	f := &fixture{
		dir:      t.TempDir(),
		dialer:   remotetest.NewDialer(),
		prompter: &scriptedPrompter{acceptDeploy: true},
		recorder: report.NewRecorder(),
	}

	f.dialer.Host(rccAddress)
	f.dialer.Host(dccAddress)
	f.dialer.Host(bccAddress)

	for _, name := range names {
		f.addPackage(t, name, "payload of "+name)
	}

	f.writeManifest(t)

	return f
}

func (f *fixture) addPackage(t *testing.T, name, body string) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(body), 0o600))

	digest := md5.Sum([]byte(body)) //nolint:gosec // Manifest format is MD5.
	fmt.Fprintf(&f.manifest, "| %s | - | %s |\n", hex.EncodeToString(digest[:]), name)
}

func (f *fixture) writeManifest(t *testing.T) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "md5sums.txt"), []byte(f.manifest.String()), 0o600))
}

func (f *fixture) options() *Options {
	return &Options{
		Config: &config.Config{
			Hosts: []config.HostConfig{
				{ID: "RCC", Address: rccAddress, Username: "service", Prefixes: []string{"ckct-DataHandler", "ckct-Recon"}},
				{ID: "DCC", Address: dccAddress, Username: "service", Prefixes: []string{"ckct-Acquisition"}},
				{ID: "BCC", Address: bccAddress, Username: "service", Prefixes: []string{"ckct-BaseCC"}},
			},
			Manifest: filepath.Join(f.dir, "md5sums.txt"),
			Search:   config.SearchConfig{Root: f.dir},
			SSH:      config.SSHConfig{InsecureIgnoreHostKey: true},
		},
		WorkDir:  f.dir,
		Out:      &f.out,
		Prompter: f.prompter,
		Dialer:   f.dialer,
		Sink:     f.recorder,
		Now: func() time.Time {
			return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
		},
	}
}

func fullSet() []string {
	return []string{
		"ckct-DataHandler-3.0-1.x86_64.rpm",
		"ckct-Recon-3.0-1.x86_64.rpm",
		"ckct-Acquisition-3.0-1.armv7l.rpm",
		"ckct-BaseCC-3.0-1.armv7l.rpm",
	}
}

// TestClassify prints the pack list and reports completeness.
func TestClassify(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fullSet()...)

	result, err := Classify(t.Context(), f.options())
	require.NoError(t, err)
	require.True(t, result.Complete)
	require.Contains(t, f.out.String(), "Pack list")
	require.Contains(t, f.out.String(), "ckct-Recon-3.0-1.x86_64.rpm")

	f.addPackage(t, "stray-1.0.rpm", "stray")

	result, err = Classify(t.Context(), f.options())
	require.ErrorIs(t, err, release.ErrClassificationIncomplete)
	require.Equal(t, []string{"stray-1.0.rpm"}, release.Names(result.Unassigned))
	require.Contains(t, f.out.String(), "Unassigned")
}

// TestClassify_LogsDiscoveryOnce writes a single discovery line per run.
func TestClassify_LogsDiscoveryOnce(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := logger.ToContext(t.Context(), logger.New(zapcore.DebugLevel, &buf))
	f := newFixture(t, fullSet()...)

	_, err := Classify(ctx, f.options())
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(buf.String(), "Packages discovered"))
}

// TestClassify_ArchitectureFilter narrows discovery from the options.
func TestClassify_ArchitectureFilter(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fullSet()...)
	opts := f.options()
	opts.Architecture = "armv7l"

	result, err := Classify(t.Context(), opts)
	require.ErrorIs(t, err, release.ErrClassificationIncomplete)
	require.Len(t, result.Assigned(), 2)
}

// TestVerify reports mismatches and missing manifests.
func TestVerify(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fullSet()...)

	result, err := Verify(t.Context(), f.options())
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Contains(t, f.out.String(), "4 of 4 packages verified")

	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "ckct-Recon-3.0-1.x86_64.rpm"), []byte("tampered"), 0o600))

	result, err = Verify(t.Context(), f.options())
	require.ErrorIs(t, err, checksum.ErrChecksumMismatch)
	require.False(t, result.OK)

	opts := f.options()
	opts.Manifest = filepath.Join(f.dir, "absent.txt")

	_, err = Verify(t.Context(), opts)
	require.ErrorIs(t, err, checksum.ErrManifestUnavailable)
}

// TestDeploy_Success runs the whole pipeline against scripted hosts.
func TestDeploy_Success(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fullSet()...)

	result, err := Deploy(t.Context(), f.options())
	require.NoError(t, err)
	require.True(t, result.Succeeded())
	require.Equal(t, "installtool-20261019", result.StagingDir)
	require.Equal(t, []string{rccAddress, dccAddress, bccAddress}, f.dialer.Order())
	require.Equal(t, 1, f.prompter.askedDeploy)
	require.Zero(t, f.prompter.askedIncomplete)
	require.Contains(t, f.out.String(), "Deployment summary")
	require.NoFileExists(t, filepath.Join(f.dir, common.MarkerFilename))

	events := f.recorder.Events()
	require.NotEmpty(t, events)

	runID := events[0].RunID
	require.NotEmpty(t, runID)

	for _, event := range events {
		require.Equal(t, runID, event.RunID)
	}

	require.Len(t, f.recorder.OfKind(report.KindHostOutcome), 3)
}

// TestDeploy_VerificationGate never contacts a host when a checksum fails.
func TestDeploy_VerificationGate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fullSet()...)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "ckct-BaseCC-3.0-1.armv7l.rpm"), []byte("corrupt"), 0o600))

	result, err := Deploy(t.Context(), f.options())
	require.ErrorIs(t, err, checksum.ErrChecksumMismatch)
	require.Nil(t, result)
	require.Empty(t, f.dialer.Order())
	require.Zero(t, f.prompter.askedDeploy)
}

// TestDeploy_IncompleteNeedsConsent asks before deploying a partial set.
func TestDeploy_IncompleteNeedsConsent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fullSet()[:3]...)

	_, err := Deploy(t.Context(), f.options())
	require.ErrorIs(t, err, errDeclined)
	require.ErrorIs(t, err, release.ErrClassificationIncomplete)
	require.Equal(t, 1, f.prompter.askedIncomplete)
	require.Empty(t, f.dialer.Order())

	f.prompter.acceptIncomplete = true

	result, err := Deploy(t.Context(), f.options())
	require.NoError(t, err)
	require.Equal(t, []string{rccAddress, dccAddress}, f.dialer.Order())

	bcc, ok := result.Run(release.HostBCC)
	require.True(t, ok)
	require.Equal(t, release.StateSkipped, bcc.State)
}

// TestDeploy_DeclinedPackList stops at the final confirmation unless AssumeYes is set.
func TestDeploy_DeclinedPackList(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fullSet()...)
	f.prompter.acceptDeploy = false

	_, err := Deploy(t.Context(), f.options())
	require.ErrorIs(t, err, errDeclined)
	require.Empty(t, f.dialer.Order())

	opts := f.options()
	opts.AssumeYes = true

	_, err = Deploy(t.Context(), opts)
	require.NoError(t, err)
	require.Equal(t, 1, f.prompter.askedDeploy)
	require.Len(t, f.dialer.Order(), 3)
}

// TestDeploy_SingleHost restricts the run to the selected host.
func TestDeploy_SingleHost(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "ckct-Acquisition-3.0-1.armv7l.rpm")
	opts := f.options()
	opts.Hosts = []release.HostID{release.HostDCC}

	result, err := Deploy(t.Context(), opts)
	require.NoError(t, err)
	require.Zero(t, f.prompter.askedIncomplete)
	require.Equal(t, []string{dccAddress}, f.dialer.Order())

	rcc, _ := result.Run(release.HostRCC)
	require.Equal(t, release.StateSkipped, rcc.State)
}

// TestDeploy_HostFailure returns the report together with the error.
func TestDeploy_HostFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fullSet()...)
	f.dialer.Host(dccAddress).FailInstall("ckct-Acquisition", 1)

	result, err := Deploy(t.Context(), f.options())
	require.Error(t, err)
	require.NotNil(t, result)
	require.True(t, result.Halted)
	require.Equal(t, []string{rccAddress, dccAddress}, f.dialer.Order())
	require.Contains(t, f.out.String(), "failed")
}

// TestDeploy_ConcurrentRun refuses to start while another run holds the marker.
func TestDeploy_ConcurrentRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fullSet()...)

	marker, err := common.AcquireRunMarker(t.Context(), f.dir)
	require.NoError(t, err)

	defer func() { require.NoError(t, marker.Release()) }()

	_, err = Deploy(t.Context(), f.options())
	require.ErrorIs(t, err, common.ErrAlreadyRunning)
	require.Empty(t, f.dialer.Order())
}

// TestNewSSHDialer loads known hosts up front.
func TestNewSSHDialer(t *testing.T) {
	t.Parallel()

	_, err := newSSHDialer(config.SSHConfig{KnownHosts: filepath.Join(t.TempDir(), "absent")})
	require.ErrorIs(t, err, os.ErrNotExist)

	dialer, err := newSSHDialer(config.SSHConfig{InsecureIgnoreHostKey: true, ConnectTimeout: time.Second})
	require.NoError(t, err)
	require.NotNil(t, dialer)
}
