package report

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/installtool/internal/domain/release"
	"github.com/oshokin/installtool/internal/logger"
)

// TestMultiAndRunID checks fan-out order and run ID stamping.
func TestMultiAndRunID(t *testing.T) {
	t.Parallel()

	first, second := NewRecorder(), NewRecorder()
	sink := WithRunID(Multi(first, nil, second), "run-42")

	sink.Emit(context.Background(), Event{Kind: KindUpload, Host: release.HostDCC, OK: true})
	sink.Emit(context.Background(), Event{Kind: KindHostOutcome, Host: release.HostDCC})

	for _, recorder := range []*Recorder{first, second} {
		events := recorder.Events()
		require.Len(t, events, 2)
		require.Equal(t, "run-42", events[0].RunID)
		require.Len(t, recorder.OfKind(KindUpload), 1)
	}

	OrDiscard(nil).Emit(context.Background(), Event{Kind: KindSession})
}

// TestLogSink writes command output and failures through the context logger.
func TestLogSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := logger.ToContext(context.Background(), logger.New(zapcore.DebugLevel, &buf))
	sink := NewLogSink()

	sink.Emit(ctx, Event{
		Kind:       KindRemoteCommand,
		RunID:      "run-1",
		Host:       release.HostRCC,
		Command:    "mkdir -p installtool-20261019",
		ExitStatus: 0,
		Stdout:     []string{"created"},
		OK:         true,
	})
	sink.Emit(ctx, Event{
		Kind:     KindChecksum,
		Artifact: "pkg-a.rpm",
		Err:      errors.New("checksum mismatch"),
		Message:  "Checksum verification failed",
	})

	out := buf.String()
	require.Contains(t, out, "INFO")
	require.Contains(t, out, "mkdir -p installtool-20261019")
	require.Contains(t, out, `"run_id": "run-1"`)
	require.Contains(t, out, "ERROR")
	require.Contains(t, out, "Checksum verification failed")
	require.Contains(t, out, "pkg-a.rpm")
}

// TestRenderSummary prints one line per host and one per artifact.
func TestRenderSummary(t *testing.T) {
	t.Parallel()

	artifacts := []release.Artifact{{Name: "pkgA.rpm"}, {Name: "pkgB.rpm"}}

	done := release.NewHostRun(release.HostProfile{ID: release.HostRCC}, artifacts)
	require.NoError(t, done.Advance(release.StateConnected))
	require.NoError(t, done.Advance(release.StateDirectoryEnsured))
	require.NoError(t, done.Advance(release.StateUploaded))

	done.Outcome.Uploaded = true
	done.Outcome.Installed = map[string]bool{"pkgA.rpm": true, "pkgB.rpm": false}
	done.Record(errors.New("install pkgB.rpm: exit status 1"))
	done.Finish()

	skipped := release.NewHostRun(release.HostProfile{ID: release.HostBCC}, nil)
	require.NoError(t, skipped.Skip("halted after RCC failure"))

	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, []*release.HostRun{done, skipped}))

	out := buf.String()
	require.Contains(t, out, "Deployment summary")
	require.Contains(t, out, "RCC")
	require.Contains(t, out, "failed")
	require.Contains(t, out, "1/2 installed")
	require.Contains(t, out, "+ pkgA.rpm")
	require.Contains(t, out, "x pkgB.rpm")
	require.Contains(t, out, "install pkgB.rpm: exit status 1")
	require.Contains(t, out, "BCC")
	require.Contains(t, out, "skipped")
	require.Contains(t, out, "halted after RCC failure")
}
