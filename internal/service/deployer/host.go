package deployer

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/alessio/shellescape"

	"github.com/oshokin/installtool/internal/config"
	"github.com/oshokin/installtool/internal/domain/release"
	"github.com/oshokin/installtool/internal/logger"
	"github.com/oshokin/installtool/internal/report"
	"github.com/oshokin/installtool/internal/secret"
	"github.com/oshokin/installtool/internal/service/remote"
)

// deployHost drives one host from idle to a terminal state.
func (d *Deployer) deployHost(
	ctx context.Context,
	run *release.HostRun,
	artifacts []release.Artifact,
	stagingDir string,
) {
	host := run.Host.ID
	ctx = logger.WithKV(ctx, "host", string(host))

	defer d.emitOutcome(ctx, run)

	username, password, err := d.opts.Credentials.Credentials(ctx, run.Host)
	if err != nil {
		err = fmt.Errorf("%w: %s: read credentials: %w", ErrSessionEstablish, host, err)
		d.emitSession(ctx, host, err)
		run.Fail(err)

		return
	}

	defer password.Close()

	logger.InfoKV(ctx, "Connecting", "address", run.Host.Address, "username", username)

	session, err := d.opts.Dialer.Dial(ctx, run.Host.Address, username, password)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrSessionEstablish, host, err)
		d.emitSession(ctx, host, err)
		run.Fail(err)

		return
	}

	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Unable to close session", "error", closeErr)
		}
	}()

	d.emitSession(ctx, host, nil)

	d.step(ctx, run, release.StateConnected)

	if d.interrupted(ctx, run) {
		return
	}

	d.ensureDirectory(ctx, run, session, stagingDir)
	d.step(ctx, run, release.StateDirectoryEnsured)

	if d.interrupted(ctx, run) {
		return
	}

	err = session.Upload(ctx, release.Paths(artifacts), stagingDir, true)
	d.emitUpload(ctx, host, artifacts, stagingDir, err)

	if err != nil {
		run.Fail(fmt.Errorf("%w: %s: %w", ErrTransfer, host, err))

		return
	}

	run.Outcome.Uploaded = true
	d.step(ctx, run, release.StateUploaded)

	for i, artifact := range artifacts {
		if d.interrupted(ctx, run) {
			return
		}

		if err = run.Installing(i); err != nil {
			logger.WarnKV(ctx, "Unexpected state transition", "error", err)
		}

		d.install(ctx, run, session, password, artifact, stagingDir)
	}

	run.Finish()
}

// ensureDirectory creates the staging directory. A failure is recorded but
// does not stop the host step; the upload reports the real problem if any.
func (d *Deployer) ensureDirectory(
	ctx context.Context,
	run *release.HostRun,
	session remote.Session,
	stagingDir string,
) {
	command := remote.MakeDirCommand(stagingDir)

	result, err := session.Run(ctx, command)
	d.emitCommand(ctx, run.Host.ID, "", command, false, result, err)

	switch {
	case err != nil:
		run.Record(fmt.Errorf("%w: %s: %w", ErrRemoteCommand, command, err))
	case !result.Succeeded():
		run.Record(fmt.Errorf("%w: %s: exit status %d", ErrRemoteCommand, command, result.ExitStatus))
	default:
		run.Outcome.DirectoryCreated = true
	}
}

// install runs the privileged install command for one uploaded artifact.
func (d *Deployer) install(
	ctx context.Context,
	run *release.HostRun,
	session remote.Session,
	password *secret.Buffer,
	artifact release.Artifact,
	stagingDir string,
) {
	command := InstallCommand(d.opts.InstallCommand, path.Join(stagingDir, artifact.Name))

	var result *remote.CommandResult

	err := password.Use(func(value []byte) error {
		var runErr error

		result, runErr = session.RunPrivileged(ctx, command, value)

		return runErr
	})

	d.emitCommand(ctx, run.Host.ID, artifact.Name, command, true, result, err)

	switch {
	case err != nil:
		run.Record(fmt.Errorf("%w: install %s: %w", ErrRemoteCommand, artifact.Name, err))
	case !result.Succeeded():
		run.Record(fmt.Errorf("%w: install %s: exit status %d", ErrRemoteCommand, artifact.Name, result.ExitStatus))
	}

	run.Outcome.Installed[artifact.Name] = err == nil && result.Succeeded()
}

// InstallCommand substitutes the quoted remote path into template.
func InstallCommand(template, remotePath string) string {
	return strings.ReplaceAll(template, config.PathPlaceholder, shellescape.Quote(remotePath))
}

func containsPlaceholder(template string) bool {
	return strings.Contains(template, config.PathPlaceholder)
}

func (d *Deployer) step(ctx context.Context, run *release.HostRun, to release.HostState) {
	if err := run.Advance(to); err != nil {
		logger.WarnKV(ctx, "Unexpected state transition", "error", err)
	}
}

// interrupted fails run when ctx is done.
func (d *Deployer) interrupted(ctx context.Context, run *release.HostRun) bool {
	err := ctx.Err()
	if err == nil {
		return false
	}

	run.Fail(fmt.Errorf("%s: %w", run.Host.ID, err))

	return true
}

func (d *Deployer) emitSession(ctx context.Context, host release.HostID, err error) {
	message := "Session established"
	if err != nil {
		message = "Session could not be established"
	}

	d.opts.Sink.Emit(ctx, report.Event{
		Kind:    report.KindSession,
		Host:    host,
		OK:      err == nil,
		Err:     err,
		Message: message,
	})
}

func (d *Deployer) emitCommand(
	ctx context.Context,
	host release.HostID,
	artifact, command string,
	privileged bool,
	result *remote.CommandResult,
	err error,
) {
	event := report.Event{
		Kind:       report.KindRemoteCommand,
		Host:       host,
		Artifact:   artifact,
		Command:    command,
		Privileged: privileged,
		OK:         err == nil && result.Succeeded(),
		Err:        err,
		Message:    "Remote command finished",
	}

	if result != nil {
		event.Command = result.Command
		event.ExitStatus = result.ExitStatus
		event.Stdout = result.Stdout
		event.Stderr = result.Stderr
	}

	if event.Command == "" {
		event.Command = command
	}

	d.opts.Sink.Emit(ctx, event)
}

func (d *Deployer) emitUpload(
	ctx context.Context,
	host release.HostID,
	artifacts []release.Artifact,
	stagingDir string,
	err error,
) {
	message := fmt.Sprintf("Uploaded %d artifacts to %s", len(artifacts), stagingDir)
	if err != nil {
		message = fmt.Sprintf("Upload of %d artifacts to %s failed", len(artifacts), stagingDir)
	}

	d.opts.Sink.Emit(ctx, report.Event{
		Kind:    report.KindUpload,
		Host:    host,
		OK:      err == nil,
		Err:     err,
		Message: message,
	})
}

func (d *Deployer) emitOutcome(ctx context.Context, run *release.HostRun) {
	message := fmt.Sprintf("Host %s", run.State)
	if run.SkipReason != "" {
		message += ": " + run.SkipReason
	}

	event := report.Event{
		Kind:    report.KindHostOutcome,
		Host:    run.Host.ID,
		State:   run.State,
		OK:      run.State != release.StateFailed,
		Message: message,
	}

	if !event.OK {
		event.Err = run.Outcome.Err()
	}

	d.opts.Sink.Emit(ctx, event)
}
