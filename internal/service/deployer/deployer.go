package deployer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/installtool/internal/config"
	"github.com/oshokin/installtool/internal/domain/release"
	"github.com/oshokin/installtool/internal/logger"
	"github.com/oshokin/installtool/internal/report"
	"github.com/oshokin/installtool/internal/secret"
	"github.com/oshokin/installtool/internal/service/remote"
)

var (
	// ErrSessionEstablish is returned when a host could not be connected to.
	ErrSessionEstablish = errors.New("session could not be established")
	// ErrRemoteCommand is returned when a remote command exits non-zero or cannot run.
	ErrRemoteCommand = errors.New("remote command failed")
	// ErrTransfer is returned when the batch upload fails.
	ErrTransfer = errors.New("transfer failed")

	// errHalted is reported when the operator declines to continue after a failure.
	errHalted = errors.New("deployment halted after a failed host")
	// errDialerRequired is returned by New without a Dialer.
	errDialerRequired = errors.New("dialer must be provided")
	// errCredentialsRequired is returned by New without a CredentialSource.
	errCredentialsRequired = errors.New("credential source must be provided")
	// errPlaceholderMissing is returned when the install template lacks the path placeholder.
	errPlaceholderMissing = errors.New("install command must contain " + config.PathPlaceholder)
)

const (
	// stagingDateLayout formats the run date in staging directory names.
	stagingDateLayout = "20060102"

	skipNoArtifacts = "no artifacts for this host"
	skipHalted      = "deployment halted after a failed host"
	skipCancelled   = "deployment cancelled"
)

// Dialer opens a remote session to one host.
type Dialer interface {
	Dial(ctx context.Context, address, username string, password *secret.Buffer) (remote.Session, error)
}

// CredentialSource supplies the login for one host. The returned buffer is
// owned by the deployer and closed when the host step ends.
type CredentialSource interface {
	Credentials(ctx context.Context, host release.HostProfile) (username string, password *secret.Buffer, err error)
}

// Confirmer decides whether the run goes on after a host has failed.
type Confirmer interface {
	ContinueAfterFailure(ctx context.Context, failed *release.HostRun) bool
}

// Options configure a Deployer.
type Options struct {
	// Dialer opens sessions. Required.
	Dialer Dialer
	// Credentials supplies logins. Required.
	Credentials CredentialSource
	// Confirmer is asked after a failed host; nil always halts.
	Confirmer Confirmer
	// Sink receives audit events; nil discards them.
	Sink report.Sink
	// InstallCommand is the install template containing config.PathPlaceholder.
	InstallCommand string
	// StagingPrefix names the staging directory, before the date suffix.
	StagingPrefix string
	// Now returns the run start time; defaults to time.Now.
	Now func() time.Time
}

// Deployer runs sequential deployments.
type Deployer struct {
	// opts are the validated options with defaults applied.
	opts Options
}

// New validates opts and fills in defaults.
func New(opts Options) (*Deployer, error) {
	if opts.Dialer == nil {
		return nil, errDialerRequired
	}

	if opts.Credentials == nil {
		return nil, errCredentialsRequired
	}

	if opts.InstallCommand == "" {
		opts.InstallCommand = config.DefaultInstallCommand
	}

	if !containsPlaceholder(opts.InstallCommand) {
		return nil, errPlaceholderMissing
	}

	if opts.StagingPrefix == "" {
		opts.StagingPrefix = config.DefaultStagingPrefix
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	opts.Sink = report.OrDiscard(opts.Sink)

	return &Deployer{opts: opts}, nil
}

// Report is the result of one Deploy call.
type Report struct {
	// StagingDir is the remote directory used on every host.
	StagingDir string
	// Runs holds one entry per host in registry order.
	Runs []*release.HostRun
	// Halted is set when the run stopped after a failed host.
	Halted bool
	// Interrupted is the context error that stopped the run, if any.
	Interrupted error
}

// Run returns the entry for host.
func (r *Report) Run(host release.HostID) (*release.HostRun, bool) {
	for _, run := range r.Runs {
		if run.Host.ID == host {
			return run, true
		}
	}

	return nil, false
}

// Succeeded reports whether no host failed and every host with artifacts was reached.
func (r *Report) Succeeded() bool {
	return r.Err() == nil
}

// Err joins the failures of every failed host with the halt or interrupt reason.
func (r *Report) Err() error {
	var errs []error

	for _, run := range r.Runs {
		if run.State == release.StateFailed {
			errs = append(errs, fmt.Errorf("%s: %w", run.Host.ID, run.Outcome.Err()))
		}
	}

	if r.Halted {
		errs = append(errs, errHalted)
	}

	if r.Interrupted != nil {
		errs = append(errs, r.Interrupted)
	}

	return errors.Join(errs...)
}

// StagingDir returns the staging directory name for a run starting at now.
func StagingDir(prefix string, now time.Time) string {
	return prefix + "-" + now.Format(stagingDateLayout)
}

// Deploy deploys every group of classification to its host, in registry order.
func (d *Deployer) Deploy(
	ctx context.Context,
	registry *release.Registry,
	classification *release.ClassificationResult,
) *Report {
	ctx = logger.WithName(ctx, "deployer")

	result := &Report{
		StagingDir: StagingDir(d.opts.StagingPrefix, d.opts.Now()),
	}

	profiles := registry.Profiles()
	for i, profile := range profiles {
		group, _ := classification.Group(profile.ID)
		run := release.NewHostRun(profile, group.Artifacts)
		result.Runs = append(result.Runs, run)

		switch {
		case result.Halted:
			d.skip(ctx, run, skipHalted)
		case ctx.Err() != nil:
			result.Interrupted = ctx.Err()
			d.skip(ctx, run, skipCancelled)
		case len(group.Artifacts) == 0:
			d.skip(ctx, run, skipNoArtifacts)
		default:
			d.deployHost(ctx, run, group.Artifacts, result.StagingDir)

			if run.State == release.StateFailed && hasPendingWork(profiles[i+1:], classification) &&
				!d.continueAfterFailure(ctx, run) {
				result.Halted = true
			}
		}
	}

	if result.Interrupted == nil && ctx.Err() != nil {
		result.Interrupted = ctx.Err()
	}

	return result
}

func (d *Deployer) continueAfterFailure(ctx context.Context, run *release.HostRun) bool {
	if d.opts.Confirmer == nil {
		return false
	}

	proceed := d.opts.Confirmer.ContinueAfterFailure(ctx, run)

	logger.InfoKV(ctx, "Operator decision after host failure", "host", string(run.Host.ID), "continue", proceed)

	return proceed
}

func (d *Deployer) skip(ctx context.Context, run *release.HostRun, reason string) {
	err := run.Skip(reason)
	if err != nil {
		logger.WarnKV(ctx, "Unable to skip host", "host", string(run.Host.ID), "error", err)
	}

	d.emitOutcome(ctx, run)
}

// hasPendingWork reports whether any of the remaining hosts has artifacts.
func hasPendingWork(remaining []release.HostProfile, classification *release.ClassificationResult) bool {
	for _, profile := range remaining {
		group, ok := classification.Group(profile.ID)
		if ok && len(group.Artifacts) > 0 {
			return true
		}
	}

	return false
}
