package installer

import (
	"context"
	"fmt"
	"os"

	"github.com/oshokin/installtool/internal/config"
	"github.com/oshokin/installtool/internal/domain/release"
	"github.com/oshokin/installtool/internal/logger"
	"github.com/oshokin/installtool/internal/report"
	"github.com/oshokin/installtool/internal/service/checksum"
	"github.com/oshokin/installtool/internal/service/classifier"
	"github.com/oshokin/installtool/internal/service/common"
	"github.com/oshokin/installtool/internal/service/deployer"
	"github.com/oshokin/installtool/internal/service/prompt"
	"github.com/oshokin/installtool/internal/service/remote"
)

// Classify discovers packages, assigns them to hosts and prints the pack list.
// The returned error wraps release.ErrClassificationIncomplete when the batch
// does not match the host profiles.
func Classify(ctx context.Context, opts *Options) (*release.ClassificationResult, error) {
	ctx, r, err := newRunner(ctx, opts, "classify")
	if err != nil {
		return nil, err
	}

	artifacts, err := r.discover(ctx)
	if err != nil {
		return nil, err
	}

	result := r.classify(ctx, artifacts)

	if err = renderClassification(r.out, result); err != nil {
		return result, fmt.Errorf("write pack list: %w", err)
	}

	return result, result.Err()
}

// Verify discovers packages and checks every one against the manifest.
func Verify(ctx context.Context, opts *Options) (*checksum.Result, error) {
	ctx, r, err := newRunner(ctx, opts, "verify")
	if err != nil {
		return nil, err
	}

	artifacts, err := r.discover(ctx)
	if err != nil {
		return nil, err
	}

	result, err := r.verify(ctx, artifacts)
	if err != nil {
		return nil, err
	}

	return result, result.Err()
}

// Deploy verifies, classifies and deploys the discovered packages. Nothing is
// sent to any host unless every package verifies and the operator accepts the
// pack list.
func Deploy(ctx context.Context, opts *Options) (*deployer.Report, error) {
	ctx, r, err := newRunner(ctx, opts, "deploy")
	if err != nil {
		return nil, err
	}

	marker, err := common.AcquireRunMarker(ctx, r.workDir())
	if err != nil {
		return nil, err
	}

	defer func() {
		if releaseErr := marker.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Unable to remove run marker", "error", releaseErr)
		}
	}()

	artifacts, err := r.discover(ctx)
	if err != nil {
		return nil, err
	}

	verification, err := r.verify(ctx, artifacts)
	if err != nil {
		return nil, err
	}

	if !verification.OK {
		return nil, fmt.Errorf("verify packages: %w", verification.Err())
	}

	classification := r.classify(ctx, artifacts)

	if err = renderClassification(r.out, classification); err != nil {
		return nil, fmt.Errorf("write pack list: %w", err)
	}

	prompter := r.prompter()

	if !classification.Complete {
		if !prompter.ConfirmIncomplete(ctx, classification) {
			return nil, fmt.Errorf("%w: %w", errDeclined, classification.Err())
		}

		logger.WarnKV(ctx, "Deploying an incomplete package set", "reason", classification.Err())
	}

	if !r.opts.AssumeYes && !prompter.ConfirmDeploy(ctx, classification) {
		return nil, errDeclined
	}

	dialer, err := r.dialer()
	if err != nil {
		return nil, err
	}

	deploy, err := deployer.New(deployer.Options{
		Dialer:         dialer,
		Credentials:    prompter,
		Confirmer:      prompter,
		Sink:           r.sink,
		InstallCommand: r.cfg.InstallCommand,
		StagingPrefix:  r.cfg.StagingPrefix,
		Now:            r.now,
	})
	if err != nil {
		return nil, err
	}

	result := deploy.Deploy(ctx, r.registry, classification)

	if err = report.RenderSummary(r.out, result.Runs); err != nil {
		logger.WarnKV(ctx, "Unable to write deployment summary", "error", err)
	}

	if err = result.Err(); err != nil {
		return result, err
	}

	logger.Info(ctx, "Deployment finished")

	return result, nil
}

func (r *runner) classify(ctx context.Context, artifacts []release.Artifact) *release.ClassificationResult {
	result := classifier.Classify(ctx, artifacts, r.registry, r.sink)

	if len(r.opts.Hosts) > 0 {
		result = result.Restrict(r.opts.Hosts)
	}

	return result
}

func (r *runner) verify(ctx context.Context, artifacts []release.Artifact) (*checksum.Result, error) {
	result, err := checksum.NewVerifier(r.sink).Verify(ctx, artifacts, r.cfg.Manifest)
	if err != nil {
		return nil, err
	}

	if err = renderVerification(r.out, result); err != nil {
		return nil, fmt.Errorf("write verification report: %w", err)
	}

	return result, nil
}

func (r *runner) prompter() Prompter { //nolint:ireturn // Options carry an interface.
	if r.opts.Prompter != nil {
		return r.opts.Prompter
	}

	var opts []prompt.Option
	if r.opts.PasswordFile != "" {
		opts = append(opts, prompt.WithPasswordFile(r.opts.PasswordFile))
	}

	return prompt.New(os.Stdin, os.Stderr, opts...)
}

func (r *runner) dialer() (deployer.Dialer, error) { //nolint:ireturn // Options carry an interface.
	if r.opts.Dialer != nil {
		return r.opts.Dialer, nil
	}

	dialer, err := newSSHDialer(r.cfg.SSH)
	if err != nil {
		return nil, err
	}

	return dialer, nil
}

// newSSHDialer builds the default dialer from the ssh settings. The
// known_hosts file is loaded up front so a bad path fails before any prompt.
func newSSHDialer(settings config.SSHConfig) (*remote.Dialer, error) {
	opts := []remote.Option{remote.WithConnectTimeout(settings.ConnectTimeout)}

	if settings.InsecureIgnoreHostKey {
		return remote.NewDialer(append(opts, remote.WithInsecureHostKey())...), nil
	}

	callback, err := remote.LoadKnownHosts(settings.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("load known hosts: %w", err)
	}

	return remote.NewDialer(append(opts, remote.WithHostKeyCallback(callback))...), nil
}
