package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/installtool/internal/config"
	"github.com/oshokin/installtool/internal/domain/release"
	"github.com/oshokin/installtool/internal/logger"
	"github.com/oshokin/installtool/internal/report"
	"github.com/oshokin/installtool/internal/service/common"
	"github.com/oshokin/installtool/internal/service/deployer"
	"github.com/oshokin/installtool/internal/service/discovery"
	"github.com/oshokin/installtool/internal/version"
)

// errDeclined is returned when the operator does not confirm a deployment.
var errDeclined = errors.New("deployment declined by operator")

// Prompter is everything a deployment asks the operator.
type Prompter interface {
	deployer.CredentialSource
	deployer.Confirmer
	// ConfirmIncomplete asks whether an incomplete classification may be deployed.
	ConfirmIncomplete(ctx context.Context, classification *release.ClassificationResult) bool
	// ConfirmDeploy asks for the final go-ahead with the pack list.
	ConfirmDeploy(ctx context.Context, classification *release.ClassificationResult) bool
}

// Options are inputs accepted by the workflow entry points.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Config replaces loading from ConfigPath when set; it is validated.
	Config *config.Config
	// Root overrides search.root.
	Root string
	// Pattern overrides search.pattern.
	Pattern string
	// Architecture overrides search.architecture.
	Architecture string
	// Recursive overrides search.recursive when set.
	Recursive *bool
	// Manifest overrides the manifest path.
	Manifest string
	// Hosts restricts deployment to these hosts; empty means all.
	Hosts []release.HostID
	// AssumeYes skips the final pack list confirmation.
	AssumeYes bool
	// PasswordFile makes the default prompter read passwords from a file.
	PasswordFile string
	// WorkDir holds the run marker; the current directory by default.
	WorkDir string
	// Out receives human-readable reports; os.Stdout by default.
	Out io.Writer
	// Prompter talks to the operator; a terminal prompter on stdin/stderr by default.
	Prompter Prompter
	// Dialer opens remote sessions; an SSH dialer built from the settings by default.
	Dialer deployer.Dialer
	// Sink receives audit events in addition to the log.
	Sink report.Sink
	// Now returns the run start time; time.Now by default.
	Now func() time.Time
}

// runner holds what every workflow needs for a single invocation.
type runner struct {
	// opts are the caller's options.
	opts *Options
	// cfg is the validated configuration with overrides applied.
	cfg *config.Config
	// registry is built from cfg.Hosts.
	registry *release.Registry
	// sink fans events out to the log and, stamped with the run ID, to Options.Sink.
	sink report.Sink
	// out receives human-readable reports.
	out io.Writer
}

// newRunner loads settings, applies overrides and tags ctx with a fresh run ID.
func newRunner(ctx context.Context, opts *Options, operation string) (context.Context, *runner, error) {
	if opts == nil {
		opts = new(Options)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return ctx, nil, err
	}

	registry, err := cfg.Registry()
	if err != nil {
		return ctx, nil, err
	}

	runID := uuid.NewString()
	ctx = logger.WithKV(logger.WithName(ctx, operation), "run_id", runID)

	operator, err := common.DetectOperator()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect operator", "error", err)
	}

	logger.InfoKV(ctx, "Run started",
		"operation", operation,
		"operator", operator.String(),
		"version", version.Version,
	)

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	return ctx, &runner{
		opts:     opts,
		cfg:      cfg,
		registry: registry,
		sink:     report.Multi(report.NewLogSink(), report.WithRunID(report.OrDiscard(opts.Sink), runID)),
		out:      out,
	}, nil
}

func loadConfig(opts *Options) (*config.Config, error) {
	cfg := opts.Config

	if cfg == nil {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	if opts.Root != "" {
		cfg.Search.Root = opts.Root
	}

	if opts.Pattern != "" {
		cfg.Search.Pattern = opts.Pattern
	}

	if opts.Architecture != "" {
		cfg.Search.Architecture = opts.Architecture
	}

	if opts.Recursive != nil {
		cfg.Search.Recursive = *opts.Recursive
	}

	if opts.Manifest != "" {
		cfg.Manifest = opts.Manifest
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (r *runner) discover(ctx context.Context) ([]release.Artifact, error) {
	artifacts, err := discovery.Find(ctx, discovery.Query{
		Root:         r.cfg.Search.Root,
		Pattern:      r.cfg.Search.Pattern,
		Architecture: r.cfg.Search.Architecture,
		Recursive:    r.cfg.Search.Recursive,
	})
	if err != nil {
		return nil, fmt.Errorf("discover packages: %w", err)
	}

	return artifacts, nil
}

func (r *runner) workDir() string {
	if r.opts.WorkDir == "" {
		return "."
	}

	return r.opts.WorkDir
}

func (r *runner) now() time.Time {
	if r.opts.Now != nil {
		return r.opts.Now()
	}

	return time.Now()
}
