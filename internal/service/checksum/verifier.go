package checksum

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/installtool/internal/domain/release"
	"github.com/oshokin/installtool/internal/logger"
	"github.com/oshokin/installtool/internal/report"
)

var (
	// ErrArtifactNotInManifest marks an artifact the manifest does not list.
	ErrArtifactNotInManifest = errors.New("not found in manifest")
	// ErrChecksumMismatch marks an artifact whose digest differs from the manifest.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrArtifactUnreadable marks an artifact that could not be hashed.
	ErrArtifactUnreadable = errors.New("artifact unreadable")
)

// Status is the outcome of checking one artifact.
type Status string

const (
	// StatusVerified means the digest matched.
	StatusVerified Status = "verified"
	// StatusNotInManifest means no digest was published for the artifact.
	StatusNotInManifest Status = "not_in_manifest"
	// StatusMismatch means the digest differed.
	StatusMismatch Status = "mismatch"
	// StatusUnreadable means the artifact could not be read.
	StatusUnreadable Status = "unreadable"
)

// Check is the verification record for one artifact.
type Check struct {
	// Artifact is the checked file.
	Artifact release.Artifact
	// Status is the outcome.
	Status Status
	// Expected is the manifest digest, empty when absent.
	Expected string
	// Actual is the computed digest, empty when not computed.
	Actual string
	// Err explains a failure.
	Err error
}

// OK reports a verified artifact.
func (c *Check) OK() bool {
	return c.Status == StatusVerified
}

// Result is the outcome of a verification run.
type Result struct {
	// Checks are in input order.
	Checks []Check
	// OK is the logical AND of every check.
	OK bool
}

// Err joins the failures of every failed check.
func (r *Result) Err() error {
	errs := make([]error, 0, len(r.Checks))
	for i := range r.Checks {
		errs = append(errs, r.Checks[i].Err)
	}

	return errors.Join(errs...)
}

// Verifier checks artifacts against a manifest and reports every check.
type Verifier struct {
	// sink receives one event per artifact and a summary.
	sink report.Sink
}

// NewVerifier returns a verifier reporting to sink.
func NewVerifier(sink report.Sink) *Verifier {
	return &Verifier{
		sink: report.OrDiscard(sink),
	}
}

// Verify loads the manifest at manifestPath and checks every artifact.
// An unavailable manifest fails the whole run before any artifact is touched.
func (v *Verifier) Verify(ctx context.Context, artifacts []release.Artifact, manifestPath string) (*Result, error) {
	manifest, err := LoadManifest(ctx, manifestPath)
	if err != nil {
		v.sink.Emit(ctx, report.Event{
			Kind:    report.KindVerification,
			Err:     err,
			Message: "Checksum manifest unavailable",
		})

		return nil, err
	}

	logger.InfoKV(ctx, "Checksum manifest loaded", "path", manifestPath, "entries", len(manifest))

	return v.VerifyManifest(ctx, artifacts, manifest), nil
}

// VerifyManifest checks artifacts, in order, against an already parsed manifest.
func (v *Verifier) VerifyManifest(ctx context.Context, artifacts []release.Artifact, manifest Manifest) *Result {
	result := &Result{
		Checks: make([]Check, 0, len(artifacts)),
		OK:     true,
	}

	for _, artifact := range artifacts {
		check := checkArtifact(artifact, manifest)
		result.Checks = append(result.Checks, check)
		result.OK = result.OK && check.OK()

		v.sink.Emit(ctx, report.Event{
			Kind:     report.KindChecksum,
			Artifact: artifact.Name,
			OK:       check.OK(),
			Err:      check.Err,
			Message:  "Checksum " + string(check.Status),
		})
	}

	failed := 0
	for i := range result.Checks {
		if !result.Checks[i].OK() {
			failed++
		}
	}

	v.sink.Emit(ctx, report.Event{
		Kind:    report.KindVerification,
		OK:      result.OK,
		Err:     result.Err(),
		Message: fmt.Sprintf("Checksum verification: %d checked, %d failed", len(result.Checks), failed),
	})

	return result
}

func checkArtifact(artifact release.Artifact, manifest Manifest) Check {
	check := Check{Artifact: artifact}

	expected, listed := manifest[artifact.Name]
	if !listed {
		check.Status = StatusNotInManifest
		check.Err = fmt.Errorf("%s: %w", artifact.Name, ErrArtifactNotInManifest)

		return check
	}

	check.Expected = expected

	actual, err := FileDigest(artifact.Path)
	if err != nil {
		check.Status = StatusUnreadable
		check.Err = fmt.Errorf("%s: %w: %w", artifact.Name, ErrArtifactUnreadable, err)

		return check
	}

	check.Actual = actual

	if actual != expected {
		check.Status = StatusMismatch
		check.Err = fmt.Errorf("%s: expected %s, got %s: %w", artifact.Name, expected, actual, ErrChecksumMismatch)

		return check
	}

	check.Status = StatusVerified

	return check
}
