package classifier

import (
	"context"
	"fmt"

	"github.com/oshokin/installtool/internal/domain/release"
	"github.com/oshokin/installtool/internal/report"
)

// Classify assigns artifacts to the hosts of registry and reports every decision to sink.
func Classify(
	ctx context.Context,
	artifacts []release.Artifact,
	registry *release.Registry,
	sink report.Sink,
) *release.ClassificationResult {
	sink = report.OrDiscard(sink)

	profiles := registry.Profiles()
	result := &release.ClassificationResult{
		Groups: make([]release.HostGroup, len(profiles)),
	}

	position := make(map[release.HostID]int, len(profiles))
	for i, profile := range profiles {
		result.Groups[i] = release.HostGroup{Host: profile}
		position[profile.ID] = i
	}

	for _, artifact := range artifacts {
		host, prefix, ok := registry.Match(artifact.Name)
		if !ok {
			result.Unassigned = append(result.Unassigned, artifact)

			sink.Emit(ctx, report.Event{
				Kind:     report.KindArtifactUnassigned,
				Artifact: artifact.Name,
				Message:  "Artifact matches no host profile",
			})

			continue
		}

		group := &result.Groups[position[host]]
		group.Artifacts = append(group.Artifacts, artifact)

		sink.Emit(ctx, report.Event{
			Kind:     report.KindArtifactClassified,
			Host:     host,
			Artifact: artifact.Name,
			OK:       true,
			Message:  "Artifact classified by prefix " + prefix,
		})
	}

	result.Complete = len(result.Unassigned) == 0
	for _, group := range result.Groups {
		if !group.CountMatches() {
			result.Complete = false
		}
	}

	summary := report.Event{
		Kind:    report.KindClassification,
		OK:      result.Complete,
		Err:     result.Err(),
		Message: summarize(result, len(artifacts)),
	}
	sink.Emit(ctx, summary)

	return result
}

func summarize(result *release.ClassificationResult, total int) string {
	message := fmt.Sprintf("Classified %d artifacts:", total)
	for _, group := range result.Groups {
		message += fmt.Sprintf(" %s %d/%d,", group.Host.ID, len(group.Artifacts), group.Host.Expected())
	}

	return message + fmt.Sprintf(" unassigned %d", len(result.Unassigned))
}
