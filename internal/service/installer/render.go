package installer

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/oshokin/installtool/internal/domain/release"
	"github.com/oshokin/installtool/internal/service/checksum"
)

// renderStyles are shared by the pack list and verification reports.
type renderStyles struct {
	title lipgloss.Style
	host  lipgloss.Style
	ok    lipgloss.Style
	bad   lipgloss.Style
	faint lipgloss.Style
}

func newRenderStyles(w io.Writer) renderStyles {
	renderer := lipgloss.NewRenderer(w)

	return renderStyles{
		title: renderer.NewStyle().Bold(true).Underline(true),
		host:  renderer.NewStyle().Bold(true).Width(5),
		ok:    renderer.NewStyle().Foreground(lipgloss.Color("2")),
		bad:   renderer.NewStyle().Foreground(lipgloss.Color("1")),
		faint: renderer.NewStyle().Faint(true),
	}
}

// renderClassification writes the pack list with per-host counts.
func renderClassification(w io.Writer, result *release.ClassificationResult) error {
	styles := newRenderStyles(w)

	var builder strings.Builder

	builder.WriteString(styles.title.Render("Pack list"))
	builder.WriteString("\n")

	for _, group := range result.Groups {
		count := fmt.Sprintf("%d/%d", len(group.Artifacts), group.Host.Expected())
		if group.CountMatches() {
			count = styles.ok.Render(count)
		} else {
			count = styles.bad.Render(count)
		}

		builder.WriteString(styles.host.Render(string(group.Host.ID)))
		builder.WriteString(count)
		builder.WriteString(" ")
		builder.WriteString(styles.faint.Render(group.Host.Address))
		builder.WriteString("\n")

		for _, artifact := range group.Artifacts {
			builder.WriteString("  ")
			builder.WriteString(artifact.Name)
			builder.WriteString("\n")
		}
	}

	if len(result.Unassigned) > 0 {
		builder.WriteString(styles.bad.Render("Unassigned"))
		builder.WriteString("\n")

		for _, artifact := range result.Unassigned {
			builder.WriteString("  ")
			builder.WriteString(artifact.Name)
			builder.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, builder.String())

	return err
}

// renderVerification writes one line per checked package.
func renderVerification(w io.Writer, result *checksum.Result) error {
	styles := newRenderStyles(w)

	var builder strings.Builder

	builder.WriteString(styles.title.Render("Checksum verification"))
	builder.WriteString("\n")

	for i := range result.Checks {
		check := &result.Checks[i]

		if check.OK() {
			builder.WriteString(styles.ok.Render("+ "))
			builder.WriteString(check.Artifact.Name)
			builder.WriteString("\n")

			continue
		}

		builder.WriteString(styles.bad.Render("x "))
		builder.WriteString(check.Artifact.Name)
		builder.WriteString(" ")
		builder.WriteString(styles.faint.Render(checkDetail(check)))
		builder.WriteString("\n")
	}

	verified := 0

	for i := range result.Checks {
		if result.Checks[i].OK() {
			verified++
		}
	}

	fmt.Fprintf(&builder, "%d of %d packages verified\n", verified, len(result.Checks))

	_, err := io.WriteString(w, builder.String())

	return err
}

func checkDetail(check *checksum.Check) string {
	switch check.Status {
	case checksum.StatusMismatch:
		return fmt.Sprintf("expected %s, got %s", check.Expected, check.Actual)
	case checksum.StatusNotInManifest:
		return "not in manifest"
	default:
		if check.Err != nil {
			return check.Err.Error()
		}

		return string(check.Status)
	}
}
