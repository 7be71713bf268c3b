package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/oshokin/installtool/internal/domain/release"
)

// summaryStyles are the lipgloss styles used by RenderSummary.
type summaryStyles struct {
	title   lipgloss.Style
	host    lipgloss.Style
	ok      lipgloss.Style
	failed  lipgloss.Style
	skipped lipgloss.Style
	detail  lipgloss.Style
}

func newSummaryStyles(w io.Writer) summaryStyles {
	renderer := lipgloss.NewRenderer(w)

	return summaryStyles{
		title:   renderer.NewStyle().Bold(true).Underline(true),
		host:    renderer.NewStyle().Bold(true).Width(5),
		ok:      renderer.NewStyle().Foreground(lipgloss.Color("2")).Width(9),
		failed:  renderer.NewStyle().Foreground(lipgloss.Color("1")).Width(9),
		skipped: renderer.NewStyle().Foreground(lipgloss.Color("3")).Width(9),
		detail:  renderer.NewStyle().Faint(true),
	}
}

// RenderSummary writes a per-host table of a finished deployment.
func RenderSummary(w io.Writer, runs []*release.HostRun) error {
	styles := newSummaryStyles(w)

	var builder strings.Builder

	builder.WriteString(styles.title.Render("Deployment summary"))
	builder.WriteString("\n")

	for _, run := range runs {
		builder.WriteString(styles.host.Render(string(run.Host.ID)))
		builder.WriteString(stateStyle(styles, run.State).Render(string(run.State)))
		builder.WriteString(hostDetail(run))
		builder.WriteString("\n")

		for _, name := range run.Outcome.Artifacts {
			installed, attempted := run.Outcome.Installed[name]

			var mark string

			switch {
			case !attempted:
				mark = styles.skipped.UnsetWidth().Render("-")
			case installed:
				mark = styles.ok.UnsetWidth().Render("+")
			default:
				mark = styles.failed.UnsetWidth().Render("x")
			}

			builder.WriteString("  ")
			builder.WriteString(mark)
			builder.WriteString(" ")
			builder.WriteString(name)
			builder.WriteString("\n")
		}

		for _, failure := range run.Outcome.Failures {
			builder.WriteString("  ")
			builder.WriteString(styles.detail.Render(failure.Error()))
			builder.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, builder.String())

	return err
}

func stateStyle(styles summaryStyles, state release.HostState) lipgloss.Style {
	switch state {
	case release.StateDone:
		return styles.ok
	case release.StateSkipped:
		return styles.skipped
	default:
		return styles.failed
	}
}

func hostDetail(run *release.HostRun) string {
	if run.State == release.StateSkipped {
		return run.SkipReason
	}

	installed := 0
	for _, ok := range run.Outcome.Installed {
		if ok {
			installed++
		}
	}

	return fmt.Sprintf("%d/%d installed", installed, len(run.Outcome.Artifacts))
}
