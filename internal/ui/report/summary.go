package report

import (
	"fmt"
	"strings"
	"time"

	"reachgraph/internal/engine/analysis"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	blockStyle = lipgloss.NewStyle().MarginLeft(2)
)

// maxListed caps each finding list of the summary.
const maxListed = 10

type SummaryOptions struct {
	Elapsed time.Duration
	RunID   string
}

// RenderSummary formats a short human readable account of res.
func RenderSummary(res *analysis.Result, opts SummaryOptions) string {
	if res == nil {
		return ""
	}
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("reachgraph %s", res.Operation)))
	b.WriteString("\n")

	lines := []string{
		field("modules", fmt.Sprintf("%d internal, %d external", len(res.Modules.Internal), len(res.Modules.External))),
		field("functions", fmt.Sprintf("%d", len(res.Functions))),
	}
	if res.Operation == analysis.OpCallGraph {
		lines = append(lines, field("call edges", fmt.Sprintf("%d", len(res.Edges))))
		lines = append(lines, field("reachable", fmt.Sprintf("%d of %d nodes", len(res.Reachable), len(res.Graph))))
	}

	iter := fmt.Sprintf("%d", res.Iterations)
	if res.Converged {
		iter += " " + successStyle.Render("(converged)")
	} else {
		iter += " " + warnStyle.Render("(iteration cap reached)")
	}
	lines = append(lines, field("iterations", iter))

	if res.Latest != nil {
		lines = append(lines, field("latest entrypoint", res.Latest.Name))
	}
	if opts.RunID != "" {
		lines = append(lines, field("stored run", opts.RunID))
	}
	if opts.Elapsed > 0 {
		lines = append(lines, field("elapsed", opts.Elapsed.Round(time.Millisecond).String()))
	}
	b.WriteString(blockStyle.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")

	if len(res.ImportCycles) > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("Import cycles (%d)", len(res.ImportCycles))))
		b.WriteString("\n")
		items := make([]string, 0, len(res.ImportCycles))
		for _, cycle := range res.ImportCycles {
			if len(cycle) == 0 {
				continue
			}
			items = append(items, strings.Join(append(append([]string{}, cycle...), cycle[0]), " -> "))
		}
		b.WriteString(blockStyle.Render(capList(items)))
		b.WriteString("\n")
	}

	if res.Operation == analysis.OpKeyError {
		if len(res.KeyErrors) == 0 {
			b.WriteString(successStyle.Render("No key errors found"))
			b.WriteString("\n")
		} else {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Key errors (%d)", len(res.KeyErrors))))
			b.WriteString("\n")
			items := make([]string, 0, len(res.KeyErrors))
			for _, ke := range res.KeyErrors {
				items = append(items, fmt.Sprintf("%s:%d %s[%q]", ke.Filename, ke.Line, ke.Namespace, ke.Key))
			}
			b.WriteString(blockStyle.Render(capList(items)))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func field(label, value string) string {
	return labelStyle.Render(label+":") + " " + value
}

func capList(items []string) string {
	if len(items) <= maxListed {
		return strings.Join(items, "\n")
	}
	out := append([]string{}, items[:maxListed]...)
	out = append(out, fmt.Sprintf("... and %d more", len(items)-maxListed))
	return strings.Join(out, "\n")
}
