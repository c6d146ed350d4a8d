package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/apkfetch/pkg/change"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
	"github.com/matzehuels/apkfetch/pkg/pipeline"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleHighlight for emphasized values.
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)

	styleKey = lipgloss.NewStyle().Foreground(colorGray).Width(12)

	// One tag style per rebuild reason.
	styleReason = map[change.Reason]lipgloss.Style{
		change.FreshBuild:        lipgloss.NewStyle().Bold(true).Foreground(colorGreen),
		change.VersionUpdate:     lipgloss.NewStyle().Bold(true).Foreground(colorCyan),
		change.SourceChange:      lipgloss.NewStyle().Bold(true).Foreground(colorYellow),
		change.BundleCountChange: lipgloss.NewStyle().Bold(true).Foreground(colorRed),
	}
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+msg)
}

// printError prints an error message.
func printError(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, styleIconError.Render(iconError)+" "+msg)
}

// printWarning prints a warning message.
func printWarning(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, styleIconInfo.Render(iconInfo)+" "+msg)
}

// printDetail prints a detail line (indented).
func printDetail(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, "  "+StyleDim.Render(msg))
}

// printFile prints a file output line.
func printFile(w io.Writer, path string) {
	fmt.Fprintln(w, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

// printKeyValue prints a labeled value.
func printKeyValue(w io.Writer, key, value string) {
	fmt.Fprintln(w, styleKey.Render(key)+" "+StyleValue.Render(value))
}

// =============================================================================
// Reports
// =============================================================================

// printDecisions prints the rebuild decisions grouped by reason.
func printDecisions(w io.Writer, decisions []change.Decision) {
	if len(decisions) == 0 {
		printSuccess(w, "All apps are up to date")
		return
	}
	fmt.Fprintln(w, StyleTitle.Render("Build summary"))
	for _, g := range change.GroupByReason(decisions) {
		tag := styleReason[g.Reason].Render(g.Reason.Tag())
		fmt.Fprintf(w, "\n%s %s %s\n", tag, g.Reason, StyleDim.Render(fmt.Sprintf("(%d apps)", len(g.Decisions))))
		for _, d := range g.Decisions {
			fmt.Fprintln(w, "  "+StyleHighlight.Render(d.App)+": "+d.Summary())
		}
	}
	fmt.Fprintln(w)
	printInfo(w, "%s apps need to be repatched", StyleNumber.Render(fmt.Sprint(len(decisions))))
}

// printOutputs prints the files a run produced.
func printOutputs(w io.Writer, outputs []pipeline.Output) {
	for _, o := range outputs {
		printSuccess(w, "%s %s", StyleHighlight.Render(o.App), StyleDim.Render(o.Version))
		printFile(w, o.Path)
	}
}

// printFailures prints one line per failed app.
func printFailures(w io.Writer, failures []pipeline.Failure) {
	for _, f := range failures {
		msg := errors.UserMessage(f.Err)
		if code := errors.GetCode(f.Err); code != "" {
			msg = string(code) + ": " + msg
		}
		printError(w, "%s %s", StyleHighlight.Render(f.App), msg)
		if u := errors.GetURL(f.Err); u != "" {
			printDetail(w, "%s", u)
		}
	}
}

// printTimings prints the slowest downloads of a run.
func printTimings(w io.Writer, timings []integrations.Timing) {
	if len(timings) == 0 {
		return
	}
	fmt.Fprintln(w, StyleDim.Render("Slowest downloads"))
	for _, t := range timings {
		printKeyValue(w, t.Duration.Round(time.Millisecond).String(), t.FileName)
	}
}
