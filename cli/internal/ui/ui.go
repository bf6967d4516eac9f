package ui

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/satishbabariya/anybase/dispatch"
	"github.com/satishbabariya/anybase/query"
)

var (
	// Out receives regular output.
	Out io.Writer = os.Stdout
	// Err receives error output.
	Err io.Writer = os.Stderr
)

var (
	// Colors
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	SecondaryColor = lipgloss.Color("#6C757D")

	// Styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)

	badgeStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)
)

// NullText is how SQL NULL is shown in result tables.
var NullText = color.New(color.Faint).Sprint("NULL")

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	fmt.Fprintln(Out, SuccessStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	fmt.Fprintln(Err, ErrorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	fmt.Fprintln(Out, WarningStyle.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	fmt.Fprintln(Out, InfoStyle.Render("ℹ "+fmt.Sprintf(format, args...)))
}

// PrintTable prints a table using pterm
func PrintTable(headers []string, rows [][]string) error {
	tableData := pterm.TableData{headers}
	tableData = append(tableData, rows...)
	s, err := pterm.DefaultTable.WithHasHeader().WithData(tableData).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(Out, s)
	return nil
}

// PrintRows prints query rows as a table. Columns are numbered since rows
// carry no column names.
func PrintRows(rows []query.Row) error {
	if len(rows) == 0 {
		PrintInfo("no rows")
		return nil
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	headers := make([]string, width)
	for i := range headers {
		headers[i] = "#" + strconv.Itoa(i+1)
	}

	return PrintTable(headers, RowStrings(rows, width))
}

// RowStrings converts rows to table cells, padding short rows to width.
func RowStrings(rows []query.Row, width int) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		cells := make([]string, width)
		for j := range cells {
			if j < len(r) && r[j] != nil {
				cells[j] = *r[j]
			} else {
				cells[j] = NullText
			}
		}
		out[i] = cells
	}
	return out
}

// PrintMarkdown renders markdown content
func PrintMarkdown(content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return err
	}

	out, err := r.Render(content)
	if err != nil {
		return err
	}

	fmt.Fprint(Out, out)
	return nil
}

// PrintBox prints content in a box
func PrintBox(title string, content string) {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Padding(0, 1).
		Render(
			lipgloss.JoinVertical(
				lipgloss.Left,
				TitleStyle.Render(title),
				content,
			),
		)

	fmt.Fprintln(Out, box)
}

// StateBadge renders a connection state as a colored label.
func StateBadge(s dispatch.State) string {
	c := SecondaryColor
	switch s {
	case dispatch.Open:
		c = SuccessColor
	case dispatch.Connecting:
		c = WarningColor
	case dispatch.Broken:
		c = ErrorColor
	}
	return badgeStyle.Foreground(c).Render(s.String())
}

// Animate enables spinners. When false, progress is printed as plain
// messages.
var Animate = true

// Progress reports the outcome of a long running step.
type Progress struct {
	spinner *pterm.SpinnerPrinter
}

// StartProgress shows message until Success or Fail is called.
func StartProgress(message string) *Progress {
	if Animate {
		sp, err := pterm.DefaultSpinner.WithWriter(Out).WithRemoveWhenDone().Start(message)
		if err == nil {
			return &Progress{spinner: sp}
		}
	}
	PrintInfo("%s", message)
	return &Progress{}
}

// Success ends the step with a success message.
func (p *Progress) Success(message string) {
	if p.spinner != nil {
		p.spinner.Success(message)
		return
	}
	PrintSuccess("%s", message)
}

// Fail ends the step with err.
func (p *Progress) Fail(err error) {
	if p.spinner != nil {
		p.spinner.Fail(err.Error())
		return
	}
	PrintError("%v", err)
}
