package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/Lllllllleong/titlereport/internal/services"
)

// Console prints user-facing messages. Progress goes to errw so that out
// carries only the report.
type Console struct {
	out  io.Writer
	errw io.Writer

	green, red, yellow, cyan, bold *color.Color
}

// NewConsole creates a Console.
func NewConsole(out, errw io.Writer, noColor bool) *Console {
	c := &Console{
		out:    out,
		errw:   errw,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		cyan:   color.New(color.FgCyan),
		bold:   color.New(color.Bold),
	}
	if noColor {
		for _, col := range []*color.Color{c.green, c.red, c.yellow, c.cyan, c.bold} {
			col.DisableColor()
		}
	}
	return c
}

// Success prints a success message.
func (c *Console) Success(format string, args ...interface{}) {
	c.green.Fprintf(c.errw, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (c *Console) Warning(format string, args ...interface{}) {
	c.yellow.Fprintf(c.errw, "⚠ %s\n", fmt.Sprintf(format, args...))
}

// Info prints an informational message.
func (c *Console) Info(format string, args ...interface{}) {
	c.cyan.Fprintf(c.errw, "ℹ %s\n", fmt.Sprintf(format, args...))
}

// Abort prints the single line shown when a run stops.
func (c *Console) Abort(err error) {
	c.red.Fprintf(c.errw, "❌ Error: %v\n", err)
}

// Report prints the consolidated report under a header.
func (c *Console) Report(title, markdown string) {
	c.bold.Fprintf(c.out, "\n%s\n%s\n\n", title, strings.Repeat("=", len([]rune(title))))
	fmt.Fprintln(c.out, markdown)
}

// Observer returns a pipeline observer that draws spinners and bars.
func (c *Console) Observer() *StageObserver {
	return &StageObserver{console: c}
}

var stageLabels = map[services.Stage]struct{ running, done string }{
	services.StageExtract:      {"Extracting text...", "Text extracted"},
	services.StageTranslate:    {"Translating pages", "Pages translated"},
	services.StageAuthenticate: {"Authenticating with IBM Cloud...", "Authenticated"},
	services.StageGenerate:     {"Generating report", "Report generated"},
	services.StageConvert:      {"Converting report to Word...", "Word document ready"},
}

// StageObserver shows one spinner or progress bar per stage.
type StageObserver struct {
	console *Console

	mu      sync.Mutex
	spinner *Spinner
	bar     *ProgressBar
}

// StageStarted starts a bar for counted stages and a spinner otherwise.
func (o *StageObserver) StageStarted(stage services.Stage, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	label := stageLabels[stage].running
	if total > 0 {
		o.bar = NewProgressBar(o.console.errw, int64(total), label)
		return
	}
	o.spinner = NewSpinner(o.console.errw, label)
	o.spinner.Start()
}

// StepDone advances the current bar. It is safe for concurrent use.
func (o *StageObserver) StepDone(services.Stage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bar != nil {
		o.bar.Add(1)
	}
}

// StageFinished clears the stage's indicator and prints its outcome.
func (o *StageObserver) StageFinished(stage services.Stage, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.spinner != nil {
		o.spinner.Stop()
		o.spinner = nil
	}
	if o.bar != nil {
		if err == nil {
			o.bar.Finish()
		}
		o.bar = nil
	}
	if err == nil {
		o.console.Success("%s", stageLabels[stage].done)
	}
}
