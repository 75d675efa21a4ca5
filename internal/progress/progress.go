// Package progress reports export and import progress to a terminal
// (progress bars) or to the event bus (host mode).
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/wireapp/wire-desktop/internal/events"
)

// Reporter receives progress of one backup operation. Totals and positions
// are row counts.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// CLIProgress draws a progress bar on stderr. When stderr is not a terminal
// it only prints the description and the final outcome.
type CLIProgress struct {
	out        io.Writer
	isTerminal bool
	bar        *progressbar.ProgressBar
	desc       string
}

// NewCLIProgress creates a reporter writing to stderr.
func NewCLIProgress() *CLIProgress {
	isTerminal := IsTerminal(os.Stderr)
	if isTerminal {
		enableWindowsANSI(os.Stderr)
	}
	return &CLIProgress{out: os.Stderr, isTerminal: isTerminal}
}

// NewCLIProgressWithOutput creates a reporter writing plain lines to w.
func NewCLIProgressWithOutput(w io.Writer) *CLIProgress {
	return &CLIProgress{out: w}
}

// Start initializes the progress bar with total rows and description.
func (p *CLIProgress) Start(total int64, description string) {
	p.desc = description
	if !p.isTerminal {
		fmt.Fprintf(p.out, "%s (%d rows)\n", description, total)
		return
	}
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update moves the bar to current.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		return
	}
	fmt.Fprintf(p.out, "%s: done\n", p.desc)
}

// Error prints err below the bar.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// SetDescription updates the bar label.
func (p *CLIProgress) SetDescription(desc string) {
	p.desc = desc
	if p.bar != nil {
		p.bar.Describe(desc)
		return
	}
	fmt.Fprintln(p.out, desc)
}

// EventProgress publishes BackupEvents for the host UI.
type EventProgress struct {
	eventBus  *events.EventBus
	accountID string
	operation string

	mu      sync.Mutex
	total   int64
	current int64
	stage   string
}

// NewEventProgress creates a reporter for operation ("export" or "import")
// on accountID.
func NewEventProgress(eventBus *events.EventBus, accountID, operation string) *EventProgress {
	return &EventProgress{
		eventBus:  eventBus,
		accountID: accountID,
		operation: operation,
	}
}

func (p *EventProgress) publish(t events.EventType, err error) {
	p.mu.Lock()
	var frac float64
	if p.total > 0 {
		frac = float64(p.current) / float64(p.total)
	}
	ev := &events.BackupEvent{
		BaseEvent: events.NewBase(t),
		AccountID: p.accountID,
		Operation: p.operation,
		Stage:     p.stage,
		Progress:  frac,
		Error:     err,
	}
	p.mu.Unlock()
	p.eventBus.Publish(ev)
}

func (p *EventProgress) Start(total int64, description string) {
	p.mu.Lock()
	p.total, p.current, p.stage = total, 0, description
	p.mu.Unlock()
	p.publish(events.EventBackupProgress, nil)
}

func (p *EventProgress) Update(current int64) {
	p.mu.Lock()
	p.current = current
	p.mu.Unlock()
	p.publish(events.EventBackupProgress, nil)
}

func (p *EventProgress) Finish() {
	p.mu.Lock()
	p.current = p.total
	p.mu.Unlock()
	p.publish(events.EventBackupCompleted, nil)
}

func (p *EventProgress) Error(err error) {
	if err != nil {
		p.publish(events.EventBackupFailed, err)
	}
}

func (p *EventProgress) SetDescription(desc string) {
	p.mu.Lock()
	p.stage = desc
	p.mu.Unlock()
	p.publish(events.EventBackupProgress, nil)
}

// NoOpProgress is a progress reporter that does nothing.
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

func (p *NoOpProgress) Start(total int64, description string) {}
func (p *NoOpProgress) Update(current int64)                  {}
func (p *NoOpProgress) Finish()                               {}
func (p *NoOpProgress) Error(err error)                       {}
func (p *NoOpProgress) SetDescription(desc string)            {}
