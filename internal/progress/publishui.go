package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// PublishUI shows one progress bar per publish destination.
type PublishUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
	size       int64

	mu   sync.Mutex
	bars map[string]*PublishBar
}

// PublishBar tracks the upload of the archive to one destination.
type PublishBar struct {
	bar       *mpb.Bar
	ui        *PublishUI
	dest      string
	size      int64
	current   atomic.Int64
	startTime time.Time
}

// NewPublishUI creates bars on stderr for an archive of size bytes. Without
// a terminal only completion lines are printed.
func NewPublishUI(size int64) *PublishUI {
	isTerminal := IsTerminal(os.Stderr)
	if isTerminal {
		enableWindowsANSI(os.Stderr)
	}
	return newPublishUI(os.Stderr, isTerminal, size)
}

// NewPublishUIWithOutput creates a plain text UI writing to w.
func NewPublishUIWithOutput(w io.Writer, size int64) *PublishUI {
	return newPublishUI(w, false, size)
}

func newPublishUI(w io.Writer, isTerminal bool, size int64) *PublishUI {
	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(w),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(80),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}
	return &PublishUI{
		progress:   p,
		out:        w,
		isTerminal: isTerminal,
		size:       size,
		bars:       make(map[string]*PublishBar),
	}
}

// AddBar creates the bar for dest.
func (u *PublishUI) AddBar(dest string) *PublishBar {
	pb := &PublishBar{ui: u, dest: dest, size: u.size, startTime: time.Now()}
	if u.isTerminal {
		pb.bar = u.progress.New(u.size,
			mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding(" ").Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(dest, decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	}

	u.mu.Lock()
	u.bars[dest] = pb
	u.mu.Unlock()
	return pb
}

// Bar returns the bar of dest, if any.
func (u *PublishUI) Bar(dest string) (*PublishBar, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	pb, ok := u.bars[dest]
	return pb, ok
}

// Callback returns a progress function that routes fractions to the bar of
// each destination.
func (u *PublishUI) Callback() func(dest string, fraction float64) {
	return func(dest string, fraction float64) {
		if pb, ok := u.Bar(dest); ok {
			pb.UpdateProgress(fraction)
		}
	}
}

// UpdateProgress moves the bar to fraction (0.0 to 1.0) of the archive.
func (b *PublishBar) UpdateProgress(fraction float64) {
	cur := int64(fraction * float64(b.size))
	b.current.Store(cur)
	if b.bar != nil {
		b.bar.SetCurrent(cur)
	}
}

// Complete finishes the bar and prints a summary line.
func (b *PublishBar) Complete(location string, err error) {
	elapsed := time.Since(b.startTime).Round(time.Millisecond)

	var msg string
	if err == nil {
		if b.bar != nil {
			b.bar.SetCurrent(b.size)
			b.bar.SetTotal(b.size, true)
		}
		msg = fmt.Sprintf("✓ %s (%s)\n", location, elapsed)
	} else {
		if b.bar != nil {
			b.bar.Abort(false)
		}
		msg = fmt.Sprintf("✗ %s: %v\n", b.dest, err)
	}
	b.ui.write(msg)
}

// Current returns the last reported position in bytes.
func (b *PublishBar) Current() int64 {
	return b.current.Load()
}

// write prints above the bars when they are active.
func (u *PublishUI) write(msg string) {
	if u.isTerminal {
		u.progress.Write([]byte(msg))
		return
	}
	io.WriteString(u.out, msg)
}

// Wait blocks until all bars complete.
func (u *PublishUI) Wait() {
	u.progress.Wait()
}
