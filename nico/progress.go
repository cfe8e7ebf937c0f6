package nico

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
)

// ProgressSink receives byte counts while a resource downloads.
type ProgressSink interface {
	// Start begins a transfer. total is zero or negative when unknown.
	Start(label string, total int64)
	// Update reports the cumulative number of bytes written.
	Update(written int64)
	Finish()
}

// BarSink draws a single-line progress bar, redrawn in place.
type BarSink struct {
	w        io.Writer
	bar      progress.Model
	interval time.Duration

	mu      sync.Mutex
	label   string
	total   int64
	written int64
	last    time.Time
}

// NewBarSink draws onto w, which should be a terminal.
func NewBarSink(w io.Writer) *BarSink {
	return &BarSink{
		w:        w,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		interval: 100 * time.Millisecond,
	}
}

func (b *BarSink) Start(label string, total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.label, b.total, b.written = label, total, 0
	b.last = time.Time{}
	b.draw()
}

func (b *BarSink) Update(written int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.written = written
	if time.Since(b.last) < b.interval {
		return
	}
	b.draw()
}

func (b *BarSink) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draw()
	fmt.Fprintln(b.w)
}

func (b *BarSink) draw() {
	b.last = time.Now()
	fmt.Fprintf(b.w, "\r%s %s %s", b.label, b.bar.ViewAs(fraction(b.written, b.total)), b.counter())
}

func (b *BarSink) counter() string {
	if b.total <= 0 {
		return humanBytes(b.written)
	}
	return humanBytes(b.written) + "/" + humanBytes(b.total)
}

func fraction(written, total int64) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(written) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
