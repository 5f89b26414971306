package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/gatespy/internal/lifecycle"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// progressPrinter redraws a single status line while an analysis is in flight.
type progressPrinter struct {
	out      io.Writer
	interval time.Duration
	mu       sync.Mutex
	snap     lifecycle.Snapshot
	frame    int
	started  time.Time
	updates  <-chan lifecycle.Snapshot
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func newProgressPrinter(out io.Writer, updates <-chan lifecycle.Snapshot) *progressPrinter {
	return &progressPrinter{
		out:      out,
		interval: 300 * time.Millisecond,
		updates:  updates,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (p *progressPrinter) Start() {
	p.started = time.Now()
	go p.loop()
}

func (p *progressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		<-p.stopped
		fmt.Fprintf(p.out, "\r%s\r", strings.Repeat(" ", 80))
	})
}

func (p *progressPrinter) loop() {
	defer close(p.stopped)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-p.updates:
			if !ok {
				p.updates = nil
				continue
			}
			p.mu.Lock()
			p.snap = snap
			p.mu.Unlock()
			p.print()
		case <-ticker.C:
			p.print()
		case <-p.done:
			return
		}
	}
}

func (p *progressPrinter) print() {
	p.mu.Lock()
	snap := p.snap
	frame := spinnerFrames[p.frame%len(spinnerFrames)]
	p.frame++
	p.mu.Unlock()

	if snap.State == "" || snap.State == lifecycle.StateIdle {
		return
	}
	line := fmt.Sprintf("\r%s %s %s (%.1fs)", frame, formatStateWithColor(string(snap.State)),
		snap.URL, time.Since(p.started).Seconds())
	fmt.Fprint(p.out, line)
}
