package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Indicator shows a spinner with a label while the user waits for a reply.
type Indicator struct {
	mu       sync.Mutex
	writer   io.Writer
	interval time.Duration
	label    string
	stop     chan struct{}
	done     chan struct{}
}

// NewIndicator creates an indicator writing to w. If w is nil, it defaults
// to os.Stderr.
func NewIndicator(w io.Writer) *Indicator {
	if w == nil {
		w = os.Stderr
	}
	return &Indicator{
		writer:   w,
		interval: 100 * time.Millisecond,
	}
}

// Start shows the spinner with label. Starting a running indicator only
// changes its label.
func (p *Indicator) Start(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.label = label
	if p.stop != nil {
		return
	}

	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(p.stop, p.done)
}

// Stop hides the spinner and clears its line. It is a no-op when the
// indicator is not running.
func (p *Indicator) Stop() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (p *Indicator) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		p.mu.Lock()
		fmt.Fprintf(p.writer, "\r%s %s", spinnerFrames[frame%len(spinnerFrames)], p.label)
		p.mu.Unlock()

		select {
		case <-stop:
			fmt.Fprint(p.writer, "\r\033[K")
			return
		case <-ticker.C:
		}
	}
}
