package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Spinner shows an in-progress animation on a terminal. Writes are
// carriage-return based, so it should only target a TTY.
type Spinner struct {
	w       io.Writer
	frames  []string
	ticker  *time.Ticker
	done    chan struct{}
	stopped sync.Once

	mu      sync.Mutex
	message string
}

// NewSpinner creates a spinner with an initial message. Call Start to
// begin animating.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:       w,
		message: message,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		done:    make(chan struct{}),
	}
}

// Start begins the animation.
func (s *Spinner) Start() {
	s.ticker = time.NewTicker(80 * time.Millisecond)
	go func() {
		i := 0
		for {
			select {
			case <-s.ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.w, "\r%s %s", s.frames[i%len(s.frames)], s.message)
				s.mu.Unlock()
				i++
			case <-s.done:
				return
			}
		}
	}()
}

// SetMessage swaps the message while spinning.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	// Pad over the previous, possibly longer, line.
	if len(message) < len(s.message) {
		fmt.Fprintf(s.w, "\r%*s", len(s.message)+2, "")
	}
	s.message = message
	s.mu.Unlock()
}

// Stop halts the animation and prints a final line.
func (s *Spinner) Stop(final string) {
	s.stopped.Do(func() {
		close(s.done)
		if s.ticker != nil {
			s.ticker.Stop()
		}
		s.mu.Lock()
		fmt.Fprintf(s.w, "\r%*s\r", len(s.message)+2, "")
		if final != "" {
			fmt.Fprintln(s.w, final)
		}
		s.mu.Unlock()
	})
}
