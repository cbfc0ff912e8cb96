package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards a bytes.Buffer for the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner_StartStop(t *testing.T) {
	buf := &syncBuffer{}
	s := NewSpinner(buf, "connecting")
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop("connected")

	out := buf.String()
	if !strings.Contains(out, "connecting") {
		t.Errorf("spinner never rendered its message:\n%q", out)
	}
	if !strings.Contains(out, "connected\n") {
		t.Errorf("final line missing:\n%q", out)
	}
}

func TestSpinner_StopTwiceIsSafe(t *testing.T) {
	s := NewSpinner(&syncBuffer{}, "working")
	s.Start()
	s.Stop("done")
	s.Stop("done again")
}

func TestSpinner_SetMessage(t *testing.T) {
	buf := &syncBuffer{}
	s := NewSpinner(buf, "creating tunnel")
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.SetMessage("dialing relay")
	time.Sleep(100 * time.Millisecond)
	s.Stop("")

	if !strings.Contains(buf.String(), "dialing relay") {
		t.Errorf("updated message never rendered:\n%q", buf.String())
	}
}
