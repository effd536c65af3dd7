// Package spinner draws a progress indicator on stderr while a corpus folder
// is being tagged.
package spinner

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

var frames = []string{"◜", "◠", "◝", "◞", "◡", "◟"}

// Spinner is a single-line progress indicator. It can be restarted after Stop.
type Spinner struct {
	parent  context.Context
	writer  io.Writer
	delay   time.Duration
	mu      sync.RWMutex
	message string
	active  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a stopped spinner; the drawing goroutine ends with ctx.
func New(ctx context.Context, writer io.Writer, message string) *Spinner {
	return &Spinner{
		parent:  ctx,
		writer:  writer,
		delay:   100 * time.Millisecond,
		message: message,
	}
}

// Start begins the animation. Starting an active spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return
	}
	ctx, cancel := context.WithCancel(s.parent)
	s.active = true
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop ends the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	if f, ok := s.writer.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(s.writer, "\r\033[2K")
	} else {
		fmt.Fprint(s.writer, "\r")
	}
}

// IsActive reports whether the animation is running.
func (s *Spinner) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// UpdateMessage replaces the text shown next to the frame.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Progress shows "<verb> <done>/<total>: <item>".
func (s *Spinner) Progress(verb string, done, total int, item string) {
	s.UpdateMessage(fmt.Sprintf("%s %d/%d: %s", verb, done, total, item))
}

func (s *Spinner) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.delay)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			message := s.message
			s.mu.RUnlock()
			fmt.Fprintf(s.writer, "\r%s %s", frames[i%len(frames)], message)
		}
	}
}
