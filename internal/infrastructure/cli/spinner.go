package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/doeshing/afcover/internal/domain"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner shows lifecycle progress on one terminal line: the current phase,
// the job's queue position while it waits, and the time since Start.
type Spinner struct {
	writer   io.Writer
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	progress domain.Progress
	started  time.Time
	running  bool
	stop     chan struct{}
	done     chan struct{}
}

// NewSpinner creates a spinner writing to w.
func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{writer: w, interval: 100 * time.Millisecond, now: time.Now}
}

// Update records the latest lifecycle progress. It is safe to call from the
// goroutine running the lifecycle while the spinner draws.
func (s *Spinner) Update(p domain.Progress) {
	s.mu.Lock()
	s.progress = p
	s.mu.Unlock()
}

// Start begins drawing. Calling Start on a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.started = s.now()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stop, s.done)
}

// Stop clears the line and waits for the drawing goroutine to exit.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

func (s *Spinner) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		fmt.Fprintf(s.writer, "\r\033[K%s", s.line(frame))
		select {
		case <-stop:
			fmt.Fprint(s.writer, "\r\033[K")
			return
		case <-ticker.C:
		}
	}
}

func (s *Spinner) line(frame int) string {
	s.mu.Lock()
	p := s.progress
	elapsed := s.now().Sub(s.started)
	s.mu.Unlock()
	return spinnerFrames[frame%len(spinnerFrames)] + " " + progressText(p, elapsed)
}

// progressText renders one progress snapshot, e.g. "queued, position 3 (poll 4, 12s)".
func progressText(p domain.Progress, elapsed time.Duration) string {
	elapsed = elapsed.Round(time.Second)
	switch p.Phase {
	case domain.PhasePolling:
		status := p.State.String()
		if p.State == domain.JobQueued && p.QueuePosition > 0 {
			status = fmt.Sprintf("queued, position %d", p.QueuePosition)
		}
		return fmt.Sprintf("%s (poll %d, %s)", status, p.Attempt, elapsed)
	case domain.PhaseDownloading:
		return fmt.Sprintf("downloading images (%s)", elapsed)
	case domain.PhaseSubmitting:
		return fmt.Sprintf("submitting job (%s)", elapsed)
	default:
		return fmt.Sprintf("starting (%s)", elapsed)
	}
}
