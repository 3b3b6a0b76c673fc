package cli

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/doeshing/afcover/internal/domain"
)

func TestProgressText(t *testing.T) {
	tests := []struct {
		name     string
		progress domain.Progress
		elapsed  time.Duration
		want     string
	}{
		{name: "not started", elapsed: 300 * time.Millisecond, want: "starting (0s)"},
		{name: "submitting", progress: domain.Progress{Phase: domain.PhaseSubmitting}, elapsed: time.Second, want: "submitting job (1s)"},
		{name: "queued with position",
			progress: domain.Progress{Phase: domain.PhasePolling, State: domain.JobQueued, QueuePosition: 3, Attempt: 4},
			elapsed:  12*time.Second + 400*time.Millisecond,
			want:     "queued, position 3 (poll 4, 12s)"},
		{name: "queued at the front",
			progress: domain.Progress{Phase: domain.PhasePolling, State: domain.JobQueued, Attempt: 1},
			elapsed:  2 * time.Second,
			want:     "queued (poll 1, 2s)"},
		{name: "running",
			progress: domain.Progress{Phase: domain.PhasePolling, State: domain.JobRunning, Attempt: 9},
			elapsed:  95 * time.Second,
			want:     "running (poll 9, 1m35s)"},
		{name: "downloading", progress: domain.Progress{Phase: domain.PhaseDownloading}, elapsed: time.Minute, want: "downloading images (1m0s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, progressText(tt.progress, tt.elapsed))
		})
	}
}

func TestSpinner_LineUsesLatestUpdate(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	s := NewSpinner(&bytes.Buffer{})
	s.now = func() time.Time { return now }
	s.started = now

	now = now.Add(7 * time.Second)
	s.Update(domain.Progress{Phase: domain.PhasePolling, State: domain.JobQueued, QueuePosition: 2, Attempt: 3})
	assert.Equal(t, spinnerFrames[1]+" queued, position 2 (poll 3, 7s)", s.line(1))
}

// lockedBuffer lets the test read what the drawing goroutine wrote.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner_StartStop(t *testing.T) {
	out := &lockedBuffer{}
	s := NewSpinner(out)
	s.interval = time.Millisecond

	s.Update(domain.Progress{Phase: domain.PhaseSubmitting})
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()

	text := out.String()
	assert.Contains(t, text, "submitting job")
	assert.True(t, strings.HasSuffix(text, "\r\033[K"), "line is cleared on stop")

	// A stopped spinner can be started again.
	s.Start()
	s.Stop()
}
