package pipeline

import (
	"sync"

	"github.com/rs/zerolog"
)

// Progress observes how many comments have been processed
type Progress interface {
	Start(total int)
	Advance(n int)
}

// NopProgress discards progress updates
type NopProgress struct{}

func (NopProgress) Start(int)   {}
func (NopProgress) Advance(int) {}

// LogProgress reports progress as log lines
type LogProgress struct {
	log   zerolog.Logger
	mu    sync.Mutex
	total int
	done  int
}

// NewLogProgress creates a progress reporter writing to log
func NewLogProgress(log zerolog.Logger) *LogProgress {
	return &LogProgress{log: log}
}

// Start records the total number of comments
func (p *LogProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.done = 0
	p.log.Info().Int("total", total).Msg("progress")
}

// Advance records n more processed comments
func (p *LogProgress) Advance(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done += n
	pct := 100.0
	if p.total > 0 {
		pct = float64(p.done) * 100 / float64(p.total)
	}
	p.log.Info().
		Int("done", p.done).
		Int("total", p.total).
		Float64("percent", pct).
		Msg("progress")
}
