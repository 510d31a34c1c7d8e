package worker

import (
	"context"
	"time"

	"github.com/nimasrn/statement-ledger/pkg/logger"
)

type Job = func(ctx context.Context) error

// Periodic runs a job once on start and then every interval until its
// context is cancelled. A failing run is reported and the schedule goes on.
type Periodic struct {
	name       string
	interval   time.Duration
	do         Job
	errHandler func(err error)
}

func NewPeriodic(name string, interval time.Duration, job Job) *Periodic {
	return &Periodic{
		name:     name,
		interval: interval,
		do:       job,
		errHandler: func(err error) {
			logger.Error("periodic job failed", "job", name, "error", err)
		},
	}
}

func (p *Periodic) OnError(fn func(err error)) {
	p.errHandler = fn
}

// Run blocks until ctx is done. A non-positive interval runs the job once.
func (p *Periodic) Run(ctx context.Context) {
	logger.Info("periodic job started", "job", p.name, "interval", p.interval.String())
	p.runOnce(ctx)
	if p.interval <= 0 {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("periodic job stopped", "job", p.name)
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Periodic) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := p.do(ctx); err != nil && p.errHandler != nil {
		p.errHandler(err)
	}
}
