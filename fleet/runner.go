package fleet

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Hook is called after every tick with that tick's report
type Hook func(*Fleet, Report)

// Runner calls Tick at a fixed rate
type Runner struct {
	Fleet *Fleet

	// Period is the tick period.  Zero runs as fast as possible.
	Period time.Duration

	// Limit stops the runner after this many ticks.  Zero runs until ctx is done.
	Limit int64

	// Hooks run synchronously after each tick, in order
	Hooks []Hook
}

// Run ticks until ctx is done or Limit ticks have run.  It returns nil when
// the limit is reached and ctx.Err() otherwise.
func (r *Runner) Run(ctx context.Context) error {
	lim := rate.NewLimiter(rate.Inf, 1)
	if r.Period > 0 {
		lim = rate.NewLimiter(rate.Every(r.Period), 1)
	}
	for n := int64(0); r.Limit == 0 || n < r.Limit; n++ {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
		rep := r.Fleet.Tick()
		for _, h := range r.Hooks {
			h(r.Fleet, rep)
		}
	}
	return nil
}

// Every wraps h so it only runs on every n-th tick
func Every(n int64, h Hook) Hook {
	if n <= 1 {
		return h
	}
	return func(f *Fleet, r Report) {
		if r.Tick%n == 0 {
			h(f, r)
		}
	}
}
