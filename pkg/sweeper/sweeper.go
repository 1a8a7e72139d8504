// Package sweeper runs a piece of work at a fixed interval with an explicit
// start/stop lifecycle, replacing ambient process-wide timers.
package sweeper

import "time"

type Sweeper struct {
	interval time.Duration
	work     func()

	ticker *time.Ticker
	kill   chan struct{}
	done   chan struct{}
}

func NewSweeper(interval time.Duration, work func()) *Sweeper {
	return &Sweeper{
		interval: interval,
		work:     work,
	}
}

// Start begins sweeping on a background goroutine. Calling Start twice
// without an intervening Stop is a programming error.
func (s *Sweeper) Start() {
	s.ticker = time.NewTicker(s.interval)
	s.kill = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		for {
			select {
			case <-s.kill:
				return
			case <-s.ticker.C:
				s.work()
			}
		}
	}()
}

// Stop halts the sweep loop and waits for any in-flight work to finish.
func (s *Sweeper) Stop() {
	if s.ticker == nil {
		return
	}

	s.ticker.Stop()
	close(s.kill)
	<-s.done
}
