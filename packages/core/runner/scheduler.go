package runner

import (
	"context"

	"golang.org/x/time/rate"
)

// scheduler bounds how many cases run at once and how fast requests go out.
type scheduler struct {
	limiter *rate.Limiter
	sem     chan struct{}
}

func newScheduler(rps float64, concurrency int) *scheduler {
	if concurrency < 1 {
		concurrency = 1
	}

	s := &scheduler{
		sem: make(chan struct{}, concurrency),
	}
	if rps > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	return s
}

// Wait blocks until the rate limiter allows the next request.
func (s *scheduler) Wait(ctx context.Context) error {
	if s.limiter != nil {
		return s.limiter.Wait(ctx)
	}
	return nil
}

func (s *scheduler) Acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *scheduler) Release() {
	<-s.sem
}
