// AutomatedFanfic is a fanfiction download/update orchestrator.
// Copyright (C) 2025 AutomatedFanfic contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package notify fans outbound user notifications out to the
// configured backends (Pushbullet, Apprise). Each backend retries up
// to 3 times with 10*n-second spacing and returns a bool, never an
// error — notification delivery is best-effort. Send blocks until
// every backend has delivered or used up its attempts.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrTyton/AutomatedFanfic-sub000/internal/metrics"
)

// Message is a single user-facing notification.
type Message struct {
	Title string
	Body  string
	Site  string
}

// Backend delivers a single Message and reports success.
type Backend interface {
	Name() string
	Send(ctx context.Context, msg Message) bool
}

const (
	maxAttempts  = 3
	retryUnitSec = 10
)

// Facade fans Messages out to every configured Backend concurrently,
// rate-limiting outbound calls per backend and retrying transient
// failures.
type Facade struct {
	backends []Backend
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  *metrics.Registry

	// retryDelay computes the spacing before attempt n+1; overridable
	// in tests so retry logic can be exercised without real sleeps.
	retryDelay func(attempt int) time.Duration
}

// New builds a Facade. ratePerSecond/burst bound how fast notifications
// are dispatched to each backend; zero ratePerSecond disables limiting.
func New(backends []Backend, ratePerSecond float64, burst int, logger *slog.Logger) *Facade {
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return &Facade{
		backends: backends,
		limiter:  limiter,
		logger:   logger,
		retryDelay: func(attempt int) time.Duration {
			return time.Duration(retryUnitSec*attempt) * time.Second
		},
	}
}

// SetMetrics attaches a metrics registry for attempt counting. Optional;
// a Facade with no registry simply skips instrumentation.
func (f *Facade) SetMetrics(m *metrics.Registry) {
	f.metrics = m
}

// Send delivers msg to every backend concurrently, retrying each up to
// maxAttempts times with retryUnitSec*n second spacing between
// attempts. Send never returns an error; failures are logged.
func (f *Facade) Send(ctx context.Context, msg Message) {
	var wg sync.WaitGroup
	for _, b := range f.backends {
		wg.Add(1)
		go func(backend Backend) {
			defer wg.Done()
			f.sendWithRetry(ctx, backend, msg)
		}(b)
	}
	wg.Wait()
}

func (f *Facade) sendWithRetry(ctx context.Context, backend Backend, msg Message) bool {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return false
			}
		}

		delivered := backend.Send(ctx, msg)
		if f.metrics != nil {
			result := "failure"
			if delivered {
				result = "success"
			}
			f.metrics.NotifyAttempts.WithLabelValues(backend.Name(), result).Inc()
		}
		if delivered {
			return true
		}

		if attempt < maxAttempts {
			delay := f.retryDelay(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return false
			}
		}
	}
	f.logger.Warn("notification backend exhausted retries", "backend", backend.Name(), "title", msg.Title)
	return false
}
