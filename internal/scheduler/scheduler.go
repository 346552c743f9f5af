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

// Package scheduler holds a failed task for its retry decision's delay
// and then requeues it onto the pipeline's ingress channel. Every task
// gets its own independent timer; there is no shared tick.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrTyton/AutomatedFanfic-sub000/internal/coordinator"
	"github.com/MrTyton/AutomatedFanfic-sub000/pkg/task"
)

// Scheduler accepts failed tasks carrying a RetryDecision and requeues
// each after its own delay.
type Scheduler struct {
	Input   <-chan *task.StoryTask
	Ingress chan<- coordinator.Event
	Logger  *slog.Logger

	mu     sync.Mutex
	timers map[*task.StoryTask]*time.Timer
}

// New builds a Scheduler.
func New(input <-chan *task.StoryTask, ingress chan<- coordinator.Event, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		Input:   input,
		Ingress: ingress,
		Logger:  logger,
		timers:  make(map[*task.StoryTask]*time.Timer),
	}
}

// Run consumes Input until it is closed or yields a nil sentinel; any
// outstanding timers are cancelled on exit, per spec.md §4.9.
func (s *Scheduler) Run(ctx context.Context) {
	defer s.cancelAll()

	for {
		select {
		case t, ok := <-s.Input:
			if !ok || t == nil {
				return
			}
			s.schedule(ctx, t)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) schedule(ctx context.Context, t *task.StoryTask) {
	if t.RetryDecision == nil {
		s.Logger.Warn("task scheduled with no retry decision; dropping", "url", t.URL)
		return
	}
	delay := time.Duration(t.RetryDecision.DelayMinutes * float64(time.Minute))

	s.mu.Lock()
	s.timers[t] = time.AfterFunc(delay, func() {
		s.fire(ctx, t)
	})
	s.mu.Unlock()
}

func (s *Scheduler) fire(ctx context.Context, t *task.StoryTask) {
	s.mu.Lock()
	delete(s.timers, t)
	s.mu.Unlock()

	select {
	case s.Ingress <- coordinator.TaskEvent(t):
	case <-ctx.Done():
	}
}

func (s *Scheduler) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t, timer := range s.timers {
		timer.Stop()
		delete(s.timers, t)
	}
}
