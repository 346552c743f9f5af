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

// Package coordinator assigns pending tasks to idle workers under a
// single invariant: at most one worker is ever active against a given
// site at a time. It owns the per-site backlog and the current
// site→worker assignment map exclusively; no other component reads or
// writes them.
package coordinator

import (
	"context"
	"log/slog"

	"github.com/MrTyton/AutomatedFanfic-sub000/internal/metrics"
	"github.com/MrTyton/AutomatedFanfic-sub000/pkg/task"
)

// WorkerIdle is announced by a worker when it has no more work queued
// for its currently-assigned site. FinishedSite is empty the first
// time a freshly started worker announces idleness.
type WorkerIdle struct {
	WorkerID     string
	FinishedSite string
}

// Event is the single message type flowing over the Coordinator's
// ingress channel: exactly one of Task or Idle is set.
type Event struct {
	Task *task.StoryTask
	Idle *WorkerIdle
}

// TaskEvent wraps t as an ingress Event.
func TaskEvent(t *task.StoryTask) Event { return Event{Task: t} }

// IdleEvent wraps an idle announcement as an ingress Event.
func IdleEvent(workerID, finishedSite string) Event {
	return Event{Idle: &WorkerIdle{WorkerID: workerID, FinishedSite: finishedSite}}
}

// Coordinator owns the backlog and site assignment table.
type Coordinator struct {
	Ingress <-chan Event
	Logger  *slog.Logger
	Metrics *metrics.Registry

	workers map[string]chan<- *task.StoryTask

	backlog     map[string][]*task.StoryTask
	assignments map[string]string // site -> workerID
	idle        map[string]struct{}
}

// New builds a Coordinator dispatching to the given worker input
// channels, keyed by workerID.
func New(ingress <-chan Event, workers map[string]chan<- *task.StoryTask, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		Ingress:     ingress,
		Logger:      logger,
		workers:     workers,
		backlog:     make(map[string][]*task.StoryTask),
		assignments: make(map[string]string),
		idle:        make(map[string]struct{}),
	}
}

// Run drives the event loop until ctx is cancelled. On cancellation it
// drains any already-buffered ingress events before exiting, per
// spec.md §5's coordinator cancellation semantics.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case ev, ok := <-c.Ingress:
			if !ok {
				return
			}
			c.handle(ev)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

// drain processes any events already buffered on the ingress channel
// without blocking, then returns.
func (c *Coordinator) drain() {
	for {
		select {
		case ev, ok := <-c.Ingress:
			if !ok {
				return
			}
			c.handle(ev)
		default:
			return
		}
	}
}

func (c *Coordinator) handle(ev Event) {
	switch {
	case ev.Task != nil:
		c.handleTask(ev.Task)
	case ev.Idle != nil:
		c.handleIdle(ev.Idle)
	}
}

func (c *Coordinator) handleTask(t *task.StoryTask) {
	if w, ok := c.assignments[t.Site]; ok {
		c.dispatch(w, t)
		return
	}
	c.backlog[t.Site] = append(c.backlog[t.Site], t)
	c.reportBacklog(t.Site)
	c.assign()
}

func (c *Coordinator) handleIdle(idle *WorkerIdle) {
	c.idle[idle.WorkerID] = struct{}{}
	if idle.FinishedSite != "" && c.assignments[idle.FinishedSite] == idle.WorkerID {
		delete(c.assignments, idle.FinishedSite)
	}
	c.assign()
	c.reportActiveWorkers()
}

func (c *Coordinator) reportBacklog(site string) {
	if c.Metrics == nil {
		return
	}
	c.Metrics.BacklogDepth.WithLabelValues(site).Set(float64(len(c.backlog[site])))
}

func (c *Coordinator) reportActiveWorkers() {
	if c.Metrics == nil {
		return
	}
	c.Metrics.ActiveWorkers.Set(float64(len(c.assignments)))
}

// assign implements the greedy loop from spec.md §4.7: while an idle
// worker exists and some site has backlog but no assignment, bind that
// worker to that site and drain the entire backlog to it in order.
func (c *Coordinator) assign() {
	for {
		site, ok := c.siteNeedingWorker()
		if !ok {
			return
		}
		workerID, ok := c.pickIdle()
		if !ok {
			return
		}

		c.assignments[site] = workerID
		delete(c.idle, workerID)

		pending := c.backlog[site]
		delete(c.backlog, site)
		for _, t := range pending {
			c.dispatch(workerID, t)
		}
		c.reportBacklog(site)
		c.reportActiveWorkers()
		c.Logger.Debug("assigned site to worker", "site", site, "worker", workerID, "drained", len(pending))
	}
}

func (c *Coordinator) siteNeedingWorker() (string, bool) {
	for site, pending := range c.backlog {
		if len(pending) == 0 {
			continue
		}
		if _, assigned := c.assignments[site]; assigned {
			continue
		}
		return site, true
	}
	return "", false
}

func (c *Coordinator) pickIdle() (string, bool) {
	for w := range c.idle {
		return w, true
	}
	return "", false
}

func (c *Coordinator) dispatch(workerID string, t *task.StoryTask) {
	ch, ok := c.workers[workerID]
	if !ok {
		c.Logger.Warn("dispatch to unknown worker", "worker", workerID)
		return
	}
	ch <- t
}
