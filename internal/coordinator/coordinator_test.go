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

package coordinator

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrTyton/AutomatedFanfic-sub000/pkg/task"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAssignSendsTaskToNewlyIdleWorker(t *testing.T) {
	ingress := make(chan Event, 4)
	w1out := make(chan *task.StoryTask, 4)
	c := New(ingress, map[string]chan<- *task.StoryTask{"w1": w1out}, silentLogger())

	ingress <- IdleEvent("w1", "")
	ingress <- TaskEvent(task.New("u1", "siteA"))
	close(ingress)
	c.Run(context.Background())

	select {
	case got := <-w1out:
		assert.Equal(t, "u1", got.URL)
	default:
		t.Fatal("expected task dispatched to w1")
	}
}

func TestAssignDrainsEntireBacklogToOneWorker(t *testing.T) {
	ingress := make(chan Event, 8)
	w1out := make(chan *task.StoryTask, 8)
	c := New(ingress, map[string]chan<- *task.StoryTask{"w1": w1out}, silentLogger())

	ingress <- TaskEvent(task.New("u1", "siteA"))
	ingress <- TaskEvent(task.New("u2", "siteA"))
	ingress <- TaskEvent(task.New("u3", "siteA"))
	ingress <- IdleEvent("w1", "")
	close(ingress)
	c.Run(context.Background())

	var got []string
	for {
		select {
		case t := <-w1out:
			got = append(got, t.URL)
		default:
			require.Equal(t, []string{"u1", "u2", "u3"}, got)
			return
		}
	}
}

func TestSecondSiteWaitsForAnotherIdleWorker(t *testing.T) {
	ingress := make(chan Event, 8)
	w1out := make(chan *task.StoryTask, 8)
	w2out := make(chan *task.StoryTask, 8)
	c := New(ingress, map[string]chan<- *task.StoryTask{"w1": w1out, "w2": w2out}, silentLogger())

	ingress <- IdleEvent("w1", "")
	ingress <- TaskEvent(task.New("u1", "siteA"))
	ingress <- TaskEvent(task.New("u2", "siteB"))
	close(ingress)
	c.Run(context.Background())

	select {
	case got := <-w1out:
		assert.Equal(t, "siteA", got.Site)
	default:
		t.Fatal("expected siteA dispatched")
	}
	select {
	case <-w2out:
		t.Fatal("siteB must wait for an idle worker; none announced")
	default:
	}
}

func TestReleasedAssignmentAllowsNewSiteToTakeWorker(t *testing.T) {
	ingress := make(chan Event, 8)
	w1out := make(chan *task.StoryTask, 8)
	c := New(ingress, map[string]chan<- *task.StoryTask{"w1": w1out}, silentLogger())

	ingress <- IdleEvent("w1", "")
	ingress <- TaskEvent(task.New("u1", "siteA"))
	ingress <- IdleEvent("w1", "siteA")
	ingress <- TaskEvent(task.New("u2", "siteB"))
	close(ingress)
	c.Run(context.Background())

	// The siteA task was dispatched first; the worker's release of
	// siteA then lets siteB take the same worker.
	first := <-w1out
	assert.Equal(t, "siteA", first.Site)
	select {
	case got := <-w1out:
		assert.Equal(t, "siteB", got.Site)
	default:
		t.Fatal("expected siteB dispatched after siteA released")
	}
}

func TestRunExitsOnContextCancelAfterDraining(t *testing.T) {
	ingress := make(chan Event, 2)
	w1out := make(chan *task.StoryTask, 2)
	c := New(ingress, map[string]chan<- *task.StoryTask{"w1": w1out}, silentLogger())

	ingress <- IdleEvent("w1", "")
	ingress <- TaskEvent(task.New("u1", "siteA"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after cancellation")
	}
}
