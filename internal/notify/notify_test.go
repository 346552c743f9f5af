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

package notify

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeBackend struct {
	name       string
	failFirstN int32
	attempts   int32
	delivered  int32
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Send(_ context.Context, _ Message) bool {
	n := atomic.AddInt32(&f.attempts, 1)
	if n <= f.failFirstN {
		return false
	}
	atomic.AddInt32(&f.delivered, 1)
	return true
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendSucceedsOnFirstAttempt(t *testing.T) {
	b := &fakeBackend{name: "fake"}
	f := New([]Backend{b}, 0, 0, silentLogger())

	f.Send(context.Background(), Message{Title: "t"})
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.attempts))
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.delivered))
}

func TestSendRetriesUpToMaxAttempts(t *testing.T) {
	b := &fakeBackend{name: "fake", failFirstN: 2}
	f := New([]Backend{b}, 0, 0, silentLogger())
	f.retryDelay = func(int) time.Duration { return time.Millisecond }

	f.Send(context.Background(), Message{Title: "t"})

	assert.Equal(t, int32(3), atomic.LoadInt32(&b.attempts))
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.delivered))
}

func TestSendGivesUpAfterMaxAttempts(t *testing.T) {
	b := &fakeBackend{name: "fake", failFirstN: 10}
	f := New([]Backend{b}, 0, 0, silentLogger())
	f.retryDelay = func(int) time.Duration { return time.Millisecond }

	f.Send(context.Background(), Message{Title: "t"})

	assert.Equal(t, int32(maxAttempts), atomic.LoadInt32(&b.attempts))
	assert.Equal(t, int32(0), atomic.LoadInt32(&b.delivered))
}

func TestFacadeFansOutToAllBackends(t *testing.T) {
	b1 := &fakeBackend{name: "one"}
	b2 := &fakeBackend{name: "two"}
	f := New([]Backend{b1, b2}, 0, 0, silentLogger())

	f.Send(context.Background(), Message{Title: "t"})

	assert.Equal(t, int32(1), atomic.LoadInt32(&b1.delivered))
	assert.Equal(t, int32(1), atomic.LoadInt32(&b2.delivered))
}
