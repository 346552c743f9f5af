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

package activeset

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryAddOnlySucceedsOnce(t *testing.T) {
	s := New()
	assert.True(t, s.TryAdd("u1"))
	assert.False(t, s.TryAdd("u1"))
	assert.True(t, s.Contains("u1"))
}

func TestRemoveThenReAddSucceeds(t *testing.T) {
	s := New()
	s.TryAdd("u1")
	s.Remove("u1")
	assert.False(t, s.Contains("u1"))
	assert.True(t, s.TryAdd("u1"))
}

func TestConcurrentTryAddExactlyOneWinner(t *testing.T) {
	s := New()
	const n = 50
	var wg sync.WaitGroup
	wins := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- s.TryAdd("shared")
		}()
	}
	wg.Wait()
	close(wins)

	successCount := 0
	for w := range wins {
		if w {
			successCount++
		}
	}
	assert.Equal(t, 1, successCount)
}
