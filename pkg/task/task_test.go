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

package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoryTaskEqual(t *testing.T) {
	a := New("https://www.fanfiction.net/s/1/1/", "fanfiction")
	b := New("https://www.fanfiction.net/s/1/1/", "fanfiction")
	require.True(t, a.Equal(b))

	b.LibraryID = "42"
	assert.False(t, a.Equal(b), "differing libraryId breaks equality")

	a.LibraryID = "42"
	assert.True(t, a.Equal(b))
}

func TestStoryTaskKeyMatchesEquality(t *testing.T) {
	a := New("https://archiveofourown.org/works/1", "archiveofourown")
	b := New("https://archiveofourown.org/works/1", "archiveofourown")
	assert.Equal(t, a.Key(), b.Key())

	b.Site = "other"
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestCloneIsIndependent(t *testing.T) {
	original := New("https://www.fanfiction.net/s/1/1/", "fanfiction")
	original.RetryDecision = &RetryDecision{Action: ActionRetry, DelayMinutes: 1}

	clone := original.Clone()
	clone.RetryDecision.DelayMinutes = 99
	clone.Repeats = 5

	assert.Equal(t, float64(1), original.RetryDecision.DelayMinutes, "mutating clone must not affect original")
	assert.Equal(t, int64(0), original.Repeats)
}

func TestIsForceAgainstNoForce(t *testing.T) {
	tsk := New("u", "s")
	tsk.Behavior = BehaviorForce
	assert.True(t, tsk.IsForceAgainstNoForce(true))
	assert.False(t, tsk.IsForceAgainstNoForce(false))

	tsk.Behavior = BehaviorNone
	assert.False(t, tsk.IsForceAgainstNoForce(true))
}
