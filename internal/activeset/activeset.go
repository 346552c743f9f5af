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

// Package activeset implements the process-wide concurrent membership
// set of URLs currently known to the pipeline (pending in backlog, in
// a worker queue, in retry wait, or being processed). Inserts are
// performed by the ingester; removals by workers on task completion.
package activeset

import "sync"

// Set is a concurrent url -> present map with atomic
// presence-check-and-insert. Exact single-writer guarantees are not
// required: the coordinator's per-site exclusivity is the real
// correctness boundary, so a benign race between an ingester's
// check-then-insert is tolerable.
type Set struct {
	mu      sync.Mutex
	members map[string]struct{}
}

// New returns an empty Set.
func New() *Set {
	return &Set{members: make(map[string]struct{})}
}

// TryAdd inserts url if absent and reports whether the insertion
// happened (false means url was already present).
func (s *Set) TryAdd(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.members[url]; exists {
		return false
	}
	s.members[url] = struct{}{}
	return true
}

// Remove deletes url from the set; a no-op if absent.
func (s *Set) Remove(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, url)
}

// Contains reports whether url is currently a member.
func (s *Set) Contains(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.members[url]
	return exists
}

// Len returns the current membership count, mostly useful for metrics
// and tests.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}
