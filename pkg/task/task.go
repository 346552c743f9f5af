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

// Package task defines the unit of work (StoryTask) that flows through
// the download pipeline, plus the RetryDecision value object produced
// by the retry policy and consumed by the retry scheduler.
package task

import "fmt"

// Behavior is an escalation flag carried on a task.
type Behavior string

const (
	// BehaviorNone is the default, no special handling requested.
	BehaviorNone Behavior = ""
	// BehaviorForce requests a single-shot forced re-download; the worker
	// sets it after a forceable downloader outcome. A configured "force"
	// update method is applied by downloader.BuildArgs, not via this flag.
	BehaviorForce Behavior = "force"
)

// RetryAction is the verdict produced by the retry policy.
type RetryAction string

const (
	ActionRetry    RetryAction = "retry"
	ActionHailMary RetryAction = "hail_mary"
	ActionAbandon  RetryAction = "abandon"
)

// RetryDecision is the pure output of the retry policy: what to do
// next with a failed task, how long to wait, and whether to notify
// the user.
type RetryDecision struct {
	Action              RetryAction
	DelayMinutes        float64
	ShouldNotify        bool
	NotificationMessage string
}

// StoryTask is a single unit of work moving through the pipeline: an
// email-discovered URL on its way to being downloaded or updated in
// the library.
//
// Equality and hashing are defined over (URL, Site, LibraryID) per the
// spec — two tasks referring to the same canonical URL, site, and
// library entry are considered the same logical unit of work even if
// other mutable fields (Repeats, Behavior, RetryDecision) differ.
type StoryTask struct {
	URL       string
	Site      string
	LibraryID string // optional; empty until located or inserted
	Title     string // optional; populated from filename or library metadata

	Behavior Behavior
	Repeats  int64

	RetryDecision *RetryDecision
}

// New constructs a StoryTask for a freshly classified URL.
func New(url, site string) *StoryTask {
	return &StoryTask{URL: url, Site: site}
}

// Key returns the identity tuple (URL, Site, LibraryID) as one string.
// Because LibraryID participates, a task before and after it is
// assigned a library id yields different keys. ActiveSet membership is
// keyed by URL alone, not by Key.
func (t *StoryTask) Key() string {
	return fmt.Sprintf("%s\x00%s\x00%s", t.URL, t.Site, t.LibraryID)
}

// Equal reports whether two tasks share the same identity tuple.
func (t *StoryTask) Equal(other *StoryTask) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.URL == other.URL && t.Site == other.Site && t.LibraryID == other.LibraryID
}

// IsForceAgainstNoForce reports whether the task requests a forced
// download while the configured update method refuses to honor force
// — the one case the retry policy treats specially.
func (t *StoryTask) IsForceAgainstNoForce(updateMethodNoForce bool) bool {
	return t.Behavior == BehaviorForce && updateMethodNoForce
}

// Clone returns a copy safe to mutate independently; RetryDecision is
// copied too. The pipeline currently requeues the original pointer
// rather than a clone.
func (t *StoryTask) Clone() *StoryTask {
	if t == nil {
		return nil
	}
	cp := *t
	if t.RetryDecision != nil {
		rd := *t.RetryDecision
		cp.RetryDecision = &rd
	}
	return &cp
}

func (t *StoryTask) String() string {
	return fmt.Sprintf("StoryTask{url=%s site=%s libraryId=%s repeats=%d behavior=%s}",
		t.URL, t.Site, t.LibraryID, t.Repeats, t.Behavior)
}
