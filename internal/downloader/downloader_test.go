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

package downloader

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MrTyton/AutomatedFanfic-sub000/pkg/task"
)

func TestBuildArgsUpdate(t *testing.T) {
	args := BuildArgs("update", task.BehaviorNone, false, "story.epub")
	assert.Equal(t, []string{"-u", "--update-cover", "--non-interactive", "story.epub"}, args)
}

func TestBuildArgsUpdateAlways(t *testing.T) {
	args := BuildArgs("update_always", task.BehaviorNone, false, "story.epub")
	assert.Equal(t, []string{"-U", "--update-cover", "--non-interactive", "story.epub"}, args)
}

func TestBuildArgsForceBehavior(t *testing.T) {
	args := BuildArgs("update", task.BehaviorForce, false, "story.epub")
	assert.Contains(t, args, "--force")
}

func TestBuildArgsUpdateNoForceDropsForce(t *testing.T) {
	args := BuildArgs("update_no_force", task.BehaviorForce, false, "story.epub")
	assert.Equal(t, []string{"-u", "--update-cover", "--non-interactive", "story.epub"}, args)
	assert.NotContains(t, args, "--force")
}

func TestBuildArgsVerboseAddsDebug(t *testing.T) {
	args := BuildArgs("update", task.BehaviorNone, true, "story.epub")
	assert.Contains(t, args, "--debug")
}

func TestRunClassifiesPermanentFailure(t *testing.T) {
	inv := &Invoker{Exec: func(_ context.Context, _ string, _ []string) (string, error) {
		return "Story already contains 7 chapters", fmt.Errorf("exit status 1")
	}}
	result := inv.Run(context.Background(), "update", task.BehaviorNone, false, "url")
	assert.Equal(t, Permanent, result.Outcome)
}

func TestRunClassifiesForceable(t *testing.T) {
	inv := &Invoker{Exec: func(_ context.Context, _ string, _ []string) (string, error) {
		return "Story contains 7 chapters, more than source: 5", fmt.Errorf("exit status 1")
	}}
	result := inv.Run(context.Background(), "update", task.BehaviorNone, false, "url")
	assert.Equal(t, Forceable, result.Outcome)
}

func TestRunClassifiesTransientOnPlainError(t *testing.T) {
	inv := &Invoker{Exec: func(_ context.Context, _ string, _ []string) (string, error) {
		return "network unreachable", fmt.Errorf("exit status 1")
	}}
	result := inv.Run(context.Background(), "update", task.BehaviorNone, false, "url")
	assert.Equal(t, Transient, result.Outcome)
}

func TestRunClassifiesSuccess(t *testing.T) {
	inv := &Invoker{Exec: func(_ context.Context, _ string, _ []string) (string, error) {
		return "Story(url) written to disk", nil
	}}
	result := inv.Run(context.Background(), "update", task.BehaviorNone, false, "url")
	assert.Equal(t, Success, result.Outcome)
}
