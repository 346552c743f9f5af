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

// Package retrypolicy implements the pure, side-effect-free decision
// function that turns a failed attempt count into a RetryDecision. It
// performs no sleeping and no I/O — internal/scheduler owns the actual
// timers.
package retrypolicy

import (
	"fmt"
	"math"

	"github.com/MrTyton/AutomatedFanfic-sub000/pkg/task"
)

// Config mirrors the spec's [retry] table.
type Config struct {
	HailMaryEnabled   bool
	HailMaryWaitHours float64 // 0.1..168
	MaxNormalRetries  int64   // 1..50
}

const (
	baseDelaySeconds = 60.0
	secondsPerMinute = 60.0
)

// Decide computes the next RetryDecision for a task that has just
// failed for the repeats-th time.
//
// isForceWithNoForce must be true only when the task requested a
// forced download while the library's update method refuses to honor
// force (updateMethod == update_no_force) — that combination always
// abandons once the normal retry budget for it is exhausted and cannot
// be rescued by Hail-Mary, matching spec.md §4.2.
func Decide(repeats int64, cfg Config, isForceWithNoForce bool) task.RetryDecision {
	if isForceWithNoForce && repeats >= cfg.MaxNormalRetries+1 {
		return task.RetryDecision{
			Action:              task.ActionAbandon,
			ShouldNotify:        true,
			NotificationMessage: "permanently skipped because force was requested but update method is update_no_force",
		}
	}

	if repeats <= cfg.MaxNormalRetries {
		delaySeconds := baseDelaySeconds * math.Pow(2, float64(repeats-1))
		capSeconds := cfg.HailMaryWaitHours * 3600
		if capSeconds > 0 && delaySeconds > capSeconds {
			delaySeconds = capSeconds
		}
		return task.RetryDecision{
			Action:       task.ActionRetry,
			DelayMinutes: delaySeconds / secondsPerMinute,
			ShouldNotify: false,
		}
	}

	if repeats == cfg.MaxNormalRetries+1 && cfg.HailMaryEnabled {
		return task.RetryDecision{
			Action:       task.ActionHailMary,
			DelayMinutes: cfg.HailMaryWaitHours * 60,
			ShouldNotify: true,
			NotificationMessage: fmt.Sprintf(
				"Fanfiction Download Failed, trying Hail-Mary in %s hours",
				trimTrailingZeros(cfg.HailMaryWaitHours)),
		}
	}

	return task.RetryDecision{
		Action:              task.ActionAbandon,
		ShouldNotify:        true,
		NotificationMessage: "Maximum retries reached",
	}
}

// trimTrailingZeros formats an hours value without a forced decimal
// point when it happens to be a whole number (e.g. "1" not "1.0").
func trimTrailingZeros(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
