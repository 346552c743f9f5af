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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRetryOutcomesIncrement(t *testing.T) {
	m := New()
	m.RetryOutcomes.WithLabelValues("retry").Inc()
	m.RetryOutcomes.WithLabelValues("retry").Inc()
	m.RetryOutcomes.WithLabelValues("abandon").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RetryOutcomes.WithLabelValues("retry")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RetryOutcomes.WithLabelValues("abandon")))
}

func TestResetClearsGauges(t *testing.T) {
	m := New()
	m.ActiveWorkers.Set(3)
	m.BacklogDepth.WithLabelValues("fanfiction").Set(5)

	m.Reset()

	assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveWorkers))
}
