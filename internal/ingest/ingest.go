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

// Package ingest polls a mailbox on an interval, extracts story URLs,
// classifies them, deduplicates against the process-wide ActiveSet,
// and emits StoryTasks onto the pipeline's ingress channel.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrTyton/AutomatedFanfic-sub000/internal/activeset"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/classifier"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/notify"
	"github.com/MrTyton/AutomatedFanfic-sub000/pkg/task"
)

// MailboxReader is the narrow interface over the external IMAP /
// URL-extraction collaborator named in spec.md §1; the concrete
// adapter is backed by an IMAP client library.
type MailboxReader interface {
	// FetchURLs returns every story URL found in new, unread messages
	// since the last call.
	FetchURLs(ctx context.Context) ([]string, error)
}

// Ingester is the C6 pipeline stage.
type Ingester struct {
	Mailbox       MailboxReader
	Table         classifier.Table
	DisabledSites map[string]bool
	ActiveSet     *activeset.Set
	Ingress       chan<- *task.StoryTask
	Notifier      *notify.Facade
	PollInterval  time.Duration
	Logger        *slog.Logger
}

// Run polls until ctx is cancelled. Cancellation is cooperative: the
// loop exits between polls, or promptly while sleeping.
func (in *Ingester) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(in.PollInterval):
		}

		if ctx.Err() != nil {
			return
		}

		urls, err := in.Mailbox.FetchURLs(ctx)
		if err != nil {
			in.Logger.Error("mailbox fetch failed", "err", err)
			continue
		}

		for _, raw := range urls {
			in.processURL(ctx, raw)
		}
	}
}

func (in *Ingester) processURL(ctx context.Context, raw string) {
	canonical, site, ok := in.Table.Classify(raw)
	if !ok {
		in.Logger.Warn("could not classify URL", "url", raw)
		return
	}

	if in.DisabledSites[site] {
		in.Notifier.Send(ctx, notify.Message{
			Title: "Site Disabled",
			Body:  canonical,
			Site:  site,
		})
		return
	}

	if !in.ActiveSet.TryAdd(canonical) {
		return
	}

	in.Ingress <- task.New(canonical, site)
}
