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

// Package worker drives a single StoryTask through download, outcome
// classification, retry-decision bookkeeping, and library
// reconciliation. Each Worker owns one blocking input channel and is
// assigned to at most one site at a time by the Coordinator.
package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MrTyton/AutomatedFanfic-sub000/internal/activeset"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/coordinator"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/downloader"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/epubmeta"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/history"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/libraryclient"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/metrics"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/notify"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/retrypolicy"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/strategy"
	"github.com/MrTyton/AutomatedFanfic-sub000/pkg/task"
)

// Config is the subset of process configuration a worker needs to
// drive a single task through the downloader and reconciliation.
type Config struct {
	UpdateMethod string
	Verbose      bool
	MetadataMode strategy.Mode
	Retry        retrypolicy.Config
}

// Worker consumes tasks for its currently-assigned site.
type Worker struct {
	ID     string
	Input  <-chan *task.StoryTask
	Logger *slog.Logger

	Client    *libraryclient.Client
	Invoker   *downloader.Invoker
	Notifier  *notify.Facade
	ActiveSet *activeset.Set
	Metrics   *metrics.Registry
	History   *history.Store

	Ingress   chan<- coordinator.Event
	Scheduler chan<- *task.StoryTask

	Cfg Config
}

// Run loops until Input yields a nil sentinel, announcing idleness
// between tasks per spec.md §4.8.
func (w *Worker) Run(ctx context.Context) {
	var lastFinishedSite string

	for {
		if lastFinishedSite != "" {
			w.Ingress <- coordinator.IdleEvent(w.ID, lastFinishedSite)
			lastFinishedSite = ""
		} else {
			w.Ingress <- coordinator.IdleEvent(w.ID, "")
		}

		t, ok := <-w.Input
		if !ok || t == nil {
			return
		}

		w.process(ctx, t)
		lastFinishedSite = t.Site
	}
}

func (w *Worker) process(ctx context.Context, t *task.StoryTask) {
	logger := w.Logger.With("url", t.URL, "site", t.Site)

	dir, err := os.MkdirTemp("", "fanficworker-*")
	if err != nil {
		logger.Error("could not create temp dir", "err", err)
		w.fail(ctx, t, logger)
		return
	}
	defer os.RemoveAll(dir)

	pathOrURL, err := w.resolvePathOrURL(ctx, t, dir, logger)
	if err != nil {
		logger.Error("resolving path failed", "err", err)
		w.fail(ctx, t, logger)
		return
	}

	if w.Cfg.UpdateMethod == "update_no_force" && t.Behavior == task.BehaviorForce {
		logger.Warn("force requested against update_no_force; synthesizing permanent failure")
		w.failWithOutcome(ctx, t, downloader.Permanent, "permanently skipped because force was requested but update method is update_no_force", logger)
		return
	}

	start := time.Now()
	result := w.Invoker.Run(ctx, w.Cfg.UpdateMethod, t.Behavior, w.Cfg.Verbose, pathOrURL)
	if w.Metrics != nil {
		w.Metrics.DownloaderRunDur.WithLabelValues(result.Outcome.String()).Observe(time.Since(start).Seconds())
	}

	switch result.Outcome {
	case downloader.Permanent:
		w.failWithOutcome(ctx, t, result.Outcome, result.Output, logger)
	case downloader.Forceable:
		if t.Behavior == task.BehaviorForce {
			w.failWithOutcome(ctx, t, result.Outcome, result.Output, logger)
			return
		}
		t.Behavior = task.BehaviorForce
		w.Ingress <- coordinator.TaskEvent(t)
	case downloader.Transient:
		w.failWithOutcome(ctx, t, result.Outcome, result.Output, logger)
	default: // Success
		w.reconcile(ctx, t, dir, logger)
	}
}

// resolvePathOrURL locates an existing library entry and exports it;
// falls back to the bare URL when no entry exists yet.
func (w *Worker) resolvePathOrURL(ctx context.Context, t *task.StoryTask, dir string, logger *slog.Logger) (string, error) {
	id, found, err := w.Client.GetStoryId(ctx, t.URL)
	if err != nil {
		return "", err
	}
	if !found {
		return t.URL, nil
	}
	t.LibraryID = id

	if err := w.Client.Export(ctx, id, dir); err != nil {
		return "", err
	}

	epubPath, ok := firstEpub(dir)
	if !ok {
		return t.URL, nil
	}
	t.Title = titleFromFilename(epubPath)

	if info, err := epubmeta.Read(epubPath); err == nil {
		logger.Debug("epub metadata", "identifier", info.Identifier, "source", info.Source)
	}
	return epubPath, nil
}

// reconcile runs the configured update strategy and converts its
// result into the success notification or a fresh failure per
// spec.md §4.8.4.
func (w *Worker) reconcile(ctx context.Context, t *task.StoryTask, dir string, logger *slog.Logger) {
	var strat strategy.Strategy
	if t.LibraryID == "" {
		strat = &strategy.AddNew{Logger: w.Logger}
	} else {
		strat = strategy.Select(w.Cfg.MetadataMode, w.Logger)
	}

	if !strat.Execute(ctx, t, w.Client, dir) {
		w.fail(ctx, t, logger)
		return
	}

	w.ActiveSet.Remove(t.URL)
	w.Notifier.Send(ctx, notify.Message{
		Title: "New Fanfiction Download",
		Body:  t.Title,
		Site:  t.Site,
	})
	w.recordHistory(ctx, t, history.OutcomeSuccess, "")
}

func (w *Worker) recordHistory(ctx context.Context, t *task.StoryTask, outcome history.Outcome, message string) {
	if w.History == nil {
		return
	}
	if err := w.History.Record(ctx, history.Record{
		URL:         t.URL,
		Site:        t.Site,
		LibraryID:   t.LibraryID,
		Outcome:     outcome,
		Message:     message,
		Repeats:     t.Repeats,
		CompletedAt: time.Now(),
	}); err != nil {
		w.Logger.Warn("failed to record task history", "url", t.URL, "err", err)
	}
}

// fail handles a reconciliation failure with no specific downloader
// outcome attached.
func (w *Worker) fail(ctx context.Context, t *task.StoryTask, logger *slog.Logger) {
	w.failWithOutcome(ctx, t, downloader.Transient, "", logger)
}

// failWithOutcome runs the §4.8.3 failure path: increment repeats,
// consult the retry policy, and either abandon or requeue.
func (w *Worker) failWithOutcome(ctx context.Context, t *task.StoryTask, outcome downloader.Outcome, message string, logger *slog.Logger) {
	t.Repeats++

	isForceWithNoForce := t.Behavior == task.BehaviorForce && w.Cfg.UpdateMethod == "update_no_force"
	decision := retrypolicy.Decide(t.Repeats, w.Cfg.Retry, isForceWithNoForce)
	t.RetryDecision = &decision
	if w.Metrics != nil {
		w.Metrics.RetryOutcomes.WithLabelValues(string(decision.Action)).Inc()
	}

	logger = logger.With("repeats", t.Repeats, "outcome", outcome.String(), "decision", decision.Action)

	switch decision.Action {
	case task.ActionAbandon:
		w.ActiveSet.Remove(t.URL)
		if decision.ShouldNotify {
			w.Notifier.Send(ctx, notify.Message{Title: "Fanfiction Download Abandoned", Body: decision.NotificationMessage, Site: t.Site})
		}
		w.recordHistory(ctx, t, history.OutcomeAbandon, message)
		logger.Info("task abandoned")
	default: // RETRY / HAIL_MARY
		if decision.ShouldNotify {
			w.Notifier.Send(ctx, notify.Message{Title: "Fanfiction Download Failed", Body: decision.NotificationMessage, Site: t.Site})
		}
		w.Scheduler <- t
		logger.Warn("task scheduled for retry", "delay_minutes", decision.DelayMinutes, "message", message)
	}
}

func firstEpub(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".epub" {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}

func titleFromFilename(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
