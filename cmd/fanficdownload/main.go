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

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/MrTyton/AutomatedFanfic-sub000/internal/activeset"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/classifier"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/config"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/coordinator"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/downloader"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/history"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/ingest"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/libraryclient"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/logging"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/metrics"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/notify"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/retrypolicy"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/scheduler"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/strategy"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/supervisor"
	"github.com/MrTyton/AutomatedFanfic-sub000/internal/worker"
	"github.com/MrTyton/AutomatedFanfic-sub000/pkg/task"
)

func main() {
	var (
		configPath = flag.String("config", "./config.default/config.toml", "path to the TOML config file")
		verbose    = flag.Bool("verbose", false, "enable debug logging and colorized console summaries")
		historyDB  = flag.String("history-db", "", "optional path to a sqlite audit-trail database")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{Verbose: *verbose})
	logger.Info(logging.VersionLine(cfg.Version))
	if *verbose {
		color.Cyan("verbose mode enabled; debug logging active")
	}

	reg := metrics.New()

	var historyStore *history.Store
	if *historyDB != "" {
		historyStore, err = history.Open(*historyDB)
		if err != nil {
			logger.Error("failed to open history database", "err", err)
			os.Exit(1)
		}
		defer historyStore.Close()
	}

	sup := supervisor.New(supervisor.Config{
		MaxRestartAttempts:  cfg.Process.MaxRestartAttempts,
		RestartDelay:        durationFromSeconds(cfg.Process.RestartDelaySec),
		ShutdownTimeout:     durationFromSeconds(cfg.Process.ShutdownTimeoutSec),
		HealthCheckInterval: durationFromSeconds(cfg.Process.HealthCheckIntervalSec),
		EnableMonitoring:    cfg.Process.EnableMonitoring,
		AutoRestart:         cfg.Process.AutoRestart,
		Version:             cfg.Version,
	}, logger)

	ingress := make(chan coordinator.Event, 64)
	retryIn := make(chan *task.StoryTask, 64)

	disabledSites := make(map[string]bool, len(cfg.Email.DisabledSites))
	for _, site := range cfg.Email.DisabledSites {
		disabledSites[site] = true
	}

	notifier := buildNotifier(cfg, logger)
	notifier.SetMetrics(reg)

	client := libraryclient.New("calibredb", cfg.Calibre.Path, libraryclient.Credentials{
		Username: cfg.Calibre.Username,
		Password: cfg.Calibre.Password,
	}, nil)
	client.SetMetrics(reg)

	invoker := &downloader.Invoker{
		Binary:   "fanficfare",
		AuxFiles: auxFiles(cfg.Calibre.DefaultINI, cfg.Calibre.PersonalINI),
	}

	// All workers share a single ActiveSet: the ingester dedupes on
	// insert and workers remove on exit, per spec.md §5's
	// shared-resource policy.
	sharedActiveSet := activeset.New()

	workerChans := make(map[string]chan<- *task.StoryTask, cfg.MaxWorkers)
	var workers []*worker.Worker
	for i := 0; i < cfg.MaxWorkers; i++ {
		id := fmt.Sprintf("worker-%d", i)
		in := make(chan *task.StoryTask, 8)
		workerChans[id] = in

		w := &worker.Worker{
			ID:        id,
			Input:     in,
			Logger:    logging.WithWorker(logger, id),
			Client:    client,
			Invoker:   invoker,
			Notifier:  notifier,
			ActiveSet: sharedActiveSet,
			Metrics:   reg,
			History:   historyStore,
			Ingress:   ingress,
			Scheduler: retryIn,
			Cfg: worker.Config{
				UpdateMethod: cfg.Calibre.UpdateMethod,
				Verbose:      *verbose,
				MetadataMode: strategy.Mode(cfg.Calibre.MetadataPreservationMode),
				Retry: retrypolicy.Config{
					HailMaryEnabled:   cfg.Retry.HailMaryEnabled,
					HailMaryWaitHours: cfg.Retry.HailMaryWaitHours,
					MaxNormalRetries:  cfg.Retry.MaxNormalRetries,
				},
			},
		}
		workers = append(workers, w)
	}

	coord := coordinator.New(ingress, workerChans, logging.WithTask(logger, "", ""))
	coord.Metrics = reg
	sched := scheduler.New(retryIn, ingress, logger)

	imapMailbox := &ingest.IMAPMailbox{
		Addr:     cfg.Email.Server,
		Username: cfg.Email.User,
		Password: cfg.Email.Password,
		Mailbox:  cfg.Email.Mailbox,
	}
	ingester := &ingest.Ingester{
		Mailbox:       imapMailbox,
		Table:         classifier.Default(),
		DisabledSites: disabledSites,
		ActiveSet:     sharedActiveSet,
		Ingress:       asTaskChan(ingress),
		Notifier:      notifier,
		PollInterval:  time.Duration(cfg.Email.SleepTime) * time.Second,
		Logger:        logger,
	}

	sup.Register(supervisor.Unit{Name: "ingester", Run: func(ctx context.Context) error {
		ingester.Run(ctx)
		return nil
	}})
	sup.Register(supervisor.Unit{Name: "coordinator", Run: func(ctx context.Context) error {
		coord.Run(ctx)
		return nil
	}})
	sup.Register(supervisor.Unit{Name: "scheduler", Run: func(ctx context.Context) error {
		sched.Run(ctx)
		return nil
	}})
	for _, w := range workers {
		w := w
		sup.Register(supervisor.Unit{Name: w.ID, Run: func(ctx context.Context) error {
			w.Run(ctx)
			return nil
		}})
	}

	ctx := context.Background()
	sup.Start(ctx)
	sup.Wait()

	logger.Info("shutdown complete")
}

// asTaskChan adapts the Coordinator's Event channel into the
// plain *StoryTask channel the Ingester writes onto.
func asTaskChan(ingress chan coordinator.Event) chan<- *task.StoryTask {
	out := make(chan *task.StoryTask)
	go func() {
		for t := range out {
			ingress <- coordinator.TaskEvent(t)
		}
	}()
	return out
}

func buildNotifier(cfg *config.Config, logger *slog.Logger) *notify.Facade {
	var backends []notify.Backend
	if cfg.Pushbullet.Enabled {
		backends = append(backends, &notify.PushbulletBackend{
			APIKey: cfg.Pushbullet.APIKey,
			Device: cfg.Pushbullet.Device,
		})
	}
	if len(cfg.Apprise.URLs) > 0 {
		backends = append(backends, &notify.AppriseBackend{URLs: cfg.Apprise.URLs})
	}
	return notify.New(backends, 1, 1, logger)
}

func auxFiles(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
