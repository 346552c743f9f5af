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

// Package strategy implements the closed set of four ways a freshly
// downloaded story is reconciled with the library: add_new (brand new
// story), remove_add, preserve_metadata, and add_format. Selection
// between them is made once, at worker construction / task dispatch,
// never by runtime registration.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrTyton/AutomatedFanfic-sub000/internal/libraryclient"
	"github.com/MrTyton/AutomatedFanfic-sub000/pkg/task"
)

// Mode is the config-selected metadata reconciliation mode for an
// existing-story update; it has no bearing on new-story handling,
// which always uses AddNew.
type Mode string

const (
	ModeRemoveAdd        Mode = "remove_add"
	ModePreserveMetadata Mode = "preserve_metadata"
	ModeAddFormat        Mode = "add_format"
)

// Strategy reconciles a freshly downloaded artefact (sitting in
// tmpDir) with the library entry for t, returning whether it
// succeeded.
type Strategy interface {
	Execute(ctx context.Context, t *task.StoryTask, client *libraryclient.Client, tmpDir string) bool
}

// Select returns the Strategy for an existing-library-entry update per
// mode. Unknown or empty modes fall back to RemoveAdd.
func Select(mode Mode, logger *slog.Logger) Strategy {
	switch mode {
	case ModePreserveMetadata:
		return &preserveMetadata{logger: logger}
	case ModeAddFormat:
		return &addFormat{logger: logger}
	default:
		return &removeAdd{logger: logger}
	}
}

// AddNew is the trivial strategy used whenever a task has no
// libraryId yet, independent of the configured metadataMode.
type AddNew struct {
	Logger *slog.Logger
}

func (s *AddNew) Execute(ctx context.Context, t *task.StoryTask, client *libraryclient.Client, tmpDir string) bool {
	id, err := client.Add(ctx, tmpDir)
	if err != nil {
		s.Logger.Error("add_new: library add failed", "url", t.URL, "err", err)
		return false
	}
	t.LibraryID = id
	return true
}

type removeAdd struct {
	logger *slog.Logger
}

func (s *removeAdd) Execute(ctx context.Context, t *task.StoryTask, client *libraryclient.Client, tmpDir string) bool {
	oldMeta, _ := client.GetMetadata(ctx, t.LibraryID)

	if err := client.Remove(ctx, t.LibraryID); err != nil {
		s.logger.Error("remove_add: remove failed", "url", t.URL, "err", err)
		return false
	}
	newID, err := client.Add(ctx, tmpDir)
	if err != nil {
		s.logger.Error("remove_add: add failed", "url", t.URL, "err", err)
		return false
	}
	t.LibraryID = newID

	newMeta, _ := client.GetMetadata(ctx, newID)
	logDiff(s.logger, t, oldMeta, newMeta)
	return true
}

type preserveMetadata struct {
	logger *slog.Logger
}

func (s *preserveMetadata) Execute(ctx context.Context, t *task.StoryTask, client *libraryclient.Client, tmpDir string) bool {
	oldMeta, err := client.GetMetadata(ctx, t.LibraryID)
	if err != nil {
		s.logger.Error("preserve_metadata: get metadata failed", "url", t.URL, "err", err)
		return false
	}

	if err := client.Remove(ctx, t.LibraryID); err != nil {
		s.logger.Error("preserve_metadata: remove failed", "url", t.URL, "err", err)
		return false
	}
	newID, err := client.Add(ctx, tmpDir)
	if err != nil {
		s.logger.Error("preserve_metadata: add failed", "url", t.URL, "err", err)
		return false
	}
	t.LibraryID = newID

	if err := client.SetMetadata(ctx, newID, oldMeta, nil); err != nil {
		s.logger.Error("preserve_metadata: set metadata failed", "url", t.URL, "err", err)
		return false
	}

	newMeta, _ := client.GetMetadata(ctx, newID)
	logDiff(s.logger, t, oldMeta, newMeta)
	return true
}

type addFormat struct {
	logger *slog.Logger
}

func (s *addFormat) Execute(ctx context.Context, t *task.StoryTask, client *libraryclient.Client, tmpDir string) bool {
	oldMeta, _ := client.GetMetadata(ctx, t.LibraryID)

	epubPath, ok := firstEpub(tmpDir)
	if !ok {
		s.logger.Error("add_format: no epub found in temp dir", "url", t.URL)
		return false
	}

	if err := client.ReplaceFormat(ctx, t.LibraryID, epubPath); err != nil {
		s.logger.Error("add_format: replace format failed", "url", t.URL, "err", err)
		return false
	}

	newMeta, _ := client.GetMetadata(ctx, t.LibraryID)
	logDiff(s.logger, t, oldMeta, newMeta)
	return true
}

// diffMetadata reports the field-by-field differences between two
// metadata snapshots, in the original tool's "changed / lost / added"
// shape.
func diffMetadata(oldMeta, newMeta map[string]string) []string {
	var diffs []string
	for field, oldVal := range oldMeta {
		if newVal, ok := newMeta[field]; ok {
			if newVal != oldVal {
				diffs = append(diffs, fmt.Sprintf("~ %s: %q -> %q", field, oldVal, newVal))
			}
		} else {
			diffs = append(diffs, fmt.Sprintf("- %s (lost)", field))
		}
	}
	for field := range newMeta {
		if _, ok := oldMeta[field]; !ok {
			diffs = append(diffs, fmt.Sprintf("+ %s (added)", field))
		}
	}
	return diffs
}

func logDiff(logger *slog.Logger, t *task.StoryTask, oldMeta, newMeta map[string]string) {
	for _, line := range diffMetadata(oldMeta, newMeta) {
		logger.Debug("metadata diff", "url", t.URL, "change", line)
	}
}

// firstEpub returns the first .epub file found directly inside dir.
func firstEpub(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".epub") {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}
