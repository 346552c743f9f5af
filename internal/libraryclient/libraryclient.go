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

// Package libraryclient is a thin typed wrapper over an external
// library-management CLI (search, export, add, remove, replace-format,
// get/set metadata). All operations are serialised by a process-wide
// mutex because the underlying CLI is not guaranteed reentrant against
// the same library.
package libraryclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrTyton/AutomatedFanfic-sub000/internal/metrics"
)

// ExecFunc runs an external command and returns its combined
// stdout+stderr and any execution error. Injectable for tests.
type ExecFunc func(ctx context.Context, name string, args ...string) (output string, err error)

// CLIError is returned whenever the wrapped CLI exits non-zero or its
// output cannot be parsed as expected.
type CLIError struct {
	Command []string
	Stderr  string
	Err     error
}

func (e *CLIError) Error() string {
	return fmt.Sprintf("library CLI command %q failed: %v (stderr: %s)", strings.Join(e.Command, " "), e.Err, e.Stderr)
}

func (e *CLIError) Unwrap() error { return e.Err }

// Credentials, when set, are appended to every invocation as
// authentication flags. Password is never logged in the clear;
// Fingerprint returns a bcrypt hash suitable for diagnostic correlation.
type Credentials struct {
	Username string
	Password string
}

// Fingerprint returns a bcrypt hash of the password for inclusion in
// diagnostic logs, never the password itself. Returns empty string
// when no password is set.
func (c Credentials) Fingerprint() string {
	if c.Password == "" {
		return ""
	}
	sum, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.MinCost)
	if err != nil {
		return ""
	}
	return string(sum)
}

// Client wraps calls to the external library CLI binary.
type Client struct {
	binary      string
	libraryPath string
	creds       Credentials
	exec        ExecFunc
	metrics     *metrics.Registry

	mu sync.Mutex
}

// SetMetrics attaches a metrics registry for per-operation duration
// tracking. Optional; a Client with no registry simply skips
// instrumentation.
func (c *Client) SetMetrics(m *metrics.Registry) {
	c.metrics = m
}

// New constructs a Client. exec defaults to running the real binary
// via os/exec when nil.
func New(binary, libraryPath string, creds Credentials, exec ExecFunc) *Client {
	if exec == nil {
		exec = runExec
	}
	return &Client{binary: binary, libraryPath: libraryPath, creds: creds, exec: exec}
}

func runExec(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func (c *Client) authArgs() []string {
	if c.creds.Username == "" {
		return nil
	}
	return []string{"--username", c.creds.Username, "--password", c.creds.Password}
}

// run serialises execution behind the process-wide mutex and wraps
// failures in a *CLIError carrying the offending command (credentials
// redacted).
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	op := "unknown"
	if len(args) > 0 {
		op = args[0]
	}
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.LibraryOpDur.WithLabelValues(op).Observe(time.Since(start).Seconds())
		}
	}()

	full := append(append([]string{}, args...), c.authArgs()...)
	out, err := c.exec(ctx, c.binary, full...)
	if err != nil {
		return out, &CLIError{Command: redactedCommand(c.binary, full), Stderr: out, Err: err}
	}
	return out, nil
}

// redactedCommand returns the command line with any password value
// replaced, for safe inclusion in error messages and logs.
func redactedCommand(binary string, args []string) []string {
	cmd := append([]string{binary}, args...)
	for i := 0; i < len(cmd)-1; i++ {
		if cmd[i] == "--password" {
			cmd[i+1] = "REDACTED"
		}
	}
	return cmd
}

type searchResult struct {
	ID any `json:"id"`
}

// GetStoryId searches the library by identifier field and returns the
// library id, or ("", false) if not found. On multiple matches, the
// first wins.
func (c *Client) GetStoryId(ctx context.Context, url string) (string, bool, error) {
	query := fmt.Sprintf(`identifiers:"url=%s"`, url)
	out, err := c.run(ctx, "list", "--for-machine", "--fields=id",
		fmt.Sprintf("--search=%s", query), c.libraryPath)
	if err != nil {
		return "", false, err
	}

	var results []searchResult
	if jsonErr := json.Unmarshal([]byte(out), &results); jsonErr != nil {
		return "", false, &CLIError{Command: []string{"list"}, Stderr: out, Err: jsonErr}
	}
	if len(results) == 0 {
		return "", false, nil
	}
	return fmt.Sprintf("%v", results[0].ID), true, nil
}

// Export writes the current artefact for libraryId into dir (single
// file, no cover, no opf sidecar).
func (c *Client) Export(ctx context.Context, libraryID, dir string) error {
	_, err := c.run(ctx, "export", libraryID,
		"--dont-save-cover", "--dont-write-opf", "--single-dir",
		"--to-dir", dir, c.libraryPath)
	return err
}

// Add adds the single artefact found in dir and returns the newly
// assigned library id.
func (c *Client) Add(ctx context.Context, dir string) (string, error) {
	out, err := c.run(ctx, "add", "-d", dir, c.libraryPath)
	if err != nil {
		return "", err
	}
	id, ok := parseAddedID(out)
	if !ok {
		return "", &CLIError{Command: []string{"add"}, Stderr: out, Err: fmt.Errorf("could not parse added id from output")}
	}
	return id, nil
}

// Remove deletes the entry identified by libraryId.
func (c *Client) Remove(ctx context.Context, libraryID string) error {
	_, err := c.run(ctx, "remove", libraryID, c.libraryPath)
	return err
}

// ReplaceFormat replaces the stored artefact binary only, leaving the
// library database row untouched.
func (c *Client) ReplaceFormat(ctx context.Context, libraryID, file string) error {
	_, err := c.run(ctx, "add_format", "--replace", libraryID, file, c.libraryPath)
	return err
}

// GetMetadata returns a snapshot of all fields for libraryId.
func (c *Client) GetMetadata(ctx context.Context, libraryID string) (map[string]string, error) {
	out, err := c.run(ctx, "list", "--for-machine", "--fields=all",
		fmt.Sprintf("--search=id:%s", libraryID), c.libraryPath)
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	if jsonErr := json.Unmarshal([]byte(out), &records); jsonErr != nil {
		return nil, &CLIError{Command: []string{"list"}, Stderr: out, Err: jsonErr}
	}
	if len(records) == 0 {
		return map[string]string{}, nil
	}

	meta := make(map[string]string, len(records[0]))
	for k, v := range records[0] {
		meta[k] = stringifyMetadataValue(v)
	}
	return meta, nil
}

// SetMetadata restores fields from metadata onto libraryId. When
// fields is nil, only keys beginning with "#" (custom fields) are
// restored, matching the spec's default.
func (c *Client) SetMetadata(ctx context.Context, libraryID string, metadata map[string]string, fields []string) error {
	if fields == nil {
		for k := range metadata {
			if strings.HasPrefix(k, "#") {
				fields = append(fields, k)
			}
		}
	}
	for _, field := range fields {
		value, ok := metadata[field]
		if !ok || value == "" {
			continue
		}
		if _, err := c.run(ctx, "set_custom", field, value, libraryID, c.libraryPath); err != nil {
			return err
		}
	}
	return nil
}

func stringifyMetadataValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = fmt.Sprintf("%v", e)
		}
		return strings.Join(parts, ",")
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func parseAddedID(output string) (string, bool) {
	// calibredb's `add` prints a line like "Added book ids: 7" on success.
	idx := strings.LastIndex(output, ":")
	if idx == -1 {
		return "", false
	}
	id := strings.TrimSpace(output[idx+1:])
	id = strings.SplitN(id, "\n", 2)[0]
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	return id, true
}
