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

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// AppriseBackend posts to one or more Apprise notification service
// URLs (themselves an external transport — see spec.md §1's
// out-of-scope list). Every configured URL is treated as a target for
// the same underlying HTTP call, since Apprise's own server resolves
// the URL scheme into the actual transport.
type AppriseBackend struct {
	URLs   []string
	Client *http.Client
}

func (b *AppriseBackend) Name() string { return "apprise" }

func (b *AppriseBackend) Send(ctx context.Context, msg Message) bool {
	if len(b.URLs) == 0 {
		return true
	}

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}

	ok := true
	for _, url := range b.URLs {
		payload := map[string]string{
			"title": msg.Title,
			"body":  fmt.Sprintf("%s (%s)", msg.Body, msg.Site),
		}
		body, err := json.Marshal(payload)
		if err != nil {
			ok = false
			continue
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			ok = false
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			ok = false
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			ok = false
		}
	}
	return ok
}
