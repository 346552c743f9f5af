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

const pushbulletEndpoint = "https://api.pushbullet.com/v2/pushes"

// PushbulletBackend sends a "note" push via the Pushbullet API.
type PushbulletBackend struct {
	APIKey string
	Device string
	Client *http.Client
}

func (b *PushbulletBackend) Name() string { return "pushbullet" }

func (b *PushbulletBackend) Send(ctx context.Context, msg Message) bool {
	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}

	payload := map[string]string{
		"type":  "note",
		"title": msg.Title,
		"body":  fmt.Sprintf("%s (%s)", msg.Body, msg.Site),
	}
	if b.Device != "" {
		payload["device_iden"] = b.Device
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pushbulletEndpoint, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Access-Token", b.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
