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

package ingest

import (
	"context"
	"fmt"
	"io"
	"regexp"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// urlPattern matches any http(s) URL embedded in a message body; the
// classifier is responsible for deciding whether it names a supported
// story site.
var urlPattern = regexp.MustCompile(`https?://\S+`)

// IMAPMailbox implements MailboxReader against a real mailbox over
// IMAP, connecting fresh on every FetchURLs call and marking consumed
// messages seen so they are not re-delivered on the next poll.
type IMAPMailbox struct {
	Addr     string // host:port
	Username string
	Password string
	Mailbox  string // e.g. "INBOX"
}

// FetchURLs connects, selects the configured mailbox, searches for
// unseen messages, extracts every URL from their bodies, and marks
// them seen.
func (m *IMAPMailbox) FetchURLs(ctx context.Context) ([]string, error) {
	client, err := imapclient.DialTLS(m.Addr, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: dialing %s: %w", m.Addr, err)
	}
	defer client.Close()

	if err := client.Login(m.Username, m.Password).Wait(); err != nil {
		return nil, fmt.Errorf("ingest: login: %w", err)
	}

	mailbox := m.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("ingest: selecting %s: %w", mailbox, err)
	}

	searchData, err := client.Search(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("ingest: search: %w", err)
	}
	if len(searchData.AllSeqNums()) == 0 {
		return nil, nil
	}

	seqSet := imap.SeqSetNum(searchData.AllSeqNums()...)
	fetchOptions := &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{{}},
	}
	fetchCmd := client.Fetch(seqSet, fetchOptions)

	var urls []string
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		for {
			item := msg.Next()
			if item == nil {
				break
			}
			section, ok := item.(imapclient.FetchItemDataBodySection)
			if !ok {
				continue
			}
			body, err := io.ReadAll(section.Literal)
			if err != nil {
				continue
			}
			urls = append(urls, urlPattern.FindAllString(string(body), -1)...)
		}
	}
	if err := fetchCmd.Close(); err != nil {
		return urls, fmt.Errorf("ingest: fetch: %w", err)
	}

	storeFlags := &imap.StoreFlags{
		Op:    imap.StoreFlagsAdd,
		Flags: []imap.Flag{imap.FlagSeen},
	}
	if err := client.Store(seqSet, storeFlags, nil).Collect(); err != nil {
		return urls, fmt.Errorf("ingest: marking seen: %w", err)
	}

	return urls, nil
}
