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

// Package classifier maps a raw story URL to a canonical URL and a site
// identifier. The pattern table mirrors what a build-time generator
// would derive from the external downloader's adapter catalog; the
// classifier itself treats the table as opaque data and applies no
// site-specific logic beyond what each entry's Rule encodes.
package classifier

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is one entry in the pattern table: a compiled matcher plus the
// behavior needed to rebuild a canonical URL from the match.
type Rule struct {
	Site string
	// Pattern must have exactly one capturing group holding the portion
	// of the URL that survives into the canonical form.
	Pattern *regexp.Regexp
	// Prefix is prepended to the captured group to rebuild the
	// canonical URL. Empty means the captured group already contains
	// everything needed (used by the "other" fallback rule).
	Prefix string
	// ChapterAware forces any chapter/page index found after the
	// captured portion to be rewritten to "/1/" in the canonical URL —
	// fanfiction.net's behavior.
	ChapterAware bool
}

// Table is an ordered list of Rules, tried in order; the first match
// wins. A Table must always end with a fallback entry that matches any
// http(s) URL.
type Table []Rule

// Default returns the built-in pattern table, grounded on the site
// catalog a build-time generator would extract from the downloader
// adapter set: fanfiction.net, Archive of Our Own, RoyalRoad, and the
// XenForo-style forums (SpaceBattles, SufficientVelocity, QuestionableQuesting).
func Default() Table {
	return Table{
		{
			Site:         "fanfiction",
			Pattern:      regexp.MustCompile(`^https?://(?:www\.)?fanfiction\.net(/s/\d+)(?:/\d+.*)?/?$`),
			Prefix:       "www.fanfiction.net",
			ChapterAware: true,
		},
		{
			Site:    "archiveofourown",
			Pattern: regexp.MustCompile(`^https?://(?:www\.)?archiveofourown\.org(/works/\d+)/?.*$`),
			Prefix:  "archiveofourown.org",
		},
		{
			Site:    "royalroad",
			Pattern: regexp.MustCompile(`^https?://(?:www\.)?royalroad\.com(/fiction/\d+)/?.*$`),
			Prefix:  "royalroad.com",
		},
		{
			Site:    "spacebattles",
			Pattern: regexp.MustCompile(`^https?://forums\.spacebattles\.com(/threads/[^/]*\.\d+)/?.*$`),
			Prefix:  "forums.spacebattles.com",
		},
		{
			Site:    "sufficientvelocity",
			Pattern: regexp.MustCompile(`^https?://forums\.sufficientvelocity\.com(/threads/[^/]*\.\d+)/?.*$`),
			Prefix:  "forums.sufficientvelocity.com",
		},
		{
			Site:    "questionablequesting",
			Pattern: regexp.MustCompile(`^https?://(?:www\.)?forum\.questionablequesting\.com(/threads/[^/]*\.\d+)/?.*$`),
			Prefix:  "forum.questionablequesting.com",
		},
		{
			Site:    "other",
			Pattern: regexp.MustCompile(`^https?://(.*)$`),
		},
	}
}

// Classify maps a raw URL to its canonical form and site identifier
// using t. Exactly one entry always matches: the final fallback
// accepts anything beginning with http(s)://. Input not even starting
// with a scheme yields ("", "", false).
func (t Table) Classify(rawURL string) (canonicalURL, site string, ok bool) {
	for _, rule := range t {
		m := rule.Pattern.FindStringSubmatch(rawURL)
		if m == nil {
			continue
		}
		captured := m[1]
		if rule.ChapterAware {
			// rule.Pattern's capturing group already strips any chapter
			// index the URL carried; re-append the canonical "/1/" the
			// downloader expects regardless of what chapter was requested.
			captured += "/1/"
		}
		if rule.Prefix == "" {
			return captured, rule.Site, true
		}
		return fmt.Sprintf("%s%s", normalizedPrefix(rule.Prefix), captured), rule.Site, true
	}
	return "", "", false
}

// normalizedPrefix strips any trailing slash so concatenation with a
// leading-slash capture never produces a doubled separator.
func normalizedPrefix(prefix string) string {
	return strings.TrimSuffix(prefix, "/")
}
