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

package epubmeta

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const containerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const opfXML = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier>fanfiction.net/s/12345</dc:identifier>
    <dc:source>https://www.fanfiction.net/s/12345/1/</dc:source>
  </metadata>
</package>`

func writeTestEpub(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "story.epub")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w1, err := zw.Create("META-INF/container.xml")
	require.NoError(t, err)
	_, err = w1.Write([]byte(containerXML))
	require.NoError(t, err)

	w2, err := zw.Create("OEBPS/content.opf")
	require.NoError(t, err)
	_, err = w2.Write([]byte(opfXML))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return path
}

func TestReadExtractsIdentifierAndSource(t *testing.T) {
	path := writeTestEpub(t)

	info, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "fanfiction.net/s/12345", info.Identifier)
	assert.Equal(t, "https://www.fanfiction.net/s/12345/1/", info.Source)
}

func TestReadMissingContainerReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.epub")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	require.NoError(t, zw.Close())
	f.Close()

	_, err = Read(path)
	assert.Error(t, err)
}
