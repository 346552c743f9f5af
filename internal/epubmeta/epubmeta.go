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

// Package epubmeta reads the dc:identifier and dc:source fields out of
// an EPUB's OPF package document, for diagnostics only — it never
// mutates the file.
package epubmeta

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
)

// Info is the subset of Dublin Core metadata this package surfaces.
type Info struct {
	Identifier string
	Source     string
}

type container struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath string `xml:"full-path,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

type opfPackage struct {
	Metadata struct {
		Identifier []string `xml:"identifier"`
		Source     []string `xml:"source"`
	} `xml:"metadata"`
}

// Read opens the EPUB at path as a zip archive, locates its OPF
// package document via META-INF/container.xml, and extracts the
// identifier/source fields.
func Read(epubPath string) (Info, error) {
	r, err := zip.OpenReader(epubPath)
	if err != nil {
		return Info{}, fmt.Errorf("epubmeta: opening %s: %w", epubPath, err)
	}
	defer r.Close()

	opfPath, err := findOPFPath(&r.Reader)
	if err != nil {
		return Info{}, err
	}

	opfData, err := readZipEntry(&r.Reader, opfPath)
	if err != nil {
		return Info{}, err
	}

	var pkg opfPackage
	if err := xml.Unmarshal(opfData, &pkg); err != nil {
		return Info{}, fmt.Errorf("epubmeta: parsing OPF %s: %w", opfPath, err)
	}

	info := Info{}
	if len(pkg.Metadata.Identifier) > 0 {
		info.Identifier = pkg.Metadata.Identifier[0]
	}
	if len(pkg.Metadata.Source) > 0 {
		info.Source = pkg.Metadata.Source[0]
	}
	return info, nil
}

func findOPFPath(r *zip.Reader) (string, error) {
	data, err := readZipEntry(r, "META-INF/container.xml")
	if err != nil {
		return "", err
	}
	var c container
	if err := xml.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("epubmeta: parsing container.xml: %w", err)
	}
	if len(c.Rootfiles.Rootfile) == 0 {
		return "", fmt.Errorf("epubmeta: container.xml names no rootfile")
	}
	return c.Rootfiles.Rootfile[0].FullPath, nil
}

func readZipEntry(r *zip.Reader, name string) ([]byte, error) {
	for _, f := range r.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("epubmeta: opening %s: %w", name, err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				return nil, fmt.Errorf("epubmeta: reading %s: %w", name, err)
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("epubmeta: entry %s not found", name)
}
