// Package manifest reads the git-repo manifest of a checkout or
// mirror created with the repo tool.
package manifest

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Project is one managed git under the manifest.
type Project struct {
	Name     string `xml:"name,attr"`
	Path     string `xml:"path,attr"`
	Revision string `xml:"revision,attr"`
	Remote   string `xml:"remote,attr"`
}

// Remote names a fetch location projects may reference.
type Remote struct {
	Name  string `xml:"name,attr"`
	Fetch string `xml:"fetch,attr"`
}

// Manifest is the parsed .repo/manifest.xml.
type Manifest struct {
	XMLName xml.Name `xml:"manifest"`
	Remotes []Remote `xml:"remote"`
	Default struct {
		Remote   string `xml:"remote,attr"`
		Revision string `xml:"revision,attr"`
	} `xml:"default"`
	Projects []Project `xml:"project"`
}

// Load reads the manifest of the repo checkout rooted at dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ".repo", "manifest.xml")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest document.
func Parse(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := xml.NewDecoder(r).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ResolvedProjects returns the projects with path, revision and
// remote defaulted from the manifest defaults.
func (m *Manifest) ResolvedProjects() []Project {
	out := make([]Project, 0, len(m.Projects))
	for _, p := range m.Projects {
		if p.Path == "" {
			p.Path = p.Name
		}
		if p.Revision == "" {
			p.Revision = m.Default.Revision
		}
		if p.Remote == "" {
			p.Remote = m.Default.Remote
		}
		out = append(out, p)
	}
	return out
}
