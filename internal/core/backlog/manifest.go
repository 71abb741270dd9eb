package backlog

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/mod/semver"
)

// ManifestVersion is the manifest format written by this package.
const ManifestVersion = "1.0.0"

// Manifest is the derived index cached next to the markdown tree. The
// markdown files stay authoritative; a manifest can always be regenerated.
type Manifest struct {
	SpecVersion   string          `json:"specVersion"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	OpenItemCount int             `json:"openItemCount"`
	Items         []ManifestEntry `json:"items"`
}

// ManifestEntry summarizes one item.
type ManifestEntry struct {
	ID        string     `json:"id,omitempty"`
	Slug      string     `json:"slug"`
	Title     string     `json:"title"`
	Status    ItemStatus `json:"status"`
	TaskCount int        `json:"taskCount"`
}

// NewManifest summarizes b. Items that are not done count as open.
func NewManifest(b Backlog, now time.Time) Manifest {
	m := Manifest{
		SpecVersion: ManifestVersion,
		UpdatedAt:   now.UTC(),
		Items:       make([]ManifestEntry, 0, len(b.Items)),
	}
	for _, it := range b.Items {
		if it.Status != ItemDone {
			m.OpenItemCount++
		}
		m.Items = append(m.Items, ManifestEntry{
			ID:        it.ID,
			Slug:      it.Slug,
			Title:     it.Title,
			Status:    it.Status,
			TaskCount: len(it.Tasks),
		})
	}
	return m
}

// ParseManifest decodes manifest JSON.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// Compatible reports whether the manifest was written by a format with the
// same major version as ManifestVersion.
func (m Manifest) Compatible() bool {
	v := "v" + m.SpecVersion
	if !semver.IsValid(v) {
		return false
	}
	return semver.Major(v) == semver.Major("v"+ManifestVersion)
}

// checkManifest compares a cached manifest against the folders on disk.
func checkManifest(m Manifest, source string, folders []string) Report {
	var r Report
	if !m.Compatible() {
		r.warnf(CodeManifestVersion, source,
			fmt.Sprintf("manifest specVersion %q is not compatible with %s", m.SpecVersion, ManifestVersion))
		return r
	}

	onDisk := make(map[string]bool, len(folders))
	for _, f := range folders {
		onDisk[f] = true
	}
	listed := make(map[string]bool, len(m.Items))
	for _, e := range m.Items {
		listed[e.Slug] = true
		if !onDisk[e.Slug] {
			r.warnf(CodeMissingFolder, source, fmt.Sprintf("manifest lists %s but the folder does not exist", e.Slug))
		}
	}
	for _, f := range folders {
		if !listed[f] {
			r.warnf(CodeOrphanFolder, source, fmt.Sprintf("folder %s is not listed in the manifest", f))
		}
	}
	return r
}
