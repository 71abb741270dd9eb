package backlog

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// BuildOptions tune model assembly.
type BuildOptions struct {
	// Now enables reservation expiry warnings when non-zero.
	Now time.Time
}

// Build parses every item folder of snap, cross-links the result and returns
// the assembled model. It never fails: unreadable files are reported as
// PARSE_ERROR issues and listed in Backlog.Failed.
func Build(snap Snapshot, opts BuildOptions) Backlog {
	b := Backlog{
		Items:  []WorkItem{},
		Tasks:  []Task{},
		Failed: []string{},
	}
	var r Report

	folders := append([]string(nil), snap.Folders...)
	sort.Strings(folders)

	for _, folder := range folders {
		indexPath := snap.Path(folder, IndexFile)
		text, ok := snap.Files[indexPath]
		if !ok {
			r.errorf(CodeMissingIndex, snap.Path(folder, ""), "item folder has no "+IndexFile)
			continue
		}

		item, err := ParseItem(text, folder, indexPath)
		if err != nil {
			r.errorf(CodeParseError, indexPath, err.Error())
			b.Failed = append(b.Failed, indexPath)
			continue
		}

		names := snap.FolderFiles(folder)
		present := make(map[string]bool, len(names))
		for _, n := range names {
			present[n] = true
		}

		for _, name := range names {
			if !IsTaskFile(name) {
				continue
			}
			source := snap.Path(folder, name)
			task, err := ParseTask(snap.Files[source], folder, source)
			if err != nil {
				r.errorf(CodeParseError, source, err.Error())
				b.Failed = append(b.Failed, source)
				continue
			}
			if fb := FeedbackName(name); present[fb] {
				task.FeedbackSource = snap.Path(folder, fb)
				task.Feedback = strings.TrimSpace(snap.Files[task.FeedbackSource])
			}
			item.Tasks = append(item.Tasks, source)
			b.Tasks = append(b.Tasks, task)
		}

		b.Items = append(b.Items, item)
	}

	linked := CrossLink(b.Items, b.Tasks)
	r.merge(linked.Report)
	for i := range b.Items {
		if s, ok := linked.Effective[b.Items[i].Slug]; ok {
			b.Items[i].Status = s
		}
	}

	if !opts.Now.IsZero() {
		for _, t := range b.Tasks {
			if t.ExpiresAt != nil && t.Status != TaskDone && t.ExpiresAt.Before(opts.Now) {
				r.warnf(CodeReservationExpired, t.Source,
					fmt.Sprintf("reservation of %q expired at %s", t.Assignee, t.ExpiresAt.Format(time.RFC3339)))
			}
		}
	}

	manifestPath := snap.WorkDir + "/" + ManifestFile
	if data, ok := snap.Files[manifestPath]; ok {
		m, err := ParseManifest([]byte(data))
		if err != nil {
			r.warnf(CodeManifestVersion, manifestPath, err.Error())
		} else {
			r.merge(checkManifest(m, manifestPath, folders))
		}
	}

	if r.Errors == nil {
		r.Errors = []Issue{}
	}
	if r.Warnings == nil {
		r.Warnings = []Issue{}
	}
	b.Report = r
	return b
}

// FolderFiles returns the sorted names of the files directly inside folder.
func (s Snapshot) FolderFiles(folder string) []string {
	prefix := s.Path(folder, "") + "/"
	var names []string
	for p := range s.Files {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok || rest == "" || strings.Contains(rest, "/") {
			continue
		}
		names = append(names, rest)
	}
	sort.Strings(names)
	return names
}
