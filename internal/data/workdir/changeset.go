package workdir

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/pmezard/go-difflib/difflib"
)

// ErrStalePatch is matched by every *StalePatchError.
var ErrStalePatch = errors.New("stale patch")

// StalePatchError reports that a file no longer contains the text a patch
// expected to replace. The document must be reloaded and the change
// recomputed.
type StalePatchError struct {
	File        string
	Description string
}

func (e *StalePatchError) Error() string {
	return fmt.Sprintf("stale patch on %s (%s): file changed since it was loaded", e.File, e.Description)
}

func (e *StalePatchError) Is(target error) bool {
	return target == ErrStalePatch
}

// Patch replaces the first occurrence of Original in File with Replacement.
// With Prefix set, Original must instead be the start of the file.
// Original is captured from the loaded snapshot, never recomputed at commit.
type Patch struct {
	File        string `json:"file"`
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
	Prefix      bool   `json:"prefix,omitempty"`
}

// applyTo returns content with the patch applied, or false when content
// does not hold the expected original text.
func (p Patch) applyTo(content string) (string, bool) {
	switch {
	case p.Original == "":
		// Whole-file replacement of a file that was empty when loaded.
		if content != "" {
			return "", false
		}
		return p.Replacement, true
	case p.Prefix:
		if !strings.HasPrefix(content, p.Original) {
			return "", false
		}
		return p.Replacement + content[len(p.Original):], true
	}
	idx := strings.Index(content, p.Original)
	if idx < 0 {
		return "", false
	}
	return content[:idx] + p.Replacement + content[idx+len(p.Original):], true
}

// Changeset is a computed, not yet applied set of patches together with the
// model before and after applying them.
type Changeset struct {
	Patches []Patch         `json:"patches"`
	Before  backlog.Backlog `json:"-"`
	After   backlog.Backlog `json:"-"`

	// texts holds the loaded and the patched content per touched file.
	texts map[string][2]string
}

// Empty reports whether the changeset changes nothing.
func (c Changeset) Empty() bool {
	return len(c.Patches) == 0
}

// Files returns the touched files, sorted.
func (c Changeset) Files() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range c.Patches {
		if !seen[p.File] {
			seen[p.File] = true
			out = append(out, p.File)
		}
	}
	sort.Strings(out)
	return out
}

// Diff renders the changeset as a unified diff against the loaded files.
func (c Changeset) Diff() (string, error) {
	var b strings.Builder
	for _, file := range c.Files() {
		t := c.texts[file]
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(t[0]),
			B:        difflib.SplitLines(t[1]),
			FromFile: "a/" + file,
			ToFile:   "b/" + file,
			Context:  3,
		})
		if err != nil {
			return "", fmt.Errorf("diff %s: %w", file, err)
		}
		b.WriteString(diff)
	}
	return b.String(), nil
}

// apply runs patches for one file against content in order.
func apply(file, content string, patches []Patch) (string, error) {
	for _, p := range patches {
		if p.File != file {
			continue
		}
		next, ok := p.applyTo(content)
		if !ok {
			return "", &StalePatchError{File: file, Description: p.Description}
		}
		content = next
	}
	return content, nil
}
