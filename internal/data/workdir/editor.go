package workdir

import (
	"strings"

	"github.com/colonyops/workboard/internal/core/markdown"
)

// editor accumulates patches against a working copy of the loaded files so
// that each patch's original text is taken from the content it will actually
// be applied to.
type editor struct {
	loaded  map[string]string
	working map[string]string
	patches []Patch
}

func newEditor(loaded map[string]string) *editor {
	return &editor{loaded: loaded, working: make(map[string]string)}
}

func (e *editor) text(file string) string {
	if t, ok := e.working[file]; ok {
		return t
	}
	return e.loaded[file]
}

func (e *editor) replace(file, original, replacement, desc string) {
	e.add(Patch{File: file, Original: original, Replacement: replacement, Description: desc})
}

// replacePrefix patches text that must start the file, so a front matter
// edit can never land on an identical line further down.
func (e *editor) replacePrefix(file, original, replacement, desc string) {
	e.add(Patch{File: file, Original: original, Replacement: replacement, Description: desc, Prefix: true})
}

func (e *editor) add(p Patch) {
	if p.Original == p.Replacement {
		return
	}
	next, ok := p.applyTo(e.text(p.File))
	if !ok {
		return
	}
	e.working[p.File] = next
	e.patches = append(e.patches, p)
}

// setField rewrites the value token of a front matter key, or appends the key
// before the closing delimiter when it is absent. Clearing an absent key is a
// no-op.
func (e *editor) setField(file, key, value, desc string) error {
	t := e.text(file)

	if f, ok := markdown.FindField(t, key); ok {
		e.replacePrefix(file,
			t[:f.Offset+len(f.Line)],
			t[:f.Offset]+markdown.ReplaceValue(f.Line, value),
			desc)
		return nil
	}
	if value == "" {
		return nil
	}

	_, end, err := markdown.FrontMatterBounds(t)
	if err != nil {
		return err
	}

	nl := "\n"
	if strings.Contains(t[:end], "\r\n") {
		nl = "\r\n"
	}

	closing := t[end:]
	if i := strings.IndexByte(closing, '\n'); i >= 0 {
		closing = closing[:i]
	}
	closing = strings.TrimRight(closing, "\r")

	original := t[:end+len(closing)]
	replacement := t[:end] + key + ": " + markdown.FormatValue(value) + nl + closing
	e.replacePrefix(file, original, replacement, desc)
	return nil
}
