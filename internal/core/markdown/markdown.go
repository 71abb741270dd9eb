// Package markdown reads the delimited parts of a backlog markdown file: the
// front matter metadata block, "## " sections, checklists, and pipe tables.
// It has no knowledge of items or tasks.
package markdown

import (
	"errors"
	"regexp"
	"strings"
)

// Delimiter opens and closes the front matter block.
const Delimiter = "---"

var (
	// ErrNoFrontMatter is returned when the first line is not the front matter delimiter.
	ErrNoFrontMatter = errors.New("missing front matter block")
	// ErrUnterminatedFrontMatter is returned when the closing delimiter is missing.
	ErrUnterminatedFrontMatter = errors.New("unterminated front matter block")
)

// Document is a markdown file split into its front matter and body.
type Document struct {
	// FrontMatter is the raw text between the delimiters, without them.
	FrontMatter string
	// Body is everything after the closing delimiter line.
	Body string
	// Sections are the "## " sections of the body in file order.
	Sections []Section
}

// Section is a level-two heading and the text below it up to the next one.
type Section struct {
	Heading string
	Body    string
}

// Split separates the front matter from the body and splits the body into
// sections. Line endings are preserved in the returned text.
func Split(content string) (Document, error) {
	fm, body, err := SplitFrontMatter(content)
	if err != nil {
		return Document{}, err
	}
	return Document{
		FrontMatter: fm,
		Body:        body,
		Sections:    Sections(body),
	}, nil
}

// SplitFrontMatter returns the front matter text and the body that follows it.
func SplitFrontMatter(content string) (string, string, error) {
	first, rest, ok := strings.Cut(content, "\n")
	if !isDelimiter(first) {
		return "", "", ErrNoFrontMatter
	}
	if !ok {
		return "", "", ErrUnterminatedFrontMatter
	}

	offset := 0
	for offset <= len(rest) {
		end := strings.IndexByte(rest[offset:], '\n')
		var line string
		if end < 0 {
			line = rest[offset:]
		} else {
			line = rest[offset : offset+end]
		}

		if isDelimiter(line) {
			fm := rest[:offset]
			if end < 0 {
				return fm, "", nil
			}
			return fm, rest[offset+end+1:], nil
		}

		if end < 0 {
			break
		}
		offset += end + 1
	}

	return "", "", ErrUnterminatedFrontMatter
}

// FrontMatterBounds returns the byte range [start, end) of the front matter
// text inside content, excluding both delimiter lines.
func FrontMatterBounds(content string) (int, int, error) {
	fm, _, err := SplitFrontMatter(content)
	if err != nil {
		return 0, 0, err
	}
	start := strings.IndexByte(content, '\n') + 1
	return start, start + len(fm), nil
}

func isDelimiter(line string) bool {
	return strings.TrimSpace(line) == Delimiter
}

// Sections splits body text on "## " headings. Text before the first heading
// is not returned.
func Sections(body string) []Section {
	var (
		sections []Section
		current  *Section
		buf      strings.Builder
	)

	flush := func() {
		if current != nil {
			current.Body = strings.TrimSpace(buf.String())
			sections = append(sections, *current)
		}
		buf.Reset()
	}

	inFence := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimRight(line, "\r")
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		}

		if !inFence && strings.HasPrefix(trimmed, "## ") {
			flush()
			current = &Section{Heading: strings.TrimSpace(trimmed[3:])}
			continue
		}
		if current != nil {
			buf.WriteString(trimmed)
			buf.WriteByte('\n')
		}
	}
	flush()

	return sections
}

// Find returns the first section whose heading matches name, ignoring case.
func Find(sections []Section, name string) (Section, bool) {
	for _, s := range sections {
		if strings.EqualFold(s.Heading, name) {
			return s, true
		}
	}
	return Section{}, false
}

// ChecklistItem is one "- [ ]" or "- [x]" line.
type ChecklistItem struct {
	Text    string
	Checked bool
}

var checklistRe = regexp.MustCompile(`^\s*[-*] \[([ xX])\] (.*)$`)

// Checklist parses checklist lines from text. Non-checklist lines are skipped.
func Checklist(text string) []ChecklistItem {
	var items []ChecklistItem
	for _, line := range strings.Split(text, "\n") {
		m := checklistRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		items = append(items, ChecklistItem{
			Text:    strings.TrimSpace(m[2]),
			Checked: m[1] != " ",
		})
	}
	return items
}

// SetChecked rewrites the marker of a checklist line, leaving the rest intact.
func SetChecked(line string, checked bool) string {
	open := strings.Index(line, "[")
	if open < 0 || open+2 >= len(line) {
		return line
	}
	mark := " "
	if checked {
		mark = "x"
	}
	return line[:open+1] + mark + line[open+2:]
}

// Table parses a markdown pipe table from text. The header row is returned
// first; the separator row is dropped. Lines that are not table rows end the
// table.
func Table(text string) [][]string {
	var rows [][]string
	started := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			if started {
				break
			}
			continue
		}
		started = true

		cells := strings.Split(strings.Trim(line, "|"), "|")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		if isSeparatorRow(cells) {
			continue
		}
		rows = append(rows, cells)
	}
	return rows
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return len(cells) > 0
}

// SectionBounds returns the byte range of the named "## " section within the
// full file content, from the start of its heading line to the start of the
// next heading or the end of the file. Headings inside fenced code and the
// front matter are not considered.
func SectionBounds(content, name string) (int, int, bool) {
	offset := 0
	if _, body, err := SplitFrontMatter(content); err == nil {
		offset = len(content) - len(body)
	}

	start := -1
	inFence := false
	for offset < len(content) {
		next := strings.IndexByte(content[offset:], '\n')
		lineEnd := len(content)
		if next >= 0 {
			lineEnd = offset + next + 1
		}
		line := strings.TrimRight(content[offset:lineEnd], "\r\n")

		if strings.HasPrefix(line, "```") {
			inFence = !inFence
		}
		if !inFence && strings.HasPrefix(line, "## ") {
			if start >= 0 {
				return start, offset, true
			}
			if strings.EqualFold(strings.TrimSpace(line[3:]), name) {
				start = offset
			}
		}
		offset = lineEnd
	}

	if start >= 0 {
		return start, len(content), true
	}
	return 0, 0, false
}

// IsChecklistLine reports whether line is a "- [ ]" or "- [x]" entry.
func IsChecklistLine(line string) bool {
	return checklistRe.MatchString(strings.TrimRight(line, "\r\n"))
}
