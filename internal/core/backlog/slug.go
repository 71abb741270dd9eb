package backlog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ItemTypes are the conventional-commit tags an item slug may carry.
var ItemTypes = []string{"feat", "fix", "refactor", "chore"}

var (
	itemSlugRe = regexp.MustCompile(`^(\d+)-(?:(feat|fix|refactor|chore)-)?(.+)$`)
	taskFileRe = regexp.MustCompile(`^(\d+)-(.+)\.md$`)
	nonSlugRe  = regexp.MustCompile(`[^a-z0-9]+`)
)

// ItemSlug is a decoded item folder name.
type ItemSlug struct {
	ID   string
	Type string
	Name string
}

// ParseItemSlug splits a folder name into id, type tag and name. Folders
// without a numeric prefix are legacy: ok is false and only Name is set.
func ParseItemSlug(slug string) (ItemSlug, bool) {
	m := itemSlugRe.FindStringSubmatch(slug)
	if m == nil {
		return ItemSlug{Name: slug}, false
	}
	return ItemSlug{ID: m[1], Type: m[2], Name: m[3]}, true
}

// ParseTaskFile splits a task file name into its tid and slug. Index and
// feedback files are never tasks.
func ParseTaskFile(name string) (tid, slug string, ok bool) {
	if name == IndexFile || strings.HasSuffix(name, FeedbackSuffix) {
		return "", "", false
	}
	m := taskFileRe.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// IsTaskFile reports whether name is a task file name.
func IsTaskFile(name string) bool {
	_, _, ok := ParseTaskFile(name)
	return ok
}

// FeedbackName returns the feedback companion file name of a task file.
func FeedbackName(taskFile string) string {
	return strings.TrimSuffix(taskFile, ".md") + FeedbackSuffix
}

// NormalizeTID formats a numeric id as three zero-padded digits so "1",
// "01" and "001" compare equal. Non-numeric values are returned trimmed.
func NormalizeTID(raw string) string {
	raw = strings.TrimSpace(raw)
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return raw
	}
	return FormatID(n)
}

// FormatID renders n as a zero-padded id.
func FormatID(n int) string {
	return fmt.Sprintf("%03d", n)
}

// Slugify turns a title into a lowercase dash separated slug.
func Slugify(title string) string {
	s := nonSlugRe.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if len(s) > 48 {
		s = strings.TrimRight(s[:48], "-")
	}
	if s == "" {
		return "untitled"
	}
	return s
}

// ItemFolder builds a folder name from id, optional type and title.
func ItemFolder(id int, typ, title string) (string, error) {
	if typ != "" && !validType(typ) {
		return "", fmt.Errorf("%w: type %q (want one of %s)", ErrInvalidName, typ, strings.Join(ItemTypes, ", "))
	}
	parts := []string{FormatID(id)}
	if typ != "" {
		parts = append(parts, typ)
	}
	parts = append(parts, Slugify(title))
	return strings.Join(parts, "-"), nil
}

// TaskFileName builds a task file name from tid and title.
func TaskFileName(tid int, title string) string {
	return FormatID(tid) + "-" + Slugify(title) + ".md"
}

func validType(typ string) bool {
	for _, t := range ItemTypes {
		if t == typ {
			return true
		}
	}
	return false
}

// NextID returns one more than the largest numeric id in ids, or 1.
func NextID(ids []string) int {
	highest := 0
	for _, id := range ids {
		if n, err := strconv.Atoi(id); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1
}
