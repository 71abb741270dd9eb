package markdown

import (
	"strings"
)

// Field is a top-level "key: value" line inside the front matter of a file.
type Field struct {
	Key string
	// Line is the full line text without its trailing newline.
	Line string
	// Offset is the byte offset of Line within the file content.
	Offset int
}

// Value returns the value token of the line without quotes or comments.
func (f Field) Value() string {
	start, end := valueSpan(f.Line)
	v := f.Line[start:end]
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		v = v[1 : len(v)-1]
	}
	return v
}

// FindField locates the top-level key line in the front matter of content.
func FindField(content, key string) (Field, bool) {
	start, end, err := FrontMatterBounds(content)
	if err != nil {
		return Field{}, false
	}

	offset := start
	for offset < end {
		lineEnd := strings.IndexByte(content[offset:end], '\n')
		var line string
		if lineEnd < 0 {
			line = content[offset:end]
		} else {
			line = content[offset : offset+lineEnd]
		}

		if k, _, ok := strings.Cut(line, ":"); ok && k == key {
			return Field{Key: key, Line: strings.TrimRight(line, "\r"), Offset: offset}, true
		}

		if lineEnd < 0 {
			break
		}
		offset += lineEnd + 1
	}
	return Field{}, false
}

// ReplaceValue swaps the value token of a "key: value" line for the raw value. The
// key, the whitespace around the colon, quoting style, and any trailing
// comment are preserved.
func ReplaceValue(line, value string) string {
	start, end := valueSpan(line)
	old := line[start:end]
	if len(old) >= 2 && (old[0] == '"' || old[0] == '\'') && old[len(old)-1] == old[0] {
		q := string(old[0])
		return line[:start] + q + value + q + line[end:]
	}
	if value != "" {
		value = FormatValue(value)
	}
	if start == end && value != "" && !strings.HasSuffix(line[:start], " ") {
		return line[:start] + " " + value + line[end:]
	}
	return line[:start] + value + line[end:]
}

// FormatValue quotes value when YAML would otherwise read it as a different
// type or misparse it.
func FormatValue(value string) string {
	if value == "" {
		return `""`
	}
	if strings.ContainsAny(value, ":#{}[],&*!|>'\"%@`\\") ||
		strings.HasPrefix(value, "-") || strings.HasPrefix(value, "?") ||
		strings.TrimSpace(value) != value {
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
		return `"` + r.Replace(value) + `"`
	}
	return value
}

// valueSpan returns the byte range of the value token in a "key: value" line.
func valueSpan(line string) (int, int) {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return len(line), len(line)
	}

	start := colon + 1
	for start < len(line) && (line[start] == ' ' || line[start] == '\t') {
		start++
	}
	if start >= len(line) {
		return len(line), len(line)
	}

	if q := line[start]; q == '"' || q == '\'' {
		if closing := strings.IndexByte(line[start+1:], q); closing >= 0 {
			return start, start + closing + 2
		}
	}

	end := len(line)
	if hash := strings.Index(line[start:], " #"); hash >= 0 {
		end = start + hash
	}
	for end > start && (line[end-1] == ' ' || line[end-1] == '\t' || line[end-1] == '\r') {
		end--
	}
	return start, end
}
