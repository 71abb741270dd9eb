package backlog

import (
	"strconv"
	"strings"
	"time"

	"github.com/colonyops/workboard/internal/core/markdown"
)

// RenderItem writes the index.md text for it.
func RenderItem(it WorkItem) string {
	var b strings.Builder
	b.WriteString(markdown.Delimiter + "\n")
	field(&b, KeyTitle, markdown.FormatValue(it.Title))
	field(&b, KeyStatus, string(it.DeclaredStatus))
	field(&b, KeyAssignee, optional(it.Assignee))
	field(&b, KeySchema, strconv.Itoa(int(SchemaCurrent)))
	b.WriteString(markdown.Delimiter + "\n")

	section(&b, SectionDesc, it.Description)
	section(&b, SectionContext, it.Context)
	return b.String()
}

// RenderTask writes the file text for t.
func RenderTask(t Task) string {
	var b strings.Builder
	b.WriteString(markdown.Delimiter + "\n")
	field(&b, KeyTitle, markdown.FormatValue(t.Name))
	field(&b, KeyStatus, string(t.Status))
	field(&b, KeyPriority, strconv.Itoa(t.Priority))
	field(&b, KeyDependsOn, renderList(t.DependsOn))
	field(&b, KeyAssignee, optional(t.Assignee))
	field(&b, KeyHumanReview, strconv.FormatBool(t.RequiresHumanReview))
	if t.ExpiresAt != nil {
		field(&b, KeyExpiresAt, t.ExpiresAt.UTC().Format(time.RFC3339))
	}
	b.WriteString(markdown.Delimiter + "\n")

	section(&b, SectionDesc, t.Description)

	var criteria strings.Builder
	for _, c := range t.AcceptanceCriteria {
		mark := " "
		if c.Checked {
			mark = "x"
		}
		criteria.WriteString("- [" + mark + "] " + c.Text + "\n")
	}
	section(&b, SectionCriteria, criteria.String())
	return b.String()
}

func field(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteByte(':')
	if value != "" {
		b.WriteByte(' ')
		b.WriteString(value)
	}
	b.WriteByte('\n')
}

func optional(v string) string {
	if v == "" {
		return ""
	}
	return markdown.FormatValue(v)
}

func section(b *strings.Builder, heading, body string) {
	b.WriteString("\n## " + heading + "\n\n")
	if body = strings.TrimSpace(body); body != "" {
		b.WriteString(body + "\n")
	}
}

func renderList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
