package backlog

import (
	"fmt"
	"path"
	"strings"

	"github.com/colonyops/workboard/internal/core/markdown"
)

// Front matter keys.
const (
	KeyTitle         = "title"
	KeyStatus        = "status"
	KeyAssignee      = "assignee"
	KeySchema        = "schema_version"
	KeyPriority      = "priority"
	KeyDependsOn     = "depends_on"
	KeyHumanReview   = "requires_human_review"
	KeyExpiresAt     = "expires_at"
	SectionDesc      = "Description"
	SectionContext   = "Context"
	SectionCriteria  = "Acceptance Criteria"
	SectionTaskTable = "Tasks"
)

// ParseItem builds a WorkItem from the text of an item's index.md. Tasks are
// not discovered here; the folder listing attaches them.
func ParseItem(text, slug, source string) (WorkItem, error) {
	doc, err := markdown.Split(text)
	if err != nil {
		return WorkItem{}, parseErr(source, "", err)
	}
	md, err := markdown.ParseMetadata(doc.FrontMatter)
	if err != nil {
		return WorkItem{}, parseErr(source, "", err)
	}

	title, err := required(md, source, KeyTitle)
	if err != nil {
		return WorkItem{}, err
	}
	rawStatus, err := required(md, source, KeyStatus)
	if err != nil {
		return WorkItem{}, err
	}
	version, _, err := md.Int(KeySchema)
	if err != nil {
		return WorkItem{}, parseErr(source, KeySchema, err)
	}

	schema := DetectSchema(version, rawStatus)
	status, err := ParseItemStatus(rawStatus, schema)
	if err != nil {
		return WorkItem{}, parseErr(source, KeyStatus, err)
	}
	assignee, _, err := md.String(KeyAssignee)
	if err != nil {
		return WorkItem{}, parseErr(source, KeyAssignee, err)
	}

	parsed, _ := ParseItemSlug(slug)
	item := WorkItem{
		ID:             parsed.ID,
		Slug:           slug,
		Type:           parsed.Type,
		Title:          title,
		Status:         status,
		DeclaredStatus: status,
		Assignee:       assignee,
		Tasks:          []string{},
		Source:         source,
		Schema:         schema,
	}
	if s, ok := markdown.Find(doc.Sections, SectionDesc); ok {
		item.Description = s.Body
	}
	if s, ok := markdown.Find(doc.Sections, SectionContext); ok {
		item.Context = s.Body
	}
	if s, ok := markdown.Find(doc.Sections, SectionTaskTable); ok {
		item.LegacyTaskIDs = legacyTaskIDs(s.Body)
	}

	return item, nil
}

// ParseTask builds a Task from the text of a task file. The tid and slug come
// from the file name of source.
func ParseTask(text, itemSlug, source string) (Task, error) {
	tid, slug, ok := ParseTaskFile(path.Base(source))
	if !ok {
		return Task{}, parseErr(source, "", fmt.Errorf("%w: %s", ErrInvalidName, path.Base(source)))
	}

	doc, err := markdown.Split(text)
	if err != nil {
		return Task{}, parseErr(source, "", err)
	}
	md, err := markdown.ParseMetadata(doc.FrontMatter)
	if err != nil {
		return Task{}, parseErr(source, "", err)
	}

	title, err := required(md, source, KeyTitle)
	if err != nil {
		return Task{}, err
	}
	rawStatus, err := required(md, source, KeyStatus)
	if err != nil {
		return Task{}, err
	}
	if !md.Has(KeyPriority) {
		return Task{}, parseErr(source, KeyPriority, ErrMissingField)
	}
	priority, _, err := md.Int(KeyPriority)
	if err != nil {
		return Task{}, parseErr(source, KeyPriority, err)
	}
	version, _, err := md.Int(KeySchema)
	if err != nil {
		return Task{}, parseErr(source, KeySchema, err)
	}

	schema := DetectSchema(version, rawStatus)
	status, err := ParseTaskStatus(rawStatus, schema)
	if err != nil {
		return Task{}, parseErr(source, KeyStatus, err)
	}

	deps, err := md.Strings(KeyDependsOn)
	if err != nil {
		return Task{}, parseErr(source, KeyDependsOn, err)
	}
	for i := range deps {
		deps[i] = NormalizeTID(deps[i])
	}
	if deps == nil {
		deps = []string{}
	}

	assignee, _, err := md.String(KeyAssignee)
	if err != nil {
		return Task{}, parseErr(source, KeyAssignee, err)
	}
	review, _, err := md.Bool(KeyHumanReview)
	if err != nil {
		return Task{}, parseErr(source, KeyHumanReview, err)
	}
	expires, err := md.Time(KeyExpiresAt)
	if err != nil {
		return Task{}, parseErr(source, KeyExpiresAt, err)
	}

	task := Task{
		TID:                 NormalizeTID(tid),
		Priority:            priority,
		Slug:                slug,
		Name:                title,
		Status:              status,
		DependsOn:           deps,
		Assignee:            assignee,
		RequiresHumanReview: review,
		ExpiresAt:           expires,
		AcceptanceCriteria:  []Criterion{},
		ItemSlug:            itemSlug,
		Source:              source,
		Schema:              schema,
	}
	if s, ok := markdown.Find(doc.Sections, SectionDesc); ok {
		task.Description = s.Body
	}
	if s, ok := markdown.Find(doc.Sections, SectionCriteria); ok {
		for _, c := range markdown.Checklist(s.Body) {
			task.AcceptanceCriteria = append(task.AcceptanceCriteria, Criterion{Text: c.Text, Checked: c.Checked})
		}
	}

	return task, nil
}

func required(md markdown.Metadata, source, key string) (string, error) {
	v, ok, err := md.String(key)
	if err != nil {
		return "", parseErr(source, key, err)
	}
	if !ok || v == "" {
		return "", parseErr(source, key, ErrMissingField)
	}
	return v, nil
}

// legacyTaskIDs reads the id column of an old "## Tasks" table. The column
// is found by header name, falling back to the first column.
func legacyTaskIDs(section string) []string {
	rows := markdown.Table(section)
	if len(rows) < 2 {
		return nil
	}

	col := 0
	for i, h := range rows[0] {
		switch strings.ToLower(h) {
		case "id", "tid", "#":
			col = i
		}
	}

	var ids []string
	for _, row := range rows[1:] {
		if col >= len(row) || row[col] == "" {
			continue
		}
		ids = append(ids, NormalizeTID(row[col]))
	}
	return ids
}
