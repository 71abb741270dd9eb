package backlog

// Severity separates issues that block trust in the model from advisory ones.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Code identifies the kind of a validation issue.
type Code string

// Error codes.
const (
	CodeParseError             Code = "PARSE_ERROR"
	CodeSelfDep                Code = "SELF_DEP"
	CodeCircularDependency     Code = "CIRCULAR_DEPENDENCY"
	CodeMissingIndex           Code = "MISSING_INDEX"
	CodeDuplicateID            Code = "DUPLICATE_ID"
	CodeDuplicateTID           Code = "DUPLICATE_TID"
	CodeDoneWithAssignee       Code = "DONE_WITH_ASSIGNEE"
	CodeClaimedWithoutAssignee Code = "CLAIMED_WITHOUT_ASSIGNEE"
)

// Warning codes.
const (
	CodeInvalidDep         Code = "INVALID_DEP"
	CodeStatusMismatch     Code = "STATUS_MISMATCH"
	CodeOrphanTaskFile     Code = "ORPHAN_TASK_FILE"
	CodeDanglingTaskRef    Code = "DANGLING_TASK_REF"
	CodeMissingFolder      Code = "MISSING_FOLDER"
	CodeOrphanFolder       Code = "ORPHAN_FOLDER"
	CodeManifestVersion    Code = "MANIFEST_VERSION"
	CodeAssigneeOnOpenItem Code = "ASSIGNEE_ON_OPEN_ITEM"
	CodeReservationExpired Code = "RESERVATION_EXPIRED"
)

// Issue is a single validation finding. Issues are regenerated on every
// scan.
type Issue struct {
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
	Source   string   `json:"source"`
	Severity Severity `json:"severity"`
}

// Report splits issues by severity.
type Report struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// OK reports whether there are no errors.
func (r Report) OK() bool {
	return len(r.Errors) == 0
}

// All returns errors followed by warnings.
func (r Report) All() []Issue {
	out := make([]Issue, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	return append(out, r.Warnings...)
}

// Count returns how many issues carry code.
func (r Report) Count(code Code) int {
	n := 0
	for _, is := range r.All() {
		if is.Code == code {
			n++
		}
	}
	return n
}

func (r *Report) errorf(code Code, source, msg string) {
	r.Errors = append(r.Errors, Issue{Code: code, Message: msg, Source: source, Severity: SeverityError})
}

func (r *Report) warnf(code Code, source, msg string) {
	r.Warnings = append(r.Warnings, Issue{Code: code, Message: msg, Source: source, Severity: SeverityWarning})
}

func (r *Report) merge(o Report) {
	r.Errors = append(r.Errors, o.Errors...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}
