// Package validate provides shared validation functions for request input.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hay-kot/criterio"
)

var workerNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Required validates a value is non-empty after trimming whitespace.
func Required(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("is required")
	}
	return nil
}

// WorkerName validates a worker or role name. Colons are rejected because
// workers are keyed as "name:role".
func WorkerName(name string) error {
	if err := Required(name); err != nil {
		return err
	}
	if !workerNameRe.MatchString(name) {
		return fmt.Errorf("%q may only contain letters, digits, '.', '_' and '-'", name)
	}
	return nil
}

// Source validates a task or item source path relative to the backlog root.
func Source(source string) error {
	if err := Required(source); err != nil {
		return err
	}
	if strings.HasPrefix(source, "/") || strings.Contains(source, "..") || strings.Contains(source, `\`) {
		return fmt.Errorf("%q must be a relative path inside the backlog", source)
	}
	if !strings.HasSuffix(source, ".md") {
		return fmt.Errorf("%q is not a markdown file", source)
	}
	return nil
}

// RequiredField returns a criterio validator for required values.
func RequiredField(field, value string) error {
	return criterio.Run(field, value, Required)
}

// WorkerNameField returns a criterio validator for worker names.
func WorkerNameField(field, name string) error {
	return criterio.Run(field, name, WorkerName)
}

// SourceField returns a criterio validator for source paths.
func SourceField(field, source string) error {
	return criterio.Run(field, source, Source)
}
