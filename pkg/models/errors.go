package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMissingField is wrapped by ValidationError when a required field is absent
var ErrMissingField = errors.New("required field missing")

// ValidationError collects per-field problems found while parsing a payload
type ValidationError struct {
	Fields map[string]string `json:"fields"`
	cause  error
}

// Add records a problem for a field
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// HasErrors reports whether any field failed
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid payload: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}
