package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidBodyTemplate is the sentinel wrapped by TemplateError.
var ErrInvalidBodyTemplate = errors.New("invalid body template")

// TemplateError reports that an interpolated body did not parse as JSON.
// Nothing is sent or recorded when one is returned.
type TemplateError struct {
	Body string // interpolated body that failed to parse
	Err  error  // underlying JSON error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("%s: %v", ErrInvalidBodyTemplate.Error(), e.Err)
}

func (e *TemplateError) Unwrap() error { return ErrInvalidBodyTemplate }

// Variables maps dotted variable names (e.g. "conversation.id") to their
// resolved values. Values are raw strings; non-JSON values are quoted during
// interpolation.
type Variables map[string]string

// KnownVariables is the default variable catalog surfaced for simulation.
var KnownVariables = []string{
	"conversation.id",
	"customer.name",
	"state.intent",
	"ai.output",
	"ai.summary",
	"system.timestamp",
}

// FromDocument flattens a canonical document's top-level entries into
// variables under the given namespace, e.g. ns "ai" and key "output" yield
// "ai.output". Non-string leaves are JSON-encoded.
func FromDocument(namespace string, doc map[string]any) Variables {
	vars := make(Variables, len(doc))
	for k, v := range doc {
		name := k
		if namespace != "" {
			name = namespace + "." + k
		}
		if s, ok := v.(string); ok {
			vars[name] = s
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		vars[name] = string(raw)
	}
	return vars
}

// Merge overlays other on top of v, returning v for chaining.
func (v Variables) Merge(other Variables) Variables {
	for k, val := range other {
		v[k] = val
	}
	return v
}

// Interpolate replaces every occurrence of a known "{{name}}" placeholder
// with the variable's value. Values that are not already valid JSON are
// JSON-string-quoted; a placeholder written inside JSON quotes is replaced
// together with those quotes so the token lands as a single JSON value.
// Unknown placeholders are left untouched so a human can spot them in the
// output. Replacement is a literal string scan, so a body with no
// placeholders comes back unchanged.
func Interpolate(template string, vars Variables) string {
	body := template
	for name, value := range vars {
		placeholder := "{{" + name + "}}"
		if !strings.Contains(body, placeholder) {
			continue
		}
		token := replacementToken(value)
		body = strings.ReplaceAll(body, `"`+placeholder+`"`, token)
		body = strings.ReplaceAll(body, placeholder, token)
	}
	return body
}

func replacementToken(value string) string {
	if json.Valid([]byte(value)) {
		return value
	}
	quoted, err := json.Marshal(value)
	if err != nil {
		return value
	}
	return string(quoted)
}

// RenderBody interpolates the template and parses the result. A body that
// does not parse as JSON fails with a TemplateError.
func RenderBody(template string, vars Variables) (map[string]any, string, error) {
	body := Interpolate(template, vars)
	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, "", &TemplateError{Body: body, Err: err}
	}
	return payload, body, nil
}
