// Package schema holds the canonical internal schema and output template
// shapes shared by every tenant, plus the helpers used to copy and flatten
// them. Schemas are informal: nested maps from field name to a type hint
// string, not a formal type system.
package schema

import "sort"

// Document is a JSON-compatible value tree. Both schemas and transformed
// payloads use this shape.
type Document = map[string]any

// Defaults carries the global default canonical schema and output template.
// Tenants receive a deep copy at creation time and may diverge independently;
// the defaults themselves are never handed out by reference.
type Defaults struct {
	CanonicalSchema Document
	OutputTemplate  Document
}

// Clone returns defaults with both documents deep-copied.
func (d Defaults) Clone() Defaults {
	return Defaults{
		CanonicalSchema: DeepCopy(d.CanonicalSchema),
		OutputTemplate:  DeepCopy(d.OutputTemplate),
	}
}

// DeepCopy copies a document so the caller can mutate the result without
// affecting the source. Nested maps and slices are copied; scalar leaves are
// shared (they are immutable in JSON terms).
func DeepCopy(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case Document:
		return DeepCopy(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

// Flatten returns the dotted field paths of a document's leaves in sorted
// order, e.g. {"customer":{"id":"string"}} -> ["customer.id"]. Arrays are
// treated as leaves.
func Flatten(doc Document) []string {
	var paths []string
	flattenInto(doc, "", &paths)
	sort.Strings(paths)
	return paths
}

func flattenInto(doc Document, prefix string, paths *[]string) {
	for k, v := range doc {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if nested, ok := v.(Document); ok && len(nested) > 0 {
			flattenInto(nested, path, paths)
			continue
		}
		*paths = append(*paths, path)
	}
}
