package output

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestInterpolate_Example(t *testing.T) {
	template := `{"id": "{{conversation.id}}", "text": "{{ai.output}}"}`
	vars := Variables{
		"conversation.id": "SES-1",
		"ai.output":       "Hello",
	}

	got := Interpolate(template, vars)
	want := `{"id": "SES-1", "text": "Hello"}`
	if got != want {
		t.Fatalf("Interpolate() = %s, want %s", got, want)
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(got), &parsed); err != nil {
		t.Fatalf("interpolated body does not parse: %v", err)
	}
	if parsed["id"] != "SES-1" || parsed["text"] != "Hello" {
		t.Errorf("parsed = %v", parsed)
	}
}

func TestInterpolate_NoPlaceholders(t *testing.T) {
	body := `{"static": true, "n": 42}`
	if got := Interpolate(body, Variables{"ai.output": "x"}); got != body {
		t.Errorf("Interpolate() = %s, want unchanged body", got)
	}
}

func TestInterpolate_UnknownPlaceholderKept(t *testing.T) {
	template := `{"known": "{{ai.output}}", "missing": "{{state.intent}}"}`
	got := Interpolate(template, Variables{"ai.output": "done"})
	want := `{"known": "done", "missing": "{{state.intent}}"}`
	if got != want {
		t.Errorf("Interpolate() = %s, want %s", got, want)
	}
}

func TestInterpolate_ValueAlreadyJSON(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     Variables
		want     string
	}{
		{
			name:     "object value",
			template: `{"data": "{{ai.result}}"}`,
			vars:     Variables{"ai.result": `{"score": 0.9}`},
			want:     `{"data": {"score": 0.9}}`,
		},
		{
			name:     "numeric value",
			template: `{"count": "{{state.count}}"}`,
			vars:     Variables{"state.count": "42"},
			want:     `{"count": 42}`,
		},
		{
			name:     "bare placeholder",
			template: `{"count": {{state.count}}}`,
			vars:     Variables{"state.count": "42"},
			want:     `{"count": 42}`,
		},
		{
			name:     "value needing quoting escapes",
			template: `{"msg": "{{ai.output}}"}`,
			vars:     Variables{"ai.output": `say "hi"`},
			want:     `{"msg": "say \"hi\""}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Interpolate(tt.template, tt.vars)
			if got != tt.want {
				t.Errorf("Interpolate() = %s, want %s", got, tt.want)
			}
			if !json.Valid([]byte(got)) {
				t.Errorf("result is not valid JSON: %s", got)
			}
		})
	}
}

func TestRenderBody_RoundTrip(t *testing.T) {
	template := `{"id": "{{conversation.id}}", "summary": "{{ai.summary}}"}`
	vars := Variables{
		"conversation.id": "SES-1",
		"ai.summary":      "all good",
	}

	payload, body, err := RenderBody(template, vars)
	if err != nil {
		t.Fatalf("RenderBody() error = %v", err)
	}
	if payload["id"] != "SES-1" {
		t.Errorf("payload id = %v", payload["id"])
	}
	if !json.Valid([]byte(body)) {
		t.Errorf("body is not valid JSON")
	}
}

func TestRenderBody_InvalidTemplate(t *testing.T) {
	_, _, err := RenderBody(`{"broken": `, Variables{})
	if !errors.Is(err, ErrInvalidBodyTemplate) {
		t.Fatalf("RenderBody() error = %v, want ErrInvalidBodyTemplate", err)
	}
	var te *TemplateError
	if !errors.As(err, &te) {
		t.Fatalf("error is not a TemplateError")
	}
}

func TestFromDocument(t *testing.T) {
	vars := FromDocument("ai", map[string]any{
		"output": "Hello",
		"score":  0.9,
	})
	if vars["ai.output"] != "Hello" {
		t.Errorf("ai.output = %q", vars["ai.output"])
	}
	if vars["ai.score"] != "0.9" {
		t.Errorf("ai.score = %q, want JSON-encoded number", vars["ai.score"])
	}
}
