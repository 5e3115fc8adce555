// Package output turns a canonical document into outbound HTTP requests: it
// interpolates template placeholders, validates the resulting body, performs
// delivery and keeps a bounded per-destination history of attempts.
package output

import (
	"time"
)

// DefaultHistoryCap bounds a destination's execution history.
const DefaultHistoryCap = 10

// Method is the set of HTTP methods a destination may use.
type Method string

const (
	MethodPost Method = "POST"
	MethodPut  Method = "PUT"
	MethodGet  Method = "GET"
)

// Valid reports whether m is an allowed destination method.
func (m Method) Valid() bool {
	return m == MethodPost || m == MethodPut || m == MethodGet
}

// Header is one key/value pair sent with a delivery. Keys are unique within a
// destination; setting an existing key overwrites its value.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Execution is one recorded delivery attempt.
type Execution struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	StatusCode int            `json:"status"`
	Duration   time.Duration  `json:"duration"`
	Payload    map[string]any `json:"payload,omitempty"`
	Response   map[string]any `json:"response,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Succeeded reports whether the attempt got a 2xx response.
func (e Execution) Succeeded() bool {
	return e.StatusCode >= 200 && e.StatusCode < 300
}

// Destination is an outbound HTTP target with a templated body. Its identity
// is stable across edits: Update replaces the configurable fields but never
// the ID or the recorded history.
type Destination struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	URL          string   `json:"url"`
	Method       Method   `json:"method"`
	Headers      []Header `json:"headers"`
	BodyTemplate string   `json:"body_template"`

	HistoryCap int         `json:"-"`
	History    []Execution `json:"history,omitempty"`
}

// Config is the editable portion of a destination.
type Config struct {
	Name         string   `json:"name"`
	URL          string   `json:"url"`
	Method       Method   `json:"method"`
	Headers      []Header `json:"headers"`
	BodyTemplate string   `json:"body_template"`
}

// Update replaces the destination's configurable fields. Duplicate header
// keys in the incoming set collapse to the last value, keeping keys unique.
func (d *Destination) Update(cfg Config) {
	d.Name = cfg.Name
	d.URL = cfg.URL
	d.Method = cfg.Method
	d.BodyTemplate = cfg.BodyTemplate

	d.Headers = nil
	for _, h := range cfg.Headers {
		d.SetHeader(h.Key, h.Value)
	}
}

// SetHeader sets a header, overwriting any existing value for the key.
func (d *Destination) SetHeader(key, value string) {
	for i, h := range d.Headers {
		if h.Key == key {
			d.Headers[i].Value = value
			return
		}
	}
	d.Headers = append(d.Headers, Header{Key: key, Value: value})
}

// ClearHistory drops all recorded attempts.
func (d *Destination) ClearHistory() {
	d.History = nil
}

func (d *Destination) recordExecution(exec Execution) {
	cap := d.HistoryCap
	if cap <= 0 {
		cap = DefaultHistoryCap
	}
	d.History = append([]Execution{exec}, d.History...)
	if len(d.History) > cap {
		d.History = d.History[:cap]
	}
}
