// Package tenant manages companies: isolated configuration scopes each with
// their own canonical schema, output template, ingest configuration, output
// destinations and pipeline graph.
package tenant

import (
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/graph"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/output"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/schema"
)

// CRMType identifies the CRM feeding a company's pipeline.
type CRMType string

const (
	CRMSalesforce CRMType = "salesforce"
	CRMHubspot    CRMType = "hubspot"
	CRMCustom     CRMType = "custom"
	CRMNone       CRMType = "none"
)

// Valid reports whether t is a known CRM type.
func (t CRMType) Valid() bool {
	switch t {
	case CRMSalesforce, CRMHubspot, CRMCustom, CRMNone:
		return true
	}
	return false
}

// IngestConfig is the free-text mapping setup for a company's CRM payloads.
type IngestConfig struct {
	Instructions string `json:"instructions"`
	SourceSample string `json:"source_sample"`
	WebhookURL   string `json:"webhook_url,omitempty"`
}

// Company is one tenant. Its schema and template start as deep copies of the
// global defaults and may diverge independently afterwards.
type Company struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Color string  `json:"color,omitempty"`
	CRM   CRMType `json:"crm_type"`

	CanonicalSchema schema.Document `json:"canonical_schema"`
	OutputTemplate  schema.Document `json:"output_template"`
	Ingest          IngestConfig    `json:"ingest"`

	Destinations []*output.Destination `json:"destinations"`
	Graph        *graph.Graph          `json:"-"`
}

// Destination returns the destination with the given ID, if present.
func (c *Company) Destination(id string) (*output.Destination, bool) {
	for _, d := range c.Destinations {
		if d.ID == id {
			return d, true
		}
	}
	return nil, false
}
