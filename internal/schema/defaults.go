package schema

// NewDefaults returns the built-in global defaults used when no overrides are
// configured. The canonical schema matches the core fields every CRM payload
// is mapped into; the output template is the default webhook body shape.
func NewDefaults() Defaults {
	return Defaults{
		CanonicalSchema: Document{
			"user_id":       "string",
			"user_name":     "string",
			"user_contact":  "string",
			"issue_title":   "string",
			"issue_urgency": "string",
			"message_body":  "string",
		},
		OutputTemplate: Document{
			"id":     "string",
			"answer": "string",
		},
	}
}

// SampleSourceDocument is an example CRM payload used as the default ingest
// sample for new tenants and for transform previews.
const SampleSourceDocument = `{
  "customer": {
    "id": "CUST-12345",
    "fullName": "John Doe",
    "email": "john@example.com"
  },
  "ticket": {
    "subject": "Problem with login",
    "priority": "high",
    "content": "I can't access my dashboard since last night."
  }
}`
