package fhir

import "encoding/json"

// OperationOutcome is the remote's error body. Only the fields needed to
// surface a sanitized message are modeled.
type OperationOutcome struct {
	ResourceType string         `json:"resourceType"`
	Issue        []OutcomeIssue `json:"issue"`
}

type OutcomeIssue struct {
	Severity    string          `json:"severity,omitempty"`
	Code        string          `json:"code,omitempty"`
	Diagnostics string          `json:"diagnostics,omitempty"`
	Details     *OutcomeDetails `json:"details,omitempty"`
}

type OutcomeDetails struct {
	Text string `json:"text,omitempty"`
}

// NewOperationOutcome builds an error outcome with a single issue. Used by
// the sandbox upstream to answer the way a real EHR would.
func NewOperationOutcome(code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OutcomeIssue{
			{Severity: "error", Code: code, Diagnostics: diagnostics},
		},
	}
}

// OutcomeMessage extracts a human-readable message from a remote error body.
// It understands OperationOutcome (diagnostics, then details.text) and plain
// {"error": "..."} bodies; anything else yields "" so callers fall back to a
// generic message rather than leaking raw payloads.
func OutcomeMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var outcome OperationOutcome
	if err := json.Unmarshal(body, &outcome); err == nil && outcome.ResourceType == "OperationOutcome" {
		for _, issue := range outcome.Issue {
			if issue.Diagnostics != "" {
				return issue.Diagnostics
			}
			if issue.Details != nil && issue.Details.Text != "" {
				return issue.Details.Text
			}
		}
		return ""
	}

	var plain struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Message          string `json:"message"`
	}
	if err := json.Unmarshal(body, &plain); err == nil {
		if plain.ErrorDescription != "" {
			return plain.ErrorDescription
		}
		if plain.Error != "" {
			return plain.Error
		}
		if plain.Message != "" {
			return plain.Message
		}
	}
	return ""
}
