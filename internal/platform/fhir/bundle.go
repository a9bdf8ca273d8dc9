// Package fhir models the slice of the remote EHR's FHIR-like wire format
// this dashboard consumes: search bundles with navigation links, extension
// traversal, and OperationOutcome error bodies.
package fhir

import (
	"encoding/json"
	"time"
)

// Bundle is the remote API's envelope for a paginated collection.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch   `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

// FindLink returns the URL of the navigation link with the given relation,
// or "" when the remote did not return one. Relations are the remote's
// contract ("self", "next", "previous"); some servers abbreviate "previous"
// as "prev", so both spellings match.
func (b *Bundle) FindLink(relation string) string {
	for _, l := range b.Link {
		if l.Relation == relation {
			return l.URL
		}
		if relation == "previous" && l.Relation == "prev" {
			return l.URL
		}
	}
	return ""
}

// HasLink reports whether the remote returned a navigation link with the
// given relation. Page position must be derived from links, never from
// counts: the remote does not guarantee stable totals across pages.
func (b *Bundle) HasLink(relation string) bool {
	return b.FindLink(relation) != ""
}

// TotalCount returns the bundle's declared total, or 0 when absent.
func (b *Bundle) TotalCount() int {
	if b.Total == nil {
		return 0
	}
	return *b.Total
}

// Resources unmarshals every entry's resource into the generic map form the
// mapper works on. Entries without a resource are skipped.
func (b *Bundle) Resources() ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(b.Entry))
	for _, e := range b.Entry {
		if len(e.Resource) == 0 {
			continue
		}
		var res map[string]interface{}
		if err := json.Unmarshal(e.Resource, &res); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}
