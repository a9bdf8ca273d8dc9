package patient

import (
	"github.com/chartview/chartview/internal/platform/fhir"
	"github.com/chartview/chartview/pkg/pagination"
)

// Name is the display form of the remote's first (primary) name entry.
type Name struct {
	Family string   `json:"family"`
	Given  []string `json:"given"`
	Full   string   `json:"full"`
}

// ContactPoint mirrors the remote's telecom entries.
type ContactPoint struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
	Use    string `json:"use,omitempty"`
	Rank   int    `json:"rank,omitempty"`
}

// View is the flattened, display-oriented projection of a remote patient
// resource. Every field has a defined fallback when the source is absent;
// nothing in a View is ever null.
type View struct {
	ID            string                   `json:"id"`
	Identifier    string                   `json:"identifier"`
	Name          Name                     `json:"name"`
	Gender        string                   `json:"gender"`
	BirthDate     string                   `json:"birthDate"`
	Active        bool                     `json:"active"`
	Deceased      bool                     `json:"deceased"`
	MaritalStatus string                   `json:"maritalStatus"`
	LastUpdated   string                   `json:"lastUpdated"`
	Telecom       []ContactPoint           `json:"telecom"`
	Address       []map[string]interface{} `json:"address"`
	Ethnicity     string                   `json:"ethnicity"`
}

// Detail pairs the flattened view with the raw resource it came from. The
// raw document rides along because edits must be merged back into it —
// writing back only the flattened fields would drop everything the edit
// form does not expose.
type Detail struct {
	ID           string                 `json:"id"`
	ResourceType string                 `json:"resourceType"`
	Raw          map[string]interface{} `json:"raw"`
	Formatted    View                   `json:"formatted"`
}

// ListPage is one page of the patient collection.
type ListPage struct {
	Total      int                 `json:"total"`
	Patients   []View              `json:"patients"`
	Links      []fhir.BundleLink   `json:"links"`
	Pagination pagination.PageInfo `json:"pagination"`
}

// Edits carries the fields the edit form can change. Pointer fields
// distinguish "not edited" from an explicit zero value.
type Edits struct {
	ID            string         `json:"id"`
	Name          *NameEdit      `json:"name,omitempty"`
	Gender        *string        `json:"gender,omitempty"`
	BirthDate     *string        `json:"birthDate,omitempty"`
	Active        *bool          `json:"active,omitempty"`
	MaritalStatus *string        `json:"maritalStatus,omitempty"`
	Telecom       []ContactPoint `json:"telecom,omitempty"`
}

type NameEdit struct {
	Family string   `json:"family"`
	Given  []string `json:"given"`
}
