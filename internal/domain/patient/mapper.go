package patient

import (
	"strings"

	"github.com/chartview/chartview/internal/platform/fhir"
)

// Extension URLs for the remote's ethnicity attribute: an outer extension
// found by URL, holding a "text" sub-extension with the display value.
const (
	ethnicityExtensionURL = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-ethnicity"
	ethnicityTextURL      = "text"
)

// Display fallbacks. Absence in the source must never surface as null.
const (
	fallbackUnknown      = "Unknown"
	fallbackNotAvailable = "N/A"
	fallbackEthnicity    = "Unspecified"
)

// ToView flattens a raw remote patient resource into the display shape.
func ToView(raw map[string]interface{}) View {
	v := View{
		ID:            getString(raw, "id"),
		Identifier:    fallbackNotAvailable,
		Gender:        fallbackUnknown,
		BirthDate:     fallbackUnknown,
		MaritalStatus: fallbackUnknown,
		LastUpdated:   fallbackNotAvailable,
		Ethnicity:     fallbackEthnicity,
		Name:          Name{Family: fallbackUnknown, Given: []string{}, Full: fallbackUnknown},
		Telecom:       []ContactPoint{},
		Address:       []map[string]interface{}{},
	}

	// identifier: first entry is primary by convention
	if idents, ok := raw["identifier"].([]interface{}); ok && len(idents) > 0 {
		if first, ok := idents[0].(map[string]interface{}); ok {
			if value := getString(first, "value"); value != "" {
				v.Identifier = value
			}
		}
	}

	// name[0]
	if names, ok := raw["name"].([]interface{}); ok && len(names) > 0 {
		if name, ok := names[0].(map[string]interface{}); ok {
			if family := getString(name, "family"); family != "" {
				v.Name.Family = family
			}
			if given, ok := name["given"].([]interface{}); ok {
				for _, g := range given {
					if s, ok := g.(string); ok && s != "" {
						v.Name.Given = append(v.Name.Given, s)
					}
				}
			}
			parts := append([]string{}, v.Name.Given...)
			if v.Name.Family != fallbackUnknown {
				parts = append(parts, v.Name.Family)
			}
			if len(parts) > 0 {
				v.Name.Full = strings.Join(parts, " ")
			}
		}
	}

	if gender := getString(raw, "gender"); gender != "" {
		v.Gender = gender
	}
	if birthDate := getString(raw, "birthDate"); birthDate != "" {
		v.BirthDate = birthDate
	}
	if active, ok := raw["active"].(bool); ok {
		v.Active = active
	}
	if deceased, ok := raw["deceasedBoolean"].(bool); ok {
		v.Deceased = deceased
	} else if getString(raw, "deceasedDateTime") != "" {
		v.Deceased = true
	}

	// maritalStatus: text, else first coding's display or code
	if ms, ok := raw["maritalStatus"].(map[string]interface{}); ok {
		if text := getString(ms, "text"); text != "" {
			v.MaritalStatus = text
		} else if codings, ok := ms["coding"].([]interface{}); ok && len(codings) > 0 {
			if coding, ok := codings[0].(map[string]interface{}); ok {
				if display := getString(coding, "display"); display != "" {
					v.MaritalStatus = display
				} else if code := getString(coding, "code"); code != "" {
					v.MaritalStatus = code
				}
			}
		}
	}

	if meta, ok := raw["meta"].(map[string]interface{}); ok {
		if updated := getString(meta, "lastUpdated"); updated != "" {
			v.LastUpdated = updated
		}
	}

	if telecoms, ok := raw["telecom"].([]interface{}); ok {
		for _, t := range telecoms {
			entry, ok := t.(map[string]interface{})
			if !ok {
				continue
			}
			cp := ContactPoint{
				System: getString(entry, "system"),
				Value:  getString(entry, "value"),
				Use:    getString(entry, "use"),
			}
			if rank, ok := entry["rank"].(float64); ok {
				cp.Rank = int(rank)
			}
			v.Telecom = append(v.Telecom, cp)
		}
	}

	if addrs, ok := raw["address"].([]interface{}); ok {
		for _, a := range addrs {
			if addr, ok := a.(map[string]interface{}); ok {
				v.Address = append(v.Address, addr)
			}
		}
	}

	if ethnicity, ok := fhir.NestedExtensionString(raw, ethnicityExtensionURL, ethnicityTextURL); ok {
		v.Ethnicity = ethnicity
	}

	return v
}

// ToRaw merges the edited fields onto a deep copy of the existing raw
// resource. Fields the edit form does not cover (addresses, identifiers,
// extensions, anything the remote added) pass through untouched — dropping
// them here would be a data-loss bug the remote would persist.
func ToRaw(existing map[string]interface{}, edits Edits) map[string]interface{} {
	updated := deepCopyMap(existing)

	if edits.Name != nil {
		names, _ := updated["name"].([]interface{})
		var primary map[string]interface{}
		if len(names) > 0 {
			primary, _ = names[0].(map[string]interface{})
		}
		if primary == nil {
			primary = map[string]interface{}{}
			names = append([]interface{}{primary}, names...)
		}
		primary["family"] = edits.Name.Family
		given := make([]interface{}, 0, len(edits.Name.Given))
		for _, g := range edits.Name.Given {
			given = append(given, g)
		}
		primary["given"] = given
		names[0] = primary
		updated["name"] = names
	}

	if edits.Gender != nil {
		updated["gender"] = *edits.Gender
	}
	if edits.BirthDate != nil {
		updated["birthDate"] = *edits.BirthDate
	}
	if edits.Active != nil {
		updated["active"] = *edits.Active
	}

	if edits.MaritalStatus != nil {
		ms, _ := updated["maritalStatus"].(map[string]interface{})
		if ms == nil {
			ms = map[string]interface{}{}
		}
		ms["text"] = *edits.MaritalStatus
		updated["maritalStatus"] = ms
	}

	if edits.Telecom != nil {
		telecom := make([]interface{}, 0, len(edits.Telecom))
		for _, cp := range edits.Telecom {
			entry := map[string]interface{}{}
			if cp.System != "" {
				entry["system"] = cp.System
			}
			if cp.Value != "" {
				entry["value"] = cp.Value
			}
			if cp.Use != "" {
				entry["use"] = cp.Use
			}
			if cp.Rank != 0 {
				entry["rank"] = float64(cp.Rank)
			}
			telecom = append(telecom, entry)
		}
		updated["telecom"] = telecom
	}

	return updated
}

func getString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// deepCopyMap copies the decoded-JSON value tree so edits never alias the
// caller's document.
func deepCopyMap(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return val
	}
}
