package fhir

// FindExtension scans an ordered extension list for the entry whose "url"
// matches. The list is the raw decoded JSON form: []interface{} of
// map[string]interface{} nodes.
func FindExtension(extensions []interface{}, url string) map[string]interface{} {
	for _, raw := range extensions {
		ext, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if u, _ := ext["url"].(string); u == url {
			return ext
		}
	}
	return nil
}

// NestedExtensionString resolves the two-level extension-within-extension
// pattern the remote uses for supplementary coded attributes: find the outer
// extension by URL, then its sub-extension by URL, and return that node's
// valueString. The second return value reports whether the full path
// resolved.
func NestedExtensionString(resource map[string]interface{}, outerURL, innerURL string) (string, bool) {
	exts, ok := resource["extension"].([]interface{})
	if !ok {
		return "", false
	}
	outer := FindExtension(exts, outerURL)
	if outer == nil {
		return "", false
	}
	inner, ok := outer["extension"].([]interface{})
	if !ok {
		return "", false
	}
	sub := FindExtension(inner, innerURL)
	if sub == nil {
		return "", false
	}
	value, ok := sub["valueString"].(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
