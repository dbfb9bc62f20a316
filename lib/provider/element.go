package provider

// DataElement is one extracted record plus its provenance. Value is loosely
// typed: a scalar for simple selections, a map for structured rows.
type DataElement struct {
	Type       string            `json:"type"`
	Selector   string            `json:"selector,omitempty"`
	Value      any               `json:"value"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
}

const scalarField = "value"

// Fields exposes the element as a field map for post-processing. A map
// value is the field set itself; any other value is a single "value" field.
func (e DataElement) Fields() map[string]any {
	if m, ok := e.Value.(map[string]any); ok {
		return m
	}
	return map[string]any{scalarField: e.Value}
}

// WithFields returns a copy of the element carrying the given field map. A
// scalar element stays scalar when the map still has only the "value" field.
func (e DataElement) WithFields(fields map[string]any) DataElement {
	out := e
	if _, wasMap := e.Value.(map[string]any); !wasMap && len(fields) == 1 {
		if v, ok := fields[scalarField]; ok {
			out.Value = v
			return out
		}
	}
	out.Value = fields
	return out
}

// SourceURL reports the page the element was extracted from, when the
// producing provider recorded it.
func (e DataElement) SourceURL() string {
	if e.Metadata == nil {
		return ""
	}
	if s, ok := e.Metadata["source_url"].(string); ok {
		return s
	}
	return ""
}
