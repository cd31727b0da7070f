package catalog

// Kind is the value shape of a filterable field.
type Kind string

// Field kinds.
const (
	KindEnum      Kind = "enum"
	KindEnumSet   Kind = "enum_set"
	KindInt       Kind = "int"
	KindText      Kind = "text"
	KindTextList  Kind = "text_list"
	KindDateRange Kind = "date_range"
)

// Descriptor documents one filter field and its accepted values.
type Descriptor struct {
	Field       Field    `json:"field"`
	Kind        Kind     `json:"kind"`
	Description string   `json:"description"`
	Values      []string `json:"values,omitempty"`
	Min         int      `json:"min,omitempty"`
	Max         int      `json:"max,omitempty"`
}

// Descriptors returns the descriptor of every filter field.
func (c *Catalog) Descriptors() []Descriptor {
	return []Descriptor{
		{Field: FieldYear, Kind: KindInt, Description: "calendar year the finding was identified", Min: MinYear, Max: MaxYear},
		{Field: FieldCategory, Kind: KindEnum, Description: "business category of the audited site", Values: c.Values(FieldCategory)},
		{Field: FieldSeverity, Kind: KindEnumSet, Description: "finding severity levels", Values: c.Values(FieldSeverity)},
		{Field: FieldStatus, Kind: KindEnumSet, Description: "remediation status levels", Values: c.Values(FieldStatus)},
		{Field: FieldDepartment, Kind: KindEnum, Description: "owning department", Values: c.Values(FieldDepartment)},
		{Field: FieldKeywords, Kind: KindTextList, Description: "free-text terms matched against title and description", Max: MaxKeywords},
		{Field: FieldDateRange, Kind: KindDateRange, Description: "inclusive identification date range, YYYY-MM-DD"},
	}
}

// Descriptor returns the descriptor for a single field.
func (c *Catalog) Descriptor(f Field) (Descriptor, bool) {
	for _, d := range c.Descriptors() {
		if d.Field == f {
			return d, true
		}
	}
	return Descriptor{}, false
}
