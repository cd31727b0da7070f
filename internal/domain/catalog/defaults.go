package catalog

// Canonical severity values.
const (
	SeverityCritical = "Critical"
	SeverityHigh     = "High"
	SeverityMedium   = "Medium"
	SeverityLow      = "Low"
)

// Canonical status values.
const (
	StatusOpen       = "Open"
	StatusInProgress = "In Progress"
	StatusResolved   = "Resolved"
	StatusClosed     = "Closed"
)

// DefaultEntries returns the built-in alias tables.
func DefaultEntries() map[Field][]Entry {
	return map[Field][]Entry{
		FieldSeverity: {
			{Canonical: SeverityCritical, Aliases: []string{"severe", "urgent", "critical-severity"}},
			{Canonical: SeverityHigh, Aliases: []string{"major", "serious", "high-risk", "high risk"}},
			{Canonical: SeverityMedium, Aliases: []string{"moderate", "med"}},
			{Canonical: SeverityLow, Aliases: []string{"minor", "trivial", "low-risk", "low risk"}},
		},
		FieldStatus: {
			{Canonical: StatusOpen, Aliases: []string{"unresolved", "outstanding", "pending", "not fixed"}},
			{Canonical: StatusInProgress, Aliases: []string{"in-progress", "ongoing", "underway", "being fixed"}},
			{Canonical: StatusResolved, Aliases: []string{"fixed", "remediated", "addressed"}},
			{Canonical: StatusClosed, Aliases: []string{"done", "completed", "archived"}},
		},
		FieldCategory: {
			{Canonical: "Hotel", Aliases: []string{"hotels", "hospitality", "resort", "resorts"}},
			{Canonical: "Restaurant", Aliases: []string{"restaurants", "dining", "cafe", "cafes", "kitchen"}},
			{Canonical: "Retail", Aliases: []string{"shop", "shops", "store", "stores", "retail outlet"}},
			{Canonical: "Office", Aliases: []string{"offices", "corporate office"}},
			{Canonical: "Warehouse", Aliases: []string{"warehouses", "distribution center", "logistics"}},
			{Canonical: "Healthcare", Aliases: []string{"health care", "hospital", "hospitals", "clinic", "clinics"}},
			{Canonical: "Manufacturing", Aliases: []string{"factory", "factories", "production line"}},
		},
		FieldDepartment: {
			{Canonical: "Front Office", Aliases: []string{"front desk", "reception"}},
			{Canonical: "Housekeeping", Aliases: []string{"cleaning", "laundry"}},
			{Canonical: "Food & Beverage", Aliases: []string{"food and beverage", "f&b", "fnb"}},
			{Canonical: "Engineering", Aliases: []string{"maintenance", "facilities"}},
			{Canonical: "Security", Aliases: []string{"loss prevention"}},
			{Canonical: "Finance", Aliases: []string{"accounting", "accounts"}},
			{Canonical: "Human Resources", Aliases: []string{"hr", "people team", "personnel"}},
			{Canonical: "Information Technology", Aliases: []string{"it department", "it dept", "information systems"}},
			{Canonical: "Sales & Marketing", Aliases: []string{"sales and marketing", "sales", "marketing"}},
			{Canonical: "Procurement", Aliases: []string{"purchasing", "sourcing"}},
			{Canonical: "Operations", Aliases: []string{"ops"}},
		},
	}
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(DefaultEntries())
	if err != nil {
		panic(err)
	}
	return c
}
