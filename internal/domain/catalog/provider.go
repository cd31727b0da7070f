package catalog

// Provider returns the catalog currently in effect. Implementations may swap
// the catalog at runtime; callers must not cache the result across requests.
type Provider interface {
	Current() *Catalog
}

// Static is a Provider that never changes.
type Static struct {
	c *Catalog
}

// NewStatic wraps c as a Provider.
func NewStatic(c *Catalog) Static { return Static{c: c} }

// Current implements Provider.
func (s Static) Current() *Catalog { return s.c }
