package intent

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/askdex/internal/domain"
)

// Kind is the execution path a query takes.
type Kind string

// Query kinds.
const (
	// KindSimple answers from a direct structured lookup.
	KindSimple Kind = "simple"
	// KindComplex answers through model reasoning over a retrieved context.
	KindComplex Kind = "complex"
	// KindHybrid performs a lookup and then reasons over its result.
	KindHybrid Kind = "hybrid"
)

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSimple, KindComplex, KindHybrid:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidKind, s)
	}
}

// RequiresModel reports whether the path invokes the language model.
func (k Kind) RequiresModel() bool {
	return k == KindComplex || k == KindHybrid
}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	_, err := ParseKind(string(k))
	return err == nil
}
