package sqlrecord

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Dialect selects the SQL flavor and driver.
type Dialect string

// Supported dialects.
const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// ParseDialect validates a dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(s)); d {
	case SQLite, Postgres:
		return d, nil
	default:
		return "", fmt.Errorf("unknown sql dialect %q", s)
	}
}

// args collects positional arguments and renders placeholders.
type args struct {
	dialect Dialect
	values  []any
}

func (a *args) add(v any) string {
	a.values = append(a.values, v)
	if a.dialect == Postgres {
		return "$" + strconv.Itoa(len(a.values))
	}
	return "?"
}

// in renders a membership test of expr against values. Postgres binds the
// whole set as one array parameter.
func (a *args) in(expr string, values []string) string {
	if a.dialect == Postgres {
		return expr + " = ANY(" + a.add(pq.Array(values)) + ")"
	}
	ph := make([]string, len(values))
	for i, v := range values {
		ph[i] = a.add(v)
	}
	return expr + " IN (" + strings.Join(ph, ", ") + ")"
}

func (d Dialect) placeholders(n int) []string {
	out := make([]string, n)
	for i := range out {
		if d == Postgres {
			out[i] = "$" + strconv.Itoa(i+1)
		} else {
			out[i] = "?"
		}
	}
	return out
}
