package adapter

import (
	"fmt"
	"sort"

	"github.com/mautbach/dbastion"
)

// constructors is the static mapping from engine tag to adapter
// constructor. No runtime registration: the set of engines is closed.
var constructors = map[DatabaseType]func() Adapter{
	TypePostgres: func() Adapter { return &PostgresAdapter{} },
	TypeMySQL:    func() Adapter { return &MySQLAdapter{} },
	TypeSQLite:   func() Adapter { return &SQLiteAdapter{} },
}

// New returns a fresh, unconnected adapter for the given engine tag.
func New(dbType DatabaseType) (Adapter, error) {
	ctor, ok := constructors[dbType]
	if !ok {
		return nil, fmt.Errorf("%w: %s (valid: %s)",
			dbastion.ErrUnknownDatabaseType, dbType, registeredList())
	}

	return ctor(), nil
}

// ParseType validates an engine tag string.
func ParseType(s string) (DatabaseType, error) {
	t := DatabaseType(s)
	if _, ok := constructors[t]; !ok {
		return "", fmt.Errorf("%w: %s (valid: %s)",
			dbastion.ErrUnknownDatabaseType, s, registeredList())
	}

	return t, nil
}

// Types returns the registered engine tags, sorted.
func Types() []DatabaseType {
	out := make([]DatabaseType, 0, len(constructors))
	for t := range constructors {
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

func registeredList() string {
	types := Types()

	s := ""
	for i, t := range types {
		if i > 0 {
			s += ", "
		}

		s += string(t)
	}

	return s
}
