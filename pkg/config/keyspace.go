package config

import "regexp"

// Keyspace is a named grouping of cache keys defined by a regular expression.
// Any number of keyspaces may match a given key; matching is independent per
// keyspace and carries no precedence.
type Keyspace struct {
	// Name is the unique symbolic identifier, immutable after registration.
	Name string

	// Label is the display string shown by dashboards.
	Label string

	// Pattern classifies keys into this keyspace.
	Pattern *regexp.Regexp
}
