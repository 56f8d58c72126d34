package stmtcache

import (
	"sort"
	"strconv"
	"strings"
)

// Key identifies the shape of a compiled statement. Two executions of the
// same SQL with different IN list cardinalities have different keys, since
// the cardinality decides how many placeholders get compiled.
type Key struct {
	SQL string
	// Sizes is the canonical form of the collection sizes by parameter
	// name: sorted name=size pairs joined by commas.
	Sizes     string
	Name      string
	HasLimit  bool
	HasOffset bool
	// GeneratedKeys lists the columns of an appended RETURNING clause.
	GeneratedKeys string
}

func NewKey(sql string, sizes map[string]int, name string, hasLimit, hasOffset bool, generatedKeys []string) Key {
	return Key{
		SQL:           sql,
		Sizes:         canonicalSizes(sizes),
		Name:          name,
		HasLimit:      hasLimit,
		HasOffset:     hasOffset,
		GeneratedKeys: strings.Join(generatedKeys, ","),
	}
}

func canonicalSizes(sizes map[string]int) string {
	if len(sizes) == 0 {
		return ""
	}
	names := make([]string, 0, len(sizes))
	for name := range sizes {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(sizes[name]))
	}
	return b.String()
}

// String renders the key unambiguously; the SQL goes last so that it cannot
// be confused with the fixed-width prefix.
func (k Key) String() string {
	var b strings.Builder
	b.Grow(len(k.SQL) + len(k.Sizes) + len(k.Name) + len(k.GeneratedKeys) + 32)
	b.WriteString(strconv.Itoa(len(k.Name)))
	b.WriteByte(':')
	b.WriteString(k.Name)
	b.WriteByte('|')
	b.WriteString(k.Sizes)
	b.WriteByte('|')
	b.WriteString(k.GeneratedKeys)
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(k.HasLimit))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(k.HasOffset))
	b.WriteByte('|')
	b.WriteString(k.SQL)
	return b.String()
}
