// Package pep440 implements version parsing, comparison, specifier
// compilation, and version-set algebra over PEP 440 version strings.
//
// Raw parsing and pairwise comparison are delegated to the upstream
// aquasecurity/go-pep440-version library; everything this package adds on
// top (half-open interval sets, union/intersect/complement, specifier
// compilation) operates purely on the comparison primitives that library
// exposes.
package pep440

import (
	"fmt"
	"sort"

	upstream "github.com/aquasecurity/go-pep440-version"
)

// Version is an immutable, totally-ordered PEP 440 version value.
type Version struct {
	v   upstream.Version
	raw string
}

// Parse parses s as a PEP 440 version.
func Parse(s string) (Version, error) {
	v, err := upstream.Parse(s)
	if err != nil {
		return Version{}, fmt.Errorf("parsing version %q: %w", s, err)
	}
	return Version{v: v, raw: s}, nil
}

// MustParse is like Parse but panics on error. Used for compile-time-known
// version literals (e.g. in tests and tag tables).
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the version in its normalized PEP 440 form.
func (v Version) String() string { return v.v.String() }

// Original returns the exact text the version was parsed from.
func (v Version) Original() string { return v.raw }

// Public returns the version without its local segment.
func (v Version) Public() string { return v.v.Public() }

// BaseVersion returns epoch and release segments only (no pre/post/dev/local).
func (v Version) BaseVersion() string { return v.v.BaseVersion() }

// IsPreRelease reports whether v carries a pre-release or dev-release tag.
func (v Version) IsPreRelease() bool { return v.v.IsPreRelease() }

// IsPostRelease reports whether v carries a post-release tag.
func (v Version) IsPostRelease() bool { return v.v.IsPostRelease() }

// IsStable reports whether v has neither a pre-release nor a dev tag.
func (v Version) IsStable() bool { return !v.IsPreRelease() }

// Equal reports whether v and o are identical, including local segments.
// Two versions with the same public precedence but different local
// segments are never Equal.
func (v Version) Equal(o Version) bool { return v.v.Equal(o.v) }

// Compare returns -1, 0, or 1 comparing v and o under full PEP 440 order,
// including the local-version segment as the final tie-break.
func (v Version) Compare(o Version) int {
	switch {
	case v.v.LessThan(o.v):
		return -1
	case v.v.GreaterThan(o.v):
		return 1
	default:
		return 0
	}
}

// ComparePublic compares v and o ignoring their local segments: the
// ordering relation used everywhere except exact-equality tests, per the
// public-precedence tie-break rule.
func (v Version) ComparePublic(o Version) int {
	// Local segments never affect <, >, <=, >= — only == and != consult
	// them. Re-parsing the public string is the simplest way to borrow the
	// upstream comparator without reaching into its internals.
	pv, err1 := upstream.Parse(v.Public())
	po, err2 := upstream.Parse(o.Public())
	if err1 != nil || err2 != nil {
		// Public() of an already-parsed version always reparses cleanly;
		// this branch only guards against a future upstream regression.
		return v.Compare(o)
	}
	switch {
	case pv.LessThan(po):
		return -1
	case pv.GreaterThan(po):
		return 1
	default:
		return 0
	}
}

func (v Version) LessThanPublic(o Version) bool    { return v.ComparePublic(o) < 0 }
func (v Version) GreaterThanPublic(o Version) bool { return v.ComparePublic(o) > 0 }

// SortVersions sorts versions ascending by full PEP 440 order.
func SortVersions(vs []Version) {
	sort.Slice(vs, func(i, j int) bool { return vs[i].Compare(vs[j]) < 0 })
}
