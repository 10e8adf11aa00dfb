package pep440

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Specifiers is a parsed, comma-separated conjunction of specifier atoms
// (e.g. ">=1.0,!=1.5,<2.0"), compiled once into a version Set.
type Specifiers struct {
	raw string
	set Set
}

var atomRe = regexp.MustCompile(`^\s*(~=|==|!=|<=|>=|<|>|===)\s*(.+?)\s*$`)

// ParseSpecifiers parses a PEP 440 specifier expression into its compiled
// version set. An empty expression parses to the universal set.
func ParseSpecifiers(expr string) (Specifiers, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Specifiers{raw: expr, set: Universal()}, nil
	}

	sets := make([]Set, 0, 4)
	for _, atom := range strings.Split(expr, ",") {
		atom = strings.TrimSpace(atom)
		if atom == "" {
			continue
		}
		s, err := compileAtom(atom)
		if err != nil {
			return Specifiers{}, fmt.Errorf("parsing specifier %q: %w", expr, err)
		}
		sets = append(sets, s)
	}
	return Specifiers{raw: expr, set: IntersectAll(sets...)}, nil
}

func compileAtom(atom string) (Set, error) {
	m := atomRe.FindStringSubmatch(atom)
	if m == nil {
		return Set{}, fmt.Errorf("malformed specifier atom %q", atom)
	}
	op, operand := m[1], m[2]

	switch op {
	case "===":
		if v, err := Parse(operand); err == nil {
			return Pinned(v), nil
		}
		return PinnedRaw(operand), nil
	case "==":
		return compileEquality(operand)
	case "!=":
		s, err := compileEquality(operand)
		if err != nil {
			return Set{}, err
		}
		return Complement(s), nil
	case "<":
		v, err := Parse(operand)
		if err != nil {
			return Set{}, err
		}
		return LessThan(v), nil
	case "<=":
		v, err := Parse(operand)
		if err != nil {
			return Set{}, err
		}
		return AtMost(v), nil
	case ">":
		v, err := Parse(operand)
		if err != nil {
			return Set{}, err
		}
		return GreaterThan(v), nil
	case ">=":
		v, err := Parse(operand)
		if err != nil {
			return Set{}, err
		}
		return AtLeast(v), nil
	case "~=":
		return compileCompatible(operand)
	default:
		return Set{}, fmt.Errorf("unsupported specifier operator %q", op)
	}
}

func compileEquality(operand string) (Set, error) {
	if prefix, ok := strings.CutSuffix(operand, ".*"); ok {
		return compilePrefixMatch(prefix)
	}
	v, err := Parse(operand)
	if err != nil {
		return Set{}, err
	}
	return Pinned(v), nil
}

// compilePrefixMatch implements "==X.*": every version whose release
// segments start with X's, regardless of pre/post/dev/local suffix.
func compilePrefixMatch(prefix string) (Set, error) {
	// X.dev0 is the lowest version with X's release segments, and the
	// bumped release's .dev0 the lowest version past them.
	lo, err := Parse(prefix + ".dev0")
	if err != nil {
		return Set{}, fmt.Errorf("parsing prefix %q: %w", prefix, err)
	}
	segs, err := releaseSegments(prefix)
	if err != nil {
		return Set{}, err
	}
	hi, err := Parse(bumpRelease(segs, 0) + ".dev0")
	if err != nil {
		return Set{}, err
	}
	return Range(lo, true, hi, false), nil
}

// compileCompatible implements "~=X.Y[.Z...]": >=X.Y[.Z...], ==X.Y[..].*
// with the last release segment truncated before the wildcard.
func compileCompatible(operand string) (Set, error) {
	segs, err := releaseSegments(operand)
	if err != nil {
		return Set{}, err
	}
	if len(segs) < 2 {
		return Set{}, fmt.Errorf("~= requires at least two release segments, got %q", operand)
	}
	lo, err := Parse(operand)
	if err != nil {
		return Set{}, err
	}
	hi, err := Parse(bumpRelease(segs, 1) + ".dev0")
	if err != nil {
		return Set{}, err
	}
	return Range(lo, true, hi, false), nil
}

var releaseRe = regexp.MustCompile(`^\s*(?:[0-9]+!)?([0-9]+(?:\.[0-9]+)*)`)

// releaseSegments extracts the leading numeric release-segment tuple from
// a version string, ignoring any epoch/pre/post/dev/local suffix.
func releaseSegments(s string) ([]int, error) {
	m := releaseRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("no release segment in %q", s)
	}
	parts := strings.Split(m[1], ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid release segment %q: %w", p, err)
		}
		out[i] = n
	}
	return out, nil
}

// bumpRelease drops the trailing `truncate` segments and increments the
// new last segment, e.g. bumpRelease([2,2,3], 1) = "2.3".
func bumpRelease(segs []int, truncate int) string {
	kept := append([]int{}, segs[:len(segs)-truncate]...)
	kept[len(kept)-1]++
	parts := make([]string, len(kept))
	for i, n := range kept {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Check reports whether v satisfies the compiled specifier expression.
func (s Specifiers) Check(v Version) bool { return s.set.Contains(v) }

// Set returns the compiled version set.
func (s Specifiers) Set() Set { return s.set }

// String returns the original specifier text.
func (s Specifiers) String() string { return s.raw }

// IsEmpty reports whether the expression admits no versions at all
// (e.g. "<1.0,>=1.0").
func (s Specifiers) IsEmpty() bool { return s.set.IsEmpty() }
