package pep440

// Set is a finite union of half-open intervals over the PEP 440 total
// order, representing the solution space of a specifier expression.
//
// Interval endpoints compare under public precedence (local segments
// ignored, per the </> tie-break rule); an interval additionally marked
// "pinned" represents an exact-equality singleton (== / === atoms), whose
// membership test uses full equality instead of the ordering relation.
// Pinned points still participate in the same sort/merge/gap bookkeeping
// as ordinary intervals so union, intersect, and complement stay uniform.
type Set struct {
	intervals []interval
}

type bound struct {
	v         Version
	inclusive bool
}

type interval struct {
	lo     *bound
	hi     *bound
	pinned bool
	raw    string // only set for pinned intervals built from unparseable === operands
}

// Empty returns the set containing no versions.
func Empty() Set { return Set{} }

// Universal returns the set containing every version.
func Universal() Set { return Set{intervals: []interval{{}}} }

// AtLeast returns [v, +inf).
func AtLeast(v Version) Set {
	return Set{intervals: []interval{{lo: &bound{v, true}}}}
}

// GreaterThan returns (v, +inf).
func GreaterThan(v Version) Set {
	return Set{intervals: []interval{{lo: &bound{v, false}}}}
}

// AtMost returns (-inf, v].
func AtMost(v Version) Set {
	return Set{intervals: []interval{{hi: &bound{v, true}}}}
}

// LessThan returns (-inf, v).
func LessThan(v Version) Set {
	return Set{intervals: []interval{{hi: &bound{v, false}}}}
}

// Range returns [lo, hi) or [lo, hi] etc. per the supplied inclusivity.
func Range(lo Version, loIncl bool, hi Version, hiIncl bool) Set {
	return Set{intervals: []interval{{lo: &bound{lo, loIncl}, hi: &bound{hi, hiIncl}}}}
}

// Pinned returns the singleton set {v}, tested by full equality.
func Pinned(v Version) Set {
	return Set{intervals: []interval{{lo: &bound{v, true}, hi: &bound{v, true}, pinned: true}}}
}

// PinnedRaw returns a singleton set matching only the literal string raw,
// for PEP 440 "===" arbitrary-equality comparisons against operands that
// may not themselves be valid PEP 440 versions.
func PinnedRaw(raw string) Set {
	return Set{intervals: []interval{{pinned: true, raw: raw}}}
}

// IsEmpty reports whether s admits no versions.
func (s Set) IsEmpty() bool { return len(s.intervals) == 0 }

// Contains reports whether v lies in s.
func (s Set) Contains(v Version) bool {
	for _, iv := range s.intervals {
		if iv.contains(v) {
			return true
		}
	}
	return false
}

func (iv interval) contains(v Version) bool {
	if iv.pinned {
		if iv.raw != "" {
			return v.Original() == iv.raw
		}
		return v.Equal(iv.lo.v)
	}
	if iv.lo != nil {
		c := v.ComparePublic(iv.lo.v)
		if c < 0 || (c == 0 && !iv.lo.inclusive) {
			return false
		}
	}
	if iv.hi != nil {
		c := v.ComparePublic(iv.hi.v)
		if c > 0 || (c == 0 && !iv.hi.inclusive) {
			return false
		}
	}
	return true
}

// String renders s as a human-readable union of ranges, e.g. ">=1.0,<2.0"
// for a single interval or "{<1.0 or >=2.0}" once more than one is present.
func (s Set) String() string {
	if s.IsEmpty() {
		return "<empty>"
	}
	if len(s.intervals) == 1 {
		return s.intervals[0].String()
	}
	out := "{"
	for i, iv := range s.intervals {
		if i > 0 {
			out += " or "
		}
		out += iv.String()
	}
	return out + "}"
}

func (iv interval) String() string {
	if iv.pinned {
		if iv.raw != "" {
			return "===" + iv.raw
		}
		return "==" + iv.lo.v.String()
	}
	switch {
	case iv.lo == nil && iv.hi == nil:
		return "*"
	case iv.lo == nil:
		return ltOp(iv.hi.inclusive) + iv.hi.v.String()
	case iv.hi == nil:
		return gtOp(iv.lo.inclusive) + iv.lo.v.String()
	default:
		return gtOp(iv.lo.inclusive) + iv.lo.v.String() + "," + ltOp(iv.hi.inclusive) + iv.hi.v.String()
	}
}

func ltOp(inclusive bool) string {
	if inclusive {
		return "<="
	}
	return "<"
}

func gtOp(inclusive bool) string {
	if inclusive {
		return ">="
	}
	return ">"
}

// Singleton returns the single version admitted by s, and true, iff s
// admits exactly one version and that fact is evident from its shape
// (a lone pinned point, or a lone zero-width ordinary interval).
func (s Set) Singleton() (Version, bool) {
	if len(s.intervals) != 1 {
		return Version{}, false
	}
	iv := s.intervals[0]
	if iv.pinned {
		if iv.raw != "" {
			return Version{}, false
		}
		return iv.lo.v, true
	}
	if iv.lo != nil && iv.hi != nil && iv.lo.inclusive && iv.hi.inclusive && iv.lo.v.ComparePublic(iv.hi.v) == 0 {
		return iv.lo.v, true
	}
	return Version{}, false
}

// endpoint is a sortable projection of an interval boundary used to drive
// the sweep-line merges in Union, Intersect, and Complement.
type endpoint struct {
	v        *Version // nil = infinity
	negative bool     // true = -inf
}

func lessEndpoint(a, b endpoint) bool {
	if a.v == nil && b.v == nil {
		return a.negative && !b.negative
	}
	if a.v == nil {
		return a.negative
	}
	if b.v == nil {
		return !b.negative
	}
	return a.v.ComparePublic(*b.v) < 0
}

// Union returns the set of versions admitted by a or b.
func Union(a, b Set) Set {
	all := append(append([]interval{}, a.intervals...), b.intervals...)
	return normalize(all, false)
}

// Intersect returns the set of versions admitted by both a and b.
func Intersect(a, b Set) Set {
	var out []interval
	for _, x := range a.intervals {
		for _, y := range b.intervals {
			if iv, ok := intersectPair(x, y); ok {
				out = append(out, iv)
			}
		}
	}
	return normalize(out, true)
}

// IntersectAll intersects a conjunction of sets, as produced by compiling
// a specifier expression's comma-separated atoms.
func IntersectAll(sets ...Set) Set {
	result := Universal()
	for _, s := range sets {
		result = Intersect(result, s)
	}
	return result
}

func intersectPair(x, y interval) (interval, bool) {
	if x.pinned || y.pinned {
		// A pinned point survives intersection only if the other operand
		// would also admit it.
		pin, other := x, y
		if y.pinned {
			pin, other = y, x
		}
		if pin.pinned && other.pinned {
			if pin.raw != "" || other.raw != "" {
				if pin.raw == other.raw && pin.raw != "" {
					return pin, true
				}
				return interval{}, false
			}
			if pin.lo.v.Equal(other.lo.v) {
				return pin, true
			}
			return interval{}, false
		}
		if pin.raw != "" {
			return interval{}, false // arbitrary-equality can't be order-tested against a range
		}
		if other.contains(pin.lo.v) {
			return pin, true
		}
		return interval{}, false
	}

	lo := x.lo
	if tighterLo(y.lo, lo) {
		lo = y.lo
	}
	hi := x.hi
	if tighterHi(y.hi, hi) {
		hi = y.hi
	}
	if lo != nil && hi != nil {
		c := lo.v.ComparePublic(hi.v)
		if c > 0 || (c == 0 && !(lo.inclusive && hi.inclusive)) {
			return interval{}, false
		}
	}
	return interval{lo: lo, hi: hi}, true
}

func tighterLo(a, b *bound) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	c := a.v.ComparePublic(b.v)
	if c != 0 {
		return c > 0
	}
	return !a.inclusive && b.inclusive
}

func tighterHi(a, b *bound) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	c := a.v.ComparePublic(b.v)
	if c != 0 {
		return c < 0
	}
	return !a.inclusive && b.inclusive
}

// Complement returns the set of versions not admitted by s.
func Complement(s Set) Set {
	ordinary, pinned := splitPinned(s.intervals)
	result := Set{intervals: complementOrdinary(normalize(ordinary, true).intervals)}
	for _, p := range pinned {
		result = subtractPinned(result, p)
	}
	return result
}

func splitPinned(ivs []interval) (ordinary, pinned []interval) {
	for _, iv := range ivs {
		if iv.pinned {
			pinned = append(pinned, iv)
		} else {
			ordinary = append(ordinary, iv)
		}
	}
	return
}

// subtractPinned removes exactly the one version admitted by a pinned
// point from result, splitting an enclosing ordinary interval if needed.
func subtractPinned(result Set, p interval) Set {
	if p.raw != "" {
		// An arbitrary-equality exclusion never touches ordering-based
		// ranges: nothing else in the set can use ComparePublic to find it.
		return result
	}
	v := p.lo.v
	var out []interval
	for _, iv := range result.intervals {
		if iv.pinned {
			if !iv.contains(v) {
				out = append(out, iv)
			}
			continue
		}
		if !iv.contains(v) {
			out = append(out, iv)
			continue
		}
		if iv.lo != nil && iv.lo.v.ComparePublic(v) == 0 && iv.lo.inclusive {
			out = append(out, interval{lo: &bound{v, false}, hi: iv.hi})
			continue
		}
		if iv.hi != nil && iv.hi.v.ComparePublic(v) == 0 && iv.hi.inclusive {
			out = append(out, interval{lo: iv.lo, hi: &bound{v, false}})
			continue
		}
		out = append(out, interval{lo: iv.lo, hi: &bound{v, false}})
		out = append(out, interval{lo: &bound{v, false}, hi: iv.hi})
	}
	return Set{intervals: out}
}

func complementOrdinary(sorted []interval) []interval {
	var out []interval
	var prevHi *bound // exclusive lower bound of the next gap
	started := false
	for _, iv := range sorted {
		if !started {
			if iv.lo != nil {
				out = append(out, interval{hi: &bound{iv.lo.v, !iv.lo.inclusive}})
			}
			started = true
		} else if prevHi != nil && iv.lo != nil {
			out = append(out, interval{lo: prevHi, hi: &bound{iv.lo.v, !iv.lo.inclusive}})
		}
		if iv.hi == nil {
			return out // tail is +inf, everything after is covered
		}
		prevHi = &bound{iv.hi.v, !iv.hi.inclusive}
	}
	if !started {
		return []interval{{}}
	}
	if prevHi != nil {
		out = append(out, interval{lo: prevHi})
	}
	return out
}

// normalize sorts and, when merge is requested, coalesces overlapping or
// touching ordinary intervals. Pinned points are always kept distinct.
func normalize(ivs []interval, merge bool) Set {
	ordinary, pinned := splitPinned(ivs)
	sortIntervals(ordinary)
	var out []interval
	for _, iv := range ordinary {
		if len(out) == 0 {
			out = append(out, iv)
			continue
		}
		last := &out[len(out)-1]
		if merge && overlapsOrTouches(*last, iv) {
			*last = mergeIntervals(*last, iv)
			continue
		}
		out = append(out, iv)
	}
	out = append(out, dedupePinned(pinned)...)
	return Set{intervals: out}
}

func dedupePinned(pinned []interval) []interval {
	seen := map[string]bool{}
	var out []interval
	for _, p := range pinned {
		key := p.raw
		if key == "" {
			key = "v:" + p.lo.v.String()
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func sortIntervals(ivs []interval) {
	for i := 1; i < len(ivs); i++ {
		for j := i; j > 0 && lessInterval(ivs[j], ivs[j-1]); j-- {
			ivs[j], ivs[j-1] = ivs[j-1], ivs[j]
		}
	}
}

func lessInterval(a, b interval) bool {
	return lessEndpoint(loEndpoint(a), loEndpoint(b))
}

func loEndpoint(iv interval) endpoint {
	if iv.lo == nil {
		return endpoint{negative: true}
	}
	v := iv.lo.v
	return endpoint{v: &v}
}

func overlapsOrTouches(a, b interval) bool {
	// a is assumed to sort before or equal to b.
	if a.hi == nil {
		return true
	}
	if b.lo == nil {
		return true
	}
	c := a.hi.v.ComparePublic(b.lo.v)
	if c > 0 {
		return true
	}
	if c == 0 && (a.hi.inclusive || b.lo.inclusive) {
		return true
	}
	return false
}

func mergeIntervals(a, b interval) interval {
	lo := a.lo
	if a.lo != nil && b.lo != nil {
		if tighterLoForUnion(b.lo, a.lo) {
			lo = b.lo
		}
	} else if b.lo == nil {
		lo = nil
	}
	hi := a.hi
	if a.hi != nil && b.hi != nil {
		if tighterHiForUnion(b.hi, a.hi) {
			hi = b.hi
		}
	} else if b.hi == nil {
		hi = nil
	}
	return interval{lo: lo, hi: hi}
}

func tighterLoForUnion(a, b *bound) bool {
	c := a.v.ComparePublic(b.v)
	if c != 0 {
		return c < 0
	}
	return a.inclusive && !b.inclusive
}

func tighterHiForUnion(a, b *bound) bool {
	c := a.v.ComparePublic(b.v)
	if c != 0 {
		return c > 0
	}
	return a.inclusive && !b.inclusive
}
