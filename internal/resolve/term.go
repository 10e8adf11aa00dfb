package resolve

import (
	"fmt"

	"github.com/bilusteknoloji/pipgrub/internal/pep440"
)

// Term is one literal in an incompatibility: an assertion that Subject's
// chosen version either lies in Set (Positive) or lies outside it
// (!Positive). Representing both polarities explicitly, rather than
// always normalizing to a positive set, keeps incompatibility printing
// close to how a human would state the constraint ("foo not >=2.0"
// rather than "foo in (-inf,2.0)").
type Term struct {
	Subject  Subject
	Set      pep440.Set
	Positive bool
}

// Pos builds a positive term: subject's version must lie in set.
func Pos(subject Subject, set pep440.Set) Term {
	return Term{Subject: subject, Set: set, Positive: true}
}

// Neg builds a negative term: subject's version must lie outside set.
func Neg(subject Subject, set pep440.Set) Term {
	return Term{Subject: subject, Set: set, Positive: false}
}

// ImpliedSet returns the set of versions this term actually admits,
// folding the polarity into a single positive set so callers can do
// ordinary set algebra without a branch on Positive.
func (t Term) ImpliedSet() pep440.Set {
	if t.Positive {
		return t.Set
	}
	return pep440.Complement(t.Set)
}

// Negate returns the term asserting the opposite of t.
func (t Term) Negate() Term {
	return Term{Subject: t.Subject, Set: t.Set, Positive: !t.Positive}
}

func (t Term) String() string {
	if t.Positive {
		return fmt.Sprintf("%s %s", t.Subject, t.Set)
	}
	return fmt.Sprintf("%s not %s", t.Subject, t.Set)
}

// relation classifies how a term compares against a subject's cumulative
// derived set so far.
type relation int

const (
	relationContradicted relation = iota // derived set excludes everything the term allows
	relationSatisfied                    // derived set is already fully inside what the term allows
	relationInconclusive                 // neither: some but not all of the derived set satisfies the term
)

// relationTo classifies t against a cumulative derived set for the same
// subject. derived == universal set when the subject has no prior terms.
func (t Term) relationTo(derived pep440.Set) relation {
	allowed := t.ImpliedSet()
	intersection := pep440.Intersect(derived, allowed)
	switch {
	case intersection.IsEmpty():
		return relationContradicted
	case setEqual(intersection, derived):
		return relationSatisfied
	default:
		return relationInconclusive
	}
}

func setEqual(a, b pep440.Set) bool {
	return pep440.Intersect(a, pep440.Complement(b)).IsEmpty() && pep440.Intersect(b, pep440.Complement(a)).IsEmpty()
}
