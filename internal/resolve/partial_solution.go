package resolve

import "github.com/bilusteknoloji/pipgrub/internal/pep440"

// assignment is one entry in the partial solution: either a decision
// (a subject was pinned to a specific version at the current decision
// level) or a derivation (a subject's admitted set was narrowed because
// an incompatibility became unit-propagable).
type assignment struct {
	term          Term
	decision      bool
	decisionLevel int
	cause         *Incompatibility // nil for decisions
}

// partialSolution is the resolver's mutable state: the ordered history of
// decisions and derivations, plus a running per-subject admitted set
// (the intersection of every term recorded for that subject so far) used
// to classify incompatibilities in O(1) per term instead of re-scanning
// history.
type partialSolution struct {
	assignments   []assignment
	decisionLevel int
	derived       map[Subject]pep440.Set
	decided       map[Subject]pep440.Version
}

func newPartialSolution() *partialSolution {
	return &partialSolution{
		derived: map[Subject]pep440.Set{},
		decided: map[Subject]pep440.Version{},
	}
}

func (p *partialSolution) derivedSet(s Subject) pep440.Set {
	if set, ok := p.derived[s]; ok {
		return set
	}
	return pep440.Universal()
}

// addDerivation records a derived term: the negation of an incompatibility
// term that became unit-propagable.
func (p *partialSolution) addDerivation(t Term, cause *Incompatibility) {
	p.assignments = append(p.assignments, assignment{term: t, decisionLevel: p.decisionLevel, cause: cause})
	p.derived[t.Subject] = pep440.Intersect(p.derivedSet(t.Subject), t.ImpliedSet())
}

// addDecision records a decision: subject is pinned to version at a new,
// incremented decision level.
func (p *partialSolution) addDecision(subject Subject, version pep440.Version) {
	p.decisionLevel++
	t := Pos(subject, pep440.Pinned(version))
	p.assignments = append(p.assignments, assignment{term: t, decision: true, decisionLevel: p.decisionLevel})
	p.derived[t.Subject] = pep440.Intersect(p.derivedSet(t.Subject), t.ImpliedSet())
	p.decided[subject] = version
}

// backjumpTo truncates the assignment history to decision level `level`,
// discarding every decision and derivation made afterward, and rebuilds
// the per-subject derived sets from what remains.
func (p *partialSolution) backjumpTo(level int) {
	kept := p.assignments[:0:0]
	for _, a := range p.assignments {
		if a.decisionLevel <= level {
			kept = append(kept, a)
		}
	}
	p.assignments = kept
	p.decisionLevel = level

	p.derived = map[Subject]pep440.Set{}
	p.decided = map[Subject]pep440.Version{}
	for _, a := range p.assignments {
		p.derived[a.term.Subject] = pep440.Intersect(p.derivedSet(a.term.Subject), a.term.ImpliedSet())
		if a.decision {
			if v, ok := a.term.Set.Singleton(); ok {
				p.decided[a.term.Subject] = v
			}
		}
	}
}

// satisfies reports whether term is already implied by the cumulative
// derived set for its subject.
func (p *partialSolution) satisfies(t Term) bool {
	return t.relationTo(p.derivedSet(t.Subject)) == relationSatisfied
}

// relation classifies the whole incompatibility against the current
// partial solution: satisfied (conflict), almost satisfied (exactly one
// inconclusive term, returned for unit propagation), or none of the
// above.
type incompatRelation int

const (
	incompatNone incompatRelation = iota
	incompatSatisfied
	incompatAlmostSatisfied
)

func (p *partialSolution) relation(i *Incompatibility) (incompatRelation, Term) {
	var unsatisfiedTerm Term
	unsatisfiedCount := 0
	for _, t := range i.Terms {
		switch t.relationTo(p.derivedSet(t.Subject)) {
		case relationContradicted:
			return incompatNone, Term{}
		case relationInconclusive:
			unsatisfiedCount++
			unsatisfiedTerm = t
			if unsatisfiedCount > 1 {
				return incompatNone, Term{}
			}
		}
	}
	if unsatisfiedCount == 0 {
		return incompatSatisfied, Term{}
	}
	return incompatAlmostSatisfied, unsatisfiedTerm
}

// satisfier finds the earliest assignment after which every term of i is
// satisfied by the running derived set, walking the assignment history in
// order. It returns that assignment's index, its term, and the
// highest decision level among assignments contributing to terms other
// than the satisfier's own subject (the level conflict resolution should
// backjump to).
func (p *partialSolution) satisfier(i *Incompatibility) (idx int, term Term, previousLevel int) {
	running := map[Subject]pep440.Set{}
	get := func(s Subject) pep440.Set {
		if set, ok := running[s]; ok {
			return set
		}
		return pep440.Universal()
	}

	otherLevel := 0
	for ai, a := range p.assignments {
		running[a.term.Subject] = pep440.Intersect(get(a.term.Subject), a.term.ImpliedSet())

		allSatisfied := true
		for _, t := range i.Terms {
			if t.relationTo(get(t.Subject)) != relationSatisfied {
				allSatisfied = false
				break
			}
		}
		if allSatisfied {
			for _, t := range i.Terms {
				if t.Subject == a.term.Subject {
					continue
				}
				if lvl := levelOf(p, t.Subject, ai); lvl > otherLevel {
					otherLevel = lvl
				}
			}
			return ai, a.term, otherLevel
		}
	}
	return len(p.assignments) - 1, Term{}, otherLevel
}

// levelOf returns the decision level of the last assignment about subject
// at or before index upTo.
func levelOf(p *partialSolution, subject Subject, upTo int) int {
	level := 0
	for idx := 0; idx <= upTo && idx < len(p.assignments); idx++ {
		a := p.assignments[idx]
		if a.term.Subject == subject {
			level = a.decisionLevel
		}
	}
	return level
}
