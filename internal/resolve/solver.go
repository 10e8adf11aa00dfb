// Package resolve implements a PubGrub-style conflict-driven dependency
// resolver over PEP 440 version sets: unit propagation, incompatibility
// learning, and backjumping, wired against a registry-backed Source.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bilusteknoloji/pipgrub/internal/pep440"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger stored on the Service. Solve
// writes nothing to it; yanked-version warnings are returned in
// Solution.Warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPrereleasePolicy sets the pre-release admission policy (default
// PrereleaseDisallow).
func WithPrereleasePolicy(p PrereleasePolicy) Option {
	return func(s *Service) { s.prereleasePolicy = p }
}

// Service runs PubGrub resolution against a Source.
type Service struct {
	source           Source
	logger           *slog.Logger
	prereleasePolicy PrereleasePolicy

	solution *partialSolution
	incompat []*Incompatibility
	warnings []string
	hints    []Hint
	// byTerm indexes incompatibilities by the subjects they mention, so
	// propagation only re-examines incompatibilities that could possibly
	// have changed relation after a derivation for that subject.
	byTerm map[Subject][]*Incompatibility
}

// New builds a resolver Service over source.
func New(source Source, opts ...Option) *Service {
	s := &Service{
		source: source,
		logger: slog.Default(),
		byTerm: map[Subject][]*Incompatibility{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solution is the result of a successful resolution: the chosen version
// for every subject (base packages and activated extras) that entered the
// search.
type Solution struct {
	Versions map[Subject]pep440.Version
	Warnings []string
}

// Solve resolves rootTerms — the root requirement set, one negative term
// per root requirement asserting "the dependency's version must lie in
// the requirement's admitted set" — to a Solution, or returns a Failure
// describing the learned incompatibility that made resolution impossible.
func (s *Service) Solve(ctx context.Context, rootTerms []Term) (*Solution, *Failure) {
	s.solution = newPartialSolution()
	s.incompat = nil
	s.byTerm = map[Subject][]*Incompatibility{}
	s.hints = nil

	s.solution.addDecision(rootSubject, rootVersion)
	for _, t := range rootTerms {
		s.addIncompatibility(newIncompatibility(RootCause{}, Pos(rootSubject, pep440.Pinned(rootVersion)), t))
	}

	next := rootSubject
	for {
		failure, err := s.propagate(ctx, next)
		if err != nil {
			return nil, &Failure{Message: err.Error(), Hints: s.hints}
		}
		if failure != nil {
			failure.Hints = s.hints
			return nil, failure
		}

		subject, version, found, done, err := s.choosePackageVersion(ctx)
		if err != nil {
			return nil, &Failure{Message: err.Error(), Hints: s.hints}
		}
		if done {
			return &Solution{Versions: s.solution.decided, Warnings: s.warnings}, nil
		}
		if !found {
			// choosePackageVersion already recorded a NoVersionsCause
			// incompatibility contradicting subject's own derived set;
			// the next propagate pass turns that into a learned
			// incompatibility or a Failure.
			next = subject
			continue
		}
		s.solution.addDecision(subject, version)
		next = subject
	}
}

var rootVersion = pep440.MustParse("0")

func (s *Service) addIncompatibility(i *Incompatibility) {
	s.incompat = append(s.incompat, i)
	for _, t := range i.Terms {
		s.byTerm[t.Subject] = append(s.byTerm[t.Subject], i)
	}
}

// propagate runs unit propagation starting from changed, returning a
// Failure if the root incompatibility becomes satisfied (resolution is
// impossible) or nil once the propagation queue drains.
func (s *Service) propagate(ctx context.Context, changed Subject) (*Failure, error) {
	queue := []Subject{changed}
	for len(queue) > 0 {
		subject := queue[0]
		queue = queue[1:]

	scanIncompats:
		for _, incompat := range append([]*Incompatibility(nil), s.byTerm[subject]...) {
			rel, term := s.solution.relation(incompat)
			switch rel {
			case incompatSatisfied:
				learned, failure, err := s.resolveConflict(ctx, incompat)
				if err != nil {
					return nil, err
				}
				if failure != nil {
					return failure, nil
				}
				queue = []Subject{learned}
				break scanIncompats
			case incompatAlmostSatisfied:
				s.solution.addDerivation(term.Negate(), incompat)
				queue = append(queue, term.Subject)
			}
		}
	}
	return nil, nil
}

// resolveConflict implements PubGrub's conflict resolution: walk back from
// a satisfied incompatibility, resolving it against the incompatibility
// that caused its most recent satisfying term, until the result is
// satisfied by an earlier decision level. It returns the subject to
// resume propagation from, or a Failure if the learned incompatibility
// ends up with no terms (or only the root term), meaning resolution is
// impossible.
func (s *Service) resolveConflict(ctx context.Context, incompat *Incompatibility) (Subject, *Failure, error) {
	for {
		if incompat.isFailure() {
			return Subject{}, &Failure{Incompatibility: incompat}, nil
		}

		satIdx, term, previousLevel := s.solution.satisfier(incompat)
		if term.Subject == (Subject{}) {
			return Subject{}, &Failure{Incompatibility: incompat}, nil
		}

		satAssignment := s.solution.assignments[satIdx]
		if satAssignment.decision {
			s.solution.backjumpTo(previousLevel)
			return term.Subject, nil, nil
		}

		merged := resolveIncompatibilities(incompat, satAssignment.cause, term.Subject)
		s.solution.backjumpTo(previousLevel)
		s.addIncompatibility(merged)
		incompat = merged
	}
}

// resolveIncompatibilities combines a and b, both of which mention
// subject, by eliminating subject: the merged incompatibility's term for
// every other subject is carried over, and subject's own contribution is
// dropped (its two opposing terms, once unioned, admit every version and
// so assert nothing).
func resolveIncompatibilities(a, b *Incompatibility, subject Subject) *Incompatibility {
	terms := map[Subject]Term{}
	order := []Subject{}
	add := func(t Term) {
		if t.Subject == subject {
			return
		}
		if existing, ok := terms[t.Subject]; ok {
			terms[t.Subject] = mergeTerms(existing, t)
			return
		}
		terms[t.Subject] = t
		order = append(order, t.Subject)
	}
	for _, t := range a.Terms {
		add(t)
	}
	for _, t := range b.Terms {
		add(t)
	}

	merged := make([]Term, 0, len(order))
	for _, subj := range order {
		merged = append(merged, terms[subj])
	}
	return newIncompatibility(ConflictCause{Left: a, Right: b}, merged...)
}

// mergeTerms combines two terms about the same subject into the tightest
// single term that is implied by both — the intersection of what each
// admits.
func mergeTerms(a, b Term) Term {
	return Pos(a.Subject, pep440.Intersect(a.ImpliedSet(), b.ImpliedSet()))
}

// choosePackageVersion implements the decision step: pick an
// undecided-but-mentioned subject by the §4.4.2 decision order (narrowest
// live-version-count first, then lexicographic canonical name; the order
// has no separate tier for direct-URL targets, which requirementTerms
// leaves out of the search), enumerate its candidates, filter by the admitted set and
// policy, and decide the highest survivor. Returns done=true once every
// mentioned subject has been decided; returns found=false (with a
// NoVersionsCause incompatibility already recorded) when the chosen
// subject has no surviving candidate.
func (s *Service) choosePackageVersion(ctx context.Context) (subject Subject, version pep440.Version, found, done bool, err error) {
	undecided := s.undecidedSubjects()
	if len(undecided) == 0 {
		return Subject{}, pep440.Version{}, false, true, nil
	}

	type candidateSet struct {
		subject    Subject
		admitted   pep440.Set
		candidates []Candidate
	}
	var sets []candidateSet
	for _, subj := range undecided {
		admitted := s.solution.derivedSet(subj)
		candidates, err := s.source.Versions(ctx, subj)
		if err != nil {
			return Subject{}, pep440.Version{}, false, false, err
		}
		sets = append(sets, candidateSet{subject: subj, admitted: admitted, candidates: candidates})
	}

	sort.Slice(sets, func(i, j int) bool {
		li, lj := liveCount(sets[i].admitted, sets[i].candidates), liveCount(sets[j].admitted, sets[j].candidates)
		if li != lj {
			return li < lj
		}
		return sets[i].subject.Name < sets[j].subject.Name
	})

	chosen := sets[0]
	allVersions := make([]pep440.Version, len(chosen.candidates))
	for i, c := range chosen.candidates {
		allVersions[i] = c.Version
	}

	for _, c := range chosen.candidates {
		if !chosen.admitted.Contains(c.Version) {
			continue
		}
		if c.Yanked && !yankAdmitted(chosen.admitted, c.Version) {
			continue
		}
		if !c.Version.IsStable() && !prereleaseOptIn(s.prereleasePolicy, chosen.admitted, allVersions) {
			continue
		}
		if c.Yanked {
			s.warnings = append(s.warnings, fmt.Sprintf("%s is yanked: %s", chosen.subject, c.YankedReason))
		}

		deps, err := s.source.Dependencies(ctx, chosen.subject, c.Version)
		if err != nil {
			return Subject{}, pep440.Version{}, false, false, err
		}
		for _, dep := range deps {
			var cause Cause = DependencyCause{Depender: chosen.subject}
			if chosen.subject.IsExtra() && dep.Subject == chosen.subject.Base() {
				cause = ExtraLinkCause{}
			}
			s.addIncompatibility(newIncompatibility(cause, Pos(chosen.subject, pep440.Pinned(c.Version)), dep))
		}
		return chosen.subject, c.Version, true, false, nil
	}

	s.collectExhaustionHints(chosen.subject, chosen.admitted, chosen.candidates, allVersions)
	s.addIncompatibility(newIncompatibility(NoVersionsCause{Subject: chosen.subject}, Pos(chosen.subject, chosen.admitted)))
	return chosen.subject, pep440.Version{}, false, false, nil
}

// collectExhaustionHints records why subject ran out of candidates, for
// the §4.4.7 hint lines: no versions published at all, or versions that
// would satisfy admitted but were filtered by yank or pre-release policy.
func (s *Service) collectExhaustionHints(subject Subject, admitted pep440.Set, candidates []Candidate, allVersions []pep440.Version) {
	if len(candidates) == 0 {
		s.hints = append(s.hints, Hint{Kind: HintMissingPackage, Subject: subject})
		return
	}
	for _, c := range candidates {
		if !admitted.Contains(c.Version) {
			continue
		}
		if c.Yanked && !yankAdmitted(admitted, c.Version) {
			s.hints = append(s.hints, Hint{Kind: HintYanked, Subject: subject, Detail: c.Version.String()})
		}
		if !c.Version.IsStable() && !prereleaseOptIn(s.prereleasePolicy, admitted, allVersions) {
			s.hints = append(s.hints, Hint{Kind: HintPrerelease, Subject: subject, Detail: c.Version.String()})
		}
	}
}

// liveCount counts how many of candidates lie within admitted, used to
// prioritize the subject with the fewest remaining options.
func liveCount(admitted pep440.Set, candidates []Candidate) int {
	n := 0
	for _, c := range candidates {
		if admitted.Contains(c.Version) {
			n++
		}
	}
	return n
}

// undecidedSubjects returns every subject mentioned by a live
// incompatibility that hasn't yet been assigned a decision, other than
// the synthetic root.
func (s *Service) undecidedSubjects() []Subject {
	seen := map[Subject]bool{}
	var subjects []Subject
	for subj := range s.byTerm {
		if subj == rootSubject {
			continue
		}
		if _, decided := s.solution.decided[subj]; decided {
			continue
		}
		if !seen[subj] {
			seen[subj] = true
			subjects = append(subjects, subj)
		}
	}
	return subjects
}
