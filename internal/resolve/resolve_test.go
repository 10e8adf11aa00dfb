package resolve_test

import (
	"context"
	"testing"

	"github.com/bilusteknoloji/pipgrub/internal/marker"
	"github.com/bilusteknoloji/pipgrub/internal/pep440"
	"github.com/bilusteknoloji/pipgrub/internal/resolve"
)

// fakePackage is one version of a package in the in-memory source: the
// version itself, its dependencies as raw PEP 508 requirement strings, and
// yank status.
type fakePackage struct {
	version      string
	requires     []string
	provides     map[string]bool
	yanked       bool
	yankedReason string
}

// memorySource is a Source over a fixed, in-memory package universe,
// grounded on the in-memory fixture style other PubGrub implementations
// use for algorithm tests (no network, no registry).
type memorySource struct {
	packages map[string][]fakePackage
}

func newMemorySource() *memorySource {
	return &memorySource{packages: map[string][]fakePackage{}}
}

func (m *memorySource) add(name string, pkgs ...fakePackage) {
	m.packages[name] = pkgs
}

func (m *memorySource) Versions(ctx context.Context, subject resolve.Subject) ([]resolve.Candidate, error) {
	pkgs := m.packages[subject.Name]
	candidates := make([]resolve.Candidate, 0, len(pkgs))
	for _, p := range pkgs {
		candidates = append(candidates, resolve.Candidate{
			Version:      pep440.MustParse(p.version),
			Yanked:       p.yanked,
			YankedReason: p.yankedReason,
		})
	}
	pep440.SortVersions(versionsOf(candidates))
	reverse(candidates)
	return candidates, nil
}

func versionsOf(candidates []resolve.Candidate) []pep440.Version {
	vs := make([]pep440.Version, len(candidates))
	for i, c := range candidates {
		vs[i] = c.Version
	}
	return vs
}

func reverse(c []resolve.Candidate) {
	for i, j := 0, len(c)-1; i < j; i, j = i+1, j-1 {
		c[i], c[j] = c[j], c[i]
	}
}

func (m *memorySource) Dependencies(ctx context.Context, subject resolve.Subject, version pep440.Version) ([]resolve.Term, error) {
	for _, p := range m.packages[subject.Name] {
		if p.version != version.String() {
			continue
		}
		if subject.IsExtra() && !p.provides[subject.Extra] {
			return nil, nil
		}
		env := marker.Env{Extra: subject.Extra}
		terms := resolve.RootTerms(p.requires, env)
		if subject.IsExtra() {
			terms = append(terms, resolve.Neg(subject.Base(), pep440.Pinned(version)))
		}
		return terms, nil
	}
	return nil, nil
}

var _ resolve.Source = (*memorySource)(nil)

func solve(t *testing.T, src *memorySource, requires ...string) (*resolve.Solution, *resolve.Failure) {
	t.Helper()
	root := resolve.RootTerms(requires, marker.Env{})
	return resolve.New(src).Solve(context.Background(), root)
}

func TestSimpleSatisfiableResolution(t *testing.T) {
	src := newMemorySource()
	src.add("a", fakePackage{version: "1.0.0", requires: []string{"b>=1.0.0"}})
	src.add("b", fakePackage{version: "1.0.0"}, fakePackage{version: "2.0.0"})

	sol, fail := solve(t, src, "a")
	if fail != nil {
		t.Fatalf("expected success, got failure: %v", fail.Error())
	}
	a := sol.Versions[resolve.Subject{Name: "a"}]
	b := sol.Versions[resolve.Subject{Name: "b"}]
	if a.String() != "1.0.0" {
		t.Errorf("a = %s, want 1.0.0", a)
	}
	if b.String() != "2.0.0" {
		t.Errorf("b = %s, want 2.0.0 (highest survivor)", b)
	}
}

func TestConflictingRequirementsFail(t *testing.T) {
	src := newMemorySource()
	src.add("a", fakePackage{version: "1.0.0", requires: []string{"c<2.0.0"}})
	src.add("b", fakePackage{version: "1.0.0", requires: []string{"c>=2.0.0"}})
	src.add("c", fakePackage{version: "1.0.0"}, fakePackage{version: "2.0.0"})

	_, fail := solve(t, src, "a", "b")
	if fail == nil {
		t.Fatal("expected a conflict, got a solution")
	}
}

func TestExtraPullsInAdditionalRequirement(t *testing.T) {
	src := newMemorySource()
	src.add("a",
		fakePackage{version: "1.0.0", provides: map[string]bool{"x": true}, requires: []string{"b; extra == \"x\""}},
	)
	src.add("b", fakePackage{version: "1.0.0"})

	sol, fail := solve(t, src, "a[x]")
	if fail != nil {
		t.Fatalf("expected success, got failure: %v", fail.Error())
	}
	if _, ok := sol.Versions[resolve.Subject{Name: "b"}]; !ok {
		t.Error("expected b to be pulled in by extra x")
	}
}

func TestMissingExtraIsSilentlyDropped(t *testing.T) {
	src := newMemorySource()
	src.add("a", fakePackage{version: "1.0.0"}) // doesn't provide extra "x"

	sol, fail := solve(t, src, "a[x]")
	if fail != nil {
		t.Fatalf("expected success (missing extra is not an error), got: %v", fail.Error())
	}
	if _, ok := sol.Versions[resolve.Subject{Name: "a"}]; !ok {
		t.Error("expected base package a to still resolve")
	}
}

func TestPrereleaseRequiresOptIn(t *testing.T) {
	src := newMemorySource()
	src.add("a", fakePackage{version: "0.1.0"}, fakePackage{version: "1.0.0a1"})

	_, fail := solve(t, src, "a>0.1.0")
	if fail == nil {
		t.Fatal("expected failure without pre-release opt-in")
	}

	sol, fail := resolve.New(src, resolve.WithPrereleasePolicy(resolve.PrereleaseAllowAll)).
		Solve(context.Background(), resolve.RootTerms([]string{"a>0.1.0"}, marker.Env{}))
	if fail != nil {
		t.Fatalf("expected success with global pre-release allow, got: %v", fail.Error())
	}
	a := sol.Versions[resolve.Subject{Name: "a"}]
	if a.String() != "1.0.0a1" {
		t.Errorf("a = %s, want 1.0.0a1", a)
	}
}

func TestYankedVersionIgnoredUnlessPinned(t *testing.T) {
	src := newMemorySource()
	src.add("a",
		fakePackage{version: "0.1.0"},
		fakePackage{version: "1.0.0", yanked: true, yankedReason: "security issue"},
	)

	sol, fail := solve(t, src, "a")
	if fail != nil {
		t.Fatalf("expected success, got: %v", fail.Error())
	}
	if v := sol.Versions[resolve.Subject{Name: "a"}]; v.String() != "0.1.0" {
		t.Errorf("a = %s, want 0.1.0 (yanked 1.0.0 skipped)", v)
	}

	sol, fail = solve(t, src, "a==1.0.0")
	if fail != nil {
		t.Fatalf("expected success pinning the yanked version, got: %v", fail.Error())
	}
	if v := sol.Versions[resolve.Subject{Name: "a"}]; v.String() != "1.0.0" {
		t.Errorf("a = %s, want 1.0.0 (explicitly pinned yanked version)", v)
	}
}
