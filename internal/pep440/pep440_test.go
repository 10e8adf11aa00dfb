package pep440_test

import (
	"testing"

	"github.com/bilusteknoloji/pipgrub/internal/pep440"
)

func mustSpec(t *testing.T, expr string) pep440.Specifiers {
	t.Helper()
	s, err := pep440.ParseSpecifiers(expr)
	if err != nil {
		t.Fatalf("ParseSpecifiers(%q) error: %v", expr, err)
	}
	return s
}

func TestVersionOrdering(t *testing.T) {
	cases := []struct{ lesser, greater string }{
		{"1.0.0", "1.0.1"},
		{"1.0.0a1", "1.0.0"},
		{"1.0.0.dev1", "1.0.0a1"},
		{"1.0.0", "1.0.0.post1"},
		{"1.0.0rc1", "1.0.0"},
		{"1!1.0", "2!0.1"},
	}
	for _, c := range cases {
		a, b := pep440.MustParse(c.lesser), pep440.MustParse(c.greater)
		if a.Compare(b) >= 0 {
			t.Errorf("expected %s < %s", c.lesser, c.greater)
		}
	}
}

func TestSpecifierBasic(t *testing.T) {
	s := mustSpec(t, ">=1.0,<2.0")
	if !s.Check(pep440.MustParse("1.5")) {
		t.Error("expected 1.5 to satisfy >=1.0,<2.0")
	}
	if s.Check(pep440.MustParse("2.0")) {
		t.Error("expected 2.0 to be excluded by >=1.0,<2.0")
	}
	if s.Check(pep440.MustParse("0.9")) {
		t.Error("expected 0.9 to be excluded by >=1.0,<2.0")
	}
}

func TestSpecifierNotEqual(t *testing.T) {
	s := mustSpec(t, "!=1.5")
	if s.Check(pep440.MustParse("1.5")) {
		t.Error("1.5 should be excluded")
	}
	if !s.Check(pep440.MustParse("1.6")) {
		t.Error("1.6 should be admitted")
	}
}

func TestSpecifierCompatibleRelease(t *testing.T) {
	s := mustSpec(t, "~=2.2")
	for _, v := range []string{"2.2", "2.3", "2.9"} {
		if !s.Check(pep440.MustParse(v)) {
			t.Errorf("~=2.2 should admit %s", v)
		}
	}
	if s.Check(pep440.MustParse("3.0")) {
		t.Error("~=2.2 should not admit 3.0")
	}
	if s.Check(pep440.MustParse("2.1")) {
		t.Error("~=2.2 should not admit 2.1")
	}

	s2 := mustSpec(t, "~=2.2.3")
	if !s2.Check(pep440.MustParse("2.2.9")) {
		t.Error("~=2.2.3 should admit 2.2.9")
	}
	if s2.Check(pep440.MustParse("2.3.0")) {
		t.Error("~=2.2.3 should not admit 2.3.0")
	}
}

func TestSpecifierSetAdmitsPrereleases(t *testing.T) {
	s := mustSpec(t, ">0.1.0")
	if !s.Check(pep440.MustParse("1.0.0a1")) {
		t.Error("set algebra itself does not apply prerelease policy; that is the resolver's job")
	}
}

func TestEqualityIgnoresLocalForOrderingButNotEquality(t *testing.T) {
	a := pep440.MustParse("1.0+local1")
	b := pep440.MustParse("1.0+local2")
	if a.Equal(b) {
		t.Error("versions with differing local segments must not be Equal")
	}
	if a.ComparePublic(b) != 0 {
		t.Error("ordering comparisons must ignore local segments")
	}
}

func TestSetAlgebraLaws(t *testing.T) {
	a := mustSpec(t, ">=1.0,<2.0").Set()
	comp := pep440.Complement(a)
	if !pep440.Intersect(a, comp).IsEmpty() {
		t.Error("intersect(set, complement(set)) must be empty")
	}

	b := mustSpec(t, ">=1.5,<3.0").Set()
	inter := pep440.Intersect(a, b)
	for _, vs := range []string{"0.5", "1.0", "1.5", "1.9", "2.0", "3.0"} {
		v := pep440.MustParse(vs)
		got := inter.Contains(v)
		want := a.Contains(v) && b.Contains(v)
		if got != want {
			t.Errorf("contains(intersect(a,b), %s) = %v, want %v", vs, got, want)
		}
	}
}

func TestSingleton(t *testing.T) {
	s := mustSpec(t, "==1.0.0").Set()
	v, ok := s.Singleton()
	if !ok || v.String() != "1.0.0" {
		t.Errorf("expected singleton 1.0.0, got %v ok=%v", v, ok)
	}

	multi := mustSpec(t, ">=1.0").Set()
	if _, ok := multi.Singleton(); ok {
		t.Error("expected non-singleton for an unbounded range")
	}
}

func TestPrefixMatch(t *testing.T) {
	s := mustSpec(t, "==1.2.*")
	if !s.Check(pep440.MustParse("1.2.0")) || !s.Check(pep440.MustParse("1.2.99")) {
		t.Error("==1.2.* should admit any 1.2.x")
	}
	if s.Check(pep440.MustParse("1.3.0")) {
		t.Error("==1.2.* should not admit 1.3.0")
	}
}

func TestArbitraryEquality(t *testing.T) {
	s := mustSpec(t, "===1.0.0")
	if !s.Check(pep440.MustParse("1.0.0")) {
		t.Error("=== should match the exact literal operand")
	}
	if s.Check(pep440.MustParse("1.0.0+local")) {
		t.Error("=== should not match a version differing only by local segment")
	}
}
