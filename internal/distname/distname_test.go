package distname_test

import (
	"testing"

	"github.com/bilusteknoloji/pipgrub/internal/distname"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Friendly-Bard":  "friendly-bard",
		"Friendly.Bard":  "friendly-bard",
		"FRIENDLY_BARD":  "friendly-bard",
		"friendly--bard": "friendly-bard",
	}
	for in, want := range cases {
		if got := distname.Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseWheelNoBuild(t *testing.T) {
	w, err := distname.ParseWheel("flask-3.0.0-py3-none-any.whl")
	if err != nil {
		t.Fatalf("ParseWheel error: %v", err)
	}
	if w.Name != "flask" || w.Version != "3.0.0" || w.BuildTag != "" {
		t.Fatalf("unexpected parse: %+v", w)
	}
	if w.Tag.Python != "py3" || w.Tag.ABI != "none" || w.Tag.Platform != "any" {
		t.Fatalf("unexpected tag: %+v", w.Tag)
	}
}

func TestParseWheelWithBuild(t *testing.T) {
	w, err := distname.ParseWheel("numpy-1.26.0-1-cp311-cp311-manylinux_2_17_x86_64.whl")
	if err != nil {
		t.Fatalf("ParseWheel error: %v", err)
	}
	if w.BuildTag != "1" {
		t.Fatalf("expected build tag 1, got %q", w.BuildTag)
	}
	if w.Name != "numpy" || w.Version != "1.26.0" {
		t.Fatalf("unexpected parse: %+v", w)
	}
}

func TestExpandCompressedTags(t *testing.T) {
	w, err := distname.ParseWheel("six-1.16.0-py2.py3-none-any.whl")
	if err != nil {
		t.Fatalf("ParseWheel error: %v", err)
	}
	expanded := w.Expand()
	if len(expanded) != 2 {
		t.Fatalf("expected 2 expanded tags, got %d: %+v", len(expanded), expanded)
	}
}

func TestMatchesAnyRanksByPosition(t *testing.T) {
	w, err := distname.ParseWheel("six-1.16.0-py2.py3-none-any.whl")
	if err != nil {
		t.Fatalf("ParseWheel error: %v", err)
	}
	compat := []distname.WheelTag{
		{Python: "cp311", ABI: "cp311", Platform: "manylinux_2_17_x86_64"},
		{Python: "py3", ABI: "none", Platform: "any"},
	}
	rank, ok := w.MatchesAny(compat)
	if !ok || rank != 1 {
		t.Fatalf("expected rank 1, got rank=%d ok=%v", rank, ok)
	}
}

func TestMatchesAnyNoMatch(t *testing.T) {
	w, err := distname.ParseWheel("flask-3.0.0-py3-none-any.whl")
	if err != nil {
		t.Fatalf("ParseWheel error: %v", err)
	}
	_, ok := w.MatchesAny([]distname.WheelTag{{Python: "cp39", ABI: "cp39", Platform: "win_amd64"}})
	if ok {
		t.Fatal("expected no match")
	}
}

func TestParseSdist(t *testing.T) {
	s, ok := distname.ParseSdist("flask-3.0.0.tar.gz")
	if !ok {
		t.Fatal("expected successful parse")
	}
	if s.Name != "flask" || s.Version != "3.0.0" || s.Ext != "tar.gz" {
		t.Fatalf("unexpected parse: %+v", s)
	}
}

func TestIsUploadable(t *testing.T) {
	if !distname.IsUploadable("tar.gz") {
		t.Error("tar.gz should be uploadable")
	}
	if distname.IsUploadable("zip") {
		t.Error("zip should not be uploadable")
	}
}
