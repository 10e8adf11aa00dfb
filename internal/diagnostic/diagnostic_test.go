package diagnostic_test

import (
	"strings"
	"testing"

	"github.com/bilusteknoloji/pipgrub/internal/diagnostic"
	"github.com/bilusteknoloji/pipgrub/internal/pep440"
	"github.com/bilusteknoloji/pipgrub/internal/reqfile"
	"github.com/bilusteknoloji/pipgrub/internal/resolve"
)

func TestDerivationNoMatchingVersion(t *testing.T) {
	a := resolve.Subject{Name: "a"}
	incompat := &resolve.Incompatibility{
		Cause: resolve.RootCause{},
		Terms: []resolve.Term{
			resolve.Pos(resolve.Subject{Name: "$root"}, pep440.Pinned(pep440.MustParse("0"))),
			resolve.Neg(a, pep440.AtMost(pep440.MustParse("1.0.0"))),
		},
	}
	out := diagnostic.Derivation(incompat)
	if !strings.Contains(out, "you require") {
		t.Errorf("expected a root-requirement line, got: %q", out)
	}
}

func TestHintsRendersEachKind(t *testing.T) {
	hints := []resolve.Hint{
		{Kind: resolve.HintPrerelease, Subject: resolve.Subject{Name: "a"}, Detail: "1.0.0a1"},
		{Kind: resolve.HintYanked, Subject: resolve.Subject{Name: "b"}, Detail: "2.0.0"},
		{Kind: resolve.HintMissingPackage, Subject: resolve.Subject{Name: "c"}},
	}
	out := diagnostic.Hints(hints)
	for _, want := range []string{"pre-release", "yanked", "not found"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected hint output to contain %q, got: %q", want, out)
		}
	}
}

func TestParseErrorRendersCaret(t *testing.T) {
	source := "requests>=2\nbroken !!line\n"
	err := &reqfile.ParseError{File: "requirements.txt", Line: 2, Col: 9, Msg: "unexpected token"}
	out := diagnostic.ParseError(err, source)
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines (message, source, caret), got %d: %q", len(lines), out)
	}
	if !strings.Contains(lines[1], "broken !!line") {
		t.Errorf("expected source line echoed, got: %q", lines[1])
	}
	if !strings.Contains(lines[2], "^") {
		t.Errorf("expected a caret line, got: %q", lines[2])
	}
}

func TestUploadErrorSpecialCases405(t *testing.T) {
	e := &diagnostic.UploadError{StatusCode: 405}
	if !strings.Contains(e.Message(), "simple-index URL") {
		t.Errorf("expected 405 special-case message, got: %q", e.Message())
	}
}

func TestUploadErrorPrefersCode(t *testing.T) {
	e := &diagnostic.UploadError{StatusCode: 400, Code: "invalid-filename", RawBody: "{...}"}
	if !strings.Contains(e.Message(), "invalid-filename") {
		t.Errorf("expected code in message, got: %q", e.Message())
	}
}
