package marker_test

import (
	"testing"

	"github.com/bilusteknoloji/pipgrub/internal/marker"
)

func eval(t *testing.T, expr string, env marker.Env) bool {
	t.Helper()
	e, err := marker.Parse(expr)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", expr, err)
	}
	return e.Eval(env)
}

func TestSimpleComparison(t *testing.T) {
	env := marker.Env{PythonVersion: "3.12", SysPlatform: "linux"}
	if !eval(t, `python_version < "3.13"`, env) {
		t.Error("expected true")
	}
	if eval(t, `python_version >= "3.13"`, env) {
		t.Error("expected false")
	}
}

func TestAndOr(t *testing.T) {
	env := marker.Env{PythonVersion: "3.9", SysPlatform: "win32"}
	if !eval(t, `python_version < "3.10" and sys_platform == "win32"`, env) {
		t.Error("expected and-clause true")
	}
	if !eval(t, `python_version >= "3.10" or sys_platform == "win32"`, env) {
		t.Error("expected or-clause true")
	}
}

func TestNotAndParens(t *testing.T) {
	env := marker.Env{SysPlatform: "darwin"}
	if !eval(t, `not sys_platform == "linux"`, env) {
		t.Error("expected not-clause true")
	}
	if !eval(t, `(sys_platform == "linux" or sys_platform == "darwin") and not sys_platform == "win32"`, env) {
		t.Error("expected parenthesized clause true")
	}
}

func TestExtraMarker(t *testing.T) {
	env := marker.Env{Extra: "socks"}
	if !eval(t, `extra == "socks"`, env) {
		t.Error("expected extra match")
	}
	if eval(t, `extra == "test"`, env) {
		t.Error("expected extra mismatch")
	}
}

func TestInOperator(t *testing.T) {
	env := marker.Env{SysPlatform: "linux"}
	if !eval(t, `sys_platform in "linux darwin"`, env) {
		t.Error("expected in-match true")
	}
	if !eval(t, `sys_platform not in "win32 cygwin"`, env) {
		t.Error("expected not-in true")
	}
}

func TestInvalidMarker(t *testing.T) {
	if _, err := marker.Parse(`bogus_variable == "1"`); err == nil {
		t.Error("expected error for unknown variable")
	}
	if _, err := marker.Parse(`python_version <`); err == nil {
		t.Error("expected error for truncated expression")
	}
}
