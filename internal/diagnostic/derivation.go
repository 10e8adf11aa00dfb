// Package diagnostic renders plain-text explanations for the three kinds
// of user-facing failure the core produces: resolver derivation trees,
// requirements-file parse errors, and publisher upload errors. ANSI color
// is never applied here; a caller wanting color wraps the returned string.
package diagnostic

import (
	"fmt"
	"strings"

	"github.com/bilusteknoloji/pipgrub/internal/resolve"
)

// Derivation renders the recursive explanation of why resolution failed,
// walking incompat's Cause chain per spec.md §4.4.7. Each line states one
// step of the derivation; later lines may reference earlier ones by
// number, the way dependency solvers conventionally report conflicts.
func Derivation(incompat *resolve.Incompatibility) string {
	r := &renderer{lines: map[string]int{}}
	r.explain(incompat)
	var b strings.Builder
	for i, line := range r.ordered {
		fmt.Fprintf(&b, "%d. %s\n", i+1, line)
	}
	return strings.TrimRight(b.String(), "\n")
}

type renderer struct {
	lines   map[string]int // incompatibility description -> line number, for reuse
	ordered []string
}

// explain returns the 1-based line number describing incompat, computing
// and recording it first if this is the first time incompat is seen.
func (r *renderer) explain(incompat *resolve.Incompatibility) int {
	desc := r.describe(incompat)
	if n, ok := r.lines[desc]; ok {
		return n
	}
	r.ordered = append(r.ordered, desc)
	n := len(r.ordered)
	r.lines[desc] = n
	return n
}

func (r *renderer) describe(incompat *resolve.Incompatibility) string {
	switch cause := incompat.Cause.(type) {
	case resolve.RootCause:
		return rootDescription(incompat)
	case resolve.NoVersionsCause:
		return fmt.Sprintf("no version of %s satisfies the required range", cause.Subject)
	case resolve.InterpreterCause:
		return fmt.Sprintf("the current interpreter does not satisfy %s's requires-python (%s)", cause.Subject, cause.Version)
	case resolve.ExtraLinkCause:
		return dependencyDescription(incompat, "shares its version with")
	case resolve.DependencyCause:
		return dependencyDescription(incompat, "depends on")
	case resolve.ConflictCause:
		leftLine := r.explain(cause.Left)
		rightLine := r.explain(cause.Right)
		return fmt.Sprintf("because of (%d) and (%d), %s", leftLine, rightLine, incompatibilitySummary(incompat))
	default:
		return incompat.String()
	}
}

func rootDescription(incompat *resolve.Incompatibility) string {
	if len(incompat.Terms) == 2 {
		return fmt.Sprintf("you require %s", incompat.Terms[1].Negate().String())
	}
	return incompat.String()
}

func dependencyDescription(incompat *resolve.Incompatibility, verb string) string {
	if len(incompat.Terms) != 2 {
		return incompat.String()
	}
	depender, dependency := incompat.Terms[0], incompat.Terms[1]
	return fmt.Sprintf("%s %s %s", depender.Subject, verb, dependency.Negate().String())
}

func incompatibilitySummary(incompat *resolve.Incompatibility) string {
	if incompat.Cause == nil && len(incompat.Terms) == 0 {
		return "there is no solution"
	}
	parts := make([]string, len(incompat.Terms))
	for i, t := range incompat.Terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " and ") + " cannot both hold"
}
