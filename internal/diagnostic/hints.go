package diagnostic

import (
	"fmt"
	"strings"

	"github.com/bilusteknoloji/pipgrub/internal/resolve"
)

// Hints renders the hint lines spec.md §4.4.7 appends after a derivation
// tree: pre-release, yanked, and missing-package suggestions.
func Hints(hints []resolve.Hint) string {
	if len(hints) == 0 {
		return ""
	}
	var b strings.Builder
	for _, h := range hints {
		fmt.Fprintln(&b, hintLine(h))
	}
	return strings.TrimRight(b.String(), "\n")
}

func hintLine(h resolve.Hint) string {
	switch h.Kind {
	case resolve.HintPrerelease:
		return fmt.Sprintf("hint: %s %s is a pre-release and was not considered; allow pre-releases to use it", h.Subject, h.Detail)
	case resolve.HintYanked:
		return fmt.Sprintf("hint: %s %s has been yanked by its publisher; pin it exactly (==%s) to use it anyway", h.Subject, h.Detail, h.Detail)
	case resolve.HintMissingPackage:
		return fmt.Sprintf("hint: package %s was not found in the registry", h.Subject)
	default:
		return fmt.Sprintf("hint: %s (%s)", h.Subject, h.Detail)
	}
}

// Failure renders a complete resolver failure report: the derivation tree
// followed by any hints, in the shape a CLI would print directly.
func Failure(f *resolve.Failure) string {
	var b strings.Builder
	if f.Incompatibility != nil {
		b.WriteString(Derivation(f.Incompatibility))
	} else {
		b.WriteString(f.Message)
	}
	if hints := Hints(f.Hints); hints != "" {
		b.WriteString("\n\n")
		b.WriteString(hints)
	}
	return b.String()
}
