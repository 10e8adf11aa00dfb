// Package requirement models a PEP 508 dependency requirement: a target
// (named package, direct URL, local path, or VCS reference), requested
// extras, a version specifier, and an environment marker.
package requirement

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bilusteknoloji/pipgrub/internal/distname"
	"github.com/bilusteknoloji/pipgrub/internal/marker"
	"github.com/bilusteknoloji/pipgrub/internal/pep440"
)

// TargetKind discriminates the variants of RequirementTarget.
type TargetKind int

const (
	Named TargetKind = iota
	Archive
	LocalPath
	Vcs
)

// RequirementTarget is a tagged variant over what a requirement resolves
// to: a registry-hosted named package, a direct archive URL, a local
// filesystem path, or a version-control reference. Each variant carries
// only the fields meaningful to it.
type RequirementTarget struct {
	Kind TargetKind

	// Named
	Name string

	// Archive
	URL string

	// LocalPath
	Path string

	// Vcs
	VcsScheme string // git, hg, bzr, svn
	VcsURL    string
	VcsRef    string
}

func (t RequirementTarget) String() string {
	switch t.Kind {
	case Named:
		return t.Name
	case Archive:
		return t.URL
	case LocalPath:
		return t.Path
	case Vcs:
		s := fmt.Sprintf("%s+%s", t.VcsScheme, t.VcsURL)
		if t.VcsRef != "" {
			s += "@" + t.VcsRef
		}
		return s
	default:
		return "<invalid target>"
	}
}

// Origin locates where a requirement came from, for diagnostics.
type Origin struct {
	File      string
	StartLine int
	EndLine   int
}

// Requirement is a single parsed PEP 508 dependency declaration.
type Requirement struct {
	Target     RequirementTarget
	Extras     map[string]bool
	Specifiers pep440.Specifiers
	Marker     marker.Expr // nil means "always true"
	Origin     *Origin
	Raw        string
}

// CanonicalName returns the PEP 503 normalized name for a Named target,
// or "" for other target kinds.
func (r Requirement) CanonicalName() string {
	if r.Target.Kind != Named {
		return ""
	}
	return distname.Normalize(r.Target.Name)
}

// Matches reports whether marker-gated activation holds: either the
// requirement has no marker, or it evaluates true against env (with the
// given active extra, if any, injected as the "extra" marker variable).
func (r Requirement) Matches(env marker.Env) bool {
	if r.Marker == nil {
		return true
	}
	return r.Marker.Eval(env)
}

var (
	vcsSchemeRe  = regexp.MustCompile(`^(git|hg|bzr|svn)\+`)
	extrasRe     = regexp.MustCompile(`\[([^\]]*)\]`)
	nameSpecRe   = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(.*)$`)
	urlTargetRe  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)
)

// Parse parses a single PEP 508 requirement string, e.g.:
//
//	requests[socks]>=2.0,<3.0; python_version >= "3.8"
//	name @ https://example.org/name-1.0.tar.gz
//	git+https://example.org/repo.git@v1.0#egg=name
func Parse(src string) (Requirement, error) {
	raw := src
	text := strings.TrimSpace(src)

	var markerExpr marker.Expr
	if idx := splitMarker(text); idx >= 0 {
		markerText := strings.TrimSpace(text[idx+1:])
		text = strings.TrimSpace(text[:idx])
		if markerText != "" {
			m, err := marker.Parse(markerText)
			if err != nil {
				return Requirement{}, fmt.Errorf("parsing marker in %q: %w", raw, err)
			}
			markerExpr = m
		}
	}

	// "name @ url" direct-reference form.
	if at := strings.Index(text, "@"); at >= 0 && looksLikeDirectRef(text, at) {
		namePart := strings.TrimSpace(text[:at])
		urlPart := strings.TrimSpace(text[at+1:])
		name, extras, err := parseNameExtras(namePart)
		if err != nil {
			return Requirement{}, fmt.Errorf("parsing %q: %w", raw, err)
		}
		target, err := parseURLTarget(urlPart)
		if err != nil {
			return Requirement{}, fmt.Errorf("parsing %q: %w", raw, err)
		}
		_ = name // the PEP 508 name before '@' must match the resolved artifact; callers may cross-check.
		return Requirement{Target: target, Extras: extras, Marker: markerExpr, Raw: raw}, nil
	}

	if urlTargetRe.MatchString(text) || vcsSchemeRe.MatchString(text) {
		target, err := parseURLTarget(text)
		if err != nil {
			return Requirement{}, fmt.Errorf("parsing %q: %w", raw, err)
		}
		return Requirement{Target: target, Extras: map[string]bool{}, Marker: markerExpr, Raw: raw}, nil
	}

	namePart, extras, err := parseNameExtras(stripLeading(text))
	if err != nil {
		return Requirement{}, fmt.Errorf("parsing %q: %w", raw, err)
	}
	m := nameSpecRe.FindStringSubmatch(namePart)
	if m == nil {
		return Requirement{}, fmt.Errorf("malformed requirement %q", raw)
	}
	name := m[1]
	specExpr := strings.TrimSpace(m[2])
	specs, err := pep440.ParseSpecifiers(specExpr)
	if err != nil {
		return Requirement{}, fmt.Errorf("parsing %q: %w", raw, err)
	}

	return Requirement{
		Target:     RequirementTarget{Kind: Named, Name: name},
		Extras:     extras,
		Specifiers: specs,
		Marker:     markerExpr,
		Raw:        raw,
	}, nil
}

// splitMarker finds the top-level ';' separating the requirement body from
// its marker, respecting quoted strings so a ';' inside a literal does not
// split.
func splitMarker(s string) int {
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			inQuote = c
		case ';':
			return i
		}
	}
	return -1
}

func looksLikeDirectRef(text string, at int) bool {
	before := strings.TrimSpace(text[:at])
	return before != "" && !strings.ContainsAny(before, "<>=!~") &&
		!urlTargetRe.MatchString(text) && !vcsSchemeRe.MatchString(text)
}

func stripLeading(text string) string { return strings.TrimSpace(text) }

func parseNameExtras(s string) (string, map[string]bool, error) {
	extras := map[string]bool{}
	loc := extrasRe.FindStringSubmatchIndex(s)
	if loc == nil {
		return s, extras, nil
	}
	inner := s[loc[2]:loc[3]]
	for _, e := range strings.Split(inner, ",") {
		e = strings.TrimSpace(e)
		if e != "" {
			extras[distname.Normalize(e)] = true
		}
	}
	rest := s[:loc[0]] + s[loc[1]:]
	return strings.TrimSpace(rest), extras, nil
}

func parseURLTarget(s string) (RequirementTarget, error) {
	if m := vcsSchemeRe.FindStringSubmatch(s); m != nil {
		scheme := m[1]
		rest := s[len(m[0]):]
		ref := ""
		if idx := strings.Index(rest, "@"); idx >= 0 {
			ref = rest[idx+1:]
			rest = rest[:idx]
		}
		if idx := strings.Index(ref, "#"); idx >= 0 {
			ref = ref[:idx]
		}
		return RequirementTarget{Kind: Vcs, VcsScheme: scheme, VcsURL: rest, VcsRef: ref}, nil
	}
	if urlTargetRe.MatchString(s) {
		return RequirementTarget{Kind: Archive, URL: s}, nil
	}
	return RequirementTarget{Kind: LocalPath, Path: s}, nil
}
