package resolve

import "github.com/bilusteknoloji/pipgrub/internal/pep440"

// PrereleasePolicy controls when a pre-release version is an eligible
// candidate.
type PrereleasePolicy int

const (
	// PrereleaseDisallow admits a pre-release only when the per-package
	// opt-in computed by prereleaseOptIn holds.
	PrereleaseDisallow PrereleasePolicy = iota
	// PrereleaseAllowAll admits pre-releases for every package,
	// unconditionally.
	PrereleaseAllowAll
)

// YankPolicy has exactly one behavior today (PEP 592's pin-to-exact-version
// rule); it exists as a named type so a future policy variant doesn't need
// to change every call site.
type YankPolicy int

const YankPinnedOnly YankPolicy = iota

// prereleaseOptIn implements the §4.4.4 per-package opt-in test:
// opt_in = (any atom of any user specifier on the package references a
// pre-release) OR (global allow) OR (only pre-releases exist among the
// candidates).
func prereleaseOptIn(policy PrereleasePolicy, admitted pep440.Set, allVersions []pep440.Version) bool {
	if policy == PrereleaseAllowAll {
		return true
	}
	if admittedSpecifiesPrerelease(admitted) {
		return true
	}
	return onlyPrereleasesExist(allVersions)
}

// admittedSpecifiesPrerelease approximates "some user specifier atom names
// a pre-release" from the admitted set alone: the one shape where set
// membership proves an atom named that exact version is a pin (an
// unbounded or ranged atom referencing a pre-release as an open endpoint,
// e.g. ">=1.0.0a1", can't be distinguished from an ordinary range after
// compilation to a Set without keeping the original atom text).
func admittedSpecifiesPrerelease(admitted pep440.Set) bool {
	pinned, ok := admitted.Singleton()
	if !ok {
		return false
	}
	return pinned.IsPreRelease()
}

// onlyPrereleasesExist reports whether every known version of the package
// is a pre-release (so disallowing them entirely would leave nothing to
// choose from).
func onlyPrereleasesExist(versions []pep440.Version) bool {
	if len(versions) == 0 {
		return false
	}
	for _, v := range versions {
		if v.IsStable() {
			return false
		}
	}
	return true
}

// yankAdmitted implements §4.4.6: a yanked version survives filtering only
// when the admitted set is a singleton pinning exactly that version.
func yankAdmitted(admitted pep440.Set, version pep440.Version) bool {
	pinned, ok := admitted.Singleton()
	return ok && pinned.Equal(version)
}
