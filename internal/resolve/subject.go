// Package resolve implements the conflict-driven dependency resolver: unit
// propagation and incompatibility learning over version sets, in the
// shape of PubGrub (Medeiros & Tatsubori's algorithm, as popularized by
// Dart's pub and Rust's cargo).
package resolve

// Subject identifies one resolvable node: either a package's base
// requirements, or one of its extras. Extras are modeled as independent
// nodes per spec, linked back to the base package by a synthetic
// incompatibility rather than folded into the base package's own term.
type Subject struct {
	Name  string // PEP 503 canonical name
	Extra string // "" for the base package node
}

func (s Subject) String() string {
	if s.Extra == "" {
		return s.Name
	}
	return s.Name + "[" + s.Extra + "]"
}

// Base returns the Subject for this package's base (non-extra) node.
func (s Subject) Base() Subject { return Subject{Name: s.Name} }

// IsExtra reports whether this subject names an extra rather than a
// package's base node.
func (s Subject) IsExtra() bool { return s.Extra != "" }

// rootSubject is the synthetic node representing the resolution's entry
// point: the root requirement set is modeled as "root depends on X, Y, Z"
// exactly like any other package's dependencies, keeping the propagation
// loop free of a special case for top-level requirements.
var rootSubject = Subject{Name: "$root"}
