// Package publish implements the publisher: grouping local distribution
// files with their PEP-740 attestation sidecars, negotiating uploads
// against a registry over either the classic multipart-POST protocol or
// the two-phase pre-signed-URL protocol, and classifying non-2xx
// responses into diagnosable errors.
package publish

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bilusteknoloji/pipgrub/internal/distname"
)

// Filetype is the `filetype` form field's value, per spec.md §6.
type Filetype string

const (
	FiletypeSdist Filetype = "sdist"
	FiletypeWheel Filetype = "bdist_wheel"
)

// Dist is a parsed distribution filename, either a wheel or a source
// distribution, reduced to what the upload protocol needs.
type Dist struct {
	Name     string
	Version  string
	Filetype Filetype
	PyVersion string // "source" for sdists; the joined Python tags for wheels
}

// Group is one distribution file plus whatever PEP-740 attestation
// sidecars name it.
type Group struct {
	Path         string
	Dist         Dist
	Attestations []string // paths to <dist>.<type>.attestation files, in input order
}

// GroupFiles partitions paths into distribution groups with their
// attached attestation sidecars, per spec.md §4.5: an attestation
// `<dist>.<type>.attestation` attaches to the group whose distribution
// file is named `<dist>`; orphan attestations are ignored; distribution
// filenames that don't parse are skipped with a warning rather than
// failing the whole batch.
func GroupFiles(paths []string) (groups []Group, warnings []string) {
	byDist := map[string]int{} // distribution filename -> index into groups
	var attestations []string  // paths that look like attestations, resolved in a second pass

	for _, p := range paths {
		base := filepath.Base(p)
		if strings.HasSuffix(base, ".attestation") {
			attestations = append(attestations, p)
			continue
		}

		dist, ok := parseDist(base)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s: not a recognizable distribution filename, skipped", base))
			continue
		}

		byDist[base] = len(groups)
		groups = append(groups, Group{Path: p, Dist: dist})
	}

	for _, p := range attestations {
		distName, ok := attestationDist(filepath.Base(p))
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s: unrecognized attestation filename, ignored", filepath.Base(p)))
			continue
		}
		idx, ok := byDist[distName]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s: orphan attestation, ignored", filepath.Base(p)))
			continue
		}
		groups[idx].Attestations = append(groups[idx].Attestations, p)
	}

	return groups, warnings
}

// attestationDist splits `<dist>.<type>.attestation` into `<dist>`.
func attestationDist(base string) (string, bool) {
	rest, ok := strings.CutSuffix(base, ".attestation")
	if !ok {
		return "", false
	}
	idx := strings.LastIndex(rest, ".")
	if idx <= 0 {
		return "", false
	}
	return rest[:idx], true
}

func parseDist(base string) (Dist, bool) {
	if w, err := distname.ParseWheel(base); err == nil {
		return Dist{
			Name:      w.Name,
			Version:   w.Version,
			Filetype:  FiletypeWheel,
			PyVersion: wheelPyVersion(w),
		}, true
	}
	if s, ok := distname.ParseSdist(base); ok {
		if !distname.IsUploadable(s.Ext) {
			return Dist{}, false
		}
		return Dist{Name: s.Name, Version: s.Version, Filetype: FiletypeSdist, PyVersion: "source"}, true
	}
	return Dist{}, false
}

// wheelPyVersion returns a wheel's Python tag field for the `pyversion`
// form field, e.g. "py2.py3" or "cp311" — already dot-joined by the
// wheel filename grammar itself.
func wheelPyVersion(w distname.Wheel) string {
	return w.Tag.Python
}
