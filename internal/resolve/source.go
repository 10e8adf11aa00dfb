package resolve

import (
	"context"
	"fmt"
	"sort"

	"github.com/bilusteknoloji/pipgrub/internal/distname"
	"github.com/bilusteknoloji/pipgrub/internal/marker"
	"github.com/bilusteknoloji/pipgrub/internal/pep440"
	"github.com/bilusteknoloji/pipgrub/internal/registry"
	"github.com/bilusteknoloji/pipgrub/internal/requirement"
)

// Candidate is one selectable version of a package: the version itself,
// the chosen distribution file for it (best wheel, or the sdist when no
// wheel matches the interpreter profile), and whether that version is
// yanked.
type Candidate struct {
	Version      pep440.Version
	File         registry.FileRecord
	Yanked       bool
	YankedReason string
}

// Source is the resolver's view of where package data comes from:
// available versions (ordered highest to lowest) and a version's
// dependencies, once chosen. Named and shaped after the GetVersions /
// GetDependencies contract other PubGrub-family implementations expose.
type Source interface {
	Versions(ctx context.Context, subject Subject) ([]Candidate, error)
	Dependencies(ctx context.Context, subject Subject, version pep440.Version) ([]Term, error)
}

// RegistrySource adapts a registry.Client into a Source, scoring each
// package's files against the interpreter profile's compatibility tags
// and picking the best file per version.
type RegistrySource struct {
	client  registry.Client
	profile requirement.InterpreterProfile
}

// NewRegistrySource builds a Source backed by client, scoring wheel
// compatibility against profile.
func NewRegistrySource(client registry.Client, profile requirement.InterpreterProfile) *RegistrySource {
	return &RegistrySource{client: client, profile: profile}
}

var _ Source = (*RegistrySource)(nil)

// Versions lists every version of subject's base package, each paired
// with its best-matching distribution file, sorted from highest to
// lowest version. Extra subjects share their base package's version
// list — an extra never restricts which versions exist, only which
// additional dependencies apply once a version is chosen.
func (r *RegistrySource) Versions(ctx context.Context, subject Subject) ([]Candidate, error) {
	listing, err := r.client.ListFiles(ctx, subject.Name)
	if err != nil {
		return nil, fmt.Errorf("listing files for %s: %w", subject.Name, err)
	}

	byVersion := map[string]*Candidate{}
	var order []string
	for _, f := range listing.Files {
		if !r.requiresPythonSatisfied(f.RequiresPython) {
			continue
		}
		version, file, rank, ok := r.scoreFile(f)
		if !ok {
			continue
		}
		key := version.String()
		existing, seen := byVersion[key]
		if seen {
			_, _, existingRank, _ := r.scoreFile(existing.File)
			if rank >= existingRank {
				continue
			}
		} else {
			order = append(order, key)
		}
		byVersion[key] = &Candidate{Version: version, File: file, Yanked: f.Yanked, YankedReason: f.YankedReason}
	}

	candidates := make([]Candidate, 0, len(order))
	for _, key := range order {
		candidates = append(candidates, *byVersion[key])
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Version.ComparePublic(candidates[j].Version) > 0
	})
	return candidates, nil
}

// scoreFile decides whether f is usable (a parseable wheel compatible
// with the profile's tags, or any sdist as a fallback) and returns a rank
// where lower is better, matching distname.Wheel.MatchesAny.
func (r *RegistrySource) scoreFile(f registry.FileRecord) (pep440.Version, registry.FileRecord, int, bool) {
	if wheel, err := distname.ParseWheel(f.Filename); err == nil {
		version, err := pep440.Parse(wheel.Version)
		if err != nil {
			return pep440.Version{}, registry.FileRecord{}, 0, false
		}
		rank, ok := wheel.MatchesAny(r.profile.CompatTags)
		if !ok {
			return pep440.Version{}, registry.FileRecord{}, 0, false
		}
		return version, f, rank, true
	}
	if sdist, ok := distname.ParseSdist(f.Filename); ok {
		version, err := pep440.Parse(sdist.Version)
		if err != nil {
			return pep440.Version{}, registry.FileRecord{}, 0, false
		}
		// sdists always rank behind every wheel match.
		return version, f, 1 << 30, true
	}
	return pep440.Version{}, registry.FileRecord{}, 0, false
}

func (r *RegistrySource) requiresPythonSatisfied(spec string) bool {
	if spec == "" {
		return true
	}
	specs, err := pep440.ParseSpecifiers(spec)
	if err != nil {
		return true // an unparsable requires-python is not this layer's job to reject
	}
	v, err := pep440.Parse(r.profile.PythonVersion)
	if err != nil {
		return true
	}
	return specs.Check(v)
}

// Dependencies fetches metadata for the best file of (subject, version)
// and returns it as terms: one per Requires-Dist entry whose marker
// matches the interpreter profile (evaluated with subject's extra active),
// plus a synthetic link term when subject is an extra.
func (r *RegistrySource) Dependencies(ctx context.Context, subject Subject, version pep440.Version) ([]Term, error) {
	candidates, err := r.Versions(ctx, subject.Base())
	if err != nil {
		return nil, err
	}
	var file registry.FileRecord
	found := false
	for _, c := range candidates {
		if c.Version.Equal(version) {
			file, found = c.File, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("no distribution file found for %s==%s", subject.Name, version)
	}

	md, err := r.client.Metadata(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("fetching metadata for %s==%s: %w", subject.Name, version, err)
	}

	env := r.profile.MarkerEnv(subject.Extra)
	terms := requirementTerms(md.RequiresDist, env)

	if subject.IsExtra() {
		if !md.Provides[subject.Extra] {
			return nil, nil // missing extras never cause failure; just no extra deps
		}
		terms = append(terms, Neg(subject.Base(), pep440.Pinned(version)))
	}

	return terms, nil
}

// requirementTerms parses each raw PEP 508 requirement string, drops the
// ones whose marker doesn't match env, and emits one dependency term per
// survivor (plus one per requested extra), in the "dependency must lie in
// this requirement's admitted set" shape every Incompatibility expects.
func requirementTerms(raws []string, env marker.Env) []Term {
	var terms []Term
	for _, raw := range raws {
		req, err := requirement.Parse(raw)
		if err != nil {
			continue // malformed requirement strings are skipped, not fatal
		}
		if !req.Matches(env) {
			continue
		}
		if req.Target.Kind != requirement.Named {
			continue // unconstrained edge, see requirementSet
		}
		depSubject := Subject{Name: req.CanonicalName()}
		set := requirementSet(req)
		for extra := range req.Extras {
			terms = append(terms, Neg(Subject{Name: depSubject.Name, Extra: extra}, set))
		}
		terms = append(terms, Neg(depSubject, set))
	}
	return terms
}

// RootTerms converts the user's root requirement list into the term set
// Solve expects, evaluating markers against env (active extra "", since
// the root project itself is never anyone's optional extra).
func RootTerms(raws []string, env marker.Env) []Term {
	return requirementTerms(raws, env)
}

// requirementSet resolves a requirement's admitted version set. A direct
// URL/VCS/local-path target has no version algebra; it's treated as an
// unconstrained (always-satisfied) dependency edge, since pinning its
// content is outside this resolver's scope.
func requirementSet(req requirement.Requirement) pep440.Set {
	if req.Target.Kind != requirement.Named {
		return pep440.Universal()
	}
	return req.Specifiers.Set()
}
