package distname

import (
	"fmt"
	"strings"
)

// WheelTag is one compatibility tag triple parsed out of a wheel filename.
// Each field may itself be a dot-separated compressed tag set, e.g.
// "py2.py3" or "cp39.cp310".
type WheelTag struct {
	Python   string
	ABI      string
	Platform string
}

// Wheel is the structured decomposition of a wheel filename:
// {name}-{version}(-{build})?-{python}-{abi}-{platform}.whl
type Wheel struct {
	Name      string
	Version   string
	BuildTag  string // empty when absent
	Tag       WheelTag
	Raw       string
}

// ParseWheel parses filename as a wheel distribution name.
func ParseWheel(filename string) (Wheel, error) {
	base, ok := strings.CutSuffix(filename, ".whl")
	if !ok {
		return Wheel{}, fmt.Errorf("not a wheel filename: %s", filename)
	}

	parts := strings.Split(base, "-")
	if len(parts) < 5 {
		return Wheel{}, fmt.Errorf("malformed wheel filename: %s", filename)
	}

	// The last three dash-delimited fields are always python-abi-platform;
	// everything before that is name-version(-build), with build present
	// only when there are six or more fields.
	tag := WheelTag{
		Python:   parts[len(parts)-3],
		ABI:      parts[len(parts)-2],
		Platform: parts[len(parts)-1],
	}

	head := parts[:len(parts)-3]
	var build string
	if len(head) >= 3 && startsWithDigit(head[len(head)-1]) {
		build = head[len(head)-1]
		head = head[:len(head)-1]
	}
	if len(head) < 2 {
		return Wheel{}, fmt.Errorf("malformed wheel filename: %s", filename)
	}

	return Wheel{
		Name:     head[0],
		Version:  strings.Join(head[1:], "-"),
		BuildTag: build,
		Tag:      tag,
		Raw:      filename,
	}, nil
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// ExpandTagSet expands a dot-separated compressed tag field into its
// component values, e.g. "py2.py3" -> ["py2", "py3"].
func ExpandTagSet(field string) []string {
	return strings.Split(field, ".")
}

// Expand returns the cartesian product of a wheel's compressed tag fields
// as individual PEP 425 (python, abi, platform) triples.
func (w Wheel) Expand() []WheelTag {
	pys := ExpandTagSet(w.Tag.Python)
	abis := ExpandTagSet(w.Tag.ABI)
	plats := ExpandTagSet(w.Tag.Platform)

	out := make([]WheelTag, 0, len(pys)*len(abis)*len(plats))
	for _, p := range pys {
		for _, a := range abis {
			for _, pl := range plats {
				out = append(out, WheelTag{Python: p, ABI: a, Platform: pl})
			}
		}
	}
	return out
}

// MatchesAny reports whether any of the wheel's expanded tags appears in
// compatTags, an ordered list of compatibility tags from most to least
// preferred. It returns the rank (lower is better) of the best match and
// true, or (-1, false) if none match.
func (w Wheel) MatchesAny(compatTags []WheelTag) (int, bool) {
	expanded := w.Expand()
	for rank, want := range compatTags {
		for _, have := range expanded {
			if have == want {
				return rank, true
			}
		}
	}
	return -1, false
}
