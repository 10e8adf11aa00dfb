package distname

import "strings"

// sdistExtensions lists every archive extension PEP 625's predecessors
// allowed for source distributions on disk. Only tar.gz may be produced
// by a publisher (PEP 625); the others are recognized for filtering
// files already present in a registry.
var sdistExtensions = []string{
	"tar.gz", "zip", "tar.bz2", "tar.lz", "tar.lzma", "tar.xz", "tar.zst",
	"tar", "tbz", "tgz", "tlz", "txz",
}

// Sdist is the structured decomposition of a source distribution
// filename: {name}-{version}.{ext}
type Sdist struct {
	Name    string
	Version string
	Ext     string
	Raw     string
}

// ParseSdist parses filename as a source distribution name.
func ParseSdist(filename string) (Sdist, bool) {
	for _, ext := range sdistExtensions {
		suffix := "." + ext
		base, ok := strings.CutSuffix(filename, suffix)
		if !ok {
			continue
		}
		idx := strings.LastIndex(base, "-")
		if idx <= 0 {
			continue
		}
		return Sdist{
			Name:    base[:idx],
			Version: base[idx+1:],
			Ext:     ext,
			Raw:     filename,
		}, true
	}
	return Sdist{}, false
}

// IsUploadable reports whether ext is the sole archive format PEP 625
// permits for new uploads.
func IsUploadable(ext string) bool { return ext == "tar.gz" }
