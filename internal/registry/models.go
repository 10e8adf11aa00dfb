package registry

// FileRecord is one distribution file listed by a package's simple index,
// independent of whether the index document was HTML (PEP 503/PEP 700) or
// JSON (PEP 691).
type FileRecord struct {
	Filename        string
	URL             string
	SHA256          string
	RequiresPython  string
	Yanked          bool
	YankedReason    string
	CoreMetadataURL string // non-empty when PEP 658/714 metadata is advertised
}

// Listing is the full set of files a simple index has for one canonical
// package name, in the order the index returned them.
type Listing struct {
	Name  string
	Files []FileRecord
}

// PackageMetadata is the parsed core metadata (PEP 566) for one distribution
// file: the subset the resolver needs to expand dependencies.
type PackageMetadata struct {
	Name           string
	Version        string
	RequiresDist   []string
	RequiresPython string
	Provides       map[string]bool // extra names this distribution declares
}

// jsonIndex is the PEP 691 JSON simple-index document shape.
type jsonIndex struct {
	Name  string          `json:"name"`
	Files []jsonIndexFile `json:"files"`
}

type jsonIndexFile struct {
	Filename       string            `json:"filename"`
	URL            string            `json:"url"`
	Hashes         map[string]string `json:"hashes"`
	RequiresPython string            `json:"requires-python"`
	Yanked         any               `json:"yanked"` // bool or string reason
	CoreMetadata   any               `json:"core-metadata"`
}
