package publish

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// Metadata is the subset of a distribution's PEP 566 core metadata the
// upload protocols need as form fields, per spec.md §6: name, version,
// filetype, pyversion, hashes, and the optional repeated fields.
type Metadata struct {
	Name           string
	Version        string
	Filetype       Filetype
	PyVersion      string
	SHA256         string
	Blake2_256     string
	MetadataVersion string
	Author         string
	Classifiers    []string
	RequiresDist   []string
	RequiresPython string
}

// DescribeGroup builds the upload Metadata for g, hashing its
// distribution file and layering any caller-supplied PEP 566 fields
// (classifiers, requires-dist, etc., parsed from the distribution's own
// metadata) on top of what grouping already determined from the
// filename.
func DescribeGroup(g Group, extra Metadata) (Metadata, error) {
	sha256Hex, blake2Hex, err := hashFile(g.Path)
	if err != nil {
		return Metadata{}, fmt.Errorf("hashing %s: %w", g.Path, err)
	}

	md := extra
	md.Name = g.Dist.Name
	md.Version = g.Dist.Version
	md.Filetype = g.Dist.Filetype
	md.PyVersion = g.Dist.PyVersion
	md.SHA256 = sha256Hex
	md.Blake2_256 = blake2Hex
	if md.MetadataVersion == "" {
		md.MetadataVersion = "2.3"
	}
	return md, nil
}

// hashFile computes the sha256 and blake2b-256 digests of the file at
// path in a single pass, matching the `sha256_digest`/`blake2_256_digest`
// form fields spec.md §6 requires on every upload.
func hashFile(path string) (sha256Hex, blake2Hex string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer func() { _ = f.Close() }()

	sh := sha256.New()
	bh, err := blake2b.New256(nil)
	if err != nil {
		return "", "", err
	}

	var writers []io.Writer
	for _, h := range []hash.Hash{sh, bh} {
		writers = append(writers, h)
	}
	if _, err := io.Copy(io.MultiWriter(writers...), f); err != nil {
		return "", "", err
	}

	return hex.EncodeToString(sh.Sum(nil)), hex.EncodeToString(bh.Sum(nil)), nil
}
