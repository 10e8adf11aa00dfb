package publish

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// ProgressFunc is invoked as a file's content part is streamed into the
// multipart body, with the cumulative number of bytes written so far.
type ProgressFunc func(written int64)

// progressReader wraps a reader, reporting cumulative bytes read to fn.
type progressReader struct {
	r       io.Reader
	written int64
	fn      ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.written += int64(n)
		if p.fn != nil {
			p.fn(p.written)
		}
	}
	return n, err
}

// buildMultipartBody writes the classic upload form described in
// spec.md §6 to w: the literal `:action`/`protocol_version` fields, the
// metadata prologue, repeated classifier/requires-dist fields, any
// attestations as a JSON-array text field, and finally the file content
// itself under the part name `content`, preserving its original
// filename byte-for-byte. It returns the request's Content-Type header
// value (including the chosen boundary).
func buildMultipartBody(w io.Writer, g Group, md Metadata, progress ProgressFunc) (contentType string, err error) {
	mw := multipart.NewWriter(w)
	defer func() {
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
	}()

	fields := map[string]string{
		":action":          "file_upload",
		"protocol_version": "1",
		"metadata_version": md.MetadataVersion,
		"name":             md.Name,
		"version":          md.Version,
		"filetype":         string(md.Filetype),
		"pyversion":        md.PyVersion,
		"sha256_digest":    md.SHA256,
		"blake2_256_digest": md.Blake2_256,
	}
	if md.Author != "" {
		fields["author"] = md.Author
	}
	if md.RequiresPython != "" {
		fields["requires_python"] = md.RequiresPython
	}
	for key, val := range fields {
		if err := mw.WriteField(key, val); err != nil {
			return "", fmt.Errorf("writing field %s: %w", key, err)
		}
	}

	for _, c := range md.Classifiers {
		if err := mw.WriteField("classifiers", c); err != nil {
			return "", fmt.Errorf("writing classifier: %w", err)
		}
	}
	for _, r := range md.RequiresDist {
		if err := mw.WriteField("requires_dist", r); err != nil {
			return "", fmt.Errorf("writing requires_dist: %w", err)
		}
	}

	if len(g.Attestations) > 0 {
		blob, err := attestationBundle(g.Attestations)
		if err != nil {
			return "", err
		}
		if err := mw.WriteField("attestations", string(blob)); err != nil {
			return "", fmt.Errorf("writing attestations: %w", err)
		}
	}

	part, err := mw.CreateFormFile("content", filepath.Base(g.Path))
	if err != nil {
		return "", fmt.Errorf("creating content part: %w", err)
	}
	f, err := os.Open(g.Path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", g.Path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(part, &progressReader{r: f, fn: progress}); err != nil {
		return "", fmt.Errorf("streaming %s: %w", g.Path, err)
	}

	return mw.FormDataContentType(), nil
}

// attestationBundle reads and concatenates a group's PEP-740 attestation
// sidecars into the JSON array the `attestations` form field expects,
// one already-JSON-encoded attestation document per sidecar file.
func attestationBundle(paths []string) ([]byte, error) {
	docs := make([]json.RawMessage, 0, len(paths))
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading attestation %s: %w", p, err)
		}
		docs = append(docs, json.RawMessage(raw))
	}
	return json.Marshal(docs)
}
