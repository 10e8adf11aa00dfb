package registry

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strings"
)

// parseCoreMetadata reads an RFC 5322-style PEP 566 metadata document
// (wheel METADATA / sdist PKG-INFO share the same header format) and
// extracts the fields the resolver needs. Repeated headers, like
// Requires-Dist, collapse naturally into textproto.MIMEHeader's
// map[string][]string.
func parseCoreMetadata(r io.Reader) (PackageMetadata, error) {
	tr := textproto.NewReader(bufio.NewReader(r))
	h, err := tr.ReadMIMEHeader()
	name := h.Get("Name")
	version := h.Get("Version")
	if name == "" || version == "" {
		if err != nil {
			return PackageMetadata{}, fmt.Errorf("reading metadata headers: %w", err)
		}
		return PackageMetadata{}, fmt.Errorf("metadata missing Name/Version (name=%q version=%q)", name, version)
	}

	provides := map[string]bool{}
	for _, extra := range h.Values("Provides-Extra") {
		provides[strings.TrimSpace(extra)] = true
	}

	return PackageMetadata{
		Name:           name,
		Version:        version,
		RequiresDist:   h.Values("Requires-Dist"),
		RequiresPython: h.Get("Requires-Python"),
		Provides:       provides,
	}, nil
}

// extractWheelMetadata locates and parses the `*.dist-info/METADATA`
// member of a wheel's zip central directory, read through r (which may be
// a full in-memory buffer or an HTTP-range-backed io.ReaderAt).
func extractWheelMetadata(r io.ReaderAt, size int64) (PackageMetadata, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return PackageMetadata{}, fmt.Errorf("opening wheel as zip: %w", err)
	}
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".dist-info/METADATA") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return PackageMetadata{}, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		defer func() { _ = rc.Close() }()
		return parseCoreMetadata(rc)
	}
	return PackageMetadata{}, fmt.Errorf("no *.dist-info/METADATA member found in wheel")
}

// extractSdistMetadata locates and parses the top-level PKG-INFO file
// inside a gzip-compressed tarball.
func extractSdistMetadata(r io.Reader) (PackageMetadata, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return PackageMetadata{}, fmt.Errorf("opening sdist as gzip: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return PackageMetadata{}, fmt.Errorf("reading sdist tar: %w", err)
		}
		if strings.HasSuffix(hdr.Name, "/PKG-INFO") || hdr.Name == "PKG-INFO" {
			return parseCoreMetadata(tr)
		}
	}
	return PackageMetadata{}, fmt.Errorf("no PKG-INFO member found in sdist")
}

// fetchWheelMetadata retrieves the METADATA file for a wheel, using an
// HTTP-range-backed zip reader when the server supports byte ranges, and
// falling back to a full download otherwise.
func (s *Service) fetchWheelMetadata(ctx context.Context, url string) (PackageMetadata, error) {
	if size, ok := supportsRange(ctx, s.httpClient, url); ok {
		ra := &httpRangeReaderAt{ctx: ctx, client: s.httpClient, url: url, size: size}
		if md, err := extractWheelMetadata(ra, size); err == nil {
			return md, nil
		}
		// Fall through to a full download if range-based parsing failed
		// (e.g. a proxy that lies about Accept-Ranges).
	}

	body, err := s.getFull(ctx, url)
	if err != nil {
		return PackageMetadata{}, err
	}
	return extractWheelMetadata(bytes.NewReader(body), int64(len(body)))
}

func (s *Service) fetchSdistMetadata(ctx context.Context, url string) (PackageMetadata, error) {
	body, err := s.getFull(ctx, url)
	if err != nil {
		return PackageMetadata{}, err
	}
	return extractSdistMetadata(bytes.NewReader(body))
}

// fetchSidecarMetadata retrieves a PEP 658/714 `.metadata` sidecar file
// directly — no archive involved, just the headers.
func (s *Service) fetchSidecarMetadata(ctx context.Context, url string) (PackageMetadata, error) {
	body, err := s.getFull(ctx, url)
	if err != nil {
		return PackageMetadata{}, err
	}
	return parseCoreMetadata(bytes.NewReader(body))
}

func (s *Service) getFull(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
