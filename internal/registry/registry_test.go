package registry_test

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bilusteknoloji/pipgrub/internal/registry"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *registry.Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return registry.New(
		registry.WithHTTPClient(srv.Client()),
		registry.WithBaseURL(srv.URL+"/simple"),
	)
}

func TestListFilesJSON(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
		_, _ = w.Write([]byte(`{
			"name": "flask",
			"files": [
				{"filename": "flask-3.0.0-py3-none-any.whl", "url": "https://files.example/flask-3.0.0-py3-none-any.whl",
				 "hashes": {"sha256": "abc123"}, "requires-python": ">=3.8", "yanked": false}
			]
		}`))
	})

	listing, err := svc.ListFiles(context.Background(), "Flask")
	if err != nil {
		t.Fatalf("ListFiles error: %v", err)
	}
	if len(listing.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(listing.Files))
	}
	if listing.Files[0].SHA256 != "abc123" {
		t.Errorf("unexpected sha256: %s", listing.Files[0].SHA256)
	}
}

func TestListFilesHTML(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html><html><body>
			<a href="/files/flask-3.0.0-py3-none-any.whl#sha256=abc123" data-requires-python="&gt;=3.8">flask-3.0.0-py3-none-any.whl</a>
			<a href="/files/flask-2.0.0-py3-none-any.whl#sha256=def456" data-yanked="broken release">flask-2.0.0-py3-none-any.whl</a>
		</body></html>`))
	})

	listing, err := svc.ListFiles(context.Background(), "flask")
	if err != nil {
		t.Fatalf("ListFiles error: %v", err)
	}
	if len(listing.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(listing.Files))
	}
	if listing.Files[0].SHA256 != "abc123" {
		t.Errorf("unexpected sha256: %s", listing.Files[0].SHA256)
	}
	if !listing.Files[1].Yanked || listing.Files[1].YankedReason != "broken release" {
		t.Errorf("expected yanked file with reason, got %+v", listing.Files[1])
	}
}

func buildTestWheel(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("flask-3.0.0.dist-info/METADATA")
	if err != nil {
		t.Fatalf("zip.Create: %v", err)
	}
	_, _ = f.Write([]byte("Metadata-Version: 2.1\r\nName: flask\r\nVersion: 3.0.0\r\nRequires-Dist: werkzeug>=3.0\r\nRequires-Dist: click>=8.0\r\n\r\n"))
	if err := zw.Close(); err != nil {
		t.Fatalf("zip.Close: %v", err)
	}
	return buf.Bytes()
}

func TestMetadataFromWheelFullDownload(t *testing.T) {
	wheel := buildTestWheel(t)
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		// No Accept-Ranges header, so the client must fall back to a full
		// download rather than attempting range requests.
		_, _ = w.Write(wheel)
	})

	md, err := svc.Metadata(context.Background(), registry.FileRecord{
		Filename: "flask-3.0.0-py3-none-any.whl",
		URL:      srvURLFromService(t, svc) + "/flask-3.0.0-py3-none-any.whl",
	})
	if err != nil {
		t.Fatalf("Metadata error: %v", err)
	}
	if md.Name != "flask" || md.Version != "3.0.0" {
		t.Fatalf("unexpected metadata: %+v", md)
	}
	if len(md.RequiresDist) != 2 {
		t.Fatalf("expected 2 Requires-Dist entries, got %v", md.RequiresDist)
	}
}

func TestMetadataFromSidecar(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Name: flask\r\nVersion: 3.0.0\r\nRequires-Dist: werkzeug>=3.0\r\n\r\n"))
	})

	md, err := svc.Metadata(context.Background(), registry.FileRecord{
		Filename:        "flask-3.0.0-py3-none-any.whl",
		CoreMetadataURL: srvURLFromService(t, svc) + "/flask-3.0.0-py3-none-any.whl.metadata",
	})
	if err != nil {
		t.Fatalf("Metadata error: %v", err)
	}
	if md.Name != "flask" {
		t.Fatalf("unexpected metadata: %+v", md)
	}
}

// srvURLFromService re-derives the httptest.Server base URL from a
// registry.Service configured via WithBaseURL, since the test helper
// doesn't thread the server object itself to each test function.
func srvURLFromService(t *testing.T, svc *registry.Service) string {
	t.Helper()
	u := svc.BaseURL()
	if i := len(u) - len("/simple"); i > 0 {
		return u[:i]
	}
	return u
}
