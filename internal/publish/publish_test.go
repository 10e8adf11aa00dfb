package publish_test

import (
	"context"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bilusteknoloji/pipgrub/internal/publish"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestGroupFilesAttachesAttestation(t *testing.T) {
	dir := t.TempDir()
	wheel := writeFile(t, dir, "flask-3.0.0-py3-none-any.whl", "wheel-bytes")
	attestation := writeFile(t, dir, "flask-3.0.0-py3-none-any.whl.publish.attestation", `{"foo":"bar"}`)

	groups, warnings := publish.GroupFiles([]string{wheel, attestation})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if g.Dist.Name != "flask" || g.Dist.Version != "3.0.0" || g.Dist.Filetype != publish.FiletypeWheel {
		t.Fatalf("unexpected dist: %+v", g.Dist)
	}
	if len(g.Attestations) != 1 || g.Attestations[0] != attestation {
		t.Fatalf("expected attestation attached, got %v", g.Attestations)
	}
}

func TestGroupFilesIgnoresOrphanAttestation(t *testing.T) {
	dir := t.TempDir()
	orphan := writeFile(t, dir, "ghost-1.0.0.tar.gz.publish.attestation", `{}`)

	groups, warnings := publish.GroupFiles([]string{orphan})
	if len(groups) != 0 {
		t.Fatalf("expected no groups, got %d", len(groups))
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
}

func TestGroupFilesWarnsOnUnparseableName(t *testing.T) {
	dir := t.TempDir()
	junk := writeFile(t, dir, "not-a-distribution", "x")

	groups, warnings := publish.GroupFiles([]string{junk})
	if len(groups) != 0 {
		t.Fatalf("expected no groups, got %d", len(groups))
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
}

func TestPublishClassicSendsExpectedFields(t *testing.T) {
	dir := t.TempDir()
	sdist := writeFile(t, dir, "widget-1.2.3.tar.gz", "tarball-bytes")

	groups, warnings := publish.GroupFiles([]string{sdist})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	md, err := publish.DescribeGroup(groups[0], publish.Metadata{
		Classifiers:  []string{"Programming Language :: Python :: 3"},
		RequiresDist: []string{"requests>=2.0"},
	})
	if err != nil {
		t.Fatalf("DescribeGroup error: %v", err)
	}
	if md.SHA256 == "" || md.Blake2_256 == "" {
		t.Fatalf("expected both digests populated: %+v", md)
	}

	var gotAction, gotFilename string
	var gotClassifiers []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Errorf("unexpected content type: %v %v", mediaType, err)
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			switch part.FormName() {
			case ":action":
				buf := make([]byte, 64)
				n, _ := part.Read(buf)
				gotAction = string(buf[:n])
			case "classifiers":
				buf := make([]byte, 128)
				n, _ := part.Read(buf)
				gotClassifiers = append(gotClassifiers, string(buf[:n]))
			case "content":
				gotFilename = part.FileName()
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := publish.New(publish.WithHTTPClient(srv.Client()))
	result, err := svc.PublishClassic(context.Background(), srv.URL, groups[0], md, nil)
	if err != nil {
		t.Fatalf("PublishClassic error: %v", err)
	}
	if result.Skipped {
		t.Fatal("expected a real upload, not a skip")
	}
	if gotAction != "file_upload" {
		t.Errorf("expected :action=file_upload, got %q", gotAction)
	}
	if gotFilename != "widget-1.2.3.tar.gz" {
		t.Errorf("expected original filename preserved, got %q", gotFilename)
	}
	if len(gotClassifiers) != 1 {
		t.Errorf("expected 1 classifier part, got %v", gotClassifiers)
	}
}

func TestPublishClassicRejectsNonServerError(t *testing.T) {
	dir := t.TempDir()
	sdist := writeFile(t, dir, "widget-1.2.3.tar.gz", "tarball-bytes")
	groups, _ := publish.GroupFiles([]string{sdist})
	md, err := publish.DescribeGroup(groups[0], publish.Metadata{})
	if err != nil {
		t.Fatalf("DescribeGroup error: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"invalid-metadata"}`))
	}))
	defer srv.Close()

	svc := publish.New(publish.WithHTTPClient(srv.Client()))
	_, err = svc.PublishClassic(context.Background(), srv.URL, groups[0], md, nil)
	if err == nil {
		t.Fatal("expected an error from a 400 response")
	}
}
