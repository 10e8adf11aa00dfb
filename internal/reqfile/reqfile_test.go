package reqfile_test

import (
	"errors"
	"testing"

	"github.com/bilusteknoloji/pipgrub/internal/reqfile"
)

type memReader map[string]string

func (m memReader) ReadFile(p string) ([]byte, error) {
	if v, ok := m[p]; ok {
		return []byte(v), nil
	}
	return nil, errors.New("file not found: " + p)
}

func (m memReader) FetchURL(url string) ([]byte, error) {
	return nil, errors.New("not implemented in test")
}

func TestParseBasic(t *testing.T) {
	files := memReader{
		"root.txt": "requests>=2.0\n# a comment\nflask==3.0.0\n",
	}
	rf, err := reqfile.Parse("root.txt", files, nil)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(rf.Requirements) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(rf.Requirements))
	}
}

func TestLineContinuation(t *testing.T) {
	files := memReader{
		"root.txt": "requests>=2.0 \\\n    --hash=sha256:abc\n",
	}
	rf, err := reqfile.Parse("root.txt", files, nil)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(rf.Requirements) != 1 {
		t.Fatalf("expected 1 requirement, got %d", len(rf.Requirements))
	}
	if len(rf.Requirements[0].Hashes) != 1 || rf.Requirements[0].Hashes[0] != "sha256:abc" {
		t.Errorf("expected hash sha256:abc, got %v", rf.Requirements[0].Hashes)
	}
}

func TestIncludeAndConstraint(t *testing.T) {
	files := memReader{
		"root.txt":  "-r child.txt\n-c constraints.txt\nflask\n",
		"child.txt": "requests>=2.0\n",
		"constraints.txt": "urllib3<2.0\n",
	}
	rf, err := reqfile.Parse("root.txt", files, nil)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(rf.Requirements) != 2 {
		t.Fatalf("expected 2 requirements (flask + requests), got %d", len(rf.Requirements))
	}
	if len(rf.Constraints) != 1 || rf.Constraints[0].CanonicalName() != "urllib3" {
		t.Fatalf("expected 1 constraint urllib3, got %+v", rf.Constraints)
	}
}

func TestConflictingIndexURL(t *testing.T) {
	files := memReader{
		"root.txt":  "--index-url https://a.example/simple\n-r child.txt\n",
		"child.txt": "--index-url https://b.example/simple\n",
	}
	_, err := reqfile.Parse("root.txt", files, nil)
	if err == nil {
		t.Fatal("expected conflicting index-url error")
	}
}

func TestUnsupportedFlagWarns(t *testing.T) {
	files := memReader{
		"root.txt": "--pre\nrequests\n",
	}
	rf, err := reqfile.Parse("root.txt", files, nil)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(rf.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(rf.Warnings))
	}
}

func TestEnvVarExpansion(t *testing.T) {
	files := memReader{
		"root.txt": "name @ ${BASE_URL}/name-1.0.tar.gz\n",
	}
	rf, err := reqfile.Parse("root.txt", files, map[string]string{"BASE_URL": "https://example.org"})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if rf.Requirements[0].Requirement.Target.URL != "https://example.org/name-1.0.tar.gz" {
		t.Errorf("unexpected URL: %s", rf.Requirements[0].Requirement.Target.URL)
	}
}
