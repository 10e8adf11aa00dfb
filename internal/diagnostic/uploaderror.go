package diagnostic

import "fmt"

// UploadError is the classified form of a non-2xx publisher response, per
// spec.md §4.5: a JSON error body's `code` field, an RFC 9457
// problem-detail's `title`/`detail`, or the raw response body as a last
// resort.
type UploadError struct {
	StatusCode int
	Code       string
	Title      string
	Detail     string
	RawBody    string
}

// Message renders the classified upload error, special-casing 405 (the
// one status spec.md §4.5 calls out with a specific cause).
func (e *UploadError) Message() string {
	if e.StatusCode == 405 {
		return "405 Method Not Allowed: you pointed at the simple-index URL, not the upload URL"
	}
	switch {
	case e.Code != "":
		return fmt.Sprintf("upload rejected (%d): %s", e.StatusCode, e.Code)
	case e.Title != "" || e.Detail != "":
		return fmt.Sprintf("upload rejected (%d): %s: %s", e.StatusCode, e.Title, e.Detail)
	case e.RawBody != "":
		return fmt.Sprintf("upload rejected (%d): %s", e.StatusCode, e.RawBody)
	default:
		return fmt.Sprintf("upload rejected (%d)", e.StatusCode)
	}
}

func (e *UploadError) Error() string { return e.Message() }
