package publish

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/bilusteknoloji/pipgrub/internal/diagnostic"
)

// classifyResponse turns a non-2xx publisher response into a
// diagnostic.UploadError per spec.md §4.5: a JSON error body's `code`
// field, an RFC 9457 problem-detail's `title`/`detail`, or the raw body
// as a last resort.
func classifyResponse(resp *http.Response) *diagnostic.UploadError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	e := &diagnostic.UploadError{StatusCode: resp.StatusCode, RawBody: string(body)}

	var coded struct {
		Code string `json:"code"`
	}
	if json.Unmarshal(body, &coded) == nil && coded.Code != "" {
		e.Code = coded.Code
		return e
	}

	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &problem) == nil && (problem.Title != "" || problem.Detail != "") {
		e.Title = problem.Title
		e.Detail = problem.Detail
		return e
	}

	return e
}
