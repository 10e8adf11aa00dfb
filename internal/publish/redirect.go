package publish

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/bilusteknoloji/pipgrub/internal/httpretry"
)

// doFollowingRedirects performs one HTTP request, re-issuing it with a
// freshly generated body on every same-origin redirect hop up to
// maxRedirects, and aborting on a cross-origin hop — the same envelope
// internal/registry's client uses for GETs, generalized to any method
// with a regenerable body.
func (s *Service) doFollowingRedirects(ctx context.Context, method, requestURL string, headers map[string]string, body func() io.Reader) (*http.Response, string, error) {
	current := requestURL
	for i := 0; i <= maxRedirects; i++ {
		req, err := http.NewRequestWithContext(ctx, method, current, body())
		if err != nil {
			return nil, "", err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		noRedirectClient := *s.httpClient
		noRedirectClient.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}

		resp, err := noRedirectClient.Do(req)
		if err != nil {
			return nil, "", httpretry.Retryable(fmt.Errorf("%s %s: %w", method, current, err))
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			loc := resp.Header.Get("Location")
			_ = resp.Body.Close()
			next, err := url.Parse(loc)
			if err != nil {
				return nil, "", fmt.Errorf("invalid redirect Location from %s: %w", current, err)
			}
			resolved := next
			if !next.IsAbs() {
				base, err := url.Parse(current)
				if err != nil {
					return nil, "", err
				}
				resolved = base.ResolveReference(next)
			}
			if !httpretry.SameOrigin(current, resolved.String()) {
				return nil, "", fmt.Errorf("refusing cross-origin redirect from %s to %s", current, resolved.String())
			}
			current = resolved.String()
			continue
		}

		return resp, current, nil
	}
	return nil, "", fmt.Errorf("exceeded redirect budget (%d) requesting %s", maxRedirects, requestURL)
}

type openFile struct{ file *os.File }

func openForUpload(path string) (openFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return openFile{}, fmt.Errorf("opening %s: %w", path, err)
	}
	return openFile{file: f}, nil
}

func baseName(path string) string { return filepath.Base(path) }
