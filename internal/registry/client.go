// Package registry implements the simple-index client: listing a
// package's distribution files and fetching their core metadata, per PEP
// 503 (HTML), PEP 691 (JSON), and PEP 658/714 (metadata sidecars).
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/bilusteknoloji/pipgrub/internal/distname"
	"github.com/bilusteknoloji/pipgrub/internal/httpretry"
)

const (
	clientTimeout  = 30 * time.Second
	maxRedirects   = 5
	defaultMaxAge  = 5 * time.Minute
)

// Client is the contract the resolver depends on.
type Client interface {
	ListFiles(ctx context.Context, name string) (Listing, error)
	Metadata(ctx context.Context, file FileRecord) (PackageMetadata, error)
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient sets the HTTP client used for index and metadata requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithBaseURL sets the simple-index root (e.g. a devpi or httptest.Server URL).
func WithBaseURL(u string) Option {
	return func(s *Service) {
		if u != "" {
			s.baseURL = u
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCache attaches an on-disk cache.
func WithCache(c *Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithBudget overrides the retry budget.
func WithBudget(b httpretry.Budget) Option {
	return func(s *Service) { s.budget = b }
}

const defaultBaseURL = "https://pypi.org/simple"

// Service is the default Client implementation, talking to one simple
// index over HTTP.
type Service struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	cache      *Cache
	budget     httpretry.Budget
}

var _ Client = (*Service)(nil)

// New creates a simple-index client rooted at baseURL (PyPI's by default).
func New(opts ...Option) *Service {
	s := &Service{
		httpClient: &http.Client{Timeout: clientTimeout},
		baseURL:    defaultBaseURL,
		logger:     slog.Default(),
		budget:     httpretry.DefaultBudget(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.budget.Logger = s.logger
	return s
}

// ListFiles fetches and caches the simple-index page for name, preferring
// the JSON flavor (PEP 691) via content negotiation and falling back to
// HTML (PEP 503) when the server doesn't speak JSON.
func (s *Service) ListFiles(ctx context.Context, name string) (Listing, error) {
	canonical := distname.Normalize(name)

	if s.cache != nil {
		if l, ok := s.cache.GetListing(s.baseURL, canonical, defaultMaxAge); ok {
			return l, nil
		}
	}

	indexURL, err := joinIndexPath(s.baseURL, canonical)
	if err != nil {
		return Listing{}, err
	}

	var listing Listing
	err = httpretry.Do(ctx, s.budget, "list-files:"+canonical, func(ctx context.Context) error {
		l, err := s.fetchListing(ctx, indexURL, canonical)
		if err != nil {
			return err
		}
		listing = l
		return nil
	})
	if err != nil {
		return Listing{}, fmt.Errorf("listing files for %s: %w", name, err)
	}

	if s.cache != nil {
		s.cache.PutListing(s.baseURL, canonical, listing)
	}
	return listing, nil
}

// BaseURL returns the configured simple-index root, mainly useful for
// tests that need to derive sibling URLs on the same httptest.Server.
func (s *Service) BaseURL() string { return s.baseURL }

// Invalidate forces the next ListFiles call for name to bypass the cache,
// implementing the caller-triggered revalidation spec.md requires.
func (s *Service) Invalidate(name string) {
	if s.cache != nil {
		s.cache.Invalidate(s.baseURL, distname.Normalize(name))
	}
}

func (s *Service) fetchListing(ctx context.Context, indexURL, canonical string) (Listing, error) {
	resp, finalURL, err := s.getFollowingRedirects(ctx, indexURL, "application/vnd.pypi.simple.v1+json, text/html;q=0.5")
	if err != nil {
		return Listing{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httpretry.ClassifyStatus(resp.StatusCode, resp.Status); err != nil {
		return Listing{}, err
	}

	body, err := readAll(resp)
	if err != nil {
		return Listing{}, err
	}

	contentType := resp.Header.Get("Content-Type")
	if isJSONIndex(contentType) {
		return parseJSONIndex(canonical, body)
	}

	base, err := url.Parse(finalURL)
	if err != nil {
		return Listing{}, fmt.Errorf("parsing final index URL %q: %w", finalURL, err)
	}
	links, err := parseSimpleIndexHTML(base, body)
	if err != nil {
		return Listing{}, fmt.Errorf("parsing simple index HTML for %s: %w", canonical, err)
	}
	return linksToListing(canonical, links), nil
}

func isJSONIndex(contentType string) bool {
	return contentType == "application/vnd.pypi.simple.v1+json" ||
		(len(contentType) >= 16 && contentType[:16] == "application/json")
}

func parseJSONIndex(canonical string, body []byte) (Listing, error) {
	var doc jsonIndex
	if err := json.Unmarshal(body, &doc); err != nil {
		return Listing{}, fmt.Errorf("parsing JSON simple index for %s: %w", canonical, err)
	}
	listing := Listing{Name: canonical}
	for _, f := range doc.Files {
		rec := FileRecord{
			Filename:       f.Filename,
			URL:            f.URL,
			SHA256:         f.Hashes["sha256"],
			RequiresPython: f.RequiresPython,
		}
		switch v := f.Yanked.(type) {
		case bool:
			rec.Yanked = v
		case string:
			rec.Yanked = true
			rec.YankedReason = v
		}
		if hasCoreMetadata(f.CoreMetadata) {
			rec.CoreMetadataURL = f.URL + ".metadata"
		}
		listing.Files = append(listing.Files, rec)
	}
	return listing, nil
}

func hasCoreMetadata(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case map[string]any:
		return len(t) > 0
	default:
		return false
	}
}

// Metadata fetches the parsed core metadata for one distribution file,
// preferring the PEP 658/714 `.metadata` sidecar when advertised, then
// falling back to range-reading (wheels) or downloading (sdists) the
// distribution itself.
func (s *Service) Metadata(ctx context.Context, file FileRecord) (PackageMetadata, error) {
	if s.cache != nil {
		if md, ok := s.cache.GetMetadata(file.URL, file.SHA256); ok {
			return md, nil
		}
	}

	var md PackageMetadata
	err := httpretry.Do(ctx, s.budget, "metadata:"+file.Filename, func(ctx context.Context) error {
		m, err := s.fetchMetadata(ctx, file)
		if err != nil {
			return err
		}
		md = m
		return nil
	})
	if err != nil {
		return PackageMetadata{}, fmt.Errorf("fetching metadata for %s: %w", file.Filename, err)
	}

	if s.cache != nil {
		s.cache.PutMetadata(file.URL, file.SHA256, md)
	}
	return md, nil
}

func (s *Service) fetchMetadata(ctx context.Context, file FileRecord) (PackageMetadata, error) {
	if file.CoreMetadataURL != "" {
		if md, err := s.fetchSidecarMetadata(ctx, file.CoreMetadataURL); err == nil {
			return md, nil
		}
		// Sidecar advertised but unreachable; fall through to the
		// distribution file itself rather than failing outright.
	}

	if _, err := distname.ParseWheel(file.Filename); err == nil {
		return s.fetchWheelMetadata(ctx, file.URL)
	}
	return s.fetchSdistMetadata(ctx, file.URL)
}

// getFollowingRedirects performs a GET, following same-origin redirects up
// to maxRedirects and aborting on a cross-origin hop.
func (s *Service) getFollowingRedirects(ctx context.Context, requestURL, accept string) (*http.Response, string, error) {
	current := requestURL
	for i := 0; i <= maxRedirects; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return nil, "", err
		}
		req.Header.Set("Accept", accept)

		noRedirectClient := *s.httpClient
		noRedirectClient.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}

		resp, err := noRedirectClient.Do(req)
		if err != nil {
			return nil, "", httpretry.Retryable(fmt.Errorf("GET %s: %w", current, err))
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
	return nil, "", fmt.Errorf("exceeded redirect budget (%d) fetching %s", maxRedirects, requestURL)
}

func joinIndexPath(baseURL, canonical string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base index URL %q: %w", baseURL, err)
	}
	u.Path = path.Join(u.Path, canonical) + "/"
	return u.String(), nil
}

func readAll(resp *http.Response) ([]byte, error) {
	return io.ReadAll(resp.Body)
}
