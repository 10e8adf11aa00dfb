package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bilusteknoloji/pipgrub/internal/httpretry"
	"github.com/bilusteknoloji/pipgrub/internal/registry"
)

const (
	clientTimeout = 60 * time.Second
	maxRedirects  = 5
)

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient sets the HTTP client used for reserve/upload/finalize
// requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithLogger sets the structured logger used for retry and progress
// diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBudget overrides the retry budget (default: httpretry.DefaultBudget()).
func WithBudget(b httpretry.Budget) Option {
	return func(s *Service) { s.budget = b }
}

// WithCheckClient attaches a registry client used for the §4.5 hash
// re-check: when an upload fails with a server error, the publisher
// queries this client's listing for the file and treats a matching
// content-hash as a no-op success instead of a failure.
func WithCheckClient(c registry.Client) Option {
	return func(s *Service) { s.checkClient = c }
}

// Service publishes local distribution files to a registry's upload
// endpoint.
type Service struct {
	httpClient  *http.Client
	logger      *slog.Logger
	budget      httpretry.Budget
	checkClient registry.Client
}

// New builds a publisher Service.
func New(opts ...Option) *Service {
	s := &Service{
		httpClient: &http.Client{Timeout: clientTimeout},
		logger:     slog.Default(),
		budget:     httpretry.DefaultBudget(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.budget.Logger = s.logger
	return s
}

// Result reports what happened for one published group.
type Result struct {
	Group    Group
	Skipped  bool // already present, confirmed by hash
	Reserved bool // two-phase protocol was used
}

// PublishClassic uploads g to uploadURL using the classic multipart-POST
// protocol (spec.md §4.5): one request per file, form-metadata prologue
// plus the file content under the part name "content".
func (s *Service) PublishClassic(ctx context.Context, uploadURL string, g Group, md Metadata, progress ProgressFunc) (Result, error) {
	var body bytes.Buffer
	contentType, err := buildMultipartBody(&body, g, md, progress)
	if err != nil {
		return Result{}, fmt.Errorf("building upload for %s: %w", g.Dist.Name, err)
	}
	payload := body.Bytes()

	var result Result
	err = httpretry.Do(ctx, s.budget, "publish:"+g.Dist.Name, func(ctx context.Context) error {
		resp, _, err := s.doFollowingRedirects(ctx, http.MethodPost, uploadURL, map[string]string{"Content-Type": contentType}, func() io.Reader {
			return bytes.NewReader(payload)
		})
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			result = Result{Group: g}
			return nil
		}

		if resp.StatusCode >= 500 {
			if ok, checkErr := s.hashMatches(ctx, g, md); checkErr == nil && ok {
				result = Result{Group: g, Skipped: true}
				return nil
			}
			return httpretry.Retryable(classifyResponse(resp))
		}
		return classifyResponse(resp)
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// PublishTwoPhase uploads g using the pre-signed-URL protocol
// (spec.md §4.5): reserve, PUT to the returned upload_url, finalize.
func (s *Service) PublishTwoPhase(ctx context.Context, reserveURL, finalizeURL string, g Group, md Metadata, progress ProgressFunc) (Result, error) {
	form := formValues(g, md)

	reserved, err := s.reserve(ctx, reserveURL, form)
	if err != nil {
		return Result{}, err
	}
	if reserved.alreadyPresent {
		return Result{Group: g}, nil
	}

	if err := s.putFile(ctx, reserved.uploadURL, reserved.headers, g, progress); err != nil {
		return Result{}, err
	}

	if err := s.finalize(ctx, finalizeURL, form); err != nil {
		if ok, checkErr := s.hashMatches(ctx, g, md); checkErr == nil && ok {
			return Result{Group: g, Skipped: true, Reserved: true}, nil
		}
		return Result{}, err
	}
	return Result{Group: g, Reserved: true}, nil
}

type reservation struct {
	alreadyPresent bool
	uploadURL      string
	headers        map[string]string
}

func (s *Service) reserve(ctx context.Context, reserveURL string, form url.Values) (reservation, error) {
	var out reservation
	err := httpretry.Do(ctx, s.budget, "reserve:"+form.Get("name"), func(ctx context.Context) error {
		resp, _, err := s.doFollowingRedirects(ctx, http.MethodPost, reserveURL, formHeaders(), func() io.Reader {
			return bytes.NewReader([]byte(form.Encode()))
		})
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusOK:
			out = reservation{alreadyPresent: true}
			return nil
		case resp.StatusCode == http.StatusCreated:
			var payload struct {
				UploadURL string            `json:"upload_url"`
				Headers   map[string]string `json:"headers"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
				return fmt.Errorf("decoding reserve response: %w", err)
			}
			out = reservation{uploadURL: payload.UploadURL, headers: payload.Headers}
			return nil
		case resp.StatusCode >= 500:
			return httpretry.Retryable(classifyResponse(resp))
		default:
			return classifyResponse(resp)
		}
	})
	return out, err
}

func (s *Service) putFile(ctx context.Context, uploadURL string, headers map[string]string, g Group, progress ProgressFunc) error {
	return httpretry.Do(ctx, s.budget, "put:"+g.Dist.Name, func(ctx context.Context) error {
		f, err := openForUpload(g.Path)
		if err != nil {
			return err
		}
		defer func() { _ = f.file.Close() }()

		hdrs := map[string]string{}
		for k, v := range headers {
			hdrs[k] = v
		}

		resp, _, err := s.doFollowingRedirects(ctx, http.MethodPut, uploadURL, hdrs, func() io.Reader {
			_, _ = f.file.Seek(0, io.SeekStart)
			return &progressReader{r: f.file, fn: progress}
		})
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode >= 500 {
			return httpretry.Retryable(classifyResponse(resp))
		}
		return classifyResponse(resp)
	})
}

func (s *Service) finalize(ctx context.Context, finalizeURL string, form url.Values) error {
	return httpretry.Do(ctx, s.budget, "finalize:"+form.Get("name"), func(ctx context.Context) error {
		resp, _, err := s.doFollowingRedirects(ctx, http.MethodPost, finalizeURL, formHeaders(), func() io.Reader {
			return bytes.NewReader([]byte(form.Encode()))
		})
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode >= 500 {
			return httpretry.Retryable(classifyResponse(resp))
		}
		return classifyResponse(resp)
	})
}

// hashMatches implements the §4.5 hash re-check: after a server error, ask
// the check-URL client for the registry's current listing and look for a
// file of the same name whose content-hash matches what we just tried to
// upload.
func (s *Service) hashMatches(ctx context.Context, g Group, md Metadata) (bool, error) {
	if s.checkClient == nil {
		return false, fmt.Errorf("no check client configured")
	}
	listing, err := s.checkClient.ListFiles(ctx, md.Name)
	if err != nil {
		return false, err
	}
	filename := filenameOf(g)
	for _, f := range listing.Files {
		if f.Filename != filename {
			continue
		}
		if f.SHA256 == "" {
			return false, nil
		}
		if f.SHA256 != md.SHA256 {
			return false, fmt.Errorf("registry already has %s with a different hash", filename)
		}
		return true, nil
	}
	return false, nil
}

func formValues(g Group, md Metadata) url.Values {
	form := url.Values{}
	form.Set(":action", "file_upload")
	form.Set("protocol_version", "1")
	form.Set("metadata_version", md.MetadataVersion)
	form.Set("name", md.Name)
	form.Set("version", md.Version)
	form.Set("filetype", string(md.Filetype))
	form.Set("pyversion", md.PyVersion)
	form.Set("sha256_digest", md.SHA256)
	form.Set("blake2_256_digest", md.Blake2_256)
	if md.Author != "" {
		form.Set("author", md.Author)
	}
	if md.RequiresPython != "" {
		form.Set("requires_python", md.RequiresPython)
	}
	for _, c := range md.Classifiers {
		form.Add("classifiers", c)
	}
	for _, r := range md.RequiresDist {
		form.Add("requires_dist", r)
	}
	return form
}

func formHeaders() map[string]string {
	return map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
}

func filenameOf(g Group) string {
	return baseName(g.Path)
}
