package patch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
)

// ErrNotFound is returned by Head when the server does not have the artifact.
var ErrNotFound = errors.New("artifact not found")

const (
	defaultProbeTimeout = 30 * time.Second
	userAgent           = "janlauncher"
)

// Source talks to the patch server at
// {base}/{os}/{arch}/{branch}/{prev}/{target}.pwr.
type Source struct {
	baseURL      string
	platform     game.Platform
	client       *http.Client
	probeTimeout time.Duration
	limiter      *rate.Limiter
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(client *http.Client) SourceOption {
	return func(s *Source) {
		if client != nil {
			s.client = client
		}
	}
}

// WithProbeTimeout bounds each HEAD request.
func WithProbeTimeout(d time.Duration) SourceOption {
	return func(s *Source) {
		if d > 0 {
			s.probeTimeout = d
		}
	}
}

// WithProbeRate throttles existence probes to perSecond with the given burst.
// A non-positive rate disables throttling.
func WithProbeRate(perSecond float64, burst int) SourceOption {
	return func(s *Source) {
		if perSecond <= 0 {
			s.limiter = nil

			return
		}

		s.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// NewSource creates a Source for baseURL and platform.
func NewSource(baseURL string, platform game.Platform, opts ...SourceOption) *Source {
	s := &Source{
		baseURL:      trimTrailingSlash(baseURL),
		platform:     platform,
		client:       http.DefaultClient,
		probeTimeout: defaultProbeTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// URL returns the artifact URL of one edge.
func (s *Source) URL(branch game.Branch, e Edge) string {
	return fmt.Sprintf("%s/%s/%s/%s/%d/%d.pwr",
		s.baseURL, s.platform.OS, s.platform.Arch, branch, e.Prev, e.Target)
}

// Head asks for the artifact size without transferring it. The size is -1
// when the server omits Content-Length. Non-2xx answers return ErrNotFound.
func (s *Source) Head(ctx context.Context, branch game.Branch, e Edge) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	req, err := s.newRequest(ctx, http.MethodHead, branch, e)
	if err != nil {
		return -1, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return -1, errors.Wrapf(err, "HEAD %s", req.URL)
	}
	defer resp.Body.Close() //nolint:errcheck // HEAD has no body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return -1, errors.Wrapf(ErrNotFound, "HEAD %s: HTTP %d", req.URL, resp.StatusCode)
	}

	return resp.ContentLength, nil
}

// Exists is the throttled existence probe used by discovery.
func (s *Source) Exists(ctx context.Context, branch game.Branch, e Edge) (bool, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return false, err
		}
	}

	_, err := s.Head(ctx, branch, e)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Get starts streaming the artifact. The caller closes the body.
func (s *Source) Get(ctx context.Context, branch game.Branch, e Edge) (*http.Response, error) {
	req, err := s.newRequest(ctx, http.MethodGet, branch, e)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", req.URL)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, errors.Wrapf(ErrNotFound, "GET %s", req.URL)
		}

		return nil, errors.Newf("GET %s: HTTP %d", req.URL, resp.StatusCode)
	}

	return resp, nil
}

//nolint:gosec // URL is built from the configured base and validated branch/version values
func (s *Source) newRequest(ctx context.Context, method string, branch game.Branch, e Edge) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.URL(branch, e), nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}

	req.Header.Set("User-Agent", userAgent)

	return req, nil
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}

	return s
}
