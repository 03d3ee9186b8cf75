package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/christophergentle/aithreads-bsky/internal/retry"
)

// DefaultSearchURL redirects a free-text query to a matching photo.
const DefaultSearchURL = "https://source.unsplash.com/featured/1024x1024/"

// DefaultFallbackURL is used once every lookup attempt has failed.
const DefaultFallbackURL = "https://images.unsplash.com/photo-1620712943543-bcc4688e7485"

const (
	querySuffix  = " technology visualization"
	maxImageSize = 10 << 20
)

// ImageError describes a failed lookup or download.
type ImageError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ImageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image request %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("image request %s returned status %d", e.URL, e.StatusCode)
}

func (e *ImageError) Unwrap() error { return e.Err }

var errTooManyRedirects = errors.New("stopped after too many redirects")

type Resolver struct {
	searchURL   string
	fallbackURL string
	timeout     time.Duration
	client      *http.Client
	policy      retry.Policy
}

type Option func(*Resolver)

func WithSearchURL(u string) Option {
	return func(r *Resolver) {
		if u != "" {
			r.searchURL = u
		}
	}
}

func WithFallbackURL(u string) Option {
	return func(r *Resolver) {
		if u != "" {
			r.fallbackURL = u
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithMaxRedirects bounds how many hops the search redirect may take.
func WithMaxRedirects(n int) Option {
	return func(r *Resolver) {
		r.client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) > n {
				return errTooManyRedirects
			}
			return nil
		}
	}
}

func New(opts ...Option) *Resolver {
	r := &Resolver{
		searchURL:   DefaultSearchURL,
		fallbackURL: DefaultFallbackURL,
		timeout:     5 * time.Second,
		client:      &http.Client{},
		policy:      retry.Default,
	}
	WithMaxRedirects(5)(r)
	for _, opt := range opts {
		opt(r)
	}
	r.client.Timeout = r.timeout
	return r
}

// SearchURL builds the redirect endpoint URL for a hint.
func (r *Resolver) SearchURL(hint string) string {
	return r.searchURL + "?" + url.QueryEscape(hint+querySuffix)
}

// Resolve returns the final URL the search redirect lands on. It never fails:
// after the retries run out the fallback image URL is returned.
func (r *Resolver) Resolve(ctx context.Context, hint string) string {
	return retry.WithFallback(ctx, r.policy, "resolve image", func(ctx context.Context) (string, error) {
		return r.resolveOnce(ctx, hint)
	}, func() string {
		return r.fallbackURL
	})
}

func (r *Resolver) resolveOnce(ctx context.Context, hint string) (string, error) {
	searchURL := r.SearchURL(hint)

	resp, err := r.get(ctx, searchURL)
	if err != nil {
		return "", err
	}
	resp.Body.Close()

	final := resp.Request.URL.String()
	log.Debug().Str("search", searchURL).Str("image", final).Msg("Image resolved")
	return final, nil
}

// Fetch downloads the image bytes from imageURL in a single attempt.
func (r *Resolver) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	resp, err := r.get(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, &ImageError{URL: imageURL, Err: err}
	}
	if len(data) == 0 {
		return nil, &ImageError{URL: imageURL, StatusCode: resp.StatusCode, Err: errors.New("empty image body")}
	}
	return data, nil
}

// get issues a GET that only counts HTTP 200 as success.
func (r *Resolver) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &ImageError{URL: rawURL, Err: err}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &ImageError{URL: rawURL, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &ImageError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp, nil
}
