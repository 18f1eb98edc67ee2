package instance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/platform/obs"
	"vrp-search-service/internal/ports"
)

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

// HTTPSource downloads instances from a mirror of the CVRPLIB files.
// A reference is either a full http(s) URL or a name resolved as
// "<baseURL>/<name>.vrp". It is safe for concurrent use.
type HTTPSource struct {
	session *http.Client
	baseURL string
	options domain.InstanceOptions

	// Retry schedule for transient failures.
	maxAttempts int
	backoff     time.Duration
}

var _ ports.InstanceSource = (*HTTPSource)(nil)

func NewHTTPSource(baseURL string, opts domain.InstanceOptions) *HTTPSource {
	return &HTTPSource{
		session:     &http.Client{Timeout: 30 * time.Second},
		baseURL:     strings.TrimRight(baseURL, "/"),
		options:     opts,
		maxAttempts: 4,
		backoff:     200 * time.Millisecond,
	}
}

func isURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func (h *HTTPSource) url(ref string) (string, error) {
	if isURL(ref) {
		return ref, nil
	}
	if h.baseURL == "" {
		return "", fmt.Errorf("instance %q: no base url configured: %w", ref, ports.ErrNotFound)
	}
	if path.Ext(ref) == "" {
		ref += ".vrp"
	}
	return h.baseURL + "/" + strings.TrimLeft(ref, "/"), nil
}

func (h *HTTPSource) Load(ctx context.Context, ref string) (_ *domain.Instance, err error) {
	defer obs.Time(ctx, "instance.http.Load")(&err)

	url, err := h.url(ref)
	if err != nil {
		return nil, fmt.Errorf("fetch instance: %w", err)
	}

	resp, err := h.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "text/plain, application/json")
		return req, nil
	})
	if err != nil {
		var he *httpStatusError
		if errors.As(err, &he) && he.Code == http.StatusNotFound {
			return nil, fmt.Errorf("fetch instance %q: %w", url, ports.ErrNotFound)
		}
		return nil, fmt.Errorf("fetch instance %q: %w", url, err)
	}
	defer resp.Body.Close()

	name := path.Base(resp.Request.URL.Path)
	if strings.Contains(resp.Header.Get("Content-Type"), "json") && path.Ext(name) != ".json" {
		name += ".json"
	}
	in, err := Parse(resp.Body, name, h.options)
	if err != nil {
		return nil, fmt.Errorf("fetch instance %q: %w", url, err)
	}
	if in.Name == "" {
		in.Name = strings.TrimSuffix(name, path.Ext(name))
	}
	return in, nil
}

func (h *HTTPSource) do(req *http.Request) (*http.Response, error) {
	resp, err := h.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

// doWithRetry retries network errors and 429/5xx responses with exponential
// backoff while respecting context cancellation.
func (h *HTTPSource) doWithRetry(
	ctx context.Context,
	makeReq func() (*http.Request, error),
) (*http.Response, error) {
	backoff := h.backoff
	var lastErr error

	for attempt := 1; attempt <= h.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := h.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case 429, 500, 502, 503, 504:
				retry = true
			}
		}

		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}

		if !retry || attempt == h.maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
	}

	return nil, lastErr
}
