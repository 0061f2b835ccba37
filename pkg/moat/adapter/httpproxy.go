package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTimeout is the hard cap on a single request's timeout (spec §4.5).
const maxTimeout = 30 * time.Second

const maxRedirects = 5

// hopByHopHeaders are never forwarded in either direction (RFC 2616
// s13.5.1), grounded on
// original_source/services/gateway/app/adapters/http_proxy.go's
// equivalent http_proxy.py constant.
var hopByHopHeaders = map[string]struct{}{
	"connection":          {},
	"keep-alive":          {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
	"te":                  {},
	"trailers":            {},
	"transfer-encoding":   {},
	"upgrade":             {},
}

var strippedRequestHeaders = union(hopByHopHeaders, "host", "content-length")
var strippedResponseHeaders = union(hopByHopHeaders, "content-encoding", "content-length")

func union(base map[string]struct{}, extra ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(base)+len(extra))
	for k := range base {
		out[k] = struct{}{}
	}
	for _, k := range extra {
		out[k] = struct{}{}
	}
	return out
}

var allowedMethods = map[string]struct{}{
	"GET": {}, "POST": {}, "PUT": {}, "DELETE": {}, "PATCH": {}, "HEAD": {}, "OPTIONS": {},
}

// HTTPProxyAdapter is the HTTPS-proxy adapter with SSRF defense (spec
// §4.5): domain-allowlisted outbound HTTP with header sanitization and
// redirect re-validation. Grounded line-for-line on
// original_source/services/gateway/app/adapters/http_proxy.py and
// network_utils.py.
type HTTPProxyAdapter struct {
	// Allowlist is the configured set of permitted lowercased hostnames.
	Allowlist map[string]struct{}

	// Limiter throttles outbound requests shared across all tenants and
	// capabilities dispatched through this adapter instance (spec §9's
	// per-adapter throttling note). Nil means unlimited.
	Limiter *rate.Limiter

	clientOnce sync.Once
	client     *http.Client
}

// NewHTTPProxyAdapter constructs an adapter with the given comma-separated
// domain allowlist and a shared rate limit of ratePerSecond requests/sec
// (burst equal to the same value, 0 meaning unlimited).
func NewHTTPProxyAdapter(allowlistCSV string, ratePerSecond float64) *HTTPProxyAdapter {
	a := &HTTPProxyAdapter{Allowlist: parseDomainAllowlist(allowlistCSV)}
	if ratePerSecond > 0 {
		a.Limiter = rate.NewLimiter(rate.Limit(ratePerSecond), int(ratePerSecond))
	}
	return a
}

func (a *HTTPProxyAdapter) ProviderName() string { return "http_proxy" }

// httpClient returns the shared, lazily-constructed client. A single
// long-lived client is reused across requests for connection pooling
// (spec §4.5), with a CheckRedirect hook that re-validates every hop
// against the same SSRF rules — net/http does not do this by default,
// unlike some HTTP libraries that transparently follow redirects.
func (a *HTTPProxyAdapter) httpClient() *http.Client {
	a.clientOnce.Do(func() {
		a.client = &http.Client{
			Timeout: maxTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("adapter: stopped after %d redirects", maxRedirects)
				}
				return a.validateURL(req.URL.String())
			},
		}
	})
	return a.client
}

// validateURL runs the SSRF validation pipeline (spec §4.5 steps 1-3)
// against url, checked again on every redirect hop.
func (a *HTTPProxyAdapter) validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("adapter: invalid url: %w", err)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if parsed.Hostname() != "localhost" && parsed.Hostname() != "127.0.0.1" {
			return fmt.Errorf("adapter: http is not allowed for external requests, use https")
		}
	default:
		return fmt.Errorf("adapter: unsupported scheme %q, only https is allowed", parsed.Scheme)
	}

	hostname := strings.ToLower(parsed.Hostname())
	if hostname == "" {
		return fmt.Errorf("adapter: url has no hostname")
	}

	if isBlockedHost(hostname) {
		return fmt.Errorf("adapter: requests to private/internal addresses are blocked: %s", hostname)
	}

	if _, ok := a.Allowlist[hostname]; !ok {
		return fmt.Errorf("adapter: domain %q is not in the allowlist", hostname)
	}

	return nil
}

// Execute proxies an HTTP request to an allowlisted external service.
func (a *HTTPProxyAdapter) Execute(ctx context.Context, capabilityID, capabilityName string, params map[string]interface{}, credential string) (*Result, error) {
	rawURL, _ := params["url"].(string)
	if rawURL == "" {
		return nil, fmt.Errorf("adapter: http_proxy requires 'url' (string) in params")
	}

	method := "GET"
	if m, ok := params["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	if _, ok := allowedMethods[method]; !ok {
		return nil, fmt.Errorf("adapter: http method %q is not allowed", method)
	}

	if err := a.validateURL(rawURL); err != nil {
		return nil, err
	}

	if a.Limiter != nil {
		if err := a.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("adapter: rate limit wait: %w", err)
		}
	}

	headers := map[string]string{}
	if raw, ok := params["headers"].(map[string]interface{}); ok {
		for k, v := range raw {
			if _, stripped := strippedRequestHeaders[strings.ToLower(k)]; stripped {
				continue
			}
			headers[k] = fmt.Sprintf("%v", v)
		}
	}

	timeout := maxTimeout
	if t, ok := params["timeout"].(float64); ok {
		if d := time.Duration(t * float64(time.Second)); d < timeout {
			timeout = d
		}
	}

	var bodyReader io.Reader
	contentTypeOverride := ""
	if body, ok := params["body"]; ok && body != nil && (method == "POST" || method == "PUT" || method == "PATCH") {
		switch b := body.(type) {
		case string:
			bodyReader = strings.NewReader(b)
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("adapter: failed to encode body: %w", err)
			}
			bodyReader = bytes.NewReader(encoded)
			contentTypeOverride = "application/json"
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("adapter: failed to build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if contentTypeOverride != "" {
		req.Header.Set("Content-Type", contentTypeOverride)
	}

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return nil, &Error{Provider: a.ProviderName(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Provider: a.ProviderName(), StatusCode: resp.StatusCode, Err: err}
	}

	respHeaders := map[string]string{}
	for k := range resp.Header {
		if _, stripped := strippedResponseHeaders[strings.ToLower(k)]; stripped {
			continue
		}
		respHeaders[k] = resp.Header.Get(k)
	}

	contentType := resp.Header.Get("Content-Type")
	var decodedBody interface{}
	if strings.Contains(contentType, "application/json") {
		if err := json.Unmarshal(respBody, &decodedBody); err != nil {
			decodedBody = string(respBody)
		}
	} else {
		decodedBody = string(respBody)
	}

	return &Result{
		StatusCode:  resp.StatusCode,
		Headers:     respHeaders,
		Body:        decodedBody,
		ContentType: contentType,
	}, nil
}
