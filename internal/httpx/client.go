// Package httpx provides the hardened HTTP client every upstream call
// goes through, with per-call limits on time, redirects and body size.
package httpx

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultUserAgent is a browser-like UA; several upstream endpoints
// reject obviously non-browser clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRedirects = 10
	defaultMaxBytes     = 10 * 1024 * 1024 // buffered responses
)

// Client issues outbound HTTP calls with secure transport defaults.
// It is safe for concurrent use.
type Client struct {
	transport *http.Transport
	userAgent string
}

// New creates a hardened Client.
func New() *Client {
	return &Client{
		transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 5,
		},
		userAgent: DefaultUserAgent,
	}
}

// NewWithTransport creates a Client over a caller-supplied transport,
// for custom TLS or proxy setups.
func NewWithTransport(transport *http.Transport) *Client {
	return &Client{transport: transport, userAgent: DefaultUserAgent}
}

// Options configures a single call. Zero values fall back to defaults.
type Options struct {
	Method       string            // default GET
	Body         io.Reader         // request body
	Header       map[string]string // merged over defaults; UA overridable
	Timeout      time.Duration     // whole-call deadline; 0 = default, <0 = none
	MaxRedirects int               // 0 = default, <0 = follow none
	MaxBytes     int64             // response cap; 0 = default
}

func (o Options) method() string {
	if o.Method == "" {
		return http.MethodGet
	}
	return o.Method
}

func (o Options) maxBytes() int64 {
	if o.MaxBytes == 0 {
		return defaultMaxBytes
	}
	return o.MaxBytes
}

// httpClient builds a per-call http.Client sharing the pooled transport.
func (c *Client) httpClient(opt Options) *http.Client {
	max := opt.MaxRedirects
	if max == 0 {
		max = defaultMaxRedirects
	}
	timeout := opt.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if timeout < 0 {
		timeout = 0
	}
	return &http.Client{
		Transport: c.transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= max {
				return fmt.Errorf("stopped after %d redirects", max)
			}
			return nil
		},
	}
}

func (c *Client) newRequest(ctx context.Context, rawURL string, opt Options) (*http.Request, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, opt.method(), rawURL, opt.Body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
	for k, v := range opt.Header {
		req.Header.Set(k, v)
	}
	return req, nil
}

// classify maps a transport error onto the fetch error taxonomy.
func classify(rawURL string, err error) *Error {
	kind := KindNetwork
	var netErr interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &Error{Kind: kind, URL: rawURL, Err: err}
}

// Do performs a buffered call and returns the response body. Any
// non-2xx status is an error of KindStatus.
func (c *Client) Do(ctx context.Context, rawURL string, opt Options) ([]byte, error) {
	req, err := c.newRequest(ctx, rawURL, opt)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient(opt).Do(req)
	if err != nil {
		return nil, classify(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindStatus, URL: rawURL, Status: resp.StatusCode}
	}

	max := opt.maxBytes()
	if resp.ContentLength > max {
		return nil, &Error{Kind: KindTooLarge, URL: rawURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return nil, classify(rawURL, err)
	}
	if int64(len(body)) > max {
		return nil, &Error{Kind: KindTooLarge, URL: rawURL}
	}
	return body, nil
}

// Stream is the body of an in-flight streamed response. Close aborts
// the transfer.
type Stream struct {
	Body          io.ReadCloser
	ContentLength int64 // -1 if unknown
	FinalURL      string
}

func (s *Stream) Close() error { return s.Body.Close() }

// OpenStream performs a call and hands the (size-capped) body back to
// the caller for streaming. Reads past the cap fail with KindTooLarge.
func (c *Client) OpenStream(ctx context.Context, rawURL string, opt Options) (*Stream, error) {
	req, err := c.newRequest(ctx, rawURL, opt)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient(opt).Do(req)
	if err != nil {
		return nil, classify(rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &Error{Kind: KindStatus, URL: rawURL, Status: resp.StatusCode}
	}

	max := opt.maxBytes()
	if resp.ContentLength > max {
		resp.Body.Close()
		return nil, &Error{Kind: KindTooLarge, URL: rawURL}
	}

	return &Stream{
		Body:          &cappedBody{rc: resp.Body, max: max, url: rawURL},
		ContentLength: resp.ContentLength,
		FinalURL:      resp.Request.URL.String(),
	}, nil
}

// ResolveRedirect follows a short link to its final URL. Short links
// (pin.it, vm.tiktok.com) are inputs to some strategies' pattern
// matching and must be expanded first.
func (c *Client) ResolveRedirect(ctx context.Context, shortURL string) (string, error) {
	opt := Options{Timeout: 15 * time.Second, MaxRedirects: 5, MaxBytes: 1024 * 1024}
	req, err := c.newRequest(ctx, shortURL, opt)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient(opt).Do(req)
	if err != nil {
		return "", classify(shortURL, err)
	}
	defer resp.Body.Close()
	// Drain a little so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 32*1024))

	return resp.Request.URL.String(), nil
}

// cappedBody enforces the max-size budget on a streamed body.
type cappedBody struct {
	rc   io.ReadCloser
	max  int64
	read int64
	url  string
}

func (b *cappedBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	b.read += int64(n)
	if b.read > b.max {
		return n, &Error{Kind: KindTooLarge, URL: b.url}
	}
	if err != nil && !errors.Is(err, io.EOF) {
		var netErr interface{ Timeout() bool }
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return n, &Error{Kind: KindTimeout, URL: b.url, Err: err}
		}
	}
	return n, err
}

func (b *cappedBody) Close() error { return b.rc.Close() }
