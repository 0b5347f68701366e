package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"feedproxy/internal/domain/entity"
	"feedproxy/internal/infra/parser"
	"feedproxy/internal/resilience/circuitbreaker"
)

// Result is a successfully retrieved response body, with the final URL
// after any redirects (used to detect and persist permanent moves).
type Result struct {
	Body        []byte
	FinalURL    string
	ContentType string
	StatusCode  int
}

// Fetcher performs SSRF-safe GET requests: the initial URL and every
// redirect hop are DNS-resolved and checked against entity.ValidateURL /
// entity.IsSafeRedirect before the request proceeds, with a per-host
// gobreaker circuit breaker and a per-host rate limiter around the round
// trip.
type Fetcher struct {
	client  *http.Client
	cfg     Config
	breaker *circuitbreaker.CircuitBreaker

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func New(cfg Config) *Fetcher {
	f := &Fetcher{
		cfg:      cfg,
		breaker:  circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		limiters: make(map[string]*rate.Limiter),
	}

	f.client = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			DialContext:         f.dialContext,
		},
		CheckRedirect: f.checkRedirect,
	}
	return f
}

// dialContext re-validates the address actually being dialed, closing the
// DNS-rebinding gap between entity.ValidateURL's lookup and the connection
// net/http opens afterward.
func (f *Fetcher) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: f.cfg.Timeout}
	if !f.cfg.DenyPrivateIPs {
		return dialer.DialContext(ctx, network, addr)
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("%w: dns lookup for %s: %v", entity.ErrSSRFBlocked, host, err)
	}
	var chosen net.IP
	for _, ip := range ips {
		if entity.IsBlockedIP(ip) {
			continue
		}
		chosen = ip
		break
	}
	if chosen == nil {
		return nil, fmt.Errorf("%w: %s resolves only to blocked addresses", entity.ErrSSRFBlocked, host)
	}
	return dialer.DialContext(ctx, network, net.JoinHostPort(chosen.String(), port))
}

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= f.cfg.MaxRedirects {
		return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
	}
	if err := entity.ValidateURL(req.URL.String()); f.cfg.DenyPrivateIPs && err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafeRedirect, err)
	}
	from := via[len(via)-1].URL
	if !entity.IsSafeRedirect(from, req.URL) {
		return fmt.Errorf("%w: %s -> %s", ErrUnsafeRedirect, from, req.URL)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	return nil
}

// Fetch retrieves urlStr, following redirects under the same safety checks
// used on the initial request, bounded by a per-host rate limiter and
// circuit breaker.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*Result, error) {
	if f.cfg.DenyPrivateIPs {
		if err := entity.ValidateURL(urlStr); err != nil {
			return nil, err
		}
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidationFailed, err)
	}
	if err := f.limiterFor(u.Hostname()).Wait(ctx); err != nil {
		return nil, err
	}

	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.doFetch(ctx, urlStr)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Result), nil
}

func (f *Fetcher) doFetch(ctx context.Context, urlStr string) (*Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrValidationFailed, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, entity.NewError(entity.KindTimeout, fmt.Sprintf("fetch %s", urlStr), err)
		}
		return nil, entity.NewError(entity.KindUpstream, fmt.Sprintf("fetch %s", urlStr), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUpstreamStatus, urlStr, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, f.cfg.MaxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, entity.NewError(entity.KindUpstream, "read response body", err)
	}
	if int64(len(body)) > f.cfg.MaxBodySize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrBodyTooLarge, len(body), f.cfg.MaxBodySize)
	}

	finalURL := urlStr
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		Body:        body,
		FinalURL:    finalURL,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}

// FetchFeed fetches urlStr and parses it into a ParsedFeed. If the fetched
// document is not itself a parseable feed, it is parsed as HTML instead and
// the first <link rel="alternate"> feed URL found is fetched once more; a
// second failure is reported as entity.KindUpstream, matching the "not a
// valid feed" failure mode a fetch worker records against the source feed.
func (f *Fetcher) FetchFeed(ctx context.Context, p *parser.Parser, urlStr string) (*parser.ParsedFeed, string, error) {
	res, err := f.Fetch(ctx, urlStr)
	if err != nil {
		return nil, "", err
	}

	feed, parseErr := p.Parse(res.Body, res.FinalURL)
	if parseErr == nil {
		return feed, res.FinalURL, nil
	}

	discovered, discErr := parser.DiscoverFeedLink(res.Body, res.FinalURL)
	if discErr != nil || discovered == "" {
		return nil, "", entity.NewError(entity.KindUpstream, fmt.Sprintf("fetch %s", urlStr), fmt.Errorf("not a valid feed: %w", parseErr))
	}

	res2, err := f.Fetch(ctx, discovered)
	if err != nil {
		return nil, "", err
	}
	feed, err = p.Parse(res2.Body, res2.FinalURL)
	if err != nil {
		return nil, "", entity.NewError(entity.KindUpstream, fmt.Sprintf("fetch %s", discovered), fmt.Errorf("not a valid feed: %w", err))
	}
	return feed, res2.FinalURL, nil
}

func (f *Fetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.cfg.RequestsPerSecondPerHost), 1)
		f.limiters[host] = l
	}
	return l
}
