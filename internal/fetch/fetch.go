// Package fetch provides hardened HTTP sessions for scraping retail
// sites that sit behind bot-mitigation layers.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/partswatch/partswatch/internal/domain"
	"github.com/partswatch/partswatch/internal/logger"
)

// Defaults applied when Config leaves fields at zero.
const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRetries   = 3
	defaultRetryBackoff = 300 * time.Millisecond

	maxResponseBodyBytes = 10 * 1024 * 1024 // 10MB

	// Pause bounds between requests on the same session.
	jitterMinMillis = 20
	jitterMaxMillis = 80
)

// Browser profiles. The primary presents a common desktop Chrome
// fingerprint; the alternate is used for one retry after a challenge.
const (
	primaryUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	alternateUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) Version/17.4 Safari/605.1.15"
)

// retryableStatuses are HTTP statuses worth retrying with backoff.
var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Config holds session construction settings.
type Config struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// WithDefaults returns a copy of the config with defaults applied for
// zero-value fields.
func (c Config) WithDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	return c
}

// Factory builds sessions sharing one configuration.
type Factory struct {
	cfg Config
	log logger.Interface
}

// NewFactory creates a session factory.
func NewFactory(cfg Config, log logger.Interface) *Factory {
	return &Factory{cfg: cfg.WithDefaults(), log: log}
}

// Session returns a new primary-profile session. A challenge on a
// primary session triggers one retry through the alternate profile.
func (f *Factory) Session() *Session {
	s := f.newSession(primaryHeaders())
	s.alternate = f.newSession(alternateHeaders())
	return s
}

func (f *Factory) newSession(headers http.Header) *Session {
	return &Session{
		client:  &http.Client{Timeout: f.cfg.Timeout, Jar: newCookieJar()},
		headers: headers,
		// Roughly one request per second sustained, bursts of three.
		limiter:    rate.NewLimiter(rate.Limit(1), 3),
		maxRetries: f.cfg.MaxRetries,
		backoff:    f.cfg.RetryBackoff,
		log:        f.log,
	}
}

// newCookieJar builds a jar so anti-bot session cookies survive across
// requests. Jar construction only fails on a nil suffix list.
func newCookieJar() http.CookieJar {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

// Session wraps an HTTP client with a fixed browser fingerprint, request
// pacing, and retry behavior. Not safe for concurrent use; Clone one per
// goroutine.
type Session struct {
	client     *http.Client
	headers    http.Header
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	log        logger.Interface
	alternate  *Session
}

// Clone returns an independent session with the same fingerprint and its
// own pacing state.
func (s *Session) Clone() *Session {
	c := &Session{
		client:     &http.Client{Timeout: s.client.Timeout, Jar: newCookieJar()},
		headers:    s.headers.Clone(),
		limiter:    rate.NewLimiter(s.limiter.Limit(), s.limiter.Burst()),
		maxRetries: s.maxRetries,
		backoff:    s.backoff,
		log:        s.log,
	}
	if s.alternate != nil {
		c.alternate = s.alternate.Clone()
	}
	return c
}

// Fetch retrieves a page. Fetch-level failures ride in the result's Err
// field; callers only see a non-nil result.
func (s *Session) Fetch(ctx context.Context, pageURL string) *domain.PageResult {
	res := &domain.PageResult{URL: pageURL, FinalURL: pageURL}

	if err := s.pace(ctx); err != nil {
		res.Err = err
		return res
	}

	start := time.Now()
	body, status, finalURL, ttfb, err := s.fetchWithRetries(ctx, pageURL)
	res.TotalMillis = time.Since(start).Milliseconds()
	res.TTFBMillis = ttfb.Milliseconds()
	res.Status = status
	if finalURL != "" {
		res.FinalURL = finalURL
	}
	if err != nil {
		res.Err = err
		return res
	}

	res.HTML = string(body)
	if IsBotChallenge(res.HTML) {
		res.BotChallenge = true
		if s.alternate != nil {
			s.log.Warn("bot challenge detected, retrying with alternate profile", "url", pageURL)
			alt := s.alternate.Fetch(ctx, pageURL)
			if alt.OK() {
				return alt
			}
		}
	}
	return res
}

// pace waits for the rate limiter plus a small random delay so request
// spacing does not form a fixed cadence.
func (s *Session) pace(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	jitter := time.Duration(jitterMinMillis+rand.Intn(jitterMaxMillis-jitterMinMillis)) * time.Millisecond
	select {
	case <-time.After(jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) fetchWithRetries(ctx context.Context, pageURL string) (body []byte, status int, finalURL string, ttfb time.Duration, err error) {
	backoff := s.backoff
	for attempt := 0; ; attempt++ {
		body, status, finalURL, ttfb, err = s.doFetch(ctx, pageURL)
		if err == nil && !retryableStatuses[status] {
			return body, status, finalURL, ttfb, nil
		}
		if attempt >= s.maxRetries {
			if err == nil {
				err = fmt.Errorf("http %d after %d retries", status, s.maxRetries)
			}
			return nil, status, finalURL, ttfb, err
		}

		s.log.Debug("retrying fetch",
			"url", pageURL,
			"attempt", attempt+1,
			"status", status,
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, status, finalURL, ttfb, ctx.Err()
		}
		backoff *= 2
	}
}

func (s *Session) doFetch(ctx context.Context, pageURL string) (body []byte, status int, finalURL string, ttfb time.Duration, err error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if reqErr != nil {
		return nil, 0, "", 0, fmt.Errorf("create request: %w", reqErr)
	}
	for key, values := range s.headers {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}

	// Time to headers received, not the full body read.
	sent := time.Now()
	resp, doErr := s.client.Do(req)
	ttfb = time.Since(sent)
	if doErr != nil {
		return nil, 0, "", ttfb, fmt.Errorf("http fetch: %w", doErr)
	}
	defer resp.Body.Close()

	finalURL = resp.Request.URL.String()

	limited := io.LimitReader(resp.Body, maxResponseBodyBytes)
	body, readErr := io.ReadAll(limited)
	if readErr != nil {
		return nil, resp.StatusCode, finalURL, ttfb, fmt.Errorf("read response body: %w", readErr)
	}
	return body, resp.StatusCode, finalURL, ttfb, nil
}

func primaryHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", primaryUserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	return h
}

func alternateHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", alternateUserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.8")
	return h
}
