package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"
	"golang.org/x/net/publicsuffix"
)

// Target describes the canonical page of one remote resource and where the session
// artifacts live in its markup. Empty selectors are not looked up.
type Target struct {
	URL string
	// TokenSelector and TokenAttr locate the anti-forgery token; an empty TokenAttr
	// reads the element text.
	TokenSelector string
	TokenAttr     string
	// EntitySelector locates the numeric entity id in the page text.
	EntitySelector string
	// Symbol is looked up in the Resolver when the page does not expose an entity id.
	Symbol string
	Header http.Header
}

// Opener creates sessions. It is safe for concurrent use; the sessions it returns are
// not.
type Opener struct {
	transport http.RoundTripper
	timeout   time.Duration
	userAgent string
	resolver  domain.Resolver

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

type Option func(*Opener)

func WithTransport(rt http.RoundTripper) Option { return func(o *Opener) { o.transport = rt } }
func WithTimeout(d time.Duration) Option        { return func(o *Opener) { o.timeout = d } }
func WithUserAgent(ua string) Option            { return func(o *Opener) { o.userAgent = ua } }
func WithResolver(r domain.Resolver) Option     { return func(o *Opener) { o.resolver = r } }

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func NewOpener(opts ...Option) *Opener {
	o := &Opener{
		transport: http.DefaultTransport,
		timeout:   30 * time.Second,
		userAgent: defaultUserAgent,
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open loads the target page with a fresh cookie jar and extracts the session
// artifacts from it.
func (o *Opener) Open(ctx context.Context, t Target) (*Context, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	s := &Context{
		opener: o,
		client: &http.Client{
			Transport: o.transport,
			Timeout:   o.timeout,
			Jar:       jar,
		},
		referer: t.URL,
		header:  t.Header,
	}

	req, err := s.newRequest(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return nil, &domain.ConnectError{URL: t.URL, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	body, status, err := s.do(req)
	if err != nil {
		return nil, &domain.ConnectError{URL: t.URL, Err: err}
	}
	if status != http.StatusOK {
		return nil, &domain.ConnectError{URL: t.URL, Status: status}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &domain.ConnectError{URL: t.URL, Err: fmt.Errorf("parse html: %w", err)}
	}
	s.landing = doc

	var missing []string
	if t.TokenSelector != "" {
		s.token = extract(doc, t.TokenSelector, t.TokenAttr)
		if s.token == "" {
			slog.Warn("Anti-forgery token not found, continuing without it", "url", t.URL)
			missing = append(missing, "anti-forgery token")
		}
	}
	if t.EntitySelector != "" || t.Symbol != "" {
		if t.EntitySelector != "" {
			s.entityID = extract(doc, t.EntitySelector, "")
		}
		if s.entityID == "" && o.resolver != nil && t.Symbol != "" {
			if id, ok := o.resolver.Resolve(t.Symbol); ok {
				s.entityID = id
			}
		}
		if s.entityID == "" {
			missing = append(missing, "entity id")
		}
	}

	// A single missing artifact is tolerated; both missing means the layout changed.
	expected := 0
	if t.TokenSelector != "" {
		expected++
	}
	if t.EntitySelector != "" || t.Symbol != "" {
		expected++
	}
	if expected > 0 && len(missing) == expected {
		return nil, &domain.NotFoundError{URL: t.URL, Missing: missing}
	}

	slog.Debug("Session opened", "url", t.URL, "entity_id", s.entityID, "has_token", s.token != "")
	return s, nil
}

func extract(doc *goquery.Document, selector, attr string) string {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	if attr == "" {
		return strings.TrimSpace(sel.Text())
	}
	v, _ := sel.Attr(attr)
	return strings.TrimSpace(v)
}

func (o *Opener) breaker(host string) *gobreaker.CircuitBreaker {
	o.mu.Lock()
	defer o.mu.Unlock()

	if cb, ok := o.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("CircuitBreaker state changed", "name", name, "from", from, "to", to)
		},
	})
	o.breakers[host] = cb
	return cb
}

// readBody drains and closes a response body.
func readBody(resp *http.Response) ([]byte, error) {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("Failed to close response body", "error", err)
		}
	}()
	return io.ReadAll(resp.Body)
}
