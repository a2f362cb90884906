package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Context is one logical connection to a remote host for one entity: its own cookie
// jar plus the token and entity id resolved when it was opened. Both are immutable
// afterwards. A Context must not be shared between goroutines or entities.
type Context struct {
	opener   *Opener
	client   *http.Client
	token    string
	entityID string
	referer  string
	header   http.Header
	landing  *goquery.Document
}

func (s *Context) Token() string    { return s.token }
func (s *Context) EntityID() string { return s.entityID }
func (s *Context) Referer() string  { return s.referer }

// Landing is the parsed page the session was opened with.
func (s *Context) Landing() *goquery.Document { return s.landing }

// Response is a fully read reply.
type Response struct {
	Status int
	Body   []byte
}

// PostForm sends a form-encoded POST with the session cookies, echoing the
// anti-forgery token when ajax is set.
func (s *Context) PostForm(ctx context.Context, target string, form url.Values, ajax bool) (*Response, error) {
	req, err := s.newRequest(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	if ajax {
		req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		if s.token != "" {
			req.Header.Set("X-CSRF-TOKEN", s.token)
		}
	} else {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}

	body, status, err := s.do(req)
	if err != nil {
		return nil, err
	}
	return &Response{Status: status, Body: body}, nil
}

func (s *Context) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range s.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", s.opener.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if s.referer != "" && method != http.MethodGet {
		req.Header.Set("Referer", s.referer)
	}
	return req, nil
}

// do runs the request through the host's circuit breaker. Transport errors and 5xx
// replies count as breaker failures; every other status is returned to the caller.
func (s *Context) do(req *http.Request) ([]byte, int, error) {
	cb := s.opener.breaker(req.URL.Host)

	var status int
	out, err := cb.Execute(func() (interface{}, error) {
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		status = resp.StatusCode
		body, err := readBody(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode >= 500 {
			return body, fmt.Errorf("server error: status %d", resp.StatusCode)
		}
		return body, nil
	})
	if err != nil {
		if status >= 500 {
			// The breaker saw a failure but the caller still gets a status to act on.
			body, _ := out.([]byte)
			return body, status, nil
		}
		return nil, 0, err
	}
	return out.([]byte), status, nil
}
