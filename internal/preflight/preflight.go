// Package preflight checks that the application under test is up before any
// browser is launched.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
)

// RequiredLinks are the paths the home page must link to.
var RequiredLinks = []string{"/catalog", "/login", "/register"}

var (
	// ErrUnreachable means the home page could not be fetched.
	ErrUnreachable = errors.New("application unreachable")
	// ErrMissingLinks means the home page lacks a required link.
	ErrMissingLinks = errors.New("home page is missing required links")
)

// Result describes the fetched home page.
type Result struct {
	URL      string
	Status   int
	Links    []string
	Missing  []string
	Duration time.Duration
}

// Prober fetches the home page over plain HTTP.
type Prober struct {
	timeout   time.Duration
	transport http.RoundTripper
}

// NewProber builds a prober whose requests give up after timeout.
func NewProber(timeout time.Duration) *Prober {
	return &Prober{timeout: timeout, transport: http.DefaultTransport}
}

// contextTransport binds every request to the probe's context so that
// cancelling the probe aborts a request in flight.
type contextTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.next.RoundTrip(req.WithContext(t.ctx))
}

func (p *Prober) collector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent("bookcheck-preflight/1.0"),
		colly.MaxDepth(1),
		colly.AllowURLRevisit(),
	)
	c.IgnoreRobotsTxt = true
	c.WithTransport(contextTransport{ctx: ctx, next: p.transport})
	return c
}

// Probe fetches baseURL and verifies it links to every path in required.
// Links are compared by path after resolving them against the page.
func (p *Prober) Probe(ctx context.Context, baseURL string, required []string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	c := p.collector(ctx)
	res := &Result{URL: baseURL}
	paths := map[string]bool{}
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		res.Status = r.StatusCode
	})
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Attr("href")
		res.Links = append(res.Links, href)
		if u, err := url.Parse(e.Request.AbsoluteURL(href)); err == nil {
			paths[u.Path] = true
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			res.Status = r.StatusCode
		}
		fetchErr = err
	})

	start := time.Now()
	err := c.Visit(baseURL)
	c.Wait()
	res.Duration = time.Since(start)

	if fetchErr == nil {
		fetchErr = err
	}
	if fetchErr != nil {
		return res, fmt.Errorf("%w: GET %s: %w", ErrUnreachable, baseURL, fetchErr)
	}

	for _, path := range required {
		if !paths[path] {
			res.Missing = append(res.Missing, path)
		}
	}
	if len(res.Missing) > 0 {
		return res, fmt.Errorf("%w: %v", ErrMissingLinks, res.Missing)
	}
	return res, nil
}
