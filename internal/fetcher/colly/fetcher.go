// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/proxy"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
)

const defaultTimeout = 30 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	// MaxConnsPerHost caps open connections per host; 0 means unlimited.
	MaxConnsPerHost int
	// MaxBodyBytes truncates larger bodies; 0 keeps colly's 10 MiB limit.
	MaxBodyBytes int
	// Proxies are used round-robin, one per request.
	Proxies []string
}

// Fetcher performs one synchronous colly visit per Fetch. Every visit runs
// on a clone of a template collector sharing one transport.
type Fetcher struct {
	cfg      Config
	template *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. It fails only when a proxy URL is malformed.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	transport := newHTTPTransport(cfg.MaxConnsPerHost)
	if len(cfg.Proxies) > 0 {
		switcher, err := proxy.RoundRobinProxySwitcher(cfg.Proxies...)
		if err != nil {
			return nil, fmt.Errorf("configure proxies: %w", err)
		}
		transport.Proxy = switcher
	}

	template := colly.NewCollector(
		colly.Async(false),
		// Retries and rediscovery are decided upstream; colly must not drop a
		// repeated visit.
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	if cfg.UserAgent != "" {
		template.UserAgent = cfg.UserAgent
	}
	if cfg.MaxBodyBytes > 0 {
		template.MaxBodySize = cfg.MaxBodyBytes
	}
	template.SetRequestTimeout(cfg.Timeout)
	template.WithTransport(transport)

	return &Fetcher{cfg: cfg, template: template}, nil
}

// Fetch executes a single HTTP GET. Responses of 400 and above are returned
// as *crawler.StatusError.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	v := &visit{req: request, lang: f.cfg.AcceptLanguage, start: time.Now()}
	c := f.collector(ctx)
	v.attach(c)

	done := make(chan error, 1)
	go func() { done <- c.Visit(request.URL) }()

	select {
	case <-ctx.Done():
		return crawler.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if v.err != nil {
			return crawler.FetchResponse{}, fmt.Errorf("colly response failed: %w", v.err)
		}
		if err != nil {
			return crawler.FetchResponse{}, fmt.Errorf("colly visit failed: %w", err)
		}
		return v.resp, nil
	}
}

func (f *Fetcher) collector(ctx context.Context) *colly.Collector {
	c := f.template.Clone()
	c.Context = ctx
	return c
}

// visit holds the outcome of one collector run.
type visit struct {
	req   crawler.FetchRequest
	lang  string
	start time.Time

	resp crawler.FetchResponse
	err  error
}

func (v *visit) attach(hooks collectorHooks) {
	hooks.OnRequest(v.onRequest)
	hooks.OnResponse(v.onResponse)
	hooks.OnError(v.onError)
}

// onRequest sets the configured Accept-Language; request headers override it.
func (v *visit) onRequest(r *colly.Request) {
	if v.lang != "" {
		r.Headers.Set("Accept-Language", v.lang)
	}
	for key, values := range v.req.Headers {
		r.Headers.Del(key)
		for _, value := range values {
			r.Headers.Add(key, value)
		}
	}
}

func (v *visit) onResponse(r *colly.Response) {
	v.resp = crawler.FetchResponse{
		URL:        r.Request.URL.String(),
		StatusCode: r.StatusCode,
		Headers:    r.Headers.Clone(),
		Body:       append([]byte(nil), r.Body...),
		Duration:   time.Since(v.start),
	}
}

func (v *visit) onError(r *colly.Response, err error) {
	if r != nil && r.StatusCode >= http.StatusBadRequest {
		v.err = &crawler.StatusError{URL: v.req.URL, Code: r.StatusCode}
		return
	}
	v.err = err
}

func newHTTPTransport(maxConnsPerHost int) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: time.Second,
		MaxIdleConnsPerHost:   max(maxConnsPerHost, 2),
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
	}
}
