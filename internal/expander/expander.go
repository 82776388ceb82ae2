// Package expander is the fetch-and-expand step of a crawl: it fetches one URL
// with bounded retry, optionally re-renders it headlessly, archives the raw
// payload and runs the retailer profile over it.
package expander

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
	"github.com/JakeFAU/sale-shoe-crawler/internal/metrics"
	"github.com/JakeFAU/sale-shoe-crawler/internal/profile"
)

// Config controls Expander behavior.
type Config struct {
	// Headers are sent with every request.
	Headers http.Header
	// ArchivePrefix is the leading path segment of archived payloads.
	ArchivePrefix string
}

// Deps are the collaborators of an Expander. Profile, Fetcher and Retry are
// required; the rest switch features on when set.
type Deps struct {
	Profile  profile.Profile
	Fetcher  crawler.Fetcher
	Retry    crawler.RetryPolicy
	Pacer    crawler.Pacer
	Headless crawler.Fetcher
	Detector crawler.HeadlessDetector
	Archive  crawler.BlobStore
	Hasher   crawler.Hasher
}

// Expander implements crawler.Expander for one retailer profile.
type Expander struct {
	profile  profile.Profile
	fetcher  crawler.Fetcher
	retry    crawler.RetryPolicy
	pacer    crawler.Pacer
	headless crawler.Fetcher
	detector crawler.HeadlessDetector
	archive  crawler.BlobStore
	hasher   crawler.Hasher
	cfg      Config
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

var _ crawler.Expander = (*Expander)(nil)

// New constructs an Expander.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Expander, error) {
	if deps.Profile == nil {
		return nil, errors.New("profile is required")
	}
	if deps.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if deps.Retry == nil {
		return nil, errors.New("retry policy is required")
	}
	if deps.Archive != nil && deps.Hasher == nil {
		return nil, errors.New("hasher is required when archiving")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Expander{
		profile:  deps.Profile,
		fetcher:  deps.Fetcher,
		retry:    deps.Retry,
		pacer:    deps.Pacer,
		headless: deps.Headless,
		detector: deps.Detector,
		archive:  deps.Archive,
		hasher:   deps.Hasher,
		cfg:      cfg,
		logger:   logger.Named("expander").With(zap.String("profile", deps.Profile.Name())),
		sleep:    sleepContext,
	}, nil
}

// Expand fetches url and returns what it contributes to the crawl. Errors mean
// the URL failed; products that cannot be mapped are skipped without failing
// the page.
func (e *Expander) Expand(ctx context.Context, url string) (crawler.Expansion, error) {
	kind := e.profile.SelectType(url)
	if kind == crawler.KindUnknown {
		return crawler.Expansion{}, fmt.Errorf("expand %s: url matches no page type", crawler.StripQuery(url))
	}

	resp, err := e.fetch(ctx, url)
	if err != nil {
		return crawler.Expansion{}, err
	}
	resp = e.maybePromote(ctx, url, resp)
	e.archivePayload(ctx, resp)

	doc, err := e.profile.Decode(url, resp.Body)
	if err != nil {
		return crawler.Expansion{}, fmt.Errorf("decode %s: %w", crawler.StripQuery(url), err)
	}

	if kind == crawler.KindSection {
		return e.expandSection(url, doc)
	}
	return e.expandGood(ctx, url, doc)
}

func (e *Expander) expandSection(url string, doc profile.Document) (crawler.Expansion, error) {
	var exp crawler.Expansion
	if e.profile.IsFirstPage(url) {
		pages, err := e.profile.PagesCount(doc)
		if err != nil {
			return crawler.Expansion{}, fmt.Errorf("count pages: %w", err)
		}
		exp.Pages = e.profile.PageURLs(url, pages)
	}

	listing, err := e.profile.Listing(doc)
	if err != nil {
		return crawler.Expansion{}, fmt.Errorf("list section: %w", err)
	}
	exp.Goods = listing.Goods
	for _, item := range listing.Items {
		if rec, ok := e.parse(item); ok {
			exp.Records = append(exp.Records, rec)
		}
	}
	e.logger.Debug("section expanded",
		zap.String("url", crawler.StripQuery(url)),
		zap.Int("pages", len(exp.Pages)),
		zap.Int("goods", len(exp.Goods)),
		zap.Int("records", len(exp.Records)),
	)
	return exp, nil
}

func (e *Expander) expandGood(ctx context.Context, url string, doc profile.Document) (crawler.Expansion, error) {
	if companion := e.profile.Companion(url); companion != "" {
		resp, err := e.fetch(ctx, companion)
		if err != nil {
			return crawler.Expansion{}, fmt.Errorf("fetch companion: %w", err)
		}
		data, err := profile.DecodeJSON(resp.Body)
		if err != nil {
			return crawler.Expansion{}, fmt.Errorf("decode companion %s: %w", crawler.StripQuery(companion), err)
		}
		doc.Companion = data
	}

	var exp crawler.Expansion
	if rec, ok := e.parse(doc); ok {
		exp.Records = append(exp.Records, rec)
	}
	return exp, nil
}

func (e *Expander) parse(item profile.Document) (crawler.Record, bool) {
	rec, err := e.profile.ParseRecord(item)
	if err != nil {
		metrics.ObserveRecordMappingError(e.profile.Name())
		e.logger.Debug("record skipped", zap.String("url", crawler.StripQuery(item.URL)), zap.Error(err))
		return crawler.Record{}, false
	}
	return rec, true
}

// fetch runs the pacer and the probe fetcher until the retry policy gives up.
func (e *Expander) fetch(ctx context.Context, url string) (crawler.FetchResponse, error) {
	request := crawler.FetchRequest{
		URL:     url,
		Profile: e.profile.Name(),
		Headers: e.cfg.Headers,
	}
	for attempt := 1; ; attempt++ {
		if e.pacer != nil {
			if err := e.pacer.Wait(ctx, url); err != nil {
				return crawler.FetchResponse{}, fmt.Errorf("pace %s: %w", crawler.StripQuery(url), err)
			}
		}
		resp, err := e.fetcher.Fetch(ctx, request)
		if err == nil {
			metrics.ObserveFetch(url, "success", len(resp.Body))
			return resp, nil
		}
		metrics.ObserveFetch(url, "error", 0)

		if !e.retry.ShouldRetry(err, attempt) {
			return crawler.FetchResponse{}, fmt.Errorf("fetch %s (attempt %d): %w", crawler.StripQuery(url), attempt, err)
		}
		metrics.ObserveRetry(url)
		backoff := e.retry.Backoff(attempt)
		e.logger.Debug("fetch retry",
			zap.String("url", crawler.StripQuery(url)),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if err := e.sleep(ctx, backoff); err != nil {
			return crawler.FetchResponse{}, fmt.Errorf("fetch %s: %w", crawler.StripQuery(url), err)
		}
	}
}

func (e *Expander) maybePromote(ctx context.Context, url string, resp crawler.FetchResponse) crawler.FetchResponse {
	if e.detector == nil || e.headless == nil || !e.detector.ShouldPromote(resp) {
		return resp
	}
	headlessResp, err := e.headless.Fetch(ctx, crawler.FetchRequest{
		URL:         url,
		Profile:     e.profile.Name(),
		UseHeadless: true,
		Headers:     e.cfg.Headers,
	})
	metrics.ObserveHeadlessPromotion(url, err == nil)
	if err != nil {
		e.logger.Warn("headless promotion failed", zap.String("url", crawler.StripQuery(url)), zap.Error(err))
		return resp
	}
	headlessResp.UsedHeadless = true
	e.logger.Debug("headless promotion applied", zap.String("url", crawler.StripQuery(url)))
	return headlessResp
}

// archivePayload stores the raw body keyed by its digest. Failures are logged
// and never fail the URL.
func (e *Expander) archivePayload(ctx context.Context, resp crawler.FetchResponse) {
	if e.archive == nil || len(resp.Body) == 0 {
		return
	}
	digest, err := e.hasher.Hash(resp.Body)
	if err != nil {
		e.logger.Warn("hash payload failed", zap.String("url", crawler.StripQuery(resp.URL)), zap.Error(err))
		return
	}
	path := e.archivePath(digest, resp.ContentType())
	if _, err := e.archive.PutObject(ctx, path, resp.ContentType(), bytes.NewReader(resp.Body)); err != nil {
		e.logger.Warn("archive payload failed", zap.String("path", path), zap.Error(err))
	}
}

func (e *Expander) archivePath(digest, contentType string) string {
	ext := "html"
	if strings.Contains(strings.ToLower(contentType), "json") {
		ext = "json"
	}
	name := fmt.Sprintf("%s/%s.%s", e.profile.Name(), digest, ext)
	prefix := strings.Trim(e.cfg.ArchivePrefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
