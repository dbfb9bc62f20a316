// Package goqueryscraper implements the "goquery" scraping provider: plain
// HTTP fetching through resty with goquery CSS-selector extraction over the
// parsed document. It handles static pages only; anything that needs script
// execution is out of its reach.
package goqueryscraper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/shafqat-a/scrapper/lib/htmlutil"
	"github.com/shafqat-a/scrapper/lib/provider"
	"github.com/shafqat-a/scrapper/lib/telemetry"
	"github.com/spf13/cast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("scrapper/goqueryscraper")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Scraper holds the state of one workflow run: the HTTP client with its
// cookie jar, the last parsed document and the navigation trail. It is not
// safe for concurrent use; the engine drives steps sequentially.
type Scraper struct {
	http       *resty.Client
	doc        *goquery.Document
	currentURL string
	history    []string
	userAgent  string
}

func New() *Scraper {
	return &Scraper{}
}

func (s *Scraper) Metadata() provider.Metadata {
	return provider.Metadata{
		Name:        "goquery",
		Version:     "1.0.0",
		Kind:        provider.KindScraping,
		Description: "static HTML scraping over plain HTTP",
		Capabilities: []string{
			"html_parsing",
			"css_selectors",
			"pagination",
		},
	}
}

func (s *Scraper) Initialize(ctx context.Context, config provider.Config) error {
	sub := config.Sub("goquery")

	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}

	s.userAgent = sub.String("user_agent", defaultUserAgent)

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTimeout(time.Duration(sub.Int("timeout", 30)) * time.Second)
	client.SetHeader("user-agent", s.userAgent)
	if headers, err := cast.ToStringMapStringE(sub["headers"]); err == nil {
		client.SetHeaders(headers)
	}

	telemetry.InstrumentResty(client, "scrapper/goquery/http")

	s.http = client
	return nil
}

func (s *Scraper) ExecuteInit(ctx context.Context, config provider.InitConfig) (*provider.PageContext, error) {
	ctx, span := tracer.Start(ctx, "scraper:ExecuteInit")
	defer span.End()
	span.SetAttributes(attribute.String("url", config.URL))

	if s.http == nil {
		return nil, fmt.Errorf("scraper is not initialized")
	}

	target, err := url.Parse(config.URL)
	if err != nil {
		span.SetStatus(codes.Error, "invalid url")
		return nil, err
	}
	for _, c := range config.Cookies {
		s.http.GetClient().Jar.SetCookies(target, []*http.Cookie{{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		}})
	}

	res, err := s.http.R().
		SetContext(ctx).
		SetHeaders(config.Headers).
		Get(config.URL)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		span.SetStatus(codes.Error, "non-200 response")
		return nil, fmt.Errorf("fetch %s: HTTP %d", config.URL, res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, err
	}

	if delay, ok := config.WaitDelay(); ok {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if selector, ok := config.WaitSelector(); ok {
		if doc.Find(selector).Length() == 0 {
			span.SetStatus(codes.Error, "wait selector not found")
			return nil, fmt.Errorf("wait selector %q matched nothing at %s", selector, config.URL)
		}
	}

	finalURL := config.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalURL = res.RawResponse.Request.URL.String()
	}

	s.doc = doc
	s.currentURL = finalURL
	s.history = []string{finalURL}

	return s.pageContext(config.Cookies), nil
}

func (s *Scraper) ExecuteDiscover(ctx context.Context, config provider.DiscoverConfig, page *provider.PageContext) ([]provider.DataElement, error) {
	ctx, span := tracer.Start(ctx, "scraper:ExecuteDiscover")
	defer span.End()

	if s.doc == nil {
		return nil, fmt.Errorf("no page loaded, init must run first")
	}

	var elements []provider.DataElement
	for elementType, selector := range config.Selectors {
		s.doc.Find(selector).Each(func(i int, sel *goquery.Selection) {
			var attrs map[string]string
			if len(sel.Nodes) > 0 {
				attrs = htmlutil.NodeAttributes(sel.Nodes[0])
			}
			elements = append(elements, provider.DataElement{
				Type:       elementType,
				Selector:   selector,
				Value:      htmlutil.CleanText(sel.Text()),
				Attributes: attrs,
				Metadata: map[string]any{
					"tag_name":   goquery.NodeName(sel),
					"index":      i,
					"source_url": s.currentURL,
				},
			})
		})
	}

	span.SetAttributes(attribute.Int("count", len(elements)))
	return elements, nil
}

func (s *Scraper) ExecuteExtract(ctx context.Context, config provider.ExtractConfig, page *provider.PageContext) ([]provider.DataElement, error) {
	ctx, span := tracer.Start(ctx, "scraper:ExecuteExtract")
	defer span.End()

	if s.doc == nil {
		return nil, fmt.Errorf("no page loaded, init must run first")
	}

	var elements []provider.DataElement
	for field, spec := range config.Elements {
		s.doc.Find(spec.Selector).Each(func(i int, sel *goquery.Selection) {
			value, err := extractValue(sel, spec)
			if err != nil {
				span.RecordError(err)
				return
			}

			var attrs map[string]string
			if len(sel.Nodes) > 0 {
				attrs = htmlutil.NodeAttributes(sel.Nodes[0])
			}
			elements = append(elements, provider.DataElement{
				Type:       field,
				Selector:   spec.Selector,
				Value:      value,
				Attributes: attrs,
				Metadata: map[string]any{
					"extract_type": spec.Type,
					"transform":    spec.Transform,
					"tag_name":     goquery.NodeName(sel),
					"source_url":   s.currentURL,
				},
			})
		})
	}

	span.SetAttributes(attribute.Int("count", len(elements)))
	return elements, nil
}

func extractValue(sel *goquery.Selection, spec provider.ElementSpec) (any, error) {
	var raw string
	switch spec.Type {
	case "", "text":
		raw = htmlutil.CleanText(sel.Text())
	case "html":
		html, err := goquery.OuterHtml(sel)
		if err != nil {
			return nil, err
		}
		raw = html
	case "attribute":
		raw = sel.AttrOr(spec.Attribute, "")
	default:
		return nil, fmt.Errorf("unknown extraction type: %s", spec.Type)
	}

	switch spec.Transform {
	case "float":
		cleaned := strings.NewReplacer(",", "", "$", "").Replace(raw)
		f, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
		if err != nil {
			return 0.0, nil
		}
		return f, nil
	case "int":
		cleaned := strings.ReplaceAll(raw, ",", "")
		n, err := strconv.Atoi(strings.TrimSpace(cleaned))
		if err != nil {
			return 0, nil
		}
		return n, nil
	}
	return raw, nil
}

func (s *Scraper) ExecutePaginate(ctx context.Context, config provider.PaginateConfig, page *provider.PageContext) (*provider.PageContext, error) {
	ctx, span := tracer.Start(ctx, "scraper:ExecutePaginate")
	defer span.End()

	if s.http == nil || s.doc == nil {
		return nil, fmt.Errorf("no page loaded, init must run first")
	}

	sel := s.doc.Find(config.NextPageSelector).First()
	if sel.Length() == 0 {
		span.AddEvent("no next page element")
		return nil, nil
	}

	anchors := htmlutil.GetAnchors(ctx, sel)
	if len(anchors) == 0 || anchors[0].Href == "" {
		span.AddEvent("next page element has no href")
		return nil, nil
	}

	base, err := url.Parse(s.currentURL)
	if err != nil {
		return nil, err
	}
	next, err := url.Parse(anchors[0].Href)
	if err != nil {
		span.SetStatus(codes.Error, "invalid next page href")
		return nil, err
	}
	nextURL := base.ResolveReference(next).String()
	span.SetAttributes(attribute.String("next_url", nextURL))

	select {
	case <-time.After(config.WaitAfterClickDelay()):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	res, err := s.http.R().
		SetContext(ctx).
		Get(nextURL)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch next page")
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		// A broken next link terminates pagination instead of failing
		// the step.
		span.AddEvent("non-200 next page", trace.WithAttributes(
			attribute.Int("status", res.StatusCode()),
		))
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse next page")
		return nil, err
	}

	s.doc = doc
	s.currentURL = nextURL
	s.history = append(s.history, nextURL)

	var cookies []provider.Cookie
	if page != nil {
		cookies = page.Cookies
	}
	return s.pageContext(cookies), nil
}

func (s *Scraper) Cleanup(ctx context.Context) error {
	s.doc = nil
	s.http = nil
	s.history = nil
	s.currentURL = ""
	return nil
}

func (s *Scraper) HealthCheck(ctx context.Context) bool {
	return s.http != nil
}

func (s *Scraper) pageContext(cookies []provider.Cookie) *provider.PageContext {
	title := ""
	if s.doc != nil {
		title = htmlutil.CleanText(s.doc.Find("title").First().Text())
	}
	history := make([]string, len(s.history))
	copy(history, s.history)

	return &provider.PageContext{
		URL:               s.currentURL,
		Title:             title,
		Cookies:           cookies,
		NavigationHistory: history,
		Viewport:          provider.DefaultViewport(),
		UserAgent:         s.userAgent,
	}
}
