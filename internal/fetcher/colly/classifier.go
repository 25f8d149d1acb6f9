// Package collyfetcher implements crawler.Classifier using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/etd-crawler/internal/crawler"
	"github.com/JakeFAU/etd-crawler/internal/metrics"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodyBytes = 64 << 20
)

// Config controls collector behavior.
type Config struct {
	// BaseURL is the locator template prefix; the decimal ID is appended.
	BaseURL string
	// CookieName and CookieValue form the fixed session cookie header.
	CookieName   string
	CookieValue  string
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int
}

// Gate delays outbound requests; ratelimit.Limiter satisfies it.
type Gate interface {
	Wait(ctx context.Context, rawURL string) error
}

// Classifier performs one GET per identifier and decides whether the
// response is a downloadable attachment.
type Classifier struct {
	cfg           Config
	gate          Gate
	logger        *zap.Logger
	baseCollector *colly.Collector
}

var _ crawler.Classifier = (*Classifier)(nil)

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// outcome is filled by collector callbacks for a single visit.
type outcome struct {
	status  int
	header  http.Header
	body    []byte
	err     error
	visited bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithGate installs an outbound rate gate.
func WithGate(g Gate) Option {
	return func(c *Classifier) {
		c.gate = g
	}
}

// WithLogger sets the classifier logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTransport overrides the HTTP transport (primarily for testing).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Classifier) {
		c.baseCollector.WithTransport(rt)
	}
}

// New builds a Classifier.
func New(cfg Config, opts ...Option) (*Classifier, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.MaxBodySize(cfg.MaxBodyBytes),
		colly.ParseHTTPErrorResponse(),
	)
	c.DisableCookies()
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	cl := &Classifier{cfg: cfg, logger: zap.NewNop(), baseCollector: c}
	for _, opt := range opts {
		opt(cl)
	}
	return cl, nil
}

// Locator returns the canonical retrieval URL for id.
func (c *Classifier) Locator(id int64) string {
	return crawler.Locator(c.cfg.BaseURL, id)
}

// Classify fetches id once. Found responses carry the filename and body;
// transport failures and non-2xx responses without an attachment header
// return an error wrapping crawler.ErrFetch.
func (c *Classifier) Classify(ctx context.Context, id int64) (crawler.Classification, error) {
	target := c.Locator(id)
	result := crawler.Classification{ID: id, URL: target}

	if c.gate != nil {
		if err := c.gate.Wait(ctx, target); err != nil {
			return result, fmt.Errorf("%w: %w", crawler.ErrFetch, err)
		}
	}

	var out outcome
	collector := c.baseCollector.Clone()
	// Bound to ctx so cancellation aborts the in-flight request.
	collector.Context = ctx
	c.configureCollectorHooks(collector, &out)

	start := time.Now()
	err := c.runCollector(ctx, collector, target)
	result.Duration = time.Since(start)
	result.StatusCode = out.status
	metrics.ObserveRemoteResponse(target, out.status)
	if err != nil {
		return result, fmt.Errorf("%w: id %d: %w", crawler.ErrFetch, id, err)
	}
	if out.err != nil && !out.visited {
		return result, fmt.Errorf("%w: id %d: %w", crawler.ErrFetch, id, out.err)
	}

	if filename, ok := AttachmentFilename(out.header.Get("Content-Disposition")); ok {
		result.Found = true
		result.Filename = filename
		result.Body = out.body
		return result, nil
	}
	if out.status < 200 || out.status > 299 {
		return result, fmt.Errorf("%w: id %d: status %d", crawler.ErrFetch, id, out.status)
	}
	return result, nil
}

func (c *Classifier) configureCollectorHooks(hooks collectorHooks, out *outcome) {
	hooks.OnRequest(func(r *colly.Request) {
		if c.cfg.CookieName != "" {
			r.Headers.Set("Cookie", c.cfg.CookieName+"="+c.cfg.CookieValue)
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		out.visited = true
		out.status = r.StatusCode
		if r.Headers != nil {
			out.header = r.Headers.Clone()
		}
		out.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		out.err = err
		if r != nil && r.StatusCode != 0 {
			out.status = r.StatusCode
		}
	})
}

func (c *Classifier) runCollector(ctx context.Context, collector *colly.Collector, target string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

// AttachmentFilename reports the filename named by an attachment
// Content-Disposition header. Malformed headers fall back to the text after
// the first "filename=", trimmed of quotes.
func AttachmentFilename(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	disposition, params, err := mime.ParseMediaType(header)
	if err == nil {
		if disposition != "attachment" {
			return "", false
		}
		name := strings.TrimSpace(params["filename"])
		return name, name != ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "attachment") {
		return "", false
	}
	_, raw, found := strings.Cut(header, "filename=")
	if !found {
		return "", false
	}
	if semi := strings.IndexByte(raw, ';'); semi >= 0 && !strings.HasPrefix(raw, `"`) {
		raw = raw[:semi]
	}
	name := strings.Trim(strings.TrimSpace(raw), `"`)
	return name, name != ""
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
