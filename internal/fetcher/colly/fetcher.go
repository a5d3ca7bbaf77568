// Package collyfetcher implements the partial HTML fetcher on top of a gocolly collector.
//
// Colly buffers the whole response body before any callback runs. To keep the fetch partial
// on the wire, the collector's transport ends identity-encoded bodies right after the chunk
// holding </head>; compressed bodies are only bounded by chunk size times the chunk ceiling.
// The buffered body is then replayed through the same chunk scanner as the streaming fetcher.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/hnreader/internal/fetcher"
	"github.com/JakeFAU/hnreader/internal/fetcher/partial"
	"github.com/JakeFAU/hnreader/internal/telemetry"
)

const (
	defaultChunkSize = 16 << 10
	defaultTimeout   = 10 * time.Second
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	ChunkSize     int
	MaxChunks     int
}

// Fetcher implements preview.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// fetchState is filled in by collector callbacks.
type fetchState struct {
	status int
	body   []byte
	err    error
}

// New builds a Fetcher. A nil transport uses a pooled default.
func New(cfg Config, transport http.RoundTripper, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = partial.DefaultMaxChunks
	}
	if transport == nil {
		transport = newHTTPTransport()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(&headTransport{next: transport, chunkSize: cfg.ChunkSize, maxChunks: cfg.MaxChunks})
	c.MaxBodySize = cfg.ChunkSize * cfg.MaxChunks
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	return &Fetcher{cfg: cfg, baseCollector: c, logger: logger.Named("colly_fetcher")}
}

// FetchPartial visits rawURL and returns the document from its doctype through </head>.
func (f *Fetcher) FetchPartial(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	scanner := partial.NewScanner(f.cfg.MaxChunks)
	text, err := f.fetch(ctx, rawURL, scanner)
	outcome := "ok"
	if err != nil {
		outcome = string(fetcher.KindOf(err))
	}
	telemetry.ObservePreviewFetch(rawURL, outcome, scanner.Chunks(), len(text))
	f.logger.Debug("partial fetch complete",
		zap.String("url", rawURL),
		zap.String("outcome", outcome),
		zap.Int("chunks", scanner.Chunks()),
		zap.Bool("head_found", scanner.Finished()),
	)
	return text, err
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string, scanner *partial.Scanner) (string, error) {
	if err := validateURL(rawURL); err != nil {
		return "", fetcher.NewError(fetcher.KindRequest, rawURL, err)
	}
	state := &fetchState{}
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, state)

	if err := f.runCollector(ctx, collector, rawURL); err != nil {
		return "", err
	}
	if state.err != nil {
		return "", fetcher.NewError(fetcher.KindNetwork, rawURL, state.err)
	}
	if state.status < http.StatusOK || state.status >= http.StatusMultipleChoices {
		return "", fetcher.StatusError(rawURL, state.status)
	}

	for start := 0; start < len(state.body); start += f.cfg.ChunkSize {
		end := min(start+f.cfg.ChunkSize, len(state.body))
		if scanner.Feed(state.body[start:end]) {
			break
		}
	}
	text, err := scanner.Text()
	if err != nil {
		return "", fetcher.NewError(fetcher.KindDecode, rawURL, err)
	}
	return text, nil
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, state *fetchState) {
	hooks.OnResponse(func(r *colly.Response) {
		state.status = r.StatusCode
		state.body = append([]byte(nil), r.Body...)
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			state.status = r.StatusCode
		}
		state.err = err
	})
}

// runCollector visits rawURL on a separate goroutine so ctx cancellation is honored even
// while colly is blocked on the network.
func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fetcher.NewError(fetcher.KindTimeout, rawURL, fmt.Errorf("colly fetch canceled: %w", ctx.Err()))
	case err := <-done:
		if err == nil {
			return nil
		}
		if isTimeout(err) {
			return fetcher.NewError(fetcher.KindTimeout, rawURL, err)
		}
		if isRequestError(err) {
			return fetcher.NewError(fetcher.KindRequest, rawURL, err)
		}
		return fetcher.NewError(fetcher.KindNetwork, rawURL, fmt.Errorf("colly visit failed: %w", err))
	}
}

// isRequestError reports colly failures raised before any bytes hit the network.
func isRequestError(err error) bool {
	return errors.Is(err, colly.ErrMissingURL) ||
		errors.Is(err, colly.ErrForbiddenURL) ||
		errors.Is(err, colly.ErrForbiddenDomain) ||
		errors.Is(err, colly.ErrRobotsTxtBlocked)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
