// Package streamfetcher streams a page body over net/http and keeps only its head.
package streamfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hnreader/internal/fetcher"
	"github.com/JakeFAU/hnreader/internal/fetcher/partial"
	"github.com/JakeFAU/hnreader/internal/telemetry"
)

const (
	defaultChunkSize = 16 << 10
	defaultTimeout   = 10 * time.Second
	maxRedirects     = 5
)

// Config controls the streaming fetcher.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	ChunkSize    int
	MaxChunks    int
	BlockPrivate bool
}

// Fetcher implements preview.Fetcher by reading the response body one chunk at a time
// and closing the connection as soon as </head> has been seen.
type Fetcher struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New constructs a Fetcher. When client is nil a client is built from cfg, refusing
// private addresses if cfg.BlockPrivate is set.
func New(cfg Config, client *http.Client, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = partial.DefaultMaxChunks
	}
	if client == nil {
		client = newClient(cfg)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, client: client, logger: logger.Named("stream_fetcher")}
}

func newClient(cfg Config) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.BlockPrivate {
		transport.DialContext = safeDialContext
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("too many redirects")
			}
			return nil
		},
	}
}

// FetchPartial returns the document from its doctype through the chunk containing </head>.
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
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fetcher.NewError(fetcher.KindRequest, rawURL, err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fetcher.NewError(fetcher.KindNetwork, rawURL, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.Debug("close response body", zap.String("url", rawURL), zap.Error(cerr))
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fetcher.StatusError(rawURL, resp.StatusCode)
	}

	buf := make([]byte, f.cfg.ChunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 && scanner.Feed(buf[:n]) {
			break
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return "", fetcher.NewError(fetcher.KindNetwork, rawURL, fmt.Errorf("read body: %w", rerr))
		}
	}

	text, err := scanner.Text()
	if err != nil {
		return "", fetcher.NewError(fetcher.KindDecode, rawURL, err)
	}
	return text, nil
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

var privateRanges = mustParseCIDRs(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, block, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		out = append(out, block)
	}
	return out
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsUnspecified() {
		return true
	}
	for _, block := range privateRanges {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

// safeDialContext resolves the host and refuses to connect if any address is private.
func safeDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("split host port: %w", err)
	}
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolve %s: no addresses", host)
	}
	for _, ip := range ips {
		if isPrivateIP(ip.IP) {
			return nil, fmt.Errorf("connection to private address %s is not allowed", ip.IP)
		}
	}
	var dialer net.Dialer
	return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].IP.String(), port))
}
