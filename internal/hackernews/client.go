// Package hackernews is a read-only client for the public Hacker News Firebase API.
// See https://github.com/HackerNews/API.
package hackernews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/hnreader/internal/telemetry"
)

// Defaults mirror the public API and the reader's page layout.
const (
	DefaultBaseURL     = "https://hacker-news.firebaseio.com/v0"
	DefaultPageSize    = 20
	DefaultConcurrency = 8
	defaultTimeout     = 10 * time.Second
	maxResponseBytes   = 8 << 20
)

// Config controls the API client.
type Config struct {
	BaseURL     string
	PageSize    int
	Concurrency int
	Timeout     time.Duration
	UserAgent   string
}

// Client fetches stories and comments, resolving item ids concurrently.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New constructs a Client. A nil httpClient gets one with cfg.Timeout.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger.Named("hackernews")}
}

// NewStories returns one page of the newest stories, newest first. Pages are 1-based.
// Ids that no longer resolve to a live story are skipped.
func (c *Client) NewStories(ctx context.Context, page int) ([]Story, error) {
	if page < 1 {
		return nil, ErrInvalidPage
	}
	var ids []int64
	if err := c.getJSON(ctx, "newstories", "/newstories.json", &ids); err != nil {
		return nil, err
	}

	offset := (page - 1) * c.cfg.PageSize
	if offset >= len(ids) {
		return []Story{}, nil
	}
	ids = ids[offset:min(offset+c.cfg.PageSize, len(ids))]

	items, err := c.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	stories := make([]Story, 0, len(items))
	for i, it := range items {
		if it == nil || it.Deleted || it.Dead || it.Type != TypeStory {
			c.logger.Debug("skipping non-story item in new stories", zap.Int64("id", ids[i]))
			continue
		}
		stories = append(stories, it.story())
	}
	return stories, nil
}

// Story returns the story with the given id.
func (c *Client) Story(ctx context.Context, id int64) (Story, error) {
	it, err := c.item(ctx, id)
	if err != nil {
		return Story{}, err
	}
	if it.Type != TypeStory {
		return Story{}, fmt.Errorf("item %d: %w", id, ErrNotStory)
	}
	return it.story(), nil
}

// StoryComments returns the direct replies to a story in ranked display order.
func (c *Client) StoryComments(ctx context.Context, id int64) ([]Comment, error) {
	it, err := c.item(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Type != TypeStory {
		return nil, fmt.Errorf("item %d: %w", id, ErrNotStory)
	}
	if len(it.Kids) == 0 {
		return []Comment{}, nil
	}

	kids, err := c.items(ctx, it.Kids)
	if err != nil {
		return nil, err
	}
	comments := make([]Comment, 0, len(kids))
	for i, kid := range kids {
		if kid == nil {
			continue
		}
		if kid.Type != TypeComment {
			return nil, fmt.Errorf("item %d: %w", it.Kids[i], ErrNotComment)
		}
		comments = append(comments, kid.comment())
	}
	return comments, nil
}

// MaxItem returns the largest item id currently assigned.
func (c *Client) MaxItem(ctx context.Context) (int64, error) {
	var id int64
	if err := c.getJSON(ctx, "maxitem", "/maxitem.json", &id); err != nil {
		return 0, err
	}
	return id, nil
}

// items resolves ids concurrently, preserving order. Missing items are nil.
func (c *Client) items(ctx context.Context, ids []int64) ([]*Item, error) {
	out := make([]*Item, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			it, err := c.item(gctx, id)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			out[i] = &it
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch items: %w", err)
	}
	return out, nil
}

func (c *Client) item(ctx context.Context, id int64) (Item, error) {
	var it *Item
	if err := c.getJSON(ctx, "item", "/item/"+strconv.FormatInt(id, 10)+".json", &it); err != nil {
		return Item{}, err
	}
	if it == nil {
		return Item{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return *it, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, dst any) (err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		telemetry.ObserveHackerNewsRequest(endpoint, outcome)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return &UpstreamError{Endpoint: endpoint, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &UpstreamError{Endpoint: endpoint, Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", zap.String("endpoint", endpoint), zap.Error(cerr))
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &UpstreamError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dst); err != nil {
		return &UpstreamError{Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
