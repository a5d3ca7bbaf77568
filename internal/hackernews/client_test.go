package hackernews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeAPI serves a tiny in-memory copy of the Firebase API.
type fakeAPI struct {
	newStories []int64
	items      map[int64]any
	maxItem    int64
	failItem   int64
	requests   atomic.Int32
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/v0/newstories.json":
		_ = json.NewEncoder(w).Encode(f.newStories)
	case r.URL.Path == "/v0/maxitem.json":
		_ = json.NewEncoder(w).Encode(f.maxItem)
	case strings.HasPrefix(r.URL.Path, "/v0/item/"):
		var id int64
		if _, err := fmt.Sscanf(strings.TrimPrefix(r.URL.Path, "/v0/item/"), "%d.json", &id); err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}
		if id == f.failItem {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		item, ok := f.items[id]
		if !ok {
			_, _ = w.Write([]byte("null"))
			return
		}
		_ = json.NewEncoder(w).Encode(item)
	default:
		http.NotFound(w, r)
	}
}

func story(id int64, kids ...int64) map[string]any {
	return map[string]any{
		"id": id, "type": "story", "by": "pg", "time": 1160418111, "score": 57,
		"title": fmt.Sprintf("Story %d", id), "url": fmt.Sprintf("https://example.com/%d", id),
		"kids": kids, "descendants": len(kids),
	}
}

func comment(id, parent int64) map[string]any {
	return map[string]any{
		"id": id, "type": "comment", "by": "norvig", "time": 1160418628,
		"parent": parent, "text": "<p>Nice</p>",
	}
}

func newTestClient(t *testing.T, api *fakeAPI, pageSize int) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/v0/", PageSize: pageSize}, srv.Client(), nil)
}

func TestNewStoriesPaging(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{newStories: []int64{1, 2, 3, 4, 5}, items: map[int64]any{}}
	for id := int64(1); id <= 5; id++ {
		api.items[id] = story(id)
	}
	c := newTestClient(t, api, 2)
	ctx := context.Background()

	first, err := c.NewStories(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.EqualValues(t, 1, first[0].ID)
	require.EqualValues(t, 2, first[1].ID)

	third, err := c.NewStories(ctx, 3)
	require.NoError(t, err)
	require.Len(t, third, 1)
	require.EqualValues(t, 5, third[0].ID)

	beyond, err := c.NewStories(ctx, 4)
	require.NoError(t, err)
	require.Empty(t, beyond)

	_, err = c.NewStories(ctx, 0)
	require.ErrorIs(t, err, ErrInvalidPage)
}

func TestNewStoriesSkipsMissingAndNonStories(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		newStories: []int64{10, 11, 12, 13},
		items: map[int64]any{
			10: story(10),
			11: map[string]any{"id": 11, "type": "job", "time": 1, "title": "Hiring"},
			13: map[string]any{"id": 13, "type": "story", "deleted": true, "time": 1},
		},
	}
	c := newTestClient(t, api, DefaultPageSize)

	stories, err := c.NewStories(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	require.Equal(t, "Story 10", stories[0].Title)
	require.Equal(t, "https://example.com/10", *stories[0].URL)
}

func TestNewStoriesUpstreamFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{newStories: []int64{1, 2}, items: map[int64]any{1: story(1)}, failItem: 2}
	c := newTestClient(t, api, DefaultPageSize)

	_, err := c.NewStories(context.Background(), 1)
	require.True(t, IsUpstream(err))
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	require.Equal(t, http.StatusInternalServerError, ue.StatusCode)
}

func TestStory(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{items: map[int64]any{
		8863: story(8863, 9224),
		9224: comment(9224, 8863),
	}}
	c := newTestClient(t, api, DefaultPageSize)
	ctx := context.Background()

	s, err := c.Story(ctx, 8863)
	require.NoError(t, err)
	require.Equal(t, "pg", s.By)
	require.Equal(t, []int64{9224}, s.Kids)
	require.Equal(t, 1, *s.Descendants)

	_, err = c.Story(ctx, 9224)
	require.ErrorIs(t, err, ErrNotStory)

	_, err = c.Story(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, IsUpstream(err))
}

func TestStoryComments(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{items: map[int64]any{
		1: story(1, 3, 2, 99),
		2: comment(2, 1),
		3: comment(3, 1),
		4: story(4),
		5: story(5, 6),
		6: story(6),
	}}
	c := newTestClient(t, api, DefaultPageSize)
	ctx := context.Background()

	comments, err := c.StoryComments(ctx, 1)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.EqualValues(t, 3, comments[0].ID, "ranked order must be preserved")
	require.EqualValues(t, 2, comments[1].ID)
	require.Equal(t, "<p>Nice</p>", *comments[0].Text)
	require.EqualValues(t, 1, *comments[0].Parent)

	empty, err := c.StoryComments(ctx, 4)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	_, err = c.StoryComments(ctx, 5)
	require.ErrorIs(t, err, ErrNotComment)

	_, err = c.StoryComments(ctx, 2)
	require.ErrorIs(t, err, ErrNotStory)
}

func TestMaxItem(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeAPI{maxItem: 41000000}, DefaultPageSize)
	id, err := c.MaxItem(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 41000000, id)
}

func TestDecodeError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, srv.Client(), nil)
	_, err := c.MaxItem(context.Background())
	require.True(t, IsUpstream(err))
	require.ErrorContains(t, err, "decode response")
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeAPI{}, DefaultPageSize)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.MaxItem(ctx)
	require.True(t, errors.Is(err, context.Canceled))
}
