package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/hnreader/internal/hackernews"
	"github.com/JakeFAU/hnreader/internal/logging"
)

func (s *Server) getPreview(w http.ResponseWriter, r *http.Request) {
	rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}
	if s.previews == nil {
		writeError(w, http.StatusServiceUnavailable, "preview service unavailable")
		return
	}

	p, ok := s.previews.PreviewFromURL(r.Context(), rawURL)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listStories(w http.ResponseWriter, r *http.Request) {
	if s.stories == nil {
		writeError(w, http.StatusServiceUnavailable, "story service unavailable")
		return
	}
	page, err := parsePage(r.URL.Query().Get("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stories, err := s.stories.NewStories(r.Context(), page)
	if err != nil {
		s.writeStoryError(r.Context(), w, "list stories", err)
		return
	}
	if stories == nil {
		stories = []hackernews.Story{}
	}
	s.warm(stories)
	writeJSON(w, http.StatusOK, stories)
}

func (s *Server) getStory(w http.ResponseWriter, r *http.Request) {
	if s.stories == nil {
		writeError(w, http.StatusServiceUnavailable, "story service unavailable")
		return
	}
	id, err := parseItemID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	story, err := s.stories.Story(r.Context(), id)
	if err != nil {
		s.writeStoryError(r.Context(), w, "get story", err)
		return
	}
	writeJSON(w, http.StatusOK, story)
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	if s.stories == nil {
		writeError(w, http.StatusServiceUnavailable, "story service unavailable")
		return
	}
	id, err := parseItemID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comments, err := s.stories.StoryComments(r.Context(), id)
	if err != nil {
		s.writeStoryError(r.Context(), w, "list comments", err)
		return
	}
	if comments == nil {
		comments = []hackernews.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

// warm queues the page's links so their previews are cached before the client asks.
func (s *Server) warm(stories []hackernews.Story) {
	if s.warmer == nil {
		return
	}
	urls := make([]string, 0, len(stories))
	for _, story := range stories {
		if story.URL != nil {
			urls = append(urls, *story.URL)
		}
	}
	if len(urls) > 0 {
		s.warmer.Offer(urls...)
	}
}

// writeStoryError maps hackernews errors onto HTTP statuses.
func (s *Server) writeStoryError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, hackernews.ErrInvalidPage),
		errors.Is(err, hackernews.ErrNotStory),
		errors.Is(err, hackernews.ErrNotComment):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, hackernews.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "hacker news request timed out")
	case hackernews.IsUpstream(err):
		logging.FromContext(ctx, s.logger).Warn(op+" upstream failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, "hacker news unavailable")
	default:
		logging.FromContext(ctx, s.logger).Error(op+" failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parsePage(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("invalid page %q", raw)
	}
	return page, nil
}

func parseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
