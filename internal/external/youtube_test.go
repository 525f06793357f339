package external

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"streamnotify/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func newTestYouTube(t *testing.T, handler http.HandlerFunc) *YouTubeClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewYouTubeClient("test-api-key", server.Client(), discardLogger(), WithBaseURL(server.URL))
}

func TestSearch_ParsesItemsAndSendsKey(t *testing.T) {
	var gotQuery map[string]string
	client := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %s, want /search", r.URL.Path)
		}
		q := r.URL.Query()
		gotQuery = map[string]string{
			"key":       q.Get("key"),
			"channelId": q.Get("channelId"),
			"part":      q.Get("part"),
		}
		fmt.Fprint(w, `{
			"items": [
				{"id": {"videoId": "abc123"}, "snippet": {"title": "Live A", "liveBroadcastContent": "upcoming"}},
				{"id": {"videoId": "vod999"}, "snippet": {"title": "Old VOD", "liveBroadcastContent": "none"}}
			]
		}`)
	})

	items, err := client.Search(context.Background(), "UCaaa", time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].ID.VideoID != "abc123" || !items[0].IsUpcoming() {
		t.Fatalf("first item = %+v", items[0])
	}
	if items[1].IsUpcoming() {
		t.Fatal("finished VOD reported as upcoming")
	}
	if gotQuery["key"] != "test-api-key" || gotQuery["channelId"] != "UCaaa" || gotQuery["part"] != "id,snippet" {
		t.Fatalf("query = %v", gotQuery)
	}
}

func TestSearch_FollowsPagination(t *testing.T) {
	var tokens []string
	client := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("pageToken")
		tokens = append(tokens, token)
		if token == "" {
			fmt.Fprint(w, `{"items": [{"id": {"videoId": "p1"}}], "nextPageToken": "page2"}`)
			return
		}
		fmt.Fprint(w, `{"items": [{"id": {"videoId": "p2"}}]}`)
	})

	items, err := client.Search(context.Background(), "UCaaa", time.Now())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 || items[0].ID.VideoID != "p1" || items[1].ID.VideoID != "p2" {
		t.Fatalf("items = %+v", items)
	}
	if len(tokens) != 2 || tokens[1] != "page2" {
		t.Fatalf("page tokens = %v", tokens)
	}
}

func TestSearch_EmbeddedErrorObject(t *testing.T) {
	// The Data API reports quota errors with HTTP 200 plus an error body.
	client := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": {"code": 403, "message": "quotaExceeded"}}`)
	})

	_, err := client.Search(context.Background(), "UCaaa", time.Now())
	if err == nil {
		t.Fatal("expected error")
	}
	if types.CodeOf(err) != types.ErrCodeUpstreamYouTube {
		t.Fatalf("code = %s, want %s", types.CodeOf(err), types.ErrCodeUpstreamYouTube)
	}
}

func TestSearch_ServerErrorSurfaces(t *testing.T) {
	client := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Search(context.Background(), "UCaaa", time.Now())
	if err == nil {
		t.Fatal("expected error")
	}
	if types.CodeOf(err) != types.ErrCodeUpstreamYouTube {
		t.Fatalf("code = %s, want %s", types.CodeOf(err), types.ErrCodeUpstreamYouTube)
	}
}

func TestScheduledStartTime_ReturnsRawString(t *testing.T) {
	client := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos" {
			t.Errorf("path = %s, want /videos", r.URL.Path)
		}
		if got := r.URL.Query().Get("part"); got != "liveStreamingDetails" {
			t.Errorf("part = %s", got)
		}
		fmt.Fprint(w, `{
			"items": [{"liveStreamingDetails": {"scheduledStartTime": "2024-01-01T10:00:00Z"}}]
		}`)
	})

	got, err := client.ScheduledStartTime(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("ScheduledStartTime: %v", err)
	}
	if got != "2024-01-01T10:00:00Z" {
		t.Fatalf("start time = %s", got)
	}
}

func TestScheduledStartTime_MissingDetails(t *testing.T) {
	client := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": []}`)
	})

	_, err := client.ScheduledStartTime(context.Background(), "abc123")
	if err == nil {
		t.Fatal("expected error for video without streaming details")
	}
	if types.CodeOf(err) != types.ErrCodeUpstreamYouTube {
		t.Fatalf("code = %s, want %s", types.CodeOf(err), types.ErrCodeUpstreamYouTube)
	}
}

func TestBreaker_OpensAfterConsecutiveServerErrors(t *testing.T) {
	failures := 0
	client := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		failures++
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := client.Search(ctx, "UCaaa", time.Now()); err == nil {
			t.Fatal("expected error while upstream is down")
		}
	}
	// Once the breaker opens, requests fail fast without hitting the server.
	if failures >= 10 {
		t.Fatalf("breaker never opened: %d upstream hits for 10 attempts", failures)
	}
}
