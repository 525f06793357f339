package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"

	"streamnotify/internal/types"
)

// youtubeBaseURL is the YouTube Data API v3 endpoint.
const youtubeBaseURL = "https://www.googleapis.com/youtube/v3"

// maxSearchPages bounds pagination on channel search. One page holds 50
// results; an hourly poll over a 7-day window never legitimately needs
// more than a few.
const maxSearchPages = 3

// liveBroadcastUpcoming is the snippet flag marking a not-yet-started
// broadcast.
const liveBroadcastUpcoming = "upcoming"

// SearchItem is one entry from a channel search response.
type SearchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title                string `json:"title"`
		ChannelTitle         string `json:"channelTitle"`
		LiveBroadcastContent string `json:"liveBroadcastContent"`
	} `json:"snippet"`
}

// IsUpcoming reports whether the entry is an upcoming live broadcast.
func (i SearchItem) IsUpcoming() bool {
	return i.Snippet.LiveBroadcastContent == liveBroadcastUpcoming
}

// apiError is the error object the Data API embeds in a response body.
// Its presence marks the whole response as failed regardless of shape.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type searchResponse struct {
	Items         []SearchItem `json:"items"`
	NextPageToken string       `json:"nextPageToken"`
	Error         *apiError    `json:"error"`
}

type videosResponse struct {
	Items []struct {
		LiveStreamingDetails struct {
			ScheduledStartTime string `json:"scheduledStartTime"`
		} `json:"liveStreamingDetails"`
	} `json:"items"`
	Error *apiError `json:"error"`
}

// YouTubeClient calls the YouTube Data API v3 with an API key. All
// requests pass through a shared circuit breaker so a dead or throttling
// upstream fails fast instead of burning the invocation's time budget.
type YouTubeClient struct {
	apiKey  types.SecretString
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	baseURL string
	logger  *slog.Logger
}

// YouTubeClientOption is a functional option for configuring a
// YouTubeClient.
type YouTubeClientOption func(*YouTubeClient)

// WithBaseURL overrides the API endpoint. Intended for tests.
func WithBaseURL(baseURL string) YouTubeClientOption {
	return func(c *YouTubeClient) {
		c.baseURL = baseURL
	}
}

// NewYouTubeClient creates a YouTubeClient with the given API key.
func NewYouTubeClient(apiKey types.SecretString, httpClient *http.Client, logger *slog.Logger, opts ...YouTubeClientOption) *YouTubeClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "youtube-data-api",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	c := &YouTubeClient{
		apiKey:  apiKey,
		client:  httpClient,
		breaker: cb,
		baseURL: youtubeBaseURL,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns recent entries for a channel published after the given
// instant, following nextPageToken up to maxSearchPages pages.
func (c *YouTubeClient) Search(ctx context.Context, channelID string, publishedAfter time.Time) ([]SearchItem, error) {
	var items []SearchItem
	pageToken := ""

	for page := 0; page < maxSearchPages; page++ {
		params := url.Values{
			"key":            {c.apiKey.Unmask()},
			"channelId":      {channelID},
			"part":           {"id,snippet"},
			"maxResults":     {"50"},
			"publishedAfter": {publishedAfter.UTC().Format(types.StartTimeLayout)},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var res searchResponse
		if err := c.get(ctx, "/search", params, &res); err != nil {
			return nil, err
		}
		if res.Error != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamYouTube,
				fmt.Sprintf("search channel %s failed: %s (code %d)", channelID, res.Error.Message, res.Error.Code), nil)
		}

		items = append(items, res.Items...)
		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}

	return items, nil
}

// ScheduledStartTime returns the raw scheduledStartTime string for a video.
// The string is passed through untouched: the version tag hashes it as-is.
func (c *YouTubeClient) ScheduledStartTime(ctx context.Context, videoID string) (string, error) {
	params := url.Values{
		"key":        {c.apiKey.Unmask()},
		"id":         {videoID},
		"part":       {"liveStreamingDetails"},
		"maxResults": {"50"},
	}

	var res videosResponse
	if err := c.get(ctx, "/videos", params, &res); err != nil {
		return "", err
	}
	if res.Error != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamYouTube,
			fmt.Sprintf("lookup video %s failed: %s (code %d)", videoID, res.Error.Message, res.Error.Code), nil)
	}
	if len(res.Items) == 0 || res.Items[0].LiveStreamingDetails.ScheduledStartTime == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamYouTube,
			fmt.Sprintf("video %s has no scheduled start time", videoID), nil)
	}

	return res.Items[0].LiveStreamingDetails.ScheduledStartTime, nil
}

// get executes a GET through the circuit breaker and decodes the JSON body
// into out. The Data API reports failures both as HTTP status codes and as
// an embedded error object, so the body is decoded even on non-2xx
// responses; callers check the decoded Error field.
func (c *YouTubeClient) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "build youtube request", err)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		// 5xx and 429 trip the breaker; 4xx with an error body does not,
		// since quota errors are per-key, not an upstream outage.
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			r.Body.Close()
			return nil, fmt.Errorf("youtube returned %d", r.StatusCode)
		}
		return r, nil
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamYouTube,
			fmt.Sprintf("youtube request %s failed", path), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamYouTube, "read youtube response", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamYouTube,
			fmt.Sprintf("decode youtube response (status %d)", resp.StatusCode), err)
	}
	return nil
}

var _ ScheduleSource = (*YouTubeClient)(nil)
