package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"streamnotify/internal/types"
)

// twitterBaseURL is the Twitter API v2 endpoint.
const twitterBaseURL = "https://api.twitter.com"

// TwitterClient posts status updates via the Twitter API v2 create-tweet
// endpoint, authenticated with an OAuth2 bearer token.
type TwitterClient struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// TwitterClientOption is a functional option for configuring a
// TwitterClient.
type TwitterClientOption func(*TwitterClient)

// WithTwitterBaseURL overrides the API endpoint. Intended for tests.
func WithTwitterBaseURL(baseURL string) TwitterClientOption {
	return func(c *TwitterClient) {
		c.baseURL = baseURL
	}
}

// NewTwitterClient creates a TwitterClient. The token is wrapped in an
// oauth2 static token source so every request carries the Authorization
// header without the token ever appearing in our own code paths or logs.
func NewTwitterClient(token types.SecretString, logger *slog.Logger, opts ...TwitterClientOption) *TwitterClient {
	if logger == nil {
		logger = slog.Default()
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.Unmask()})
	httpClient := oauth2.NewClient(context.Background(), src)
	httpClient.Timeout = 10 * time.Second

	c := &TwitterClient{
		client:  httpClient,
		baseURL: twitterBaseURL,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createTweetRequest struct {
	Text string `json:"text"`
}

// Post publishes text as a tweet. Any non-201 response is an upstream
// error; the caller decides whether it matters.
func (c *TwitterClient) Post(ctx context.Context, text string) error {
	body, err := json.Marshal(createTweetRequest{Text: text})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "marshal tweet body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "build tweet request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamTwitter, "create tweet request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return types.NewAppError(types.ErrCodeUpstreamTwitter,
			fmt.Sprintf("create tweet returned %d: %s", resp.StatusCode, string(detail)), nil)
	}

	c.logger.Info("tweet posted", "chars", len(text))
	return nil
}

var _ StatusPoster = (*TwitterClient)(nil)
