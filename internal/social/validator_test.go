package social

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"streamnotify/internal/types"
)

// ============================================================
// Mocks
// ============================================================

type mockLedgerReader struct {
	versions map[string]string
	err      error
}

func (m *mockLedgerReader) CurrentVersion(_ context.Context, videoID string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	version, ok := m.versions[videoID]
	if !ok {
		return "", types.NewAppError(types.ErrCodeNotFoundMaster, "no master row", types.ErrNotFound)
	}
	return version, nil
}

type mockPoster struct {
	posts []string
	err   error
}

func (m *mockPoster) Post(_ context.Context, text string) error {
	if m.err != nil {
		return m.err
	}
	m.posts = append(m.posts, text)
	return nil
}

type mockDisarmer struct {
	disarmed []string
	err      error
}

func (m *mockDisarmer) Disarm(_ context.Context, name string) error {
	m.disarmed = append(m.disarmed, name)
	return m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func newTestValidator(ledger *mockLedgerReader, poster *mockPoster, disarmer *mockDisarmer) *Validator {
	return NewValidator(ValidatorConfig{
		Ledger: ledger,
		Poster: poster,
		Rules:  disarmer,
		Logger: discardLogger(),
	})
}

func testPost() types.DeferredPost {
	return types.DeferredPost{
		ScheduleDetected: types.ScheduleDetected{
			ChannelID:          "UCaaa",
			VideoID:            "abc123",
			Version:            "v1",
			Title:              "Live A",
			ScheduledStartTime: "2024-01-01T10:00:00Z",
			TraceID:            "trace-1",
		},
		Purpose:  types.PurposeStart,
		Status:   "stream started",
		RuleName: "rul_UCaaa_abc123_start",
	}
}

// ============================================================
// Process
// ============================================================

func TestProcess_CurrentVersionPostsAndDisarms(t *testing.T) {
	ledger := &mockLedgerReader{versions: map[string]string{"abc123": "v1"}}
	poster := &mockPoster{}
	disarmer := &mockDisarmer{}

	if err := newTestValidator(ledger, poster, disarmer).Process(context.Background(), testPost()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(poster.posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(poster.posts))
	}
	if want := "stream started\nLive A"; poster.posts[0] != want {
		t.Fatalf("post text = %q, want %q", poster.posts[0], want)
	}
	if len(disarmer.disarmed) != 1 || disarmer.disarmed[0] != "rul_UCaaa_abc123_start" {
		t.Fatalf("disarmed = %v", disarmer.disarmed)
	}
}

func TestProcess_SupersededVersionDiscardedWithoutPost(t *testing.T) {
	ledger := &mockLedgerReader{versions: map[string]string{"abc123": "v2"}}
	poster := &mockPoster{}
	disarmer := &mockDisarmer{}

	if err := newTestValidator(ledger, poster, disarmer).Process(context.Background(), testPost()); err != nil {
		t.Fatalf("stale discard must not error: %v", err)
	}
	if len(poster.posts) != 0 {
		t.Fatal("stale action must not post")
	}
	if len(disarmer.disarmed) != 1 {
		t.Fatal("stale action must still disarm its rule")
	}
}

func TestProcess_MissingMasterRowTreatedAsStale(t *testing.T) {
	ledger := &mockLedgerReader{versions: map[string]string{}}
	poster := &mockPoster{}
	disarmer := &mockDisarmer{}

	if err := newTestValidator(ledger, poster, disarmer).Process(context.Background(), testPost()); err != nil {
		t.Fatalf("missing master row must be a discard, not an error: %v", err)
	}
	if len(poster.posts) != 0 {
		t.Fatal("must not post without an authoritative version")
	}
	if len(disarmer.disarmed) != 1 {
		t.Fatal("rule must still be disarmed")
	}
}

func TestProcess_LedgerReadFailurePropagates(t *testing.T) {
	ledger := &mockLedgerReader{err: types.NewAppError(types.ErrCodeLedgerRead, "throttled", errors.New("throttled"))}
	poster := &mockPoster{}
	disarmer := &mockDisarmer{}

	err := newTestValidator(ledger, poster, disarmer).Process(context.Background(), testPost())
	if err == nil {
		t.Fatal("expected error")
	}
	if types.CodeOf(err) != types.ErrCodeLedgerRead {
		t.Fatalf("code = %s, want %s", types.CodeOf(err), types.ErrCodeLedgerRead)
	}
	// A read failure is retryable: leave the rule armed and do not post.
	if len(poster.posts) != 0 || len(disarmer.disarmed) != 0 {
		t.Fatal("read failure must not post or disarm")
	}
}

func TestProcess_PostFailureStillDisarms(t *testing.T) {
	ledger := &mockLedgerReader{versions: map[string]string{"abc123": "v1"}}
	poster := &mockPoster{err: types.NewAppError(types.ErrCodeUpstreamTwitter, "rate limited", nil)}
	disarmer := &mockDisarmer{}

	err := newTestValidator(ledger, poster, disarmer).Process(context.Background(), testPost())
	if err == nil {
		t.Fatal("post failure must surface")
	}
	if types.CodeOf(err) != types.ErrCodeUpstreamTwitter {
		t.Fatalf("code = %s, want %s", types.CodeOf(err), types.ErrCodeUpstreamTwitter)
	}
	if len(disarmer.disarmed) != 1 {
		t.Fatal("rule must be disarmed even when the post fails")
	}
}

func TestProcess_PostAndDisarmBothFailing(t *testing.T) {
	ledger := &mockLedgerReader{versions: map[string]string{"abc123": "v1"}}
	poster := &mockPoster{err: errors.New("post failed")}
	disarmer := &mockDisarmer{err: errors.New("disarm failed")}

	err := newTestValidator(ledger, poster, disarmer).Process(context.Background(), testPost())
	if err == nil {
		t.Fatal("expected joined error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "post failed") || !strings.Contains(msg, "disarm failed") {
		t.Fatalf("joined error missing a cause: %v", err)
	}
}

func TestProcess_EmptyRuleNameSkipsDisarm(t *testing.T) {
	ledger := &mockLedgerReader{versions: map[string]string{"abc123": "v1"}}
	poster := &mockPoster{}
	disarmer := &mockDisarmer{}

	post := testPost()
	post.RuleName = ""

	if err := newTestValidator(ledger, poster, disarmer).Process(context.Background(), post); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(poster.posts) != 1 {
		t.Fatal("post must still go out")
	}
	if len(disarmer.disarmed) != 0 {
		t.Fatal("nothing to disarm without a rule name")
	}
}

// ============================================================
// HandleEvent
// ============================================================

func TestHandleEvent_MalformedRecordDroppedValidProcessed(t *testing.T) {
	ledger := &mockLedgerReader{versions: map[string]string{"abc123": "v1"}}
	poster := &mockPoster{}
	disarmer := &mockDisarmer{}
	validator := newTestValidator(ledger, poster, disarmer)

	event := events.SNSEvent{Records: []events.SNSEventRecord{
		{SNS: events.SNSEntity{MessageID: "m1", Message: "{{{"}},
		{SNS: events.SNSEntity{MessageID: "m2", Message: `{
			"channel_id": "UCaaa",
			"video_id": "abc123",
			"version": "v1",
			"title": "Live A",
			"scheduled_start_time": "2024-01-01T10:00:00Z",
			"trace_id": "trace-1",
			"purpose": "start",
			"status": "stream started",
			"rule_name": "rul_UCaaa_abc123_start"
		}`}},
	}}

	if err := validator.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(poster.posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(poster.posts))
	}
}
