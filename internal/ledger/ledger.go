package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"streamnotify/internal/types"
)

// masterVersion is the reserved sort-key value marking the pointer row.
// Version tags are md5 hex strings, so they can never collide with it.
const masterVersion = "master"

// TimestampLayout is the recorded_at wall-clock format used in ledger rows.
const TimestampLayout = "2006-01-02 15:04:05 [UTC]"

// Timestamp formats t for a ledger row.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// VersionRecord is an immutable historical fact: one row per distinct
// (title, scheduled start) pair ever seen for a video.
type VersionRecord struct {
	VideoID            string `dynamodbav:"video_id"`
	Version            string `dynamodbav:"version"`
	Title              string `dynamodbav:"title"`
	ScheduledStartTime string `dynamodbav:"scheduled_start_time"`
	RecordedAt         string `dynamodbav:"time_stamp"`
}

// masterRecord is the single mutable pointer row naming which version is
// authoritative right now for a video.
type masterRecord struct {
	VideoID        string `dynamodbav:"video_id"`
	Version        string `dynamodbav:"version"`
	CurrentVersion string `dynamodbav:"current_version"`
	RecordedAt     string `dynamodbav:"time_stamp"`
}

// DynamoAPI is the subset of the DynamoDB client the ledger uses.
// The interface enables in-memory mocks in tests.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store reads and writes the schedule ledger table. The table is keyed
// (video_id, version); the "master" sort key marks the pointer row.
//
// Invariant: at most one master row exists per video, and its
// current_version names an existing version row. The invariant can be
// violated by tables written before Record existed (two independent puts
// with a crash between them); readers treat that state as "unseen" rather
// than failing.
type Store struct {
	client DynamoAPI
	table  string
	logger *slog.Logger
}

// NewStore creates a ledger Store over the given DynamoDB table.
func NewStore(client DynamoAPI, table string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, table: table, logger: logger}
}

func entityKey(videoID, version string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"video_id": &ddbtypes.AttributeValueMemberS{Value: videoID},
		"version":  &ddbtypes.AttributeValueMemberS{Value: version},
	}
}

// CurrentVersion reads the master row and returns its current_version
// pointer. A missing master row is reported via types.ErrNotFound.
func (s *Store) CurrentVersion(ctx context.Context, videoID string) (string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       entityKey(videoID, masterVersion),
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeLedgerRead,
			fmt.Sprintf("get master row for %s", videoID), err)
	}
	if out.Item == nil {
		return "", types.NewAppError(types.ErrCodeNotFoundMaster,
			fmt.Sprintf("no master row for %s", videoID), types.ErrNotFound)
	}

	var master masterRecord
	if err := attributevalue.UnmarshalMap(out.Item, &master); err != nil {
		return "", types.NewAppError(types.ErrCodeLedgerRead,
			fmt.Sprintf("unmarshal master row for %s", videoID), err)
	}
	return master.CurrentVersion, nil
}

// IsKnown reports whether version is the authoritative current version for
// videoID. This is the core deduplication check: true means the schedule
// state was already processed and the caller must skip it.
//
// A master row whose pointer matches but whose version row is missing is a
// ledger inconsistency; it is reported as unknown so the caller re-detects
// and repairs it on this cycle.
func (s *Store) IsKnown(ctx context.Context, videoID, version string) (bool, error) {
	current, err := s.CurrentVersion(ctx, videoID)
	if err != nil {
		if types.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if current != version {
		return false, nil
	}

	// Pointer matches; verify the fact it points at actually exists.
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       entityKey(videoID, version),
	})
	if err != nil {
		return false, types.NewAppError(types.ErrCodeLedgerRead,
			fmt.Sprintf("get version row %s for %s", version, videoID), err)
	}
	if out.Item == nil {
		s.logger.Warn("ledger master points at missing version row, treating as unseen",
			"video_id", videoID,
			"version", version,
		)
		return false, nil
	}
	return true, nil
}

// PutVersion upserts a version row. Version rows are append-only facts;
// re-putting an identical row is an idempotent no-op at the data level.
func (s *Store) PutVersion(ctx context.Context, rec VersionRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return types.NewAppError(types.ErrCodeLedgerWrite,
			fmt.Sprintf("marshal version row for %s", rec.VideoID), err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeLedgerWrite,
			fmt.Sprintf("put version row %s for %s", rec.Version, rec.VideoID), err)
	}
	return nil
}

// PutMaster overwrites the master pointer row. Last writer wins; there is
// no optimistic-concurrency check on the pointer.
func (s *Store) PutMaster(ctx context.Context, videoID, version, recordedAt string) error {
	item, err := attributevalue.MarshalMap(masterRecord{
		VideoID:        videoID,
		Version:        masterVersion,
		CurrentVersion: version,
		RecordedAt:     recordedAt,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeLedgerWrite,
			fmt.Sprintf("marshal master row for %s", videoID), err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeLedgerWrite,
			fmt.Sprintf("put master row for %s", videoID), err)
	}
	return nil
}

// Record writes the version row and advances the master pointer in a
// single TransactWriteItems call, so the pointer can never name a fact
// that was not durably written.
func (s *Store) Record(ctx context.Context, rec VersionRecord) error {
	versionItem, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return types.NewAppError(types.ErrCodeLedgerWrite,
			fmt.Sprintf("marshal version row for %s", rec.VideoID), err)
	}
	masterItem, err := attributevalue.MarshalMap(masterRecord{
		VideoID:        rec.VideoID,
		Version:        masterVersion,
		CurrentVersion: rec.Version,
		RecordedAt:     rec.RecordedAt,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeLedgerWrite,
			fmt.Sprintf("marshal master row for %s", rec.VideoID), err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []ddbtypes.TransactWriteItem{
			{Put: &ddbtypes.Put{TableName: aws.String(s.table), Item: versionItem}},
			{Put: &ddbtypes.Put{TableName: aws.String(s.table), Item: masterItem}},
		},
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeLedgerWrite,
			fmt.Sprintf("record version %s for %s", rec.Version, rec.VideoID), err)
	}
	return nil
}
