package ledger

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"streamnotify/internal/types"
)

// CategoryYouTube is the registry partition holding YouTube channel
// registrations.
const CategoryYouTube = "youtube"

// channelRow is a single channel registration in the registry table.
type channelRow struct {
	Category  string `dynamodbav:"pkey"`
	ChannelID string `dynamodbav:"channel_id"`
}

// Registry reads static channel registrations from the registry table.
// Registrations are maintained out of band; the pipeline never mutates
// them.
type Registry struct {
	client DynamoAPI
	table  string
}

// NewRegistry creates a Registry over the given DynamoDB table.
func NewRegistry(client DynamoAPI, table string) *Registry {
	return &Registry{client: client, table: table}
}

// Channels returns the channel IDs registered under category.
func (r *Registry) Channels(ctx context.Context, category string) ([]string, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("pkey = :pkey"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pkey": &ddbtypes.AttributeValueMemberS{Value: category},
		},
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeLedgerRead,
			fmt.Sprintf("query channel registrations for %s", category), err)
	}

	channels := make([]string, 0, len(out.Items))
	for _, item := range out.Items {
		var row channelRow
		if err := attributevalue.UnmarshalMap(item, &row); err != nil {
			return nil, types.NewAppError(types.ErrCodeLedgerRead,
				fmt.Sprintf("unmarshal channel registration for %s", category), err)
		}
		if row.ChannelID != "" {
			channels = append(channels, row.ChannelID)
		}
	}
	return channels, nil
}
