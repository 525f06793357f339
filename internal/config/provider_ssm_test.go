package config

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSSMClient struct {
	values  map[string]string
	invalid []string
	err     error

	calls []*ssm.GetParametersInput
}

func (m *mockSSMClient) GetParameters(_ context.Context, params *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	m.calls = append(m.calls, params)
	if m.err != nil {
		return nil, m.err
	}

	out := &ssm.GetParametersOutput{}
	for _, name := range params.Names {
		value, ok := m.values[name]
		if !ok {
			continue
		}
		out.Parameters = append(out.Parameters, ssmtypes.Parameter{
			Name:  aws.String(name),
			Value: aws.String(value),
		})
	}
	out.InvalidParameters = m.invalid
	return out, nil
}

func TestGetParametersBatch_ResolvesWithDecryption(t *testing.T) {
	client := &mockSSMClient{values: map[string]string{
		"/prod/yt/key": "secret-a",
		"/prod/tw/tok": "secret-b",
	}}
	provider := newSSMProviderWithClient("us-east-1", client)

	got, err := provider.GetParametersBatch(context.Background(), []string{"/prod/yt/key", "/prod/tw/tok"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"/prod/yt/key": "secret-a",
		"/prod/tw/tok": "secret-b",
	}, got)

	require.Len(t, client.calls, 1)
	assert.True(t, *client.calls[0].WithDecryption, "SecureString parameters require decryption")
}

func TestGetParametersBatch_SplitsLargeBatches(t *testing.T) {
	values := make(map[string]string)
	var keys []string
	for i := 0; i < 13; i++ {
		key := fmt.Sprintf("/prod/param/%d", i)
		values[key] = fmt.Sprintf("value-%d", i)
		keys = append(keys, key)
	}
	client := &mockSSMClient{values: values}
	provider := newSSMProviderWithClient("us-east-1", client)

	got, err := provider.GetParametersBatch(context.Background(), keys)
	require.NoError(t, err)
	assert.Len(t, got, 13)

	require.Len(t, client.calls, 2)
	assert.Len(t, client.calls[0].Names, 10)
	assert.Len(t, client.calls[1].Names, 3)
}

func TestGetParametersBatch_InvalidParameterFailsBatch(t *testing.T) {
	client := &mockSSMClient{
		values:  map[string]string{"/prod/yt/key": "secret-a"},
		invalid: []string{"/prod/missing"},
	}
	provider := newSSMProviderWithClient("us-east-1", client)

	_, err := provider.GetParametersBatch(context.Background(), []string{"/prod/yt/key", "/prod/missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/prod/missing")
}

func TestGetParametersBatch_ClientFailure(t *testing.T) {
	client := &mockSSMClient{err: errors.New("access denied")}
	provider := newSSMProviderWithClient("us-east-1", client)

	_, err := provider.GetParametersBatch(context.Background(), []string{"/prod/yt/key"})
	require.Error(t, err)
}

func TestGetParametersBatch_EmptyKeys(t *testing.T) {
	provider := newSSMProviderWithClient("us-east-1", &mockSSMClient{})

	got, err := provider.GetParametersBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetParametersBatch_CancelledContext(t *testing.T) {
	client := &mockSSMClient{values: map[string]string{"/prod/yt/key": "secret-a"}}
	provider := newSSMProviderWithClient("us-east-1", client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.GetParametersBatch(ctx, []string{"/prod/yt/key"})
	require.Error(t, err)
	assert.Empty(t, client.calls)
}
