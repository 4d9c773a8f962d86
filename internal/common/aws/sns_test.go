package aws

import (
	"context"
	"errors"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublishAPI struct {
	input *sns.PublishInput
	err   error
}

func (f *fakePublishAPI) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: awssdk.String("msg-1")}, nil
}

func TestSNSClient_PublishMessage(t *testing.T) {
	api := &fakePublishAPI{}
	client := NewSNSClientWithAPI(api, "arn:aws:sns:us-east-1:123456789012:board")

	id, err := client.PublishMessage(context.Background(), "board", `{"kind":"success"}`, map[string]string{"userId": "user_2abc"})
	require.NoError(t, err)

	assert.Equal(t, "msg-1", id)
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:board", awssdk.ToString(api.input.TopicArn))
	assert.Equal(t, "board", awssdk.ToString(api.input.Subject))
	assert.Equal(t, "user_2abc", awssdk.ToString(api.input.MessageAttributes["userId"].StringValue))
	assert.Equal(t, "String", awssdk.ToString(api.input.MessageAttributes["userId"].DataType))
}

func TestSNSClient_PublishMessage_Error(t *testing.T) {
	api := &fakePublishAPI{err: errors.New("throttled")}
	client := NewSNSClientWithAPI(api, "arn")

	_, err := client.PublishMessage(context.Background(), "", "m", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
	assert.Nil(t, api.input.Subject)
	assert.Empty(t, api.input.MessageAttributes)
}
