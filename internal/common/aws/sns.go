// internal/common/aws/sns.go
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// PublishAPI is the slice of the SNS client we call.
type PublishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSClient struct {
	client   PublishAPI
	topicARN string
}

func NewSNSClient(ctx context.Context, region, topicARN string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSClient{client: sns.NewFromConfig(cfg), topicARN: topicARN}, nil
}

// NewSNSClientWithAPI wires a pre-built client, used by tests.
func NewSNSClientWithAPI(api PublishAPI, topicARN string) *SNSClient {
	return &SNSClient{client: api, topicARN: topicARN}
}

// PublishMessage publishes message to the configured topic with string attributes.
func (s *SNSClient) PublishMessage(ctx context.Context, subject, message string, attrs map[string]string) (string, error) {
	input := &sns.PublishInput{
		TopicArn: awssdk.String(s.topicARN),
		Message:  awssdk.String(message),
	}
	if subject != "" {
		input.Subject = awssdk.String(subject)
	}
	if len(attrs) > 0 {
		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			input.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(v),
			}
		}
	}

	out, err := s.client.Publish(ctx, input)
	if err != nil {
		return "", fmt.Errorf("sns publish: %w", err)
	}
	return awssdk.ToString(out.MessageId), nil
}
