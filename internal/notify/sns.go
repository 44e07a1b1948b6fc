// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MedTrack Contributors

package notify

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/samber/oops"
)

// SNSConfig configures publishing to an SNS topic.
type SNSConfig struct {
	Region   string
	TopicARN string
	// Endpoint overrides the service endpoint (e.g. LocalStack).
	Endpoint string
	// Static credentials; when empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

// snsPublisher is the part of *sns.Client used here.
type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSChannel publishes notifications to an SNS topic. Subscribers of the
// topic (email, SMS, queues) receive them.
type SNSChannel struct {
	client   snsPublisher
	topicARN string
}

// NewSNSChannel loads AWS configuration and creates an SNSChannel.
func NewSNSChannel(ctx context.Context, cfg SNSConfig) (*SNSChannel, error) {
	if cfg.TopicARN == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("sns topic arn is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").With("operation", "load aws config").Wrap(err)
	}

	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newSNSChannel(client, cfg.TopicARN), nil
}

func newSNSChannel(client snsPublisher, topicARN string) *SNSChannel {
	return &SNSChannel{client: client, topicARN: topicARN}
}

// Name implements Channel.
func (c *SNSChannel) Name() string { return "sns" }

// Deliver implements Channel.
func (c *SNSChannel) Deliver(ctx context.Context, msg Message) error {
	input := &sns.PublishInput{
		TopicArn: aws.String(c.topicARN),
		Message:  aws.String(msg.Body),
	}
	if msg.Subject != "" {
		input.Subject = aws.String(truncate(headerSafe(msg.Subject), 100))
	}
	if _, err := c.client.Publish(ctx, input); err != nil {
		return oops.With("topic_arn", c.topicARN).With("event", msg.Event).Wrap(err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
