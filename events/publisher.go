// Package events announces verified payments to downstream consumers over SNS.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/shopspring/decimal"
)

const EventPaymentVerified = "payment.verified"

var ErrNoTopic = errors.New("events: topic ARN not set")

type PaymentVerified struct {
	OrderID        string          `json:"order_id"`
	PaymentInfoID  string          `json:"payment_info_id"`
	TransactionID  string          `json:"transaction_id"`
	ReceivedAmount decimal.Decimal `json:"received_amount"`
	ExpectedTotal  decimal.Decimal `json:"expected_total"`
	VerifiedAt     time.Time       `json:"verified_at"`
}

type Publisher interface {
	PaymentVerified(ctx context.Context, evt PaymentVerified) error
}

// SNSAPI is the subset of *sns.Client the publisher needs.
type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSPublisher struct {
	client   SNSAPI
	topicARN string
}

// NewSNSPublisher loads the default AWS configuration (env, shared config,
// instance role) and publishes to topicARN.
func NewSNSPublisher(ctx context.Context, topicARN string) (*SNSPublisher, error) {
	if topicARN == "" {
		return nil, ErrNoTopic
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("events: load AWS config: %w", err)
	}
	return NewSNSPublisherWithClient(sns.NewFromConfig(cfg), topicARN), nil
}

func NewSNSPublisherWithClient(client SNSAPI, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

func (p *SNSPublisher) PaymentVerified(ctx context.Context, evt PaymentVerified) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", EventPaymentVerified, err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(EventPaymentVerified),
			},
			"order_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(evt.OrderID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("events: publish %s for order %s: %w", EventPaymentVerified, evt.OrderID, err)
	}
	return nil
}
