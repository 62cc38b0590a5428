package publishers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/samvad-hq/samvad-list-loader/internal/domain"
	"github.com/samvad-hq/samvad-list-loader/internal/logger"
)

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-123")}, nil
}

type fakeSNSClient struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNSClient) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-123")}, nil
}

func sampleEvent() Event {
	res := domain.Success([]domain.Record{{ID: "1", Label: "Leanne"}})
	res.Seq = 2
	return NewEvent("users", "Team members", res)
}

func TestSQSPublisherSendsAttributes(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &sqsPublisher{id: "queue", typ: TypeSQS, queueURL: "https://example.com/queue", client: client, log: logger.NopLogger{}}

	if err := pub.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://example.com/queue" {
		t.Fatalf("QueueUrl = %s", got)
	}
	attr, ok := client.input.MessageAttributes["source_id"]
	if !ok || aws.ToString(attr.StringValue) != "users" || aws.ToString(attr.DataType) != "String" {
		t.Fatalf("source_id attribute missing or wrong: %#v", attr)
	}
	if !strings.Contains(aws.ToString(client.input.MessageBody), `"source_id":"users"`) {
		t.Fatalf("MessageBody missing source_id: %s", aws.ToString(client.input.MessageBody))
	}
}

func TestSQSPublisherWrapsError(t *testing.T) {
	pub := &sqsPublisher{id: "queue", client: &fakeSQSClient{err: errors.New("boom")}, log: logger.NopLogger{}}
	if err := pub.Publish(context.Background(), sampleEvent()); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSNSPublisherSendsAttributes(t *testing.T) {
	client := &fakeSNSClient{}
	pub := &snsPublisher{id: "topic", typ: TypeSNS, topicARN: "arn:aws:sns:::topic", client: client, log: logger.NopLogger{}}

	evt := NewEvent("money", "Balances", domain.Failure(domain.KindNetwork, "status 502"))
	if err := pub.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := aws.ToString(client.input.TopicArn); got != "arn:aws:sns:::topic" {
		t.Fatalf("TopicArn = %s", got)
	}
	attr, ok := client.input.MessageAttributes["error_kind"]
	if !ok || aws.ToString(attr.StringValue) != "network" {
		t.Fatalf("error_kind attribute missing or wrong: %#v", attr)
	}
	if !strings.Contains(aws.ToString(client.input.Message), `"status":"failure"`) {
		t.Fatalf("Message missing status: %s", aws.ToString(client.input.Message))
	}
}

func TestSNSPublisherWrapsError(t *testing.T) {
	pub := &snsPublisher{id: "topic", client: &fakeSNSClient{err: errors.New("boom")}, log: logger.NopLogger{}}
	if err := pub.Publish(context.Background(), sampleEvent()); err == nil {
		t.Fatalf("expected error from Publish")
	}
}

func TestBuildSQSPublisherWithStaticKeys(t *testing.T) {
	pub, err := newSQSPublisher(context.Background(), PublisherConfig{
		ID:   "queue",
		Type: TypeSQS,
		SQS: &SQSPublisherConfig{
			QueueURL:  "http://localhost:4566/000000000000/lists",
			Region:    "ap-south-1",
			AWSAccess: AWSAccess{AccessKeyID: "test", SecretAccessKey: "test", Endpoint: "http://localhost:4566"},
		},
	}, nil)
	if err != nil {
		t.Fatalf("newSQSPublisher: %v", err)
	}
	if pub.Type() != TypeSQS || pub.ID() != "queue" {
		t.Fatalf("unexpected publisher %s/%s", pub.Type(), pub.ID())
	}
}
