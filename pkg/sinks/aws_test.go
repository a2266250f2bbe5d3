package sinks

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
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
	return &sns.PublishOutput{MessageId: aws.String("sns-1")}, nil
}

func TestSQSSinkDeliver(t *testing.T) {
	client := &fakeSQSClient{}
	sink := &sqsSink{id: "queue", queueURL: "https://example.com/queue", client: client, log: noopLogger{}}

	if err := sink.Deliver(context.Background(), Result{RequestID: "health", OK: true}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://example.com/queue" {
		t.Fatalf("QueueUrl = %s", got)
	}
	attr, ok := client.input.MessageAttributes["request_id"]
	if !ok || aws.ToString(attr.StringValue) != "health" || aws.ToString(attr.DataType) != "String" {
		t.Fatalf("request_id attribute wrong: %#v", attr)
	}
	if !strings.Contains(aws.ToString(client.input.MessageBody), `"request_id":"health"`) {
		t.Fatalf("MessageBody = %s", aws.ToString(client.input.MessageBody))
	}
}

func TestSQSSinkDeliverError(t *testing.T) {
	sink := &sqsSink{id: "queue", client: &fakeSQSClient{err: errors.New("boom")}, log: noopLogger{}}
	if err := sink.Deliver(context.Background(), Result{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSNSSinkDeliver(t *testing.T) {
	client := &fakeSNSClient{}
	sink := &snsSink{id: "topic", topicARN: "arn:aws:sns:ap-south-1:123:results", client: client, log: noopLogger{}}

	if err := sink.Deliver(context.Background(), Result{}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := aws.ToString(client.input.TopicArn); got != "arn:aws:sns:ap-south-1:123:results" {
		t.Fatalf("TopicArn = %s", got)
	}
	if got := aws.ToString(client.input.MessageAttributes["request_id"].StringValue); got != "unknown" {
		t.Fatalf("request_id attribute = %q, want unknown", got)
	}
}

func TestSNSSinkDeliverError(t *testing.T) {
	sink := &snsSink{id: "topic", client: &fakeSNSClient{err: errors.New("boom")}, log: noopLogger{}}
	if err := sink.Deliver(context.Background(), Result{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadAWSConfigStaticCredentials(t *testing.T) {
	cfg, err := loadAWSConfig(context.Background(), "ap-south-1", &AWSCredentials{
		AccessKeyID:     "AKIA",
		SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("loadAWSConfig: %v", err)
	}
	if cfg.Region != "ap-south-1" {
		t.Fatalf("Region = %s", cfg.Region)
	}
	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if creds.AccessKeyID != "AKIA" || creds.SecretAccessKey != "secret" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}
