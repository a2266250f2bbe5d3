package sinks

import "context"

// Sink delivers results to a downstream system (HTTP, SQS, SNS, Pub/Sub).
type Sink interface {
	ID() string
	Type() string
	Deliver(ctx context.Context, res Result) error
	Close() error
}
