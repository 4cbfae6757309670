package kbsync

import (
	"context"
	"fmt"
	"time"
)

// StatusEvent is one progress message of a sync run.
type StatusEvent struct {
	RunID     string    `json:"runId"`
	Project   string    `json:"project"`
	Direction string    `json:"direction"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type Notifier interface {
	Notify(ctx context.Context, event StatusEvent) error
}

// Publisher is satisfied by aws.SNSClient.
type Publisher interface {
	PublishJSON(ctx context.Context, subject string, payload interface{}, attributes map[string]string) (string, error)
}

// SNSNotifier fans status events out to a topic. Subscribers filter on the project and
// direction attributes.
type SNSNotifier struct {
	publisher Publisher
}

func NewSNSNotifier(p Publisher) *SNSNotifier {
	return &SNSNotifier{publisher: p}
}

func (n *SNSNotifier) Notify(ctx context.Context, event StatusEvent) error {
	subject := fmt.Sprintf("kb %s %s", event.Direction, event.Project)
	_, err := n.publisher.PublishJSON(ctx, subject, event, map[string]string{
		"project":   event.Project,
		"direction": event.Direction,
	})
	return err
}
