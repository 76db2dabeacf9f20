package alert

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"

	"evconnect/internal/logging"
)

type messageSender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// PushAlerter publishes alerts to an FCM topic the ops dashboard subscribes to.
type PushAlerter struct {
	client messageSender
	topic  string
	log    logging.Logger
}

func NewPushAlerter(ctx context.Context, app *firebase.App, topic string, log logging.Logger) (*PushAlerter, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase messaging client: %w", err)
	}
	if log == nil {
		log = logging.Noop()
	}
	return &PushAlerter{client: client, topic: topic, log: log}, nil
}

func (p *PushAlerter) Notify(ctx context.Context, a Alert) {
	msg := buildPush(p.topic, a)
	id, err := p.client.Send(ctx, msg)
	if err != nil {
		p.log.Error(ctx, "failed to push ops alert",
			logging.String("topic", p.topic), logging.String("type", string(a.Type)), logging.Err(err))
		return
	}
	p.log.Info(ctx, "ops alert pushed", logging.String("type", string(a.Type)), logging.String("message_id", id))
}

func buildPush(topic string, a Alert) *messaging.Message {
	data := map[string]string{"type": string(a.Type)}
	for k, v := range a.Context {
		data[k] = v
	}
	return &messaging.Message{
		Topic: topic,
		Data:  data,
		Notification: &messaging.Notification{
			Title: string(a.Type),
			Body:  a.Message,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
}
