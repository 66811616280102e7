package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"alchemy/internal/common/mq"
	"alchemy/internal/competition/model"
	appErr "alchemy/pkg/errors"

	"github.com/google/uuid"
)

// StatusEventPublisher publishes status change events.
type StatusEventPublisher interface {
	PublishStatusChanged(ctx context.Context, rec model.StatusRecord) error
}

// MQStatusEventPublisher publishes status events to a message queue.
type MQStatusEventPublisher struct {
	queue mq.Producer
	topic string
	now   func() time.Time
}

// NewMQStatusEventPublisher creates a new MQ status event publisher.
func NewMQStatusEventPublisher(queue mq.Producer, topic string) *MQStatusEventPublisher {
	return &MQStatusEventPublisher{queue: queue, topic: topic, now: time.Now}
}

// PublishStatusChanged publishes one event keyed by competition id, so
// consumers see a competition's transitions in order.
func (p *MQStatusEventPublisher) PublishStatusChanged(ctx context.Context, rec model.StatusRecord) error {
	if p == nil || p.queue == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("status publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("status topic is required")
	}
	if rec.ID == "" {
		return appErr.ValidationError("id", "required")
	}
	event := model.StatusChangedEvent{
		Type:      model.EventStatusChanged,
		Status:    rec,
		CreatedAt: p.now().Unix(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = uuid.NewString()
	message.Key = rec.ID
	message.SetHeader("event_type", model.EventStatusChanged)
	message.SetHeader("status", rec.Kind.String())
	if err := p.queue.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.EventPublishFailed, "publish status event failed")
	}
	return nil
}
