package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/pkg/config"
	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
	"github.com/skillquest-app/skillquest-backend/pkg/outbox"
	"github.com/skillquest-app/skillquest-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateTypes []enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.SocialTopic == "" {
		return nil, fmt.Errorf("social topic is required")
	}
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("notification topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	socialTopic := cfg.SocialTopic
	notificationTopic := cfg.NotificationTopic

	groupAggregates := []enums.OutboxAggregateType{enums.AggregateGuild, enums.AggregateParty}

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventInvitationCreated,
			AggregateTypes: []enums.OutboxAggregateType{enums.AggregateInvitation},
			Topic:          socialTopic,
			PayloadFactory: func() interface{} { return &payloads.InvitationCreatedEvent{} },
		},
		{
			EventType:      enums.EventInvitationResolved,
			AggregateTypes: []enums.OutboxAggregateType{enums.AggregateInvitation},
			Topic:          socialTopic,
			PayloadFactory: func() interface{} { return &payloads.InvitationResolvedEvent{} },
		},
		{
			EventType:      enums.EventJoinRequestCreated,
			AggregateTypes: []enums.OutboxAggregateType{enums.AggregateJoinRequest},
			Topic:          socialTopic,
			PayloadFactory: func() interface{} { return &payloads.JoinRequestCreatedEvent{} },
		},
		{
			EventType:      enums.EventJoinRequestDecided,
			AggregateTypes: []enums.OutboxAggregateType{enums.AggregateJoinRequest},
			Topic:          socialTopic,
			PayloadFactory: func() interface{} { return &payloads.JoinRequestDecidedEvent{} },
		},
		{
			EventType:      enums.EventMembershipChanged,
			AggregateTypes: groupAggregates,
			Topic:          socialTopic,
			PayloadFactory: func() interface{} { return &payloads.MembershipChangedEvent{} },
		},
		{
			EventType:      enums.EventPostModerated,
			AggregateTypes: []enums.OutboxAggregateType{enums.AggregatePost},
			Topic:          socialTopic,
			PayloadFactory: func() interface{} { return &payloads.PostModeratedEvent{} },
		},
		{
			EventType:      enums.EventNotificationCreated,
			AggregateTypes: []enums.OutboxAggregateType{enums.AggregateNotification},
			Topic:          notificationTopic,
			PayloadFactory: func() interface{} { return &payloads.NotificationCreatedEvent{} },
		},
	} {
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if !desc.allowsAggregate(event.AggregateType) {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: %s cannot carry %s", event.AggregateType, event.EventType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if payload == nil {
		return nil, NewNonRetryableError(fmt.Errorf("payload factory not configured for %s", event.EventType))
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

func (d EventDescriptor) allowsAggregate(aggregate enums.OutboxAggregateType) bool {
	for _, candidate := range d.AggregateTypes {
		if candidate == aggregate {
			return true
		}
	}
	return false
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
