package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateGuild        OutboxAggregateType = "guild"
	AggregateParty        OutboxAggregateType = "party"
	AggregateInvitation   OutboxAggregateType = "invitation"
	AggregateJoinRequest  OutboxAggregateType = "join_request"
	AggregatePost         OutboxAggregateType = "post"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateGuild,
	AggregateParty,
	AggregateInvitation,
	AggregateJoinRequest,
	AggregatePost,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventInvitationCreated   OutboxEventType = "invitation_created"
	EventInvitationResolved  OutboxEventType = "invitation_resolved"
	EventJoinRequestCreated  OutboxEventType = "join_request_created"
	EventJoinRequestDecided  OutboxEventType = "join_request_decided"
	EventMembershipChanged   OutboxEventType = "membership_changed"
	EventPostModerated       OutboxEventType = "post_moderated"
	EventNotificationCreated OutboxEventType = "notification_created"
)

var validOutboxEventTypes = []OutboxEventType{
	EventInvitationCreated,
	EventInvitationResolved,
	EventJoinRequestCreated,
	EventJoinRequestDecided,
	EventMembershipChanged,
	EventPostModerated,
	EventNotificationCreated,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
