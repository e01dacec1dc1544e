package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

// InvitationCreatedEvent signals a pending invitation awaiting a response.
type InvitationCreatedEvent struct {
	InvitationID uuid.UUID       `json:"invitation_id"`
	GroupType    enums.GroupType `json:"group_type"`
	GroupID      uuid.UUID       `json:"group_id"`
	InviterID    uuid.UUID       `json:"inviter_id"`
	InviteeID    uuid.UUID       `json:"invitee_id"`
	ExpiresAt    time.Time       `json:"expires_at"`
}

// InvitationResolvedEvent is emitted when an invitation leaves the pending state.
type InvitationResolvedEvent struct {
	InvitationID uuid.UUID              `json:"invitation_id"`
	GroupType    enums.GroupType        `json:"group_type"`
	GroupID      uuid.UUID              `json:"group_id"`
	InviterID    uuid.UUID              `json:"inviter_id"`
	InviteeID    uuid.UUID              `json:"invitee_id"`
	Status       enums.InvitationStatus `json:"status"`
	ResolvedAt   time.Time              `json:"resolved_at"`
}

// JoinRequestCreatedEvent signals a new pending join request on a guild.
type JoinRequestCreatedEvent struct {
	JoinRequestID uuid.UUID `json:"join_request_id"`
	GuildID       uuid.UUID `json:"guild_id"`
	RequesterID   uuid.UUID `json:"requester_id"`
}

// JoinRequestDecidedEvent is emitted when a join request reaches a terminal state.
type JoinRequestDecidedEvent struct {
	JoinRequestID uuid.UUID               `json:"join_request_id"`
	GuildID       uuid.UUID               `json:"guild_id"`
	RequesterID   uuid.UUID               `json:"requester_id"`
	Status        enums.JoinRequestStatus `json:"status"`
	DecidedByID   *uuid.UUID              `json:"decided_by_id,omitempty"`
	DecidedAt     time.Time               `json:"decided_at"`
}

// MembershipChangedEvent reports joins, departures, and role changes.
type MembershipChangedEvent struct {
	GroupType enums.GroupType        `json:"group_type"`
	GroupID   uuid.UUID              `json:"group_id"`
	UserID    uuid.UUID              `json:"user_id"`
	Role      enums.GroupRole        `json:"role"`
	Status    enums.MembershipStatus `json:"status"`
	Change    string                 `json:"change"`
}

// PostModeratedEvent carries pin/lock/remove actions taken on guild posts.
type PostModeratedEvent struct {
	PostID      uuid.UUID  `json:"post_id"`
	GuildID     uuid.UUID  `json:"guild_id"`
	AuthorID    uuid.UUID  `json:"author_id"`
	ModeratorID *uuid.UUID `json:"moderator_id,omitempty"`
	Action      string     `json:"action"`
	Forced      bool       `json:"forced,omitempty"`
}

// NotificationCreatedEvent tells downstream fan-out to deliver a notification.
type NotificationCreatedEvent struct {
	NotificationID uuid.UUID              `json:"notification_id"`
	RecipientID    uuid.UUID              `json:"recipient_id"`
	Type           enums.NotificationType `json:"type"`
	Title          string                 `json:"title"`
	Link           *string                `json:"link,omitempty"`
}
