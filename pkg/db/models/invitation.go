package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

// Invitation is a group-initiated request for a user to join a guild or
// party. Rows are never deleted; terminal statuses are kept for audit.
// InviteeEmail is recorded when the invite provisioned a placeholder account.
type Invitation struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupType    enums.GroupType        `gorm:"column:group_type;type:group_type;not null"`
	GroupID      uuid.UUID              `gorm:"column:group_id;type:uuid;not null"`
	InviterID    uuid.UUID              `gorm:"column:inviter_id;type:uuid;not null"`
	InviteeID    uuid.UUID              `gorm:"column:invitee_id;type:uuid;not null"`
	InviteeEmail *string                `gorm:"column:invitee_email;type:text"`
	Message      *string                `gorm:"column:message;type:text"`
	Status       enums.InvitationStatus `gorm:"column:status;type:invitation_status;not null;default:'pending'"`
	ExpiresAt    time.Time              `gorm:"column:expires_at;not null"`
	RespondedAt  *time.Time             `gorm:"column:responded_at"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
