package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

// JoinRequest is the requester-initiated mirror of Invitation, guild-only.
type JoinRequest struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GuildID     uuid.UUID               `gorm:"column:guild_id;type:uuid;not null"`
	RequesterID uuid.UUID               `gorm:"column:requester_id;type:uuid;not null"`
	Message     *string                 `gorm:"column:message;type:text"`
	Status      enums.JoinRequestStatus `gorm:"column:status;type:join_request_status;not null;default:'pending'"`
	RespondedAt *time.Time              `gorm:"column:responded_at"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
