package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

// GroupMembership links a user with a guild or party and captures their role
// and status. A partial unique index keeps at most one active row per
// (group_type, group_id, user_id).
type GroupMembership struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GroupType       enums.GroupType        `gorm:"column:group_type;type:group_type;not null"`
	GroupID         uuid.UUID              `gorm:"column:group_id;type:uuid;not null"`
	UserID          uuid.UUID              `gorm:"column:user_id;type:uuid;not null"`
	Role            enums.GroupRole        `gorm:"column:role;type:group_role;not null"`
	Status          enums.MembershipStatus `gorm:"column:status;type:membership_status;not null"`
	InvitedByUserID *uuid.UUID             `gorm:"column:invited_by_user_id;type:uuid"`
	JoinedAt        time.Time              `gorm:"column:joined_at;not null"`
	LeftAt          *time.Time             `gorm:"column:left_at"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
