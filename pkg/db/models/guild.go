package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

// Guild is the large, persistent social aggregate. Active member counts are
// derived from group_memberships, never stored here; merit points are the one
// stored counter and are only mutated with atomic increments.
type Guild struct {
	ID          uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string                `gorm:"type:text;not null"`
	Description string                `gorm:"type:text;not null;default:''"`
	Visibility  enums.GroupVisibility `gorm:"type:group_visibility;not null;default:'public'"`
	MaxMembers  int                   `gorm:"column:max_members;not null;default:100"`
	MeritPoints int64                 `gorm:"column:merit_points;not null;default:0"`
	CreatorID   uuid.UUID             `gorm:"column:creator_id;type:uuid;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
