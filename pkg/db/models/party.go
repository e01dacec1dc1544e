package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

// Party is the small, ephemeral study-group aggregate.
type Party struct {
	ID          uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string                `gorm:"type:text;not null"`
	Description string                `gorm:"type:text;not null;default:''"`
	Visibility  enums.GroupVisibility `gorm:"type:group_visibility;not null;default:'private'"`
	MaxMembers  int                   `gorm:"column:max_members;not null;default:8"`
	CreatorID   uuid.UUID             `gorm:"column:creator_id;type:uuid;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
