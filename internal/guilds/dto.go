package guilds

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

// GuildDTO is the transport shape for a guild aggregate. MemberCount is
// derived from group_memberships at read time.
type GuildDTO struct {
	ID          uuid.UUID             `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Visibility  enums.GroupVisibility `json:"visibility"`
	MaxMembers  int                   `json:"max_members"`
	MemberCount int64                 `json:"member_count"`
	MeritPoints int64                 `json:"merit_points"`
	CreatorID   uuid.UUID             `json:"creator_id"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// CreateGuildInput captures the fields accepted when founding a guild.
type CreateGuildInput struct {
	Name        string
	Description string
	Visibility  enums.GroupVisibility
	MaxMembers  int
}

// UpdateGuildInput carries optional mutations; nil fields are left untouched.
type UpdateGuildInput struct {
	Name        *string
	Description *string
	Visibility  *enums.GroupVisibility
	MaxMembers  *int
}

// FromModel converts a guild model plus its derived member count to a DTO.
func FromModel(g *models.Guild, memberCount int64) *GuildDTO {
	if g == nil {
		return nil
	}

	return &GuildDTO{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Visibility:  g.Visibility,
		MaxMembers:  g.MaxMembers,
		MemberCount: memberCount,
		MeritPoints: g.MeritPoints,
		CreatorID:   g.CreatorID,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}
