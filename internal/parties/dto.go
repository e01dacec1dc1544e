package parties

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

// PartyDTO is the transport shape for a party aggregate. MemberCount is
// derived from group_memberships at read time.
type PartyDTO struct {
	ID          uuid.UUID             `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Visibility  enums.GroupVisibility `json:"visibility"`
	MaxMembers  int                   `json:"max_members"`
	MemberCount int64                 `json:"member_count"`
	CreatorID   uuid.UUID             `json:"creator_id"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// CreatePartyInput captures the fields accepted when forming a party.
type CreatePartyInput struct {
	Name        string
	Description string
	Visibility  enums.GroupVisibility
	MaxMembers  int
}

// UpdatePartyInput carries optional mutations; nil fields are left untouched.
type UpdatePartyInput struct {
	Name        *string
	Description *string
	Visibility  *enums.GroupVisibility
	MaxMembers  *int
}

// FromModel converts a party model plus its derived member count to a DTO.
func FromModel(p *models.Party, memberCount int64) *PartyDTO {
	if p == nil {
		return nil
	}

	return &PartyDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Visibility:  p.Visibility,
		MaxMembers:  p.MaxMembers,
		MemberCount: memberCount,
		CreatorID:   p.CreatorID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
