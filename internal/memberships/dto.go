package memberships

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

// MembershipDTO is the transport shape for a raw membership record.
type MembershipDTO struct {
	ID              uuid.UUID              `json:"id"`
	GroupType       enums.GroupType        `json:"group_type"`
	GroupID         uuid.UUID              `json:"group_id"`
	UserID          uuid.UUID              `json:"user_id"`
	Role            enums.GroupRole        `json:"role"`
	Status          enums.MembershipStatus `json:"status"`
	InvitedByUserID *uuid.UUID             `json:"invited_by_user_id,omitempty"`
	JoinedAt        time.Time              `json:"joined_at"`
	LeftAt          *time.Time             `json:"left_at,omitempty"`
}

// MemberDTO mixes membership metadata with the user profile for group rosters.
type MemberDTO struct {
	MembershipID uuid.UUID       `json:"membership_id"`
	UserID       uuid.UUID       `json:"user_id"`
	DisplayName  string          `json:"display_name"`
	Email        string          `json:"email"`
	Role         enums.GroupRole `json:"role"`
	JoinedAt     time.Time       `json:"joined_at"`
}

// ToDTO converts a model to the external DTO.
func ToDTO(m *models.GroupMembership) *MembershipDTO {
	if m == nil {
		return nil
	}

	return &MembershipDTO{
		ID:              m.ID,
		GroupType:       m.GroupType,
		GroupID:         m.GroupID,
		UserID:          m.UserID,
		Role:            m.Role,
		Status:          m.Status,
		InvitedByUserID: copyUUIDPointer(m.InvitedByUserID),
		JoinedAt:        m.JoinedAt,
		LeftAt:          m.LeftAt,
	}
}

func copyUUIDPointer(src *uuid.UUID) *uuid.UUID {
	if src == nil {
		return nil
	}
	dst := *src
	return &dst
}
