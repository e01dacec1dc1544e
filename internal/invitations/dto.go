package invitations

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

// InvitationDTO is the transport shape for an invitation row.
type InvitationDTO struct {
	ID          uuid.UUID              `json:"id"`
	GroupType   enums.GroupType        `json:"group_type"`
	GroupID     uuid.UUID              `json:"group_id"`
	InviterID   uuid.UUID              `json:"inviter_id"`
	InviteeID   uuid.UUID              `json:"invitee_id"`
	Message     *string                `json:"message,omitempty"`
	Status      enums.InvitationStatus `json:"status"`
	ExpiresAt   time.Time              `json:"expires_at"`
	RespondedAt *time.Time             `json:"responded_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// InviteInput carries the fields for a new invitation. Exactly one of
// InviteeID and InviteeEmail must be set: email invites provision a
// placeholder account when no user exists yet.
type InviteInput struct {
	GroupType    enums.GroupType
	GroupID      uuid.UUID
	InviterID    uuid.UUID
	InviteeID    uuid.UUID
	InviteeEmail string
	Message      *string
	ExpiresAt    *time.Time
}

// ToDTO converts a model to the external DTO.
func ToDTO(m *models.Invitation) *InvitationDTO {
	if m == nil {
		return nil
	}
	return &InvitationDTO{
		ID:          m.ID,
		GroupType:   m.GroupType,
		GroupID:     m.GroupID,
		InviterID:   m.InviterID,
		InviteeID:   m.InviteeID,
		Message:     m.Message,
		Status:      m.Status,
		ExpiresAt:   m.ExpiresAt,
		RespondedAt: m.RespondedAt,
		CreatedAt:   m.CreatedAt,
	}
}
