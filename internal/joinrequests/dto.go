package joinrequests

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

// JoinRequestDTO is the API-facing view of a join request.
type JoinRequestDTO struct {
	ID          uuid.UUID               `json:"id"`
	GuildID     uuid.UUID               `json:"guild_id"`
	RequesterID uuid.UUID               `json:"requester_id"`
	Message     *string                 `json:"message,omitempty"`
	Status      enums.JoinRequestStatus `json:"status"`
	RespondedAt *time.Time              `json:"responded_at,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// RequestInput carries the fields of a new ask-to-join command.
type RequestInput struct {
	GuildID     uuid.UUID
	RequesterID uuid.UUID
	Message     *string
}

// ToDTO maps a join request row onto its response shape.
func ToDTO(request *models.JoinRequest) *JoinRequestDTO {
	if request == nil {
		return nil
	}
	return &JoinRequestDTO{
		ID:          request.ID,
		GuildID:     request.GuildID,
		RequesterID: request.RequesterID,
		Message:     request.Message,
		Status:      request.Status,
		RespondedAt: request.RespondedAt,
		CreatedAt:   request.CreatedAt,
	}
}
