package stash

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	dbtypes "github.com/skillquest-app/skillquest-backend/pkg/db/types"
)

// StashItemDTO is the API-facing view of a shared stash item.
type StashItemDTO struct {
	ID             uuid.UUID       `json:"id"`
	PartyID        uuid.UUID       `json:"party_id"`
	OriginalNoteID *uuid.UUID      `json:"original_note_id,omitempty"`
	SharedByUserID uuid.UUID       `json:"shared_by_user_id"`
	Title          string          `json:"title"`
	Content        dbtypes.JSONMap `json:"content"`
	Tags           []string        `json:"tags"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ShareInput carries the fields of a share-into-stash command.
type ShareInput struct {
	PartyID        uuid.UUID
	SharedByUserID uuid.UUID
	OriginalNoteID *uuid.UUID
	Title          string
	Content        dbtypes.JSONMap
	Tags           []string
}

// UpdateInput carries the editable fields. Nil means keep.
type UpdateInput struct {
	Title   *string
	Content dbtypes.JSONMap
	Tags    []string
}

// ToDTO maps a stash item row onto its response shape.
func ToDTO(item *models.PartyStashItem) *StashItemDTO {
	if item == nil {
		return nil
	}
	return &StashItemDTO{
		ID:             item.ID,
		PartyID:        item.PartyID,
		OriginalNoteID: item.OriginalNoteID,
		SharedByUserID: item.SharedByUserID,
		Title:          item.Title,
		Content:        item.Content,
		Tags:           item.Tags,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
}
