package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	dbtypes "github.com/skillquest-app/skillquest-backend/pkg/db/types"
)

// PartyStashItem is a note shared into a party's stash. Once shared the item
// is owned by the party, not the sharer: mutation requires party membership,
// not authorship. OriginalNoteID keeps provenance to the sharer's note.
type PartyStashItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PartyID        uuid.UUID       `gorm:"column:party_id;type:uuid;not null"`
	OriginalNoteID *uuid.UUID      `gorm:"column:original_note_id;type:uuid"`
	SharedByUserID uuid.UUID       `gorm:"column:shared_by_user_id;type:uuid;not null"`
	Title          string          `gorm:"type:text;not null"`
	Content        dbtypes.JSONMap `gorm:"column:content;type:jsonb;not null"`
	Tags           pq.StringArray  `gorm:"column:tags;type:text[];not null;default:ARRAY[]::text[]"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
