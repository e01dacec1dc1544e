package stash

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/pagination"
)

// Store exposes party stash persistence.
type Store interface {
	WithTx(tx *gorm.DB) Store
	Create(ctx context.Context, item *models.PartyStashItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PartyStashItem, error)
	Update(ctx context.Context, item *models.PartyStashItem) error
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	ListForParty(ctx context.Context, partyID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PartyStashItem, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the store to the provided GORM connection.
func NewRepository(db *gorm.DB) Store {
	return &repository{db: db}
}

// WithTx returns a store bound to the provided transaction.
func (r *repository) WithTx(tx *gorm.DB) Store {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, item *models.PartyStashItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// FindByID loads a stash item, nil when absent.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PartyStashItem, error) {
	var item models.PartyStashItem
	err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) Update(ctx context.Context, item *models.PartyStashItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.PartyStashItem{}, "id = ?", id)
	return result.RowsAffected, result.Error
}

// ListForParty returns stash items newest first, keyset paginated.
func (r *repository) ListForParty(ctx context.Context, partyID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PartyStashItem, error) {
	query := r.db.WithContext(ctx).Where("party_id = ?", partyID)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.PartyStashItem
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
