package parties

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
)

// Store exposes party persistence operations. WithTx rebinds the store to a
// transaction.
type Store interface {
	WithTx(tx *gorm.DB) Store
	Create(ctx context.Context, party *models.Party) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Party, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Party, error)
	Update(ctx context.Context, party *models.Party) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Party, error)
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

// Create inserts a new party.
func (r *repository) Create(ctx context.Context, party *models.Party) error {
	return r.db.WithContext(ctx).Create(party).Error
}

// FindByID loads a party, nil when absent.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Party, error) {
	var party models.Party
	err := r.db.WithContext(ctx).First(&party, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &party, nil
}

// FindByIDForUpdate loads a party holding a row lock for the rest of the
// transaction. Used to serialize member-cap checks against concurrent joins.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Party, error) {
	var party models.Party
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&party, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &party, nil
}

// Update persists the mutable party fields.
func (r *repository) Update(ctx context.Context, party *models.Party) error {
	return r.db.WithContext(ctx).Save(party).Error
}

// Delete removes the party row; dependent content cascades in the schema.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Party{}, "id = ?", id).Error
}

// ListByIDs loads parties for the given ids.
func (r *repository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Party, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Party
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}
