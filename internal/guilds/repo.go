package guilds

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
)

// Store exposes guild persistence operations. WithTx rebinds the store to a
// transaction.
type Store interface {
	WithTx(tx *gorm.DB) Store
	Create(ctx context.Context, guild *models.Guild) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Guild, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Guild, error)
	Update(ctx context.Context, guild *models.Guild) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddMeritPoints(ctx context.Context, id uuid.UUID, delta int64) error
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Guild, error)
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

// Create inserts a new guild.
func (r *repository) Create(ctx context.Context, guild *models.Guild) error {
	return r.db.WithContext(ctx).Create(guild).Error
}

// FindByID loads a guild, nil when absent.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Guild, error) {
	var guild models.Guild
	err := r.db.WithContext(ctx).First(&guild, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &guild, nil
}

// FindByIDForUpdate loads a guild holding a row lock for the rest of the
// transaction. Used to serialize member-cap checks against concurrent joins.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Guild, error) {
	var guild models.Guild
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&guild, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &guild, nil
}

// Update persists the mutable guild fields.
func (r *repository) Update(ctx context.Context, guild *models.Guild) error {
	return r.db.WithContext(ctx).Save(guild).Error
}

// Delete removes the guild row; dependent content cascades in the schema.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Guild{}, "id = ?", id).Error
}

// AddMeritPoints atomically increments (or decrements) the merit counter.
func (r *repository) AddMeritPoints(ctx context.Context, id uuid.UUID, delta int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Guild{}).
		Where("id = ?", id).
		UpdateColumn("merit_points", gorm.Expr("merit_points + ?", delta)).Error
}

// ListByIDs loads guilds for the given ids, preserving no particular order.
func (r *repository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Guild, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Guild
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}
