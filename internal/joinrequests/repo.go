package joinrequests

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

// Store exposes join-request persistence. Like invitations, the pending to
// terminal transition is compare-and-set so concurrent deciders lose cleanly.
type Store interface {
	WithTx(tx *gorm.DB) Store
	Create(ctx context.Context, request *models.JoinRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.JoinRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.JoinRequest, error)
	FindPending(ctx context.Context, guildID, requesterID uuid.UUID) (*models.JoinRequest, error)
	ResolvePending(ctx context.Context, id uuid.UUID, status enums.JoinRequestStatus, respondedAt time.Time) (int64, error)
	ListForRequester(ctx context.Context, requesterID uuid.UUID, pendingOnly bool) ([]models.JoinRequest, error)
	ListForGuild(ctx context.Context, guildID uuid.UUID, pendingOnly bool) ([]models.JoinRequest, error)
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

func (r *repository) Create(ctx context.Context, request *models.JoinRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

// FindByID loads a join request, nil when absent.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.JoinRequest, error) {
	var request models.JoinRequest
	err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// FindByIDForUpdate loads a join request holding a row lock, serializing
// concurrent approve/reject/cancel on the same row.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.JoinRequest, error) {
	var request models.JoinRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&request, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// FindPending returns the pending request for (guild, requester), nil when
// none exists. The partial unique index guarantees at most one.
func (r *repository) FindPending(ctx context.Context, guildID, requesterID uuid.UUID) (*models.JoinRequest, error) {
	var request models.JoinRequest
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND requester_id = ? AND status = ?",
			guildID, requesterID, enums.JoinRequestStatusPending).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// ResolvePending moves a pending request to a terminal status. Returns the
// number of rows updated: zero means the caller lost the race.
func (r *repository) ResolvePending(ctx context.Context, id uuid.UUID, status enums.JoinRequestStatus, respondedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.JoinRequest{}).
		Where("id = ? AND status = ?", id, enums.JoinRequestStatusPending).
		Updates(map[string]any{
			"status":       status,
			"responded_at": respondedAt,
		})
	return result.RowsAffected, result.Error
}

// ListForRequester returns the user's own requests, newest first.
func (r *repository) ListForRequester(ctx context.Context, requesterID uuid.UUID, pendingOnly bool) ([]models.JoinRequest, error) {
	query := r.db.WithContext(ctx).Where("requester_id = ?", requesterID)
	if pendingOnly {
		query = query.Where("status = ?", enums.JoinRequestStatusPending)
	}
	var rows []models.JoinRequest
	err := query.Order("created_at DESC").Find(&rows).Error
	return rows, err
}

// ListForGuild returns requests targeting the guild, newest first.
func (r *repository) ListForGuild(ctx context.Context, guildID uuid.UUID, pendingOnly bool) ([]models.JoinRequest, error) {
	query := r.db.WithContext(ctx).Where("guild_id = ?", guildID)
	if pendingOnly {
		query = query.Where("status = ?", enums.JoinRequestStatusPending)
	}
	var rows []models.JoinRequest
	err := query.Order("created_at DESC").Find(&rows).Error
	return rows, err
}
