package invitations

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

// Store exposes invitation persistence operations. Status transitions are
// compare-and-set on the pending state so concurrent resolutions lose
// cleanly instead of double-applying.
type Store interface {
	WithTx(tx *gorm.DB) Store
	Create(ctx context.Context, invitation *models.Invitation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Invitation, error)
	FindPending(ctx context.Context, groupType enums.GroupType, groupID, inviteeID uuid.UUID) (*models.Invitation, error)
	ResolvePending(ctx context.Context, id uuid.UUID, status enums.InvitationStatus, respondedAt time.Time) (int64, error)
	ExpireOne(ctx context.Context, id uuid.UUID, now time.Time) (int64, error)
	ListForInvitee(ctx context.Context, inviteeID uuid.UUID, pendingOnly bool) ([]models.Invitation, error)
	ListForGroup(ctx context.Context, groupType enums.GroupType, groupID uuid.UUID, pendingOnly bool) ([]models.Invitation, error)
	ExpireDue(ctx context.Context, now time.Time, batchSize int) (int64, error)
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

// Create inserts a new pending invitation.
func (r *repository) Create(ctx context.Context, invitation *models.Invitation) error {
	return r.db.WithContext(ctx).Create(invitation).Error
}

// FindByID loads an invitation, nil when absent.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	var invitation models.Invitation
	err := r.db.WithContext(ctx).First(&invitation, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invitation, nil
}

// FindByIDForUpdate loads an invitation holding a row lock, serializing
// concurrent accept/decline/revoke on the same row.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	var invitation models.Invitation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&invitation, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invitation, nil
}

// FindPending returns the pending invitation for (group, invitee), nil when
// none exists. The partial unique index guarantees at most one.
func (r *repository) FindPending(ctx context.Context, groupType enums.GroupType, groupID, inviteeID uuid.UUID) (*models.Invitation, error) {
	var invitation models.Invitation
	err := r.db.WithContext(ctx).
		Where("group_type = ? AND group_id = ? AND invitee_id = ? AND status = ?",
			groupType, groupID, inviteeID, enums.InvitationStatusPending).
		First(&invitation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invitation, nil
}

// ResolvePending moves a pending invitation to a terminal status. Returns the
// number of rows updated: zero means the caller lost the race.
func (r *repository) ResolvePending(ctx context.Context, id uuid.UUID, status enums.InvitationStatus, respondedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("id = ? AND status = ?", id, enums.InvitationStatusPending).
		Updates(map[string]any{
			"status":       status,
			"responded_at": respondedAt,
		})
	return result.RowsAffected, result.Error
}

// ExpireOne flips a single overdue pending invitation. Expiry is not a
// response, so responded_at stays NULL, matching the bulk sweep.
func (r *repository) ExpireOne(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("id = ? AND status = ?", id, enums.InvitationStatusPending).
		Updates(map[string]any{
			"status":     enums.InvitationStatusExpired,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// ListForInvitee returns invitations addressed to the user, newest first.
// The pending filter evaluates expiry at read time; a row past expires_at is
// not pending even before a sweep touches it.
func (r *repository) ListForInvitee(ctx context.Context, inviteeID uuid.UUID, pendingOnly bool) ([]models.Invitation, error) {
	query := r.db.WithContext(ctx).Where("invitee_id = ?", inviteeID)
	if pendingOnly {
		query = query.Where("status = ? AND expires_at > ?", enums.InvitationStatusPending, time.Now().UTC())
	}
	var rows []models.Invitation
	err := query.Order("created_at DESC").Find(&rows).Error
	return rows, err
}

// ListForGroup returns invitations sent from the group, newest first.
func (r *repository) ListForGroup(ctx context.Context, groupType enums.GroupType, groupID uuid.UUID, pendingOnly bool) ([]models.Invitation, error) {
	query := r.db.WithContext(ctx).Where("group_type = ? AND group_id = ?", groupType, groupID)
	if pendingOnly {
		query = query.Where("status = ? AND expires_at > ?", enums.InvitationStatusPending, time.Now().UTC())
	}
	var rows []models.Invitation
	err := query.Order("created_at DESC").Find(&rows).Error
	return rows, err
}

// ExpireDue flips overdue pending invitations to expired in id batches. Used
// by the cron sweep; the accept/decline paths also expire lazily on read.
func (r *repository) ExpireDue(ctx context.Context, now time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	result := r.db.WithContext(ctx).Exec(`
		UPDATE invitations SET status = ?, updated_at = ?
		WHERE id IN (
			SELECT id FROM invitations
			WHERE status = ? AND expires_at < ?
			LIMIT ?
		)`, enums.InvitationStatusExpired, now, enums.InvitationStatusPending, now, batchSize)
	return result.RowsAffected, result.Error
}
