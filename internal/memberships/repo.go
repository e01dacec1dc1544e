package memberships

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

// Store exposes membership persistence operations shared by the guild and
// party engines. WithTx rebinds the store to a transaction.
type Store interface {
	WithTx(tx *gorm.DB) Store
	GetActive(ctx context.Context, groupType enums.GroupType, groupID, userID uuid.UUID) (*models.GroupMembership, error)
	CountActive(ctx context.Context, groupType enums.GroupType, groupID uuid.UUID) (int64, error)
	CountActiveWithRole(ctx context.Context, groupType enums.GroupType, groupID uuid.UUID, role enums.GroupRole) (int64, error)
	UserHasRole(ctx context.Context, groupType enums.GroupType, groupID, userID uuid.UUID, roles ...enums.GroupRole) (bool, error)
	Create(ctx context.Context, groupType enums.GroupType, groupID, userID uuid.UUID, role enums.GroupRole, invitedBy *uuid.UUID) (*models.GroupMembership, error)
	UpdateRole(ctx context.Context, membershipID uuid.UUID, role enums.GroupRole) error
	Leave(ctx context.Context, membershipID uuid.UUID, at time.Time) (int64, error)
	ListGroupMembers(ctx context.Context, groupType enums.GroupType, groupID uuid.UUID) ([]MemberDTO, error)
	ListActiveForUser(ctx context.Context, userID uuid.UUID, groupType enums.GroupType) ([]models.GroupMembership, error)
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

// GetActive retrieves the active membership for a user in a group, nil when
// the user is not an active member.
func (r *repository) GetActive(ctx context.Context, groupType enums.GroupType, groupID, userID uuid.UUID) (*models.GroupMembership, error) {
	var membership models.GroupMembership
	err := r.db.WithContext(ctx).
		Where("group_type = ? AND group_id = ? AND user_id = ? AND status = ?",
			groupType, groupID, userID, enums.MembershipStatusActive).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

// CountActive reports the number of active members in a group.
func (r *repository) CountActive(ctx context.Context, groupType enums.GroupType, groupID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("group_type = ? AND group_id = ? AND status = ?",
			groupType, groupID, enums.MembershipStatusActive).
		Count(&count).Error
	return count, err
}

// CountActiveWithRole reports active members holding the given role.
func (r *repository) CountActiveWithRole(ctx context.Context, groupType enums.GroupType, groupID uuid.UUID, role enums.GroupRole) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("group_type = ? AND group_id = ? AND status = ? AND role = ?",
			groupType, groupID, enums.MembershipStatusActive, role).
		Count(&count).Error
	return count, err
}

// UserHasRole reports whether the user holds one of the provided roles as an
// active member of the group.
func (r *repository) UserHasRole(ctx context.Context, groupType enums.GroupType, groupID, userID uuid.UUID, roles ...enums.GroupRole) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("group_type = ? AND group_id = ? AND user_id = ? AND status = ? AND role IN ?",
			groupType, groupID, userID, enums.MembershipStatusActive, roles).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create persists a new active membership record. History rows keep their own
// identity; a rejoin inserts a fresh row rather than reviving the old one.
func (r *repository) Create(ctx context.Context, groupType enums.GroupType, groupID, userID uuid.UUID, role enums.GroupRole, invitedBy *uuid.UUID) (*models.GroupMembership, error) {
	if !role.IsValidFor(groupType) {
		return nil, fmt.Errorf("role %q is not valid for %s", role, groupType)
	}

	membership := &models.GroupMembership{
		GroupType:       groupType,
		GroupID:         groupID,
		UserID:          userID,
		Role:            role,
		Status:          enums.MembershipStatusActive,
		InvitedByUserID: invitedBy,
		JoinedAt:        time.Now().UTC(),
	}

	if err := r.db.WithContext(ctx).Create(membership).Error; err != nil {
		return nil, err
	}
	return membership, nil
}

// UpdateRole changes the role on an active membership.
func (r *repository) UpdateRole(ctx context.Context, membershipID uuid.UUID, role enums.GroupRole) error {
	return r.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("id = ? AND status = ?", membershipID, enums.MembershipStatusActive).
		Update("role", role).Error
}

// Leave flips the membership to left and stamps left_at. Returns the number
// of rows affected so callers can detect an already-left race.
func (r *repository) Leave(ctx context.Context, membershipID uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("id = ? AND status = ?", membershipID, enums.MembershipStatusActive).
		Updates(map[string]any{
			"status":  enums.MembershipStatusLeft,
			"left_at": at,
		})
	return result.RowsAffected, result.Error
}

// ListGroupMembers returns the active roster joined with user metadata.
func (r *repository) ListGroupMembers(ctx context.Context, groupType enums.GroupType, groupID uuid.UUID) ([]MemberDTO, error) {
	var rows []memberRow
	err := r.db.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Select("group_memberships.*, users.display_name, users.email").
		Joins("JOIN users ON users.id = group_memberships.user_id").
		Where("group_memberships.group_type = ? AND group_memberships.group_id = ? AND group_memberships.status = ?",
			groupType, groupID, enums.MembershipStatusActive).
		Order("group_memberships.joined_at").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return membersFromRows(rows), nil
}

// ListActiveForUser returns the user's active memberships of one group type.
func (r *repository) ListActiveForUser(ctx context.Context, userID uuid.UUID, groupType enums.GroupType) ([]models.GroupMembership, error) {
	var rows []models.GroupMembership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND group_type = ? AND status = ?",
			userID, groupType, enums.MembershipStatusActive).
		Order("joined_at").
		Find(&rows).Error
	return rows, err
}
