package posts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
	"github.com/skillquest-app/skillquest-backend/pkg/pagination"
)

// Store exposes post, comment, and like persistence. The removed transition
// is compare-and-set on the visible state, and derived counters only move
// with atomic increments in the same transaction as the child mutation.
type Store interface {
	WithTx(tx *gorm.DB) Store

	CreatePost(ctx context.Context, post *models.Post) error
	FindPostByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	FindPostByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Post, error)
	UpdatePost(ctx context.Context, post *models.Post) error
	SetFlags(ctx context.Context, id uuid.UUID, fields map[string]any) error
	MarkPostRemoved(ctx context.Context, id uuid.UUID) (int64, error)
	ListGuildPosts(ctx context.Context, guildID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Post, error)

	CreateComment(ctx context.Context, comment *models.Comment) error
	FindCommentByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	MarkCommentRemoved(ctx context.Context, id uuid.UUID) (int64, error)
	ListComments(ctx context.Context, postID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Comment, error)
	AddCommentCount(ctx context.Context, postID uuid.UUID, delta int) error

	CreateLike(ctx context.Context, postID, userID uuid.UUID) (int64, error)
	DeleteLike(ctx context.Context, postID, userID uuid.UUID) (int64, error)
	AddLikeCount(ctx context.Context, postID uuid.UUID, delta int) error
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

func (r *repository) CreatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

// FindPostByID loads a post, nil when absent.
func (r *repository) FindPostByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// FindPostByIDForUpdate loads a post holding a row lock, serializing
// concurrent moderation on the same row.
func (r *repository) FindPostByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&post, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

func (r *repository) UpdatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

// SetFlags applies targeted column updates, used for pin/lock toggles.
func (r *repository) SetFlags(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// MarkPostRemoved flips a visible post to removed. Returns the number of
// rows updated: zero means the post was already removed or absent.
func (r *repository) MarkPostRemoved(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ? AND status = ?", id, enums.PostStatusVisible).
		Update("status", enums.PostStatusRemoved)
	return result.RowsAffected, result.Error
}

// ListGuildPosts returns visible posts for the guild, newest first, keyset
// paginated on (created_at, id).
func (r *repository) ListGuildPosts(ctx context.Context, guildID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Post, error) {
	query := r.db.WithContext(ctx).
		Where("guild_id = ? AND status = ?", guildID, enums.PostStatusVisible)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Post
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *repository) CreateComment(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// FindCommentByID loads a comment, nil when absent.
func (r *repository) FindCommentByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).First(&comment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &comment, nil
}

// MarkCommentRemoved flips a visible comment to removed.
func (r *repository) MarkCommentRemoved(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ? AND status = ?", id, enums.PostStatusVisible).
		Update("status", enums.PostStatusRemoved)
	return result.RowsAffected, result.Error
}

// ListComments returns visible comments oldest first, keyset paginated.
func (r *repository) ListComments(ctx context.Context, postID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Comment, error) {
	query := r.db.WithContext(ctx).
		Where("post_id = ? AND status = ?", postID, enums.PostStatusVisible)
	if cursor != nil {
		query = query.Where("(created_at, id) > (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Comment
	err := query.Order("created_at ASC, id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

// AddCommentCount moves the derived counter atomically. The table carries a
// comment_count >= 0 check, so a drifted decrement fails loudly.
func (r *repository) AddCommentCount(ctx context.Context, postID uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		Update("comment_count", gorm.Expr("comment_count + ?", delta)).Error
}

// CreateLike inserts a (post, user) like, ignoring duplicates. Returns the
// number of rows inserted so the caller knows whether to move the counter.
func (r *repository) CreateLike(ctx context.Context, postID, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PostLike{PostID: postID, UserID: userID})
	return result.RowsAffected, result.Error
}

// DeleteLike removes a (post, user) like if present.
func (r *repository) DeleteLike(ctx context.Context, postID, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.PostLike{})
	return result.RowsAffected, result.Error
}

// AddLikeCount moves the derived counter atomically.
func (r *repository) AddLikeCount(ctx context.Context, postID uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		Update("like_count", gorm.Expr("like_count + ?", delta)).Error
}
