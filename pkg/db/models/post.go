package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

// Post is guild content. CommentCount and LikeCount are derived counters:
// they are only mutated with atomic increments inside the transaction that
// mutates the children, and must equal the count of non-removed children.
type Post struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GuildID        uuid.UUID        `gorm:"column:guild_id;type:uuid;not null"`
	AuthorID       uuid.UUID        `gorm:"column:author_id;type:uuid;not null"`
	Title          string           `gorm:"type:text;not null"`
	Content        string           `gorm:"type:text;not null"`
	Tags           pq.StringArray   `gorm:"column:tags;type:text[];not null;default:ARRAY[]::text[]"`
	AttachmentURLs pq.StringArray   `gorm:"column:attachment_urls;type:text[];not null;default:ARRAY[]::text[]"`
	IsPinned       bool             `gorm:"column:is_pinned;not null;default:false"`
	IsLocked       bool             `gorm:"column:is_locked;not null;default:false"`
	IsAnnouncement bool             `gorm:"column:is_announcement;not null;default:false"`
	Status         enums.PostStatus `gorm:"column:status;type:post_status;not null;default:'visible'"`
	CommentCount   int64            `gorm:"column:comment_count;not null;default:0"`
	LikeCount      int64            `gorm:"column:like_count;not null;default:0"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// Comment hangs off a post. Moderation checks use the comment's own author,
// independent of the parent post's author.
type Comment struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PostID    uuid.UUID        `gorm:"column:post_id;type:uuid;not null"`
	AuthorID  uuid.UUID        `gorm:"column:author_id;type:uuid;not null"`
	Content   string           `gorm:"type:text;not null"`
	Status    enums.PostStatus `gorm:"column:status;type:post_status;not null;default:'visible'"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// PostLike records a unique (post, user) like.
type PostLike struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PostID    uuid.UUID `gorm:"column:post_id;type:uuid;not null;uniqueIndex:ux_post_likes_post_user"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_post_likes_post_user"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
