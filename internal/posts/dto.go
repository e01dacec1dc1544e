package posts

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

// PostDTO is the API-facing view of a guild post.
type PostDTO struct {
	ID             uuid.UUID        `json:"id"`
	GuildID        uuid.UUID        `json:"guild_id"`
	AuthorID       uuid.UUID        `json:"author_id"`
	AuthorName     string           `json:"author_name,omitempty"`
	Title          string           `json:"title"`
	Content        string           `json:"content"`
	Tags           []string         `json:"tags"`
	AttachmentURLs []string         `json:"attachment_urls"`
	IsPinned       bool             `json:"is_pinned"`
	IsLocked       bool             `json:"is_locked"`
	IsAnnouncement bool             `json:"is_announcement"`
	Status         enums.PostStatus `json:"status"`
	CommentCount   int64            `json:"comment_count"`
	LikeCount      int64            `json:"like_count"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// CommentDTO is the API-facing view of a post comment.
type CommentDTO struct {
	ID         uuid.UUID `json:"id"`
	PostID     uuid.UUID `json:"post_id"`
	AuthorID   uuid.UUID `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreatePostInput carries the fields of a new post command.
type CreatePostInput struct {
	GuildID        uuid.UUID
	AuthorID       uuid.UUID
	Title          string
	Content        string
	Tags           []string
	AttachmentURLs []string
	IsAnnouncement bool
}

// EditPostInput carries the author-editable fields. Nil means keep.
type EditPostInput struct {
	Title          *string
	Content        *string
	Tags           []string
	AttachmentURLs []string
}

// PostToDTO maps a post row onto its response shape.
func PostToDTO(post *models.Post) *PostDTO {
	if post == nil {
		return nil
	}
	return &PostDTO{
		ID:             post.ID,
		GuildID:        post.GuildID,
		AuthorID:       post.AuthorID,
		Title:          post.Title,
		Content:        post.Content,
		Tags:           post.Tags,
		AttachmentURLs: post.AttachmentURLs,
		IsPinned:       post.IsPinned,
		IsLocked:       post.IsLocked,
		IsAnnouncement: post.IsAnnouncement,
		Status:         post.Status,
		CommentCount:   post.CommentCount,
		LikeCount:      post.LikeCount,
		CreatedAt:      post.CreatedAt,
		UpdatedAt:      post.UpdatedAt,
	}
}

// CommentToDTO maps a comment row onto its response shape.
func CommentToDTO(comment *models.Comment) *CommentDTO {
	if comment == nil {
		return nil
	}
	return &CommentDTO{
		ID:        comment.ID,
		PostID:    comment.PostID,
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	}
}
