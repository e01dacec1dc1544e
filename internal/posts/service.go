package posts

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillquest-app/skillquest-backend/internal/guilds"
	"github.com/skillquest-app/skillquest-backend/internal/memberships"
	"github.com/skillquest-app/skillquest-backend/internal/policy"
	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
	pkgerrors "github.com/skillquest-app/skillquest-backend/pkg/errors"
	"github.com/skillquest-app/skillquest-backend/pkg/outbox"
	"github.com/skillquest-app/skillquest-backend/pkg/outbox/payloads"
	"github.com/skillquest-app/skillquest-backend/pkg/pagination"
)

const (
	maxTitleLength   = 200
	maxContentLength = 20000
	maxCommentLength = 2000
	maxTags          = 10

	// meritPerPost is credited to the guild when a post is created and
	// debited when the post is removed.
	meritPerPost = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the guild content moderation engine. Author-level mutations
// (edit, plain delete, comment delete) require authorship and an unlocked
// post; moderator-level mutations (pin, lock, force delete) go through the
// role table and ignore authorship.
type Service interface {
	Create(ctx context.Context, input CreatePostInput) (*PostDTO, error)
	GetByID(ctx context.Context, postID, actorID uuid.UUID) (*PostDTO, error)
	ListForGuild(ctx context.Context, guildID, actorID uuid.UUID, params pagination.Params) ([]PostDTO, string, error)
	Edit(ctx context.Context, postID, actorID uuid.UUID, input EditPostInput) (*PostDTO, error)
	Delete(ctx context.Context, postID, actorID uuid.UUID, force bool) error
	SetPinned(ctx context.Context, postID, actorID uuid.UUID, pinned bool) error
	SetLocked(ctx context.Context, postID, actorID uuid.UUID, locked bool) error
	AddComment(ctx context.Context, postID, actorID uuid.UUID, content string) (*CommentDTO, error)
	DeleteComment(ctx context.Context, commentID, actorID uuid.UUID, force bool) error
	ListComments(ctx context.Context, postID, actorID uuid.UUID, params pagination.Params) ([]CommentDTO, string, error)
	Like(ctx context.Context, postID, actorID uuid.UUID) error
	Unlike(ctx context.Context, postID, actorID uuid.UUID) error
}

type service struct {
	repo    Store
	members memberships.Store
	guilds  guilds.Store
	tx      txRunner
	outbox  outboxPublisher
}

// NewService builds the content moderation engine.
func NewService(repo Store, members memberships.Store, guildStore guilds.Store, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("posts repository required")
	}
	if members == nil {
		return nil, fmt.Errorf("membership store required")
	}
	if guildStore == nil {
		return nil, fmt.Errorf("guilds store required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		members: members,
		guilds:  guildStore,
		tx:      tx,
		outbox:  outboxSvc,
	}, nil
}

func (s *service) membership(ctx context.Context, guildID, actorID uuid.UUID) (*models.GroupMembership, error) {
	actor, err := s.members.GetActive(ctx, enums.GroupTypeGuild, guildID, actorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	if actor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a guild member")
	}
	return actor, nil
}

func (s *service) Create(ctx context.Context, input CreatePostInput) (*PostDTO, error) {
	if input.GuildID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guild id required")
	}
	if input.AuthorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" || len(title) > maxTitleLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "post title must be 1-200 characters")
	}
	if input.Content == "" || len(input.Content) > maxContentLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "post content must be 1-20000 characters")
	}
	if len(input.Tags) > maxTags {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many tags")
	}

	actor, err := s.membership(ctx, input.GuildID, input.AuthorID)
	if err != nil {
		return nil, err
	}
	if input.IsAnnouncement && !policy.Allow(enums.GroupTypeGuild, actor.Role, policy.ActionPostAnnouncement) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient guild role")
	}

	post := &models.Post{
		GuildID:        input.GuildID,
		AuthorID:       input.AuthorID,
		Title:          title,
		Content:        input.Content,
		Tags:           input.Tags,
		AttachmentURLs: input.AttachmentURLs,
		IsAnnouncement: input.IsAnnouncement,
		Status:         enums.PostStatusVisible,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreatePost(ctx, post); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create post")
		}
		if err := s.guilds.WithTx(tx).AddMeritPoints(ctx, input.GuildID, meritPerPost); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit merit points")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return PostToDTO(post), nil
}

func (s *service) GetByID(ctx context.Context, postID, actorID uuid.UUID) (*PostDTO, error) {
	post, err := s.visiblePost(ctx, s.repo, postID)
	if err != nil {
		return nil, err
	}
	if _, err := s.membership(ctx, post.GuildID, actorID); err != nil {
		return nil, err
	}
	return PostToDTO(post), nil
}

func (s *service) ListForGuild(ctx context.Context, guildID, actorID uuid.UUID, params pagination.Params) ([]PostDTO, string, error) {
	if guildID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "guild id required")
	}
	if _, err := s.membership(ctx, guildID, actorID); err != nil {
		return nil, "", err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListGuildPosts(ctx, guildID, limit+1, cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list posts")
	}
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	result := make([]PostDTO, 0, len(rows))
	for i := range rows {
		result = append(result, *PostToDTO(&rows[i]))
	}
	return result, next, nil
}

func (s *service) Edit(ctx context.Context, postID, actorID uuid.UUID, input EditPostInput) (*PostDTO, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		if trimmed == "" || len(trimmed) > maxTitleLength {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "post title must be 1-200 characters")
		}
		input.Title = &trimmed
	}
	if input.Content != nil && (*input.Content == "" || len(*input.Content) > maxContentLength) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "post content must be 1-20000 characters")
	}
	if len(input.Tags) > maxTags {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many tags")
	}

	var updated *models.Post
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		post, err := repo.FindPostByIDForUpdate(ctx, postID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load post")
		}
		if post == nil || post.Status != enums.PostStatusVisible {
			return pkgerrors.New(pkgerrors.CodeNotFound, "post not found")
		}
		// Locking overrides authorship: a locked post denies even its author.
		if !policy.AllowContent(post.AuthorID == actorID, policy.ResourceFlags{Locked: post.IsLocked, Pinned: post.IsPinned}) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "post cannot be edited")
		}
		if input.Title != nil {
			post.Title = *input.Title
		}
		if input.Content != nil {
			post.Content = *input.Content
		}
		if input.Tags != nil {
			post.Tags = input.Tags
		}
		if input.AttachmentURLs != nil {
			post.AttachmentURLs = input.AttachmentURLs
		}
		if err := repo.UpdatePost(ctx, post); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update post")
		}
		updated = post
		return nil
	})
	if err != nil {
		return nil, err
	}
	return PostToDTO(updated), nil
}

// Delete removes a post. Plain deletes require authorship of an unlocked
// post; force deletes re-check the moderator role here rather than trusting
// the transport layer's gate.
func (s *service) Delete(ctx context.Context, postID, actorID uuid.UUID, force bool) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		post, err := repo.FindPostByIDForUpdate(ctx, postID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load post")
		}
		if post == nil || post.Status != enums.PostStatusVisible {
			return pkgerrors.New(pkgerrors.CodeNotFound, "post not found")
		}

		var moderator *models.GroupMembership
		if force {
			actor, err := s.members.WithTx(tx).GetActive(ctx, enums.GroupTypeGuild, post.GuildID, actorID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
			}
			if actor == nil || !policy.Allow(enums.GroupTypeGuild, actor.Role, policy.ActionForceDeletePost) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient guild role")
			}
			moderator = actor
		} else if !policy.AllowContent(post.AuthorID == actorID, policy.ResourceFlags{Locked: post.IsLocked}) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "post cannot be deleted")
		}

		affected, err := repo.MarkPostRemoved(ctx, post.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove post")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "post not found")
		}
		if err := s.guilds.WithTx(tx).AddMeritPoints(ctx, post.GuildID, -meritPerPost); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit merit points")
		}

		event := payloads.PostModeratedEvent{
			PostID:   post.ID,
			GuildID:  post.GuildID,
			AuthorID: post.AuthorID,
			Action:   "removed",
			Forced:   force,
		}
		actor := &outbox.ActorRef{UserID: actorID}
		if moderator != nil {
			event.ModeratorID = &actorID
			actor.Role = moderator.Role.String()
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPostModerated,
			AggregateType: enums.AggregatePost,
			AggregateID:   post.ID,
			Version:       1,
			Actor:         actor,
			Data:          event,
		})
	})
}

func (s *service) SetPinned(ctx context.Context, postID, actorID uuid.UUID, pinned bool) error {
	action := "pinned"
	if !pinned {
		action = "unpinned"
	}
	return s.moderateFlag(ctx, postID, actorID, policy.ActionPinPost, map[string]any{"is_pinned": pinned}, action)
}

func (s *service) SetLocked(ctx context.Context, postID, actorID uuid.UUID, locked bool) error {
	action := "locked"
	if !locked {
		action = "unlocked"
	}
	return s.moderateFlag(ctx, postID, actorID, policy.ActionLockPost, map[string]any{"is_locked": locked}, action)
}

// moderateFlag toggles a moderation flag. Moderator-only regardless of
// authorship; content is untouched.
func (s *service) moderateFlag(ctx context.Context, postID, actorID uuid.UUID, required policy.Action, fields map[string]any, action string) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		post, err := repo.FindPostByIDForUpdate(ctx, postID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load post")
		}
		if post == nil || post.Status != enums.PostStatusVisible {
			return pkgerrors.New(pkgerrors.CodeNotFound, "post not found")
		}
		actor, err := s.members.WithTx(tx).GetActive(ctx, enums.GroupTypeGuild, post.GuildID, actorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if actor == nil || !policy.Allow(enums.GroupTypeGuild, actor.Role, required) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient guild role")
		}
		if err := repo.SetFlags(ctx, post.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update post flags")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPostModerated,
			AggregateType: enums.AggregatePost,
			AggregateID:   post.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actorID, Role: actor.Role.String()},
			Data: payloads.PostModeratedEvent{
				PostID:      post.ID,
				GuildID:     post.GuildID,
				AuthorID:    post.AuthorID,
				ModeratorID: &actorID,
				Action:      action,
			},
		})
	})
}

func (s *service) AddComment(ctx context.Context, postID, actorID uuid.UUID, content string) (*CommentDTO, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if content == "" || len(content) > maxCommentLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment must be 1-2000 characters")
	}

	var comment *models.Comment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		post, err := s.visiblePost(ctx, repo, postID)
		if err != nil {
			return err
		}
		if _, err := s.membership(ctx, post.GuildID, actorID); err != nil {
			return err
		}
		if post.IsLocked {
			return pkgerrors.New(pkgerrors.CodeForbidden, "post is locked")
		}
		comment = &models.Comment{
			PostID:   post.ID,
			AuthorID: actorID,
			Content:  content,
			Status:   enums.PostStatusVisible,
		}
		if err := repo.CreateComment(ctx, comment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create comment")
		}
		return repo.AddCommentCount(ctx, post.ID, 1)
	})
	if err != nil {
		return nil, err
	}
	return CommentToDTO(comment), nil
}

// DeleteComment follows the author-or-moderator rule against the comment's
// own author, independent of the parent post's author.
func (s *service) DeleteComment(ctx context.Context, commentID, actorID uuid.UUID, force bool) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		comment, err := repo.FindCommentByID(ctx, commentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load comment")
		}
		if comment == nil || comment.Status != enums.PostStatusVisible {
			return pkgerrors.New(pkgerrors.CodeNotFound, "comment not found")
		}
		post, err := s.visiblePost(ctx, repo, comment.PostID)
		if err != nil {
			return err
		}

		if force {
			actor, err := s.members.WithTx(tx).GetActive(ctx, enums.GroupTypeGuild, post.GuildID, actorID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
			}
			if actor == nil || !policy.Allow(enums.GroupTypeGuild, actor.Role, policy.ActionForceDeletePost) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient guild role")
			}
		} else if !policy.AllowContent(comment.AuthorID == actorID, policy.ResourceFlags{Locked: post.IsLocked}) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "comment cannot be deleted")
		}

		affected, err := repo.MarkCommentRemoved(ctx, comment.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove comment")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "comment not found")
		}
		return repo.AddCommentCount(ctx, post.ID, -1)
	})
}

func (s *service) ListComments(ctx context.Context, postID, actorID uuid.UUID, params pagination.Params) ([]CommentDTO, string, error) {
	post, err := s.visiblePost(ctx, s.repo, postID)
	if err != nil {
		return nil, "", err
	}
	if _, err := s.membership(ctx, post.GuildID, actorID); err != nil {
		return nil, "", err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListComments(ctx, postID, limit+1, cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list comments")
	}
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	result := make([]CommentDTO, 0, len(rows))
	for i := range rows {
		result = append(result, *CommentToDTO(&rows[i]))
	}
	return result, next, nil
}

// Like is idempotent: liking twice leaves one like and one counter unit.
func (s *service) Like(ctx context.Context, postID, actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		post, err := s.visiblePost(ctx, repo, postID)
		if err != nil {
			return err
		}
		if _, err := s.membership(ctx, post.GuildID, actorID); err != nil {
			return err
		}
		affected, err := repo.CreateLike(ctx, post.ID, actorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create like")
		}
		if affected == 0 {
			return nil
		}
		return repo.AddLikeCount(ctx, post.ID, 1)
	})
}

// Unlike is idempotent: removing an absent like is a no-op.
func (s *service) Unlike(ctx context.Context, postID, actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		post, err := s.visiblePost(ctx, repo, postID)
		if err != nil {
			return err
		}
		affected, err := repo.DeleteLike(ctx, post.ID, actorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete like")
		}
		if affected == 0 {
			return nil
		}
		return repo.AddLikeCount(ctx, post.ID, -1)
	})
}

func (s *service) visiblePost(ctx context.Context, repo Store, postID uuid.UUID) (*models.Post, error) {
	if postID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "post id required")
	}
	post, err := repo.FindPostByID(ctx, postID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load post")
	}
	if post == nil || post.Status != enums.PostStatusVisible {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "post not found")
	}
	return post, nil
}
