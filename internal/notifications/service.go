package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
	pkgerrors "github.com/skillquest-app/skillquest-backend/pkg/errors"
	"github.com/skillquest-app/skillquest-backend/pkg/pagination"
)

const maxBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines notification ledger operations. All reads and mutations
// are scoped to the acting recipient; cross-recipient access is Forbidden.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Notification, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	GetLatest(ctx context.Context, recipientID uuid.UUID, limit int, unreadOnly bool) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
	DeleteBatch(ctx context.Context, recipientID uuid.UUID, ids []uuid.UUID) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// CreateInput carries the fields for a new notification row.
type CreateInput struct {
	RecipientID uuid.UUID
	Type        enums.NotificationType
	Title       string
	Message     string
	Link        *string
}

// ListParams configures cursor pagination for notifications.
type ListParams struct {
	RecipientID uuid.UUID
	Limit       int
	Cursor      string
	UnreadOnly  bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Notification, error) {
	if input.RecipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification title required")
	}

	notification := &models.Notification{
		RecipientID: input.RecipientID,
		Type:        input.Type,
		Title:       title,
		Message:     strings.TrimSpace(input.Message),
		Link:        input.Link,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return notification, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.RecipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}

	query := listNotificationsParams{
		RecipientID: params.RecipientID,
		Limit:       params.Limit,
		UnreadOnly:  params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &ListResult{
		Items:  rows,
		Cursor: cursor,
	}, nil
}

// GetLatest returns the newest notifications for the recipient. Limits at or
// below zero fall back to the default page size and anything above the
// ceiling is clamped rather than rejected.
func (s *service) GetLatest(ctx context.Context, recipientID uuid.UUID, limit int, unreadOnly bool) ([]models.Notification, error) {
	if recipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	rows, err := s.repo.ListLatest(ctx, recipientID, pagination.NormalizeLimit(limit), unreadOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return rows, nil
}

func (s *service) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if recipientID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	count, err := s.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return count, nil
}

// MarkRead is idempotent: re-reading an already-read notification succeeds
// without touching the row.
func (s *service) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	if recipientID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	notification, err := s.repo.FindByID(ctx, notificationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification")
	}
	if notification == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	if notification.RecipientID != recipientID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "notification belongs to another user")
	}
	if notification.ReadAt != nil {
		return nil
	}

	if _, err := s.repo.MarkRead(ctx, notificationID, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if recipientID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}

	var count int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		count, err = s.repo.WithTx(tx).MarkAllRead(ctx, recipientID, time.Now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteBatch removes the given notifications atomically. If any id is
// missing or belongs to another recipient the whole batch fails and the
// first violating id is surfaced in the error details.
func (s *service) DeleteBatch(ctx context.Context, recipientID uuid.UUID, ids []uuid.UUID) error {
	if recipientID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	if len(ids) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification ids required")
	}
	if len(ids) > maxBatchSize {
		return pkgerrors.New(pkgerrors.CodeValidation, "too many notification ids")
	}
	for _, id := range ids {
		if id == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
		}
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		rows, err := repo.FindByIDs(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notifications")
		}
		byID := make(map[uuid.UUID]*models.Notification, len(rows))
		for i := range rows {
			byID[rows[i].ID] = &rows[i]
		}
		for _, id := range ids {
			row, ok := byID[id]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found").
					WithDetails(map[string]string{"notification_id": id.String()})
			}
			if row.RecipientID != recipientID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "notification belongs to another user").
					WithDetails(map[string]string{"notification_id": id.String()})
			}
		}

		if _, err := repo.DeleteByIDs(ctx, ids); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete notifications")
		}
		return nil
	})
}
