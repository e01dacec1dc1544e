package stash

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/internal/memberships"
	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
	pkgerrors "github.com/skillquest-app/skillquest-backend/pkg/errors"
	"github.com/skillquest-app/skillquest-backend/pkg/pagination"
)

const maxTitleLength = 200

// Service manages party stash items. Once shared, an item belongs to the
// party: any active party member may update or delete it, authorship grants
// nothing extra.
type Service interface {
	Share(ctx context.Context, input ShareInput) (*StashItemDTO, error)
	GetByID(ctx context.Context, itemID, actorID uuid.UUID) (*StashItemDTO, error)
	Update(ctx context.Context, itemID, actorID uuid.UUID, input UpdateInput) (*StashItemDTO, error)
	Delete(ctx context.Context, itemID, actorID uuid.UUID) error
	ListForParty(ctx context.Context, partyID, actorID uuid.UUID, params pagination.Params) ([]StashItemDTO, string, error)
}

type service struct {
	repo    Store
	members memberships.Store
}

// NewService builds the stash service.
func NewService(repo Store, members memberships.Store) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stash repository required")
	}
	if members == nil {
		return nil, fmt.Errorf("membership store required")
	}
	return &service{repo: repo, members: members}, nil
}

func (s *service) requireMember(ctx context.Context, partyID, actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	membership, err := s.members.GetActive(ctx, enums.GroupTypeParty, partyID, actorID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	if membership == nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not a party member")
	}
	return nil
}

func (s *service) Share(ctx context.Context, input ShareInput) (*StashItemDTO, error) {
	if input.PartyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "party id required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" || len(title) > maxTitleLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title must be 1-200 characters")
	}
	if len(input.Content) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content required")
	}
	if err := s.requireMember(ctx, input.PartyID, input.SharedByUserID); err != nil {
		return nil, err
	}

	item := &models.PartyStashItem{
		PartyID:        input.PartyID,
		OriginalNoteID: input.OriginalNoteID,
		SharedByUserID: input.SharedByUserID,
		Title:          title,
		Content:        input.Content,
		Tags:           input.Tags,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stash item")
	}
	return ToDTO(item), nil
}

func (s *service) GetByID(ctx context.Context, itemID, actorID uuid.UUID) (*StashItemDTO, error) {
	item, err := s.load(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, item.PartyID, actorID); err != nil {
		return nil, err
	}
	return ToDTO(item), nil
}

func (s *service) Update(ctx context.Context, itemID, actorID uuid.UUID, input UpdateInput) (*StashItemDTO, error) {
	item, err := s.load(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, item.PartyID, actorID); err != nil {
		return nil, err
	}
	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		if trimmed == "" || len(trimmed) > maxTitleLength {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title must be 1-200 characters")
		}
		item.Title = trimmed
	}
	if input.Content != nil {
		item.Content = input.Content
	}
	if input.Tags != nil {
		item.Tags = input.Tags
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stash item")
	}
	return ToDTO(item), nil
}

func (s *service) Delete(ctx context.Context, itemID, actorID uuid.UUID) error {
	item, err := s.load(ctx, itemID)
	if err != nil {
		return err
	}
	if err := s.requireMember(ctx, item.PartyID, actorID); err != nil {
		return err
	}
	affected, err := s.repo.Delete(ctx, item.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete stash item")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "stash item not found")
	}
	return nil
}

func (s *service) ListForParty(ctx context.Context, partyID, actorID uuid.UUID, params pagination.Params) ([]StashItemDTO, string, error) {
	if partyID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "party id required")
	}
	if err := s.requireMember(ctx, partyID, actorID); err != nil {
		return nil, "", err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListForParty(ctx, partyID, limit+1, cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stash items")
	}
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	result := make([]StashItemDTO, 0, len(rows))
	for i := range rows {
		result = append(result, *ToDTO(&rows[i]))
	}
	return result, next, nil
}

func (s *service) load(ctx context.Context, itemID uuid.UUID) (*models.PartyStashItem, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stash item id required")
	}
	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stash item")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stash item not found")
	}
	return item, nil
}
