package parties

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillquest-app/skillquest-backend/internal/memberships"
	"github.com/skillquest-app/skillquest-backend/internal/policy"
	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
	pkgerrors "github.com/skillquest-app/skillquest-backend/pkg/errors"
	"github.com/skillquest-app/skillquest-backend/pkg/outbox"
	"github.com/skillquest-app/skillquest-backend/pkg/outbox/payloads"
)

// Parties are deliberately small; the cap ceiling is the schema default.
const (
	maxNameLength        = 120
	maxDescriptionLength = 2000
	maxMemberCeiling     = 8
	defaultMaxMembers    = 8
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines party aggregate operations. Parties have no role ladder
// beyond leader/member and no join requests; membership grows by invitation
// only.
type Service interface {
	Create(ctx context.Context, creatorID uuid.UUID, input CreatePartyInput) (*PartyDTO, error)
	GetByID(ctx context.Context, partyID uuid.UUID) (*PartyDTO, error)
	Update(ctx context.Context, actorID, partyID uuid.UUID, input UpdatePartyInput) (*PartyDTO, error)
	Delete(ctx context.Context, actorID, partyID uuid.UUID) error
	ListMembers(ctx context.Context, actorID, partyID uuid.UUID) ([]memberships.MemberDTO, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]PartyDTO, error)
	Leave(ctx context.Context, actorID, partyID uuid.UUID) error
	RemoveMember(ctx context.Context, actorID, partyID, memberID uuid.UUID) error
}

type service struct {
	repo    Store
	members memberships.Store
	tx      txRunner
	outbox  outboxPublisher
}

// NewService builds a party service with the required dependencies.
func NewService(repo Store, members memberships.Store, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("parties repository required")
	}
	if members == nil {
		return nil, fmt.Errorf("membership store required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, members: members, tx: tx, outbox: outboxSvc}, nil
}

func (s *service) Create(ctx context.Context, creatorID uuid.UUID, input CreatePartyInput) (*PartyDTO, error) {
	if creatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "party name required")
	}
	if len(name) > maxNameLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "party name too long")
	}
	if len(input.Description) > maxDescriptionLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "party description too long")
	}
	visibility := input.Visibility
	if visibility == "" {
		visibility = enums.GroupVisibilityPrivate
	}
	if !visibility.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid party visibility")
	}
	maxMembers := input.MaxMembers
	if maxMembers == 0 {
		maxMembers = defaultMaxMembers
	}
	if maxMembers < 1 || maxMembers > maxMemberCeiling {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max members out of range")
	}

	party := &models.Party{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Visibility:  visibility,
		MaxMembers:  maxMembers,
		CreatorID:   creatorID,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		members := s.members.WithTx(tx)

		if err := repo.Create(ctx, party); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create party")
		}
		membership, err := members.Create(ctx, enums.GroupTypeParty, party.ID, creatorID, enums.GroupRoleLeader, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create founding membership")
		}
		return s.outbox.Emit(ctx, tx, membershipEvent(party.ID, membership, "joined", creatorID, enums.GroupRoleLeader))
	})
	if err != nil {
		return nil, err
	}
	return FromModel(party, 1), nil
}

func (s *service) GetByID(ctx context.Context, partyID uuid.UUID) (*PartyDTO, error) {
	if partyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "party id required")
	}
	party, err := s.repo.FindByID(ctx, partyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load party")
	}
	if party == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "party not found")
	}
	count, err := s.members.CountActive(ctx, enums.GroupTypeParty, partyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count party members")
	}
	return FromModel(party, count), nil
}

func (s *service) Update(ctx context.Context, actorID, partyID uuid.UUID, input UpdatePartyInput) (*PartyDTO, error) {
	if partyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "party id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var updated *models.Party
	var count int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		members := s.members.WithTx(tx)

		party, err := repo.FindByIDForUpdate(ctx, partyID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load party")
		}
		if party == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "party not found")
		}
		if err := s.requireRole(ctx, members, partyID, actorID, policy.ActionUpdateGroup); err != nil {
			return err
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" || len(name) > maxNameLength {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid party name")
			}
			party.Name = name
		}
		if input.Description != nil {
			if len(*input.Description) > maxDescriptionLength {
				return pkgerrors.New(pkgerrors.CodeValidation, "party description too long")
			}
			party.Description = strings.TrimSpace(*input.Description)
		}
		if input.Visibility != nil {
			if !input.Visibility.IsValid() {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid party visibility")
			}
			party.Visibility = *input.Visibility
		}

		count, err = members.CountActive(ctx, enums.GroupTypeParty, partyID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count party members")
		}
		if input.MaxMembers != nil {
			if *input.MaxMembers < 1 || *input.MaxMembers > maxMemberCeiling {
				return pkgerrors.New(pkgerrors.CodeValidation, "max members out of range")
			}
			if int64(*input.MaxMembers) < count {
				return pkgerrors.New(pkgerrors.CodeConflict, "max members below current member count")
			}
			party.MaxMembers = *input.MaxMembers
		}

		if err := repo.Update(ctx, party); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update party")
		}
		updated = party
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated, count), nil
}

func (s *service) Delete(ctx context.Context, actorID, partyID uuid.UUID) error {
	if partyID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "party id required")
	}
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		members := s.members.WithTx(tx)

		party, err := repo.FindByID(ctx, partyID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load party")
		}
		if party == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "party not found")
		}
		if err := s.requireRole(ctx, members, partyID, actorID, policy.ActionDeleteGroup); err != nil {
			return err
		}
		if err := repo.Delete(ctx, partyID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete party")
		}
		return nil
	})
}

func (s *service) ListMembers(ctx context.Context, actorID, partyID uuid.UUID) ([]memberships.MemberDTO, error) {
	if partyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "party id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	actor, err := s.members.GetActive(ctx, enums.GroupTypeParty, partyID, actorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	if actor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party member")
	}
	roster, err := s.members.ListGroupMembers(ctx, enums.GroupTypeParty, partyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list party members")
	}
	return roster, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]PartyDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.members.ListActiveForUser(ctx, userID, enums.GroupTypeParty)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list memberships")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.GroupID)
	}
	parties, err := s.repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parties")
	}

	result := make([]PartyDTO, 0, len(parties))
	for i := range parties {
		count, err := s.members.CountActive(ctx, enums.GroupTypeParty, parties[i].ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count party members")
		}
		result = append(result, *FromModel(&parties[i], count))
	}
	return result, nil
}

func (s *service) Leave(ctx context.Context, actorID, partyID uuid.UUID) error {
	if partyID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "party id required")
	}
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		members := s.members.WithTx(tx)

		membership, err := members.GetActive(ctx, enums.GroupTypeParty, partyID, actorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if membership == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
		}
		if membership.Role == enums.GroupRoleLeader {
			total, err := members.CountActive(ctx, enums.GroupTypeParty, partyID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count party members")
			}
			if total > 1 {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "party requires a leader")
			}
		}

		affected, err := members.Leave(ctx, membership.ID, time.Now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "leave party")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "membership already ended")
		}
		return s.outbox.Emit(ctx, tx, membershipEvent(partyID, membership, "left", actorID, membership.Role))
	})
}

func (s *service) RemoveMember(ctx context.Context, actorID, partyID, memberID uuid.UUID) error {
	if partyID == uuid.Nil || memberID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "party id and member id required")
	}
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actorID == memberID {
		return pkgerrors.New(pkgerrors.CodeValidation, "use leave to end own membership")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		members := s.members.WithTx(tx)

		actor, err := members.GetActive(ctx, enums.GroupTypeParty, partyID, actorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if actor == nil || !policy.Allow(enums.GroupTypeParty, actor.Role, policy.ActionRemoveMember) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient party role")
		}
		membership, err := members.GetActive(ctx, enums.GroupTypeParty, partyID, memberID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if membership == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
		}

		affected, err := members.Leave(ctx, membership.ID, time.Now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove member")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "membership already ended")
		}
		return s.outbox.Emit(ctx, tx, membershipEvent(partyID, membership, "removed", actorID, actor.Role))
	})
}

func (s *service) requireRole(ctx context.Context, members memberships.Store, partyID, actorID uuid.UUID, action policy.Action) error {
	actor, err := members.GetActive(ctx, enums.GroupTypeParty, partyID, actorID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	if actor == nil || !policy.Allow(enums.GroupTypeParty, actor.Role, action) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient party role")
	}
	return nil
}

func membershipEvent(partyID uuid.UUID, membership *models.GroupMembership, change string, actorID uuid.UUID, actorRole enums.GroupRole) outbox.DomainEvent {
	status := membership.Status
	if change == "left" || change == "removed" {
		status = enums.MembershipStatusLeft
	}
	return outbox.DomainEvent{
		EventType:     enums.EventMembershipChanged,
		AggregateType: enums.AggregateParty,
		AggregateID:   partyID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: actorID, Role: actorRole.String()},
		Data: payloads.MembershipChangedEvent{
			GroupType: enums.GroupTypeParty,
			GroupID:   partyID,
			UserID:    membership.UserID,
			Role:      membership.Role,
			Status:    status,
			Change:    change,
		},
	}
}
