package guilds

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

const (
	maxNameLength        = 120
	maxDescriptionLength = 5000
	maxMemberCeiling     = 10000
	defaultMaxMembers    = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines guild aggregate operations.
type Service interface {
	Create(ctx context.Context, creatorID uuid.UUID, input CreateGuildInput) (*GuildDTO, error)
	GetByID(ctx context.Context, guildID uuid.UUID) (*GuildDTO, error)
	Update(ctx context.Context, actorID, guildID uuid.UUID, input UpdateGuildInput) (*GuildDTO, error)
	Delete(ctx context.Context, actorID, guildID uuid.UUID) error
	ListMembers(ctx context.Context, actorID, guildID uuid.UUID) ([]memberships.MemberDTO, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]GuildDTO, error)
	Leave(ctx context.Context, actorID, guildID uuid.UUID) error
	ChangeRole(ctx context.Context, actorID, guildID, memberID uuid.UUID, role enums.GroupRole) error
	RemoveMember(ctx context.Context, actorID, guildID, memberID uuid.UUID) error
}

type service struct {
	repo    Store
	members memberships.Store
	tx      txRunner
	outbox  outboxPublisher
}

// NewService builds a guild service with the required dependencies.
func NewService(repo Store, members memberships.Store, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("guilds repository required")
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

func (s *service) Create(ctx context.Context, creatorID uuid.UUID, input CreateGuildInput) (*GuildDTO, error) {
	if creatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guild name required")
	}
	if len(name) > maxNameLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guild name too long")
	}
	if len(input.Description) > maxDescriptionLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guild description too long")
	}
	visibility := input.Visibility
	if visibility == "" {
		visibility = enums.GroupVisibilityPublic
	}
	if !visibility.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid guild visibility")
	}
	maxMembers := input.MaxMembers
	if maxMembers == 0 {
		maxMembers = defaultMaxMembers
	}
	if maxMembers < 1 || maxMembers > maxMemberCeiling {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max members out of range")
	}

	guild := &models.Guild{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Visibility:  visibility,
		MaxMembers:  maxMembers,
		CreatorID:   creatorID,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		members := s.members.WithTx(tx)

		if err := repo.Create(ctx, guild); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create guild")
		}
		membership, err := members.Create(ctx, enums.GroupTypeGuild, guild.ID, creatorID, enums.GroupRoleOwner, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create founding membership")
		}
		return s.outbox.Emit(ctx, tx, membershipEvent(guild.ID, membership, "joined", creatorID, enums.GroupRoleOwner))
	})
	if err != nil {
		return nil, err
	}
	return FromModel(guild, 1), nil
}

func (s *service) GetByID(ctx context.Context, guildID uuid.UUID) (*GuildDTO, error) {
	if guildID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guild id required")
	}
	guild, err := s.repo.FindByID(ctx, guildID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guild")
	}
	if guild == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "guild not found")
	}
	count, err := s.members.CountActive(ctx, enums.GroupTypeGuild, guildID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count guild members")
	}
	return FromModel(guild, count), nil
}

func (s *service) Update(ctx context.Context, actorID, guildID uuid.UUID, input UpdateGuildInput) (*GuildDTO, error) {
	if guildID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guild id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var updated *models.Guild
	var count int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		members := s.members.WithTx(tx)

		guild, err := repo.FindByIDForUpdate(ctx, guildID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guild")
		}
		if guild == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "guild not found")
		}
		if err := s.requireRole(ctx, members, guildID, actorID, policy.ActionUpdateGroup); err != nil {
			return err
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" || len(name) > maxNameLength {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid guild name")
			}
			guild.Name = name
		}
		if input.Description != nil {
			if len(*input.Description) > maxDescriptionLength {
				return pkgerrors.New(pkgerrors.CodeValidation, "guild description too long")
			}
			guild.Description = strings.TrimSpace(*input.Description)
		}
		if input.Visibility != nil {
			if !input.Visibility.IsValid() {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid guild visibility")
			}
			guild.Visibility = *input.Visibility
		}

		count, err = members.CountActive(ctx, enums.GroupTypeGuild, guildID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count guild members")
		}
		if input.MaxMembers != nil {
			if *input.MaxMembers < 1 || *input.MaxMembers > maxMemberCeiling {
				return pkgerrors.New(pkgerrors.CodeValidation, "max members out of range")
			}
			if int64(*input.MaxMembers) < count {
				return pkgerrors.New(pkgerrors.CodeConflict, "max members below current member count")
			}
			guild.MaxMembers = *input.MaxMembers
		}

		if err := repo.Update(ctx, guild); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update guild")
		}
		updated = guild
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated, count), nil
}

func (s *service) Delete(ctx context.Context, actorID, guildID uuid.UUID) error {
	if guildID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "guild id required")
	}
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		members := s.members.WithTx(tx)

		guild, err := repo.FindByID(ctx, guildID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guild")
		}
		if guild == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "guild not found")
		}
		if err := s.requireRole(ctx, members, guildID, actorID, policy.ActionDeleteGroup); err != nil {
			return err
		}
		if err := repo.Delete(ctx, guildID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete guild")
		}
		return nil
	})
}

func (s *service) ListMembers(ctx context.Context, actorID, guildID uuid.UUID) ([]memberships.MemberDTO, error) {
	if guildID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guild id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	actor, err := s.members.GetActive(ctx, enums.GroupTypeGuild, guildID, actorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	if actor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a guild member")
	}
	roster, err := s.members.ListGroupMembers(ctx, enums.GroupTypeGuild, guildID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list guild members")
	}
	return roster, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]GuildDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.members.ListActiveForUser(ctx, userID, enums.GroupTypeGuild)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list memberships")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.GroupID)
	}
	guilds, err := s.repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guilds")
	}

	result := make([]GuildDTO, 0, len(guilds))
	for i := range guilds {
		count, err := s.members.CountActive(ctx, enums.GroupTypeGuild, guilds[i].ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count guild members")
		}
		result = append(result, *FromModel(&guilds[i], count))
	}
	return result, nil
}

func (s *service) Leave(ctx context.Context, actorID, guildID uuid.UUID) error {
	if guildID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "guild id required")
	}
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		members := s.members.WithTx(tx)

		membership, err := members.GetActive(ctx, enums.GroupTypeGuild, guildID, actorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if membership == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
		}
		if membership.Role == enums.GroupRoleOwner {
			owners, err := members.CountActiveWithRole(ctx, enums.GroupTypeGuild, guildID, enums.GroupRoleOwner)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count owners")
			}
			total, err := members.CountActive(ctx, enums.GroupTypeGuild, guildID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count guild members")
			}
			if owners <= 1 && total > 1 {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "guild requires at least one owner")
			}
		}

		affected, err := members.Leave(ctx, membership.ID, time.Now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "leave guild")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "membership already ended")
		}
		return s.outbox.Emit(ctx, tx, membershipEvent(guildID, membership, "left", actorID, membership.Role))
	})
}

func (s *service) ChangeRole(ctx context.Context, actorID, guildID, memberID uuid.UUID, role enums.GroupRole) error {
	if guildID == uuid.Nil || memberID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "guild id and member id required")
	}
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !role.IsValidFor(enums.GroupTypeGuild) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid guild role")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		members := s.members.WithTx(tx)

		if err := s.requireRole(ctx, members, guildID, actorID, policy.ActionChangeRole); err != nil {
			return err
		}
		membership, err := members.GetActive(ctx, enums.GroupTypeGuild, guildID, memberID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if membership == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
		}
		if membership.Role == role {
			return nil
		}
		if membership.Role == enums.GroupRoleOwner {
			owners, err := members.CountActiveWithRole(ctx, enums.GroupTypeGuild, guildID, enums.GroupRoleOwner)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count owners")
			}
			if owners <= 1 {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "guild requires at least one owner")
			}
		}

		if err := members.UpdateRole(ctx, membership.ID, role); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update role")
		}
		membership.Role = role
		return s.outbox.Emit(ctx, tx, membershipEvent(guildID, membership, "role_changed", actorID, enums.GroupRoleOwner))
	})
}

func (s *service) RemoveMember(ctx context.Context, actorID, guildID, memberID uuid.UUID) error {
	if guildID == uuid.Nil || memberID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "guild id and member id required")
	}
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actorID == memberID {
		return pkgerrors.New(pkgerrors.CodeValidation, "use leave to end own membership")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		members := s.members.WithTx(tx)

		actor, err := members.GetActive(ctx, enums.GroupTypeGuild, guildID, actorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if actor == nil || !policy.Allow(enums.GroupTypeGuild, actor.Role, policy.ActionRemoveMember) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient guild role")
		}
		membership, err := members.GetActive(ctx, enums.GroupTypeGuild, guildID, memberID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if membership == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
		}
		// An admin cannot remove an owner.
		if membership.Role == enums.GroupRoleOwner && actor.Role != enums.GroupRoleOwner {
			return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient guild role")
		}
		if membership.Role == enums.GroupRoleOwner {
			owners, err := members.CountActiveWithRole(ctx, enums.GroupTypeGuild, guildID, enums.GroupRoleOwner)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count owners")
			}
			if owners <= 1 {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "guild requires at least one owner")
			}
		}

		affected, err := members.Leave(ctx, membership.ID, time.Now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove member")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "membership already ended")
		}
		return s.outbox.Emit(ctx, tx, membershipEvent(guildID, membership, "removed", actorID, actor.Role))
	})
}

// requireRole loads the actor's active membership and checks the policy table
// for the requested action.
func (s *service) requireRole(ctx context.Context, members memberships.Store, guildID, actorID uuid.UUID, action policy.Action) error {
	actor, err := members.GetActive(ctx, enums.GroupTypeGuild, guildID, actorID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	if actor == nil || !policy.Allow(enums.GroupTypeGuild, actor.Role, action) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient guild role")
	}
	return nil
}

func membershipEvent(guildID uuid.UUID, membership *models.GroupMembership, change string, actorID uuid.UUID, actorRole enums.GroupRole) outbox.DomainEvent {
	status := membership.Status
	if change == "left" || change == "removed" {
		status = enums.MembershipStatusLeft
	}
	return outbox.DomainEvent{
		EventType:     enums.EventMembershipChanged,
		AggregateType: enums.AggregateGuild,
		AggregateID:   guildID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: actorID, Role: actorRole.String()},
		Data: payloads.MembershipChangedEvent{
			GroupType: enums.GroupTypeGuild,
			GroupID:   guildID,
			UserID:    membership.UserID,
			Role:      membership.Role,
			Status:    status,
			Change:    change,
		},
	}
}
