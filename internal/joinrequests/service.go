package joinrequests

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillquest-app/skillquest-backend/internal/guilds"
	"github.com/skillquest-app/skillquest-backend/internal/memberships"
	"github.com/skillquest-app/skillquest-backend/internal/policy"
	dbpkg "github.com/skillquest-app/skillquest-backend/pkg/db"
	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
	pkgerrors "github.com/skillquest-app/skillquest-backend/pkg/errors"
	"github.com/skillquest-app/skillquest-backend/pkg/outbox"
	"github.com/skillquest-app/skillquest-backend/pkg/outbox/payloads"
)

const maxMessageLength = 1000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the guild join-request engine: the requester-initiated mirror
// of the invitation flow. Parties stay invite-only and have no equivalent.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*JoinRequestDTO, error)
	Approve(ctx context.Context, requestID, actorID uuid.UUID) (*JoinRequestDTO, error)
	Reject(ctx context.Context, requestID, actorID uuid.UUID) (*JoinRequestDTO, error)
	Cancel(ctx context.Context, requestID, actorID uuid.UUID) (*JoinRequestDTO, error)
	GetByID(ctx context.Context, requestID, actorID uuid.UUID) (*JoinRequestDTO, error)
	ListMine(ctx context.Context, actorID uuid.UUID, pendingOnly bool) ([]JoinRequestDTO, error)
	ListForGuild(ctx context.Context, guildID, actorID uuid.UUID, pendingOnly bool) ([]JoinRequestDTO, error)
}

type service struct {
	repo    Store
	members memberships.Store
	guilds  guilds.Store
	tx      txRunner
	outbox  outboxPublisher
}

// NewService builds the join-request engine.
func NewService(repo Store, members memberships.Store, guildStore guilds.Store, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("join requests repository required")
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

func (s *service) Request(ctx context.Context, input RequestInput) (*JoinRequestDTO, error) {
	if input.GuildID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guild id required")
	}
	if input.RequesterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Message != nil && len(*input.Message) > maxMessageLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request message too long")
	}

	var request *models.JoinRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		members := s.members.WithTx(tx)

		guild, err := s.guilds.WithTx(tx).FindByID(ctx, input.GuildID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guild")
		}
		if guild == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "guild not found")
		}

		existing, err := members.GetActive(ctx, enums.GroupTypeGuild, input.GuildID, input.RequesterID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "user is already a member")
		}

		pending, err := repo.FindPending(ctx, input.GuildID, input.RequesterID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending request")
		}
		if pending != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "join request already pending")
		}

		request = &models.JoinRequest{
			GuildID:     input.GuildID,
			RequesterID: input.RequesterID,
			Message:     input.Message,
			Status:      enums.JoinRequestStatusPending,
		}
		if err := repo.Create(ctx, request); err != nil {
			// A concurrent request from the same user wins the partial unique
			// index; surface the loser as a duplicate, not an outage.
			if dbpkg.IsUniqueViolation(err, "ux_join_requests_pending") {
				return pkgerrors.New(pkgerrors.CodeConflict, "join request already pending")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create join request")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventJoinRequestCreated,
			AggregateType: enums.AggregateJoinRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.RequesterID},
			Data: payloads.JoinRequestCreatedEvent{
				JoinRequestID: request.ID,
				GuildID:       request.GuildID,
				RequesterID:   request.RequesterID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return ToDTO(request), nil
}

func (s *service) Approve(ctx context.Context, requestID, actorID uuid.UUID) (*JoinRequestDTO, error) {
	return s.decide(ctx, requestID, actorID, enums.JoinRequestStatusAccepted)
}

func (s *service) Reject(ctx context.Context, requestID, actorID uuid.UUID) (*JoinRequestDTO, error) {
	return s.decide(ctx, requestID, actorID, enums.JoinRequestStatusRejected)
}

// decide runs the moderator side of the state machine. Approve and reject
// share the guard clauses; only approve touches membership.
func (s *service) decide(ctx context.Context, requestID, actorID uuid.UUID, target enums.JoinRequestStatus) (*JoinRequestDTO, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "join request id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var decided *models.JoinRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		members := s.members.WithTx(tx)
		now := time.Now().UTC()

		request, err := repo.FindByIDForUpdate(ctx, requestID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load join request")
		}
		if request == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "join request not found")
		}

		actor, err := members.GetActive(ctx, enums.GroupTypeGuild, request.GuildID, actorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if actor == nil || !policy.Allow(enums.GroupTypeGuild, actor.Role, policy.ActionDecideJoin) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "insufficient guild role")
		}
		if request.Status != enums.JoinRequestStatusPending {
			return pkgerrors.New(pkgerrors.CodeGone, "join request already decided")
		}

		if target == enums.JoinRequestStatusAccepted {
			guild, err := s.guilds.WithTx(tx).FindByIDForUpdate(ctx, request.GuildID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guild")
			}
			if guild == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "guild not found")
			}
			count, err := members.CountActive(ctx, enums.GroupTypeGuild, request.GuildID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count members")
			}
			if count >= int64(guild.MaxMembers) {
				return pkgerrors.New(pkgerrors.CodeConflict, "guild is full")
			}
			existing, err := members.GetActive(ctx, enums.GroupTypeGuild, request.GuildID, request.RequesterID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
			}
			if existing != nil {
				return pkgerrors.New(pkgerrors.CodeConflict, "user is already a member")
			}
		}

		affected, err := repo.ResolvePending(ctx, request.ID, target, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decide join request")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeGone, "join request already decided")
		}
		request.Status = target
		request.RespondedAt = &now
		decided = request

		if target == enums.JoinRequestStatusAccepted {
			membership, err := members.Create(ctx, enums.GroupTypeGuild, request.GuildID, request.RequesterID, enums.DefaultRoleFor(enums.GroupTypeGuild), &actorID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create membership")
			}
			event := outbox.DomainEvent{
				EventType:     enums.EventMembershipChanged,
				AggregateType: enums.AggregateGuild,
				AggregateID:   request.GuildID,
				Version:       1,
				Actor:         &outbox.ActorRef{UserID: actorID, Role: actor.Role.String()},
				Data: payloads.MembershipChangedEvent{
					GroupType: enums.GroupTypeGuild,
					GroupID:   request.GuildID,
					UserID:    request.RequesterID,
					Role:      membership.Role,
					Status:    membership.Status,
					Change:    "joined",
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventJoinRequestDecided,
			AggregateType: enums.AggregateJoinRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actorID, Role: actor.Role.String()},
			Data: payloads.JoinRequestDecidedEvent{
				JoinRequestID: request.ID,
				GuildID:       request.GuildID,
				RequesterID:   request.RequesterID,
				Status:        target,
				DecidedByID:   &actorID,
				DecidedAt:     now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return ToDTO(decided), nil
}

// Cancel withdraws the requester's own pending request.
func (s *service) Cancel(ctx context.Context, requestID, actorID uuid.UUID) (*JoinRequestDTO, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "join request id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var cancelled *models.JoinRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := time.Now().UTC()

		request, err := repo.FindByIDForUpdate(ctx, requestID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load join request")
		}
		if request == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "join request not found")
		}
		if request.RequesterID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "join request belongs to another user")
		}
		if request.Status != enums.JoinRequestStatusPending {
			return pkgerrors.New(pkgerrors.CodeGone, "join request already decided")
		}

		affected, err := repo.ResolvePending(ctx, request.ID, enums.JoinRequestStatusCancelled, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel join request")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeGone, "join request already decided")
		}
		request.Status = enums.JoinRequestStatusCancelled
		request.RespondedAt = &now
		cancelled = request

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventJoinRequestDecided,
			AggregateType: enums.AggregateJoinRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actorID},
			Data: payloads.JoinRequestDecidedEvent{
				JoinRequestID: request.ID,
				GuildID:       request.GuildID,
				RequesterID:   request.RequesterID,
				Status:        enums.JoinRequestStatusCancelled,
				DecidedAt:     now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return ToDTO(cancelled), nil
}

func (s *service) GetByID(ctx context.Context, requestID, actorID uuid.UUID) (*JoinRequestDTO, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "join request id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load join request")
	}
	if request == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "join request not found")
	}
	if request.RequesterID != actorID {
		allowed, err := s.members.UserHasRole(ctx, enums.GroupTypeGuild, request.GuildID, actorID, policy.ModeratorRoles(enums.GroupTypeGuild, policy.ActionDecideJoin)...)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if !allowed {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "join request belongs to another user")
		}
	}
	return ToDTO(request), nil
}

// ListMine returns the caller's requests, optionally pending only. The
// pending filter is a status predicate pushed into the store query.
func (s *service) ListMine(ctx context.Context, actorID uuid.UUID, pendingOnly bool) ([]JoinRequestDTO, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListForRequester(ctx, actorID, pendingOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list join requests")
	}
	result := make([]JoinRequestDTO, 0, len(rows))
	for i := range rows {
		result = append(result, *ToDTO(&rows[i]))
	}
	return result, nil
}

func (s *service) ListForGuild(ctx context.Context, guildID, actorID uuid.UUID, pendingOnly bool) ([]JoinRequestDTO, error) {
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
	if actor == nil || !policy.Allow(enums.GroupTypeGuild, actor.Role, policy.ActionDecideJoin) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient guild role")
	}
	rows, err := s.repo.ListForGuild(ctx, guildID, pendingOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list join requests")
	}
	result := make([]JoinRequestDTO, 0, len(rows))
	for i := range rows {
		result = append(result, *ToDTO(&rows[i]))
	}
	return result, nil
}
