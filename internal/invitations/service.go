package invitations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillquest-app/skillquest-backend/internal/memberships"
	"github.com/skillquest-app/skillquest-backend/internal/policy"
	"github.com/skillquest-app/skillquest-backend/internal/users"
	"github.com/skillquest-app/skillquest-backend/pkg/config"
	dbpkg "github.com/skillquest-app/skillquest-backend/pkg/db"
	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
	pkgerrors "github.com/skillquest-app/skillquest-backend/pkg/errors"
	"github.com/skillquest-app/skillquest-backend/pkg/outbox"
	"github.com/skillquest-app/skillquest-backend/pkg/outbox/payloads"
	"github.com/skillquest-app/skillquest-backend/pkg/security"
)

const (
	maxMessageLength   = 1000
	tempPasswordLength = 16
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the invitation engine shared by guilds and parties. Group-type
// specifics come in through GroupAdapter; everything else is one state
// machine: Pending, then exactly one of Accepted, Declined, Expired, Revoked.
type Service interface {
	Invite(ctx context.Context, input InviteInput) (*InvitationDTO, error)
	Accept(ctx context.Context, invitationID, actorID uuid.UUID) (*InvitationDTO, error)
	Decline(ctx context.Context, invitationID, actorID uuid.UUID) (*InvitationDTO, error)
	Revoke(ctx context.Context, invitationID, actorID uuid.UUID) error
	GetByID(ctx context.Context, invitationID, actorID uuid.UUID) (*InvitationDTO, error)
	ListMine(ctx context.Context, actorID uuid.UUID, pendingOnly bool) ([]InvitationDTO, error)
	ListForGroup(ctx context.Context, groupType enums.GroupType, groupID, actorID uuid.UUID, pendingOnly bool) ([]InvitationDTO, error)
	ExpireDue(ctx context.Context, batchSize int) (int64, error)
}

type service struct {
	repo     Store
	members  memberships.Store
	users    users.Store
	adapters map[enums.GroupType]GroupAdapter
	tx       txRunner
	outbox   outboxPublisher
	cfg      config.InvitationConfig
	password config.PasswordConfig
}

// NewService builds the invitation engine. Every supported group type needs
// a registered adapter.
func NewService(repo Store, members memberships.Store, userStore users.Store, adapters []GroupAdapter, tx txRunner, outboxSvc outboxPublisher, cfg config.InvitationConfig, password config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("invitations repository required")
	}
	if members == nil {
		return nil, fmt.Errorf("membership store required")
	}
	if userStore == nil {
		return nil, fmt.Errorf("users store required")
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("at least one group adapter required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	byType := make(map[enums.GroupType]GroupAdapter, len(adapters))
	for _, adapter := range adapters {
		byType[adapter.Type()] = adapter
	}
	return &service{
		repo:     repo,
		members:  members,
		users:    userStore,
		adapters: byType,
		tx:       tx,
		outbox:   outboxSvc,
		cfg:      cfg,
		password: password,
	}, nil
}

func (s *service) adapterFor(groupType enums.GroupType) (GroupAdapter, error) {
	adapter, ok := s.adapters[groupType]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported group type")
	}
	return adapter, nil
}

func (s *service) Invite(ctx context.Context, input InviteInput) (*InvitationDTO, error) {
	if input.GroupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}
	if input.InviterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	adapter, err := s.adapterFor(input.GroupType)
	if err != nil {
		return nil, err
	}
	if input.Message != nil && len(*input.Message) > maxMessageLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invitation message too long")
	}
	email := strings.TrimSpace(strings.ToLower(input.InviteeEmail))
	if input.InviteeID == uuid.Nil && email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invitee id or email required")
	}
	if input.InviteeID != uuid.Nil && email != "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provide invitee id or email, not both")
	}

	expiresAt := time.Now().UTC().Add(s.defaultExpiry())
	if input.ExpiresAt != nil {
		if input.ExpiresAt.Before(time.Now().UTC()) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiry must be in the future")
		}
		expiresAt = input.ExpiresAt.UTC()
	}

	var invitation *models.Invitation
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		members := s.members.WithTx(tx)
		userStore := s.users.WithTx(tx)

		exists, err := adapter.Exists(ctx, input.GroupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}

		inviter, err := members.GetActive(ctx, input.GroupType, input.GroupID, input.InviterID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if inviter == nil || !policy.Allow(input.GroupType, inviter.Role, policy.ActionInviteMember) {
			return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("insufficient %s role", input.GroupType))
		}

		inviteeID := input.InviteeID
		var inviteeEmail *string
		if inviteeID == uuid.Nil {
			inviteeID, err = s.resolveInviteeByEmail(ctx, userStore, email)
			if err != nil {
				return err
			}
			inviteeEmail = &email
		}
		if inviteeID == input.InviterID {
			return pkgerrors.New(pkgerrors.CodeValidation, "cannot invite yourself")
		}

		existing, err := members.GetActive(ctx, input.GroupType, input.GroupID, inviteeID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "user is already a member")
		}

		// A new invitation supersedes any pending one to the same user.
		pending, err := repo.FindPending(ctx, input.GroupType, input.GroupID, inviteeID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending invitation")
		}
		if pending != nil {
			if _, err := repo.ResolvePending(ctx, pending.ID, enums.InvitationStatusRevoked, time.Now().UTC()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "supersede invitation")
			}
		}

		invitation = &models.Invitation{
			GroupType:    input.GroupType,
			GroupID:      input.GroupID,
			InviterID:    input.InviterID,
			InviteeID:    inviteeID,
			InviteeEmail: inviteeEmail,
			Message:      input.Message,
			Status:       enums.InvitationStatusPending,
			ExpiresAt:    expiresAt,
		}
		if err := repo.Create(ctx, invitation); err != nil {
			// A concurrent invite to the same user wins the partial unique
			// index; surface the loser as a duplicate, not an outage.
			if dbpkg.IsUniqueViolation(err, "ux_invitations_pending") {
				return pkgerrors.New(pkgerrors.CodeConflict, "invitation already pending")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invitation")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvitationCreated,
			AggregateType: enums.AggregateInvitation,
			AggregateID:   invitation.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.InviterID, Role: inviter.Role.String()},
			Data: payloads.InvitationCreatedEvent{
				InvitationID: invitation.ID,
				GroupType:    invitation.GroupType,
				GroupID:      invitation.GroupID,
				InviterID:    invitation.InviterID,
				InviteeID:    invitation.InviteeID,
				ExpiresAt:    invitation.ExpiresAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return ToDTO(invitation), nil
}

// resolveInviteeByEmail finds the user behind an email invite, provisioning
// an inactive placeholder account when the address is unknown. The account
// activates when the user first signs in and resets the generated secret.
func (s *service) resolveInviteeByEmail(ctx context.Context, userStore users.Store, email string) (uuid.UUID, error) {
	if !strings.Contains(email, "@") {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid invitee email")
	}
	user, err := userStore.FindByEmail(ctx, email)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup invitee")
	}
	if user != nil {
		return user.ID, nil
	}

	tempPassword, err := security.GenerateTempPassword(tempPasswordLength)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate placeholder password")
	}
	hash, err := security.HashPassword(tempPassword, s.password)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash placeholder password")
	}
	inactive := false
	created, err := userStore.Create(ctx, users.CreateUserDTO{
		Email:        email,
		DisplayName:  email[:strings.Index(email, "@")],
		PasswordHash: hash,
		IsActive:     &inactive,
	})
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "provision invitee")
	}
	return created.ID, nil
}

func (s *service) Accept(ctx context.Context, invitationID, actorID uuid.UUID) (*InvitationDTO, error) {
	return s.resolve(ctx, invitationID, actorID, enums.InvitationStatusAccepted)
}

func (s *service) Decline(ctx context.Context, invitationID, actorID uuid.UUID) (*InvitationDTO, error) {
	return s.resolve(ctx, invitationID, actorID, enums.InvitationStatusDeclined)
}

// resolve runs the invitee side of the state machine. Both accept and
// decline share the guard clauses; only accept touches membership.
func (s *service) resolve(ctx context.Context, invitationID, actorID uuid.UUID, target enums.InvitationStatus) (*InvitationDTO, error) {
	if invitationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invitation id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var resolved *models.Invitation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		members := s.members.WithTx(tx)
		now := time.Now().UTC()

		invitation, err := repo.FindByIDForUpdate(ctx, invitationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invitation")
		}
		if invitation == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invitation not found")
		}
		if invitation.InviteeID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "invitation addressed to another user")
		}
		if invitation.Status != enums.InvitationStatusPending {
			return pkgerrors.New(pkgerrors.CodeGone, "invitation already resolved")
		}
		if invitation.ExpiresAt.Before(now) {
			// Lazy expiry: persist the transition the sweep has not
			// caught up with yet, then refuse.
			if _, err := repo.ExpireOne(ctx, invitation.ID, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire invitation")
			}
			return pkgerrors.New(pkgerrors.CodeGone, "invitation expired")
		}

		adapter, err := s.adapterFor(invitation.GroupType)
		if err != nil {
			return err
		}

		if target == enums.InvitationStatusAccepted {
			maxMembers, err := adapter.LockCap(ctx, tx, invitation.GroupID)
			if err != nil {
				return err
			}
			count, err := members.CountActive(ctx, invitation.GroupType, invitation.GroupID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count members")
			}
			if count >= int64(maxMembers) {
				return pkgerrors.New(pkgerrors.CodeConflict, "group is full")
			}
			existing, err := members.GetActive(ctx, invitation.GroupType, invitation.GroupID, actorID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
			}
			if existing != nil {
				return pkgerrors.New(pkgerrors.CodeConflict, "user is already a member")
			}
		}

		affected, err := repo.ResolvePending(ctx, invitation.ID, target, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve invitation")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeGone, "invitation already resolved")
		}
		invitation.Status = target
		invitation.RespondedAt = &now
		resolved = invitation

		if target == enums.InvitationStatusAccepted {
			inviterID := invitation.InviterID
			membership, err := members.Create(ctx, invitation.GroupType, invitation.GroupID, actorID, adapter.DefaultRole(), &inviterID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create membership")
			}
			event := outbox.DomainEvent{
				EventType:     enums.EventMembershipChanged,
				AggregateType: aggregateFor(invitation.GroupType),
				AggregateID:   invitation.GroupID,
				Version:       1,
				Actor:         &outbox.ActorRef{UserID: actorID, Role: membership.Role.String()},
				Data: payloads.MembershipChangedEvent{
					GroupType: invitation.GroupType,
					GroupID:   invitation.GroupID,
					UserID:    actorID,
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
			EventType:     enums.EventInvitationResolved,
			AggregateType: enums.AggregateInvitation,
			AggregateID:   invitation.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actorID},
			Data: payloads.InvitationResolvedEvent{
				InvitationID: invitation.ID,
				GroupType:    invitation.GroupType,
				GroupID:      invitation.GroupID,
				InviterID:    invitation.InviterID,
				InviteeID:    invitation.InviteeID,
				Status:       target,
				ResolvedAt:   now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return ToDTO(resolved), nil
}

func (s *service) Revoke(ctx context.Context, invitationID, actorID uuid.UUID) error {
	if invitationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invitation id required")
	}
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		members := s.members.WithTx(tx)
		now := time.Now().UTC()

		invitation, err := repo.FindByIDForUpdate(ctx, invitationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invitation")
		}
		if invitation == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "invitation not found")
		}

		actor, err := members.GetActive(ctx, invitation.GroupType, invitation.GroupID, actorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if actor == nil || !policy.Allow(invitation.GroupType, actor.Role, policy.ActionRevokeInvitation) {
			return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("insufficient %s role", invitation.GroupType))
		}
		if invitation.Status != enums.InvitationStatusPending {
			return pkgerrors.New(pkgerrors.CodeGone, "invitation already resolved")
		}

		affected, err := repo.ResolvePending(ctx, invitation.ID, enums.InvitationStatusRevoked, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke invitation")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeGone, "invitation already resolved")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvitationResolved,
			AggregateType: enums.AggregateInvitation,
			AggregateID:   invitation.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actorID, Role: actor.Role.String()},
			Data: payloads.InvitationResolvedEvent{
				InvitationID: invitation.ID,
				GroupType:    invitation.GroupType,
				GroupID:      invitation.GroupID,
				InviterID:    invitation.InviterID,
				InviteeID:    invitation.InviteeID,
				Status:       enums.InvitationStatusRevoked,
				ResolvedAt:   now,
			},
		})
	})
}

func (s *service) GetByID(ctx context.Context, invitationID, actorID uuid.UUID) (*InvitationDTO, error) {
	if invitationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invitation id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	invitation, err := s.repo.FindByID(ctx, invitationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invitation")
	}
	if invitation == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invitation not found")
	}
	if invitation.InviteeID != actorID && invitation.InviterID != actorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "invitation involves another user")
	}
	return ToDTO(invitation), nil
}

func (s *service) ListMine(ctx context.Context, actorID uuid.UUID, pendingOnly bool) ([]InvitationDTO, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListForInvitee(ctx, actorID, pendingOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invitations")
	}
	result := make([]InvitationDTO, 0, len(rows))
	for i := range rows {
		result = append(result, *ToDTO(&rows[i]))
	}
	return result, nil
}

func (s *service) ListForGroup(ctx context.Context, groupType enums.GroupType, groupID, actorID uuid.UUID, pendingOnly bool) ([]InvitationDTO, error) {
	if groupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := s.adapterFor(groupType); err != nil {
		return nil, err
	}
	actor, err := s.members.GetActive(ctx, groupType, groupID, actorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
	}
	if actor == nil || !policy.Allow(groupType, actor.Role, policy.ActionInviteMember) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("insufficient %s role", groupType))
	}
	rows, err := s.repo.ListForGroup(ctx, groupType, groupID, pendingOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invitations")
	}
	result := make([]InvitationDTO, 0, len(rows))
	for i := range rows {
		result = append(result, *ToDTO(&rows[i]))
	}
	return result, nil
}

// ExpireDue is the cron entry point for the expiry sweep.
func (s *service) ExpireDue(ctx context.Context, batchSize int) (int64, error) {
	count, err := s.repo.ExpireDue(ctx, time.Now().UTC(), batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire invitations")
	}
	return count, nil
}

func (s *service) defaultExpiry() time.Duration {
	if s.cfg.DefaultExpiry > 0 {
		return s.cfg.DefaultExpiry
	}
	return 7 * 24 * time.Hour
}

func aggregateFor(groupType enums.GroupType) enums.OutboxAggregateType {
	if groupType == enums.GroupTypeParty {
		return enums.AggregateParty
	}
	return enums.AggregateGuild
}
