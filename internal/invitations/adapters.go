package invitations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillquest-app/skillquest-backend/internal/guilds"
	"github.com/skillquest-app/skillquest-backend/internal/parties"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
	pkgerrors "github.com/skillquest-app/skillquest-backend/pkg/errors"
)

// GroupAdapter abstracts the per-group-type behavior the invitation engine
// needs: the role set, the role granted on accept, and cap lookup. One
// engine instance serves both guilds and parties through this interface.
type GroupAdapter interface {
	Type() enums.GroupType
	DefaultRole() enums.GroupRole
	// Exists reports whether the group is present, without locking.
	Exists(ctx context.Context, groupID uuid.UUID) (bool, error)
	// LockCap loads the group's member cap under a row lock so a
	// concurrent accept cannot slip past the count check.
	LockCap(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (int, error)
}

type guildAdapter struct {
	repo guilds.Store
}

// NewGuildAdapter adapts the guild aggregate for the invitation engine.
func NewGuildAdapter(repo guilds.Store) GroupAdapter {
	return &guildAdapter{repo: repo}
}

func (a *guildAdapter) Type() enums.GroupType        { return enums.GroupTypeGuild }
func (a *guildAdapter) DefaultRole() enums.GroupRole { return enums.DefaultRoleFor(enums.GroupTypeGuild) }

func (a *guildAdapter) Exists(ctx context.Context, groupID uuid.UUID) (bool, error) {
	guild, err := a.repo.FindByID(ctx, groupID)
	if err != nil {
		return false, err
	}
	return guild != nil, nil
}

func (a *guildAdapter) LockCap(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (int, error) {
	guild, err := a.repo.WithTx(tx).FindByIDForUpdate(ctx, groupID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guild")
	}
	if guild == nil {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "guild not found")
	}
	return guild.MaxMembers, nil
}

type partyAdapter struct {
	repo parties.Store
}

// NewPartyAdapter adapts the party aggregate for the invitation engine.
func NewPartyAdapter(repo parties.Store) GroupAdapter {
	return &partyAdapter{repo: repo}
}

func (a *partyAdapter) Type() enums.GroupType        { return enums.GroupTypeParty }
func (a *partyAdapter) DefaultRole() enums.GroupRole { return enums.DefaultRoleFor(enums.GroupTypeParty) }

func (a *partyAdapter) Exists(ctx context.Context, groupID uuid.UUID) (bool, error) {
	party, err := a.repo.FindByID(ctx, groupID)
	if err != nil {
		return false, err
	}
	return party != nil, nil
}

func (a *partyAdapter) LockCap(ctx context.Context, tx *gorm.DB, groupID uuid.UUID) (int, error) {
	party, err := a.repo.WithTx(tx).FindByIDForUpdate(ctx, groupID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load party")
	}
	if party == nil {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "party not found")
	}
	return party.MaxMembers, nil
}
