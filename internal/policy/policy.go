package policy

import (
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

// Action is a closed enumeration of the mutations gated by the role table.
type Action string

const (
	ActionInviteMember     Action = "invite_member"
	ActionRevokeInvitation Action = "revoke_invitation"
	ActionDecideJoin       Action = "decide_join_request"
	ActionRemoveMember     Action = "remove_member"
	ActionChangeRole       Action = "change_role"
	ActionUpdateGroup      Action = "update_group"
	ActionDeleteGroup      Action = "delete_group"
	ActionPinPost          Action = "pin_post"
	ActionLockPost         Action = "lock_post"
	ActionForceDeletePost  Action = "force_delete_post"
	ActionPostAnnouncement Action = "post_announcement"
)

// ResourceFlags carries the moderation state a decision may depend on beyond
// the actor's role.
type ResourceFlags struct {
	Locked bool
	Pinned bool
}

type tableKey struct {
	groupType enums.GroupType
	role      enums.GroupRole
	action    Action
}

// The allow table is data: adding a role or action is an entry here, not a
// new code path. Absent keys deny.
var allowTable = buildAllowTable()

func buildAllowTable() map[tableKey]bool {
	grants := map[enums.GroupType]map[enums.GroupRole][]Action{
		enums.GroupTypeGuild: {
			enums.GroupRoleOwner: {
				ActionInviteMember,
				ActionRevokeInvitation,
				ActionDecideJoin,
				ActionRemoveMember,
				ActionChangeRole,
				ActionUpdateGroup,
				ActionDeleteGroup,
				ActionPinPost,
				ActionLockPost,
				ActionForceDeletePost,
				ActionPostAnnouncement,
			},
			enums.GroupRoleAdmin: {
				ActionInviteMember,
				ActionRevokeInvitation,
				ActionDecideJoin,
				ActionRemoveMember,
				ActionPinPost,
				ActionLockPost,
				ActionForceDeletePost,
				ActionPostAnnouncement,
			},
			enums.GroupRoleMember: {},
		},
		enums.GroupTypeParty: {
			enums.GroupRoleLeader: {
				ActionInviteMember,
				ActionRevokeInvitation,
				ActionRemoveMember,
				ActionUpdateGroup,
				ActionDeleteGroup,
			},
			enums.GroupRoleMember: {},
		},
	}

	table := make(map[tableKey]bool)
	for groupType, roles := range grants {
		for role, actions := range roles {
			for _, action := range actions {
				table[tableKey{groupType: groupType, role: role, action: action}] = true
			}
		}
	}
	return table
}

// Allow reports whether the actor's role permits the action on the given
// group type. Pure function, no I/O.
func Allow(groupType enums.GroupType, role enums.GroupRole, action Action) bool {
	return allowTable[tableKey{groupType: groupType, role: role, action: action}]
}

// AllowContent decides author-level content mutations: editing and non-forced
// deletes require authorship, and a locked resource denies even the author.
// Moderator-level actions never route through here; they use Allow.
func AllowContent(isAuthor bool, flags ResourceFlags) bool {
	if !isAuthor {
		return false
	}
	return !flags.Locked
}

// ModeratorRoles returns the roles granted a given action for the group type,
// in role-set order. Useful for error details and membership queries.
func ModeratorRoles(groupType enums.GroupType, action Action) []enums.GroupRole {
	var roles []enums.GroupRole
	for _, role := range enums.RolesFor(groupType) {
		if Allow(groupType, role, action) {
			roles = append(roles, role)
		}
	}
	return roles
}
