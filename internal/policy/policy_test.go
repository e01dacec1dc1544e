package policy

import (
	"testing"

	"github.com/skillquest-app/skillquest-backend/pkg/enums"
)

func TestAllowGuildRoles(t *testing.T) {
	cases := []struct {
		name   string
		role   enums.GroupRole
		action Action
		want   bool
	}{
		{"owner invites", enums.GroupRoleOwner, ActionInviteMember, true},
		{"owner deletes guild", enums.GroupRoleOwner, ActionDeleteGroup, true},
		{"admin invites", enums.GroupRoleAdmin, ActionInviteMember, true},
		{"admin decides join", enums.GroupRoleAdmin, ActionDecideJoin, true},
		{"admin pins", enums.GroupRoleAdmin, ActionPinPost, true},
		{"admin force deletes", enums.GroupRoleAdmin, ActionForceDeletePost, true},
		{"admin cannot delete guild", enums.GroupRoleAdmin, ActionDeleteGroup, false},
		{"admin cannot change roles", enums.GroupRoleAdmin, ActionChangeRole, false},
		{"member cannot invite", enums.GroupRoleMember, ActionInviteMember, false},
		{"member cannot pin", enums.GroupRoleMember, ActionPinPost, false},
		{"leader role is foreign to guilds", enums.GroupRoleLeader, ActionInviteMember, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allow(enums.GroupTypeGuild, tc.role, tc.action); got != tc.want {
				t.Fatalf("Allow(guild, %s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
			}
		})
	}
}

func TestAllowPartyRoles(t *testing.T) {
	cases := []struct {
		name   string
		role   enums.GroupRole
		action Action
		want   bool
	}{
		{"leader invites", enums.GroupRoleLeader, ActionInviteMember, true},
		{"leader removes member", enums.GroupRoleLeader, ActionRemoveMember, true},
		{"leader deletes party", enums.GroupRoleLeader, ActionDeleteGroup, true},
		{"member cannot invite", enums.GroupRoleMember, ActionInviteMember, false},
		{"owner role is foreign to parties", enums.GroupRoleOwner, ActionInviteMember, false},
		{"parties have no post moderation", enums.GroupRoleLeader, ActionPinPost, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allow(enums.GroupTypeParty, tc.role, tc.action); got != tc.want {
				t.Fatalf("Allow(party, %s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
			}
		})
	}
}

func TestAllowContent(t *testing.T) {
	if !AllowContent(true, ResourceFlags{}) {
		t.Fatal("author should edit an unlocked resource")
	}
	if AllowContent(true, ResourceFlags{Locked: true}) {
		t.Fatal("lock must deny even the author")
	}
	if AllowContent(false, ResourceFlags{}) {
		t.Fatal("non-author denied by base rule")
	}
	if !AllowContent(true, ResourceFlags{Pinned: true}) {
		t.Fatal("pinned does not restrict author edits")
	}
}

func TestModeratorRoles(t *testing.T) {
	roles := ModeratorRoles(enums.GroupTypeGuild, ActionForceDeletePost)
	if len(roles) != 2 {
		t.Fatalf("expected owner+admin, got %v", roles)
	}
	if roles[0] != enums.GroupRoleOwner || roles[1] != enums.GroupRoleAdmin {
		t.Fatalf("unexpected role order %v", roles)
	}

	partyRoles := ModeratorRoles(enums.GroupTypeParty, ActionInviteMember)
	if len(partyRoles) != 1 || partyRoles[0] != enums.GroupRoleLeader {
		t.Fatalf("expected leader only, got %v", partyRoles)
	}
}
