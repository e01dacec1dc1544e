package enums

import "fmt"

// GroupRole is the single role a membership carries inside a group. Guilds
// use Owner/Admin/Member, parties use Leader/Member.
type GroupRole string

const (
	GroupRoleOwner  GroupRole = "owner"
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleLeader GroupRole = "leader"
	GroupRoleMember GroupRole = "member"
)

var guildRoles = []GroupRole{
	GroupRoleOwner,
	GroupRoleAdmin,
	GroupRoleMember,
}

var partyRoles = []GroupRole{
	GroupRoleLeader,
	GroupRoleMember,
}

// String implements fmt.Stringer.
func (r GroupRole) String() string {
	return string(r)
}

// IsValidFor reports whether the role belongs to the given group type's role set.
func (r GroupRole) IsValidFor(groupType GroupType) bool {
	for _, candidate := range RolesFor(groupType) {
		if candidate == r {
			return true
		}
	}
	return false
}

// RolesFor returns the closed role set for a group type.
func RolesFor(groupType GroupType) []GroupRole {
	switch groupType {
	case GroupTypeGuild:
		return guildRoles
	case GroupTypeParty:
		return partyRoles
	}
	return nil
}

// DefaultRoleFor returns the role assigned when a membership is created
// without an explicit role, e.g. on invitation accept.
func DefaultRoleFor(groupType GroupType) GroupRole {
	return GroupRoleMember
}

// StewardRoleFor returns the role that anchors a group: the one role that must
// survive as long as the group has active members.
func StewardRoleFor(groupType GroupType) GroupRole {
	if groupType == GroupTypeParty {
		return GroupRoleLeader
	}
	return GroupRoleOwner
}

// ParseGroupRole converts raw input into a GroupRole valid for the group type.
func ParseGroupRole(groupType GroupType, value string) (GroupRole, error) {
	for _, candidate := range RolesFor(groupType) {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid %s role %q", groupType, value)
}
