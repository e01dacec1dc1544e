package enums

import "fmt"

// GroupType distinguishes the two social aggregates sharing the membership
// and invitation machinery.
type GroupType string

const (
	GroupTypeGuild GroupType = "guild"
	GroupTypeParty GroupType = "party"
)

var validGroupTypes = []GroupType{
	GroupTypeGuild,
	GroupTypeParty,
}

// String implements fmt.Stringer.
func (g GroupType) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GroupType.
func (g GroupType) IsValid() bool {
	for _, candidate := range validGroupTypes {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGroupType converts raw input into a GroupType.
func ParseGroupType(value string) (GroupType, error) {
	for _, candidate := range validGroupTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid group type %q", value)
}
