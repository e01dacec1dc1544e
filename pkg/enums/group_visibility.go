package enums

import "fmt"

// GroupVisibility controls whether a group is discoverable and open to join
// requests.
type GroupVisibility string

const (
	GroupVisibilityPublic  GroupVisibility = "public"
	GroupVisibilityPrivate GroupVisibility = "private"
)

var validGroupVisibilities = []GroupVisibility{
	GroupVisibilityPublic,
	GroupVisibilityPrivate,
}

// String implements fmt.Stringer.
func (v GroupVisibility) String() string {
	return string(v)
}

// IsValid reports whether the value matches a known GroupVisibility.
func (v GroupVisibility) IsValid() bool {
	for _, candidate := range validGroupVisibilities {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseGroupVisibility converts raw input into a GroupVisibility.
func ParseGroupVisibility(value string) (GroupVisibility, error) {
	for _, candidate := range validGroupVisibilities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid group visibility %q", value)
}
