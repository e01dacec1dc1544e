package enums

import "fmt"

// PostStatus marks guild content as visible or removed. Removed rows stay in
// the table so derived counters and audits can see them.
type PostStatus string

const (
	PostStatusVisible PostStatus = "visible"
	PostStatusRemoved PostStatus = "removed"
)

var validPostStatuses = []PostStatus{
	PostStatusVisible,
	PostStatusRemoved,
}

// String implements fmt.Stringer.
func (s PostStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known PostStatus.
func (s PostStatus) IsValid() bool {
	for _, candidate := range validPostStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePostStatus converts raw input into a PostStatus.
func ParsePostStatus(value string) (PostStatus, error) {
	for _, candidate := range validPostStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid post status %q", value)
}
