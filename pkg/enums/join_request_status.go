package enums

import "fmt"

// JoinRequestStatus mirrors the invitation state machine for requester-initiated
// flows. All states except Pending are terminal.
type JoinRequestStatus string

const (
	JoinRequestStatusPending   JoinRequestStatus = "pending"
	JoinRequestStatusAccepted  JoinRequestStatus = "accepted"
	JoinRequestStatusRejected  JoinRequestStatus = "rejected"
	JoinRequestStatusCancelled JoinRequestStatus = "cancelled"
)

var validJoinRequestStatuses = []JoinRequestStatus{
	JoinRequestStatusPending,
	JoinRequestStatusAccepted,
	JoinRequestStatusRejected,
	JoinRequestStatusCancelled,
}

// String implements fmt.Stringer.
func (s JoinRequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known JoinRequestStatus.
func (s JoinRequestStatus) IsValid() bool {
	for _, candidate := range validJoinRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status can never transition again.
func (s JoinRequestStatus) IsTerminal() bool {
	return s != JoinRequestStatusPending
}

// ParseJoinRequestStatus converts raw input into a JoinRequestStatus.
func ParseJoinRequestStatus(value string) (JoinRequestStatus, error) {
	for _, candidate := range validJoinRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid join request status %q", value)
}
