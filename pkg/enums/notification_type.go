package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeGuildInvitation     NotificationType = "guild_invitation"
	NotificationTypePartyInvitation     NotificationType = "party_invitation"
	NotificationTypeInvitationAccepted  NotificationType = "invitation_accepted"
	NotificationTypeInvitationDeclined  NotificationType = "invitation_declined"
	NotificationTypeJoinRequest         NotificationType = "join_request"
	NotificationTypeJoinRequestApproved NotificationType = "join_request_approved"
	NotificationTypeJoinRequestRejected NotificationType = "join_request_rejected"
	NotificationTypePostRemoved         NotificationType = "post_removed"
	NotificationTypeSystemAnnouncement  NotificationType = "system_announcement"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeGuildInvitation,
	NotificationTypePartyInvitation,
	NotificationTypeInvitationAccepted,
	NotificationTypeInvitationDeclined,
	NotificationTypeJoinRequest,
	NotificationTypeJoinRequestApproved,
	NotificationTypeJoinRequestRejected,
	NotificationTypePostRemoved,
	NotificationTypeSystemAnnouncement,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
