package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillquest-app/skillquest-backend/internal/memberships"
	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
	"github.com/skillquest-app/skillquest-backend/pkg/logger"
	"github.com/skillquest-app/skillquest-backend/pkg/outbox"
	"github.com/skillquest-app/skillquest-backend/pkg/outbox/idempotency"
	"github.com/skillquest-app/skillquest-backend/pkg/outbox/payloads"
)

const notificationConsumer = "notifications-worker"

type consumerTxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type consumerOutbox interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type moderatorLister interface {
	ListGroupMembers(ctx context.Context, groupType enums.GroupType, groupID uuid.UUID) ([]memberships.MemberDTO, error)
}

// Consumer watches social domain events and materializes them into the
// notification ledger. Each created row also queues a notification_created
// event for downstream delivery channels.
type Consumer struct {
	repo         Repository
	members      moderatorLister
	tx           consumerTxRunner
	outbox       consumerOutbox
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the notification fan-out consumer.
func NewConsumer(repo Repository, members moderatorLister, tx consumerTxRunner, outboxSvc consumerOutbox, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if members == nil {
		return nil, fmt.Errorf("membership store required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("social subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		members:      members,
		tx:           tx,
		outbox:       outboxSvc,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, notificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handleEvent(ctx, enums.OutboxEventType(eventType), envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, notificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handleEvent(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventInvitationCreated:
		var payload payloads.InvitationCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notifyInvitee(ctx, payload, logCtx)
	case enums.EventInvitationResolved:
		var payload payloads.InvitationResolvedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notifyInviter(ctx, payload, logCtx)
	case enums.EventJoinRequestCreated:
		var payload payloads.JoinRequestCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notifyGuildModerators(ctx, payload, logCtx)
	case enums.EventJoinRequestDecided:
		var payload payloads.JoinRequestDecidedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notifyRequester(ctx, payload, logCtx)
	case enums.EventPostModerated:
		var payload payloads.PostModeratedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notifyPostAuthor(ctx, payload, logCtx)
	default:
		c.logg.Info(logCtx, "event not handled")
		return nil
	}
}

func (c *Consumer) notifyInvitee(ctx context.Context, payload payloads.InvitationCreatedEvent, logCtx context.Context) error {
	if payload.InviteeID == uuid.Nil {
		return fmt.Errorf("invitee id missing")
	}
	notificationType := enums.NotificationTypeGuildInvitation
	title := "Guild invitation"
	message := "You have been invited to join a guild."
	if payload.GroupType == enums.GroupTypeParty {
		notificationType = enums.NotificationTypePartyInvitation
		title = "Party invitation"
		message = "You have been invited to join a party."
	}
	link := fmt.Sprintf("/invitations/%s", payload.InvitationID)
	err := c.createAndQueue(ctx, &models.Notification{
		RecipientID: payload.InviteeID,
		Type:        notificationType,
		Title:       title,
		Message:     message,
		Link:        &link,
	})
	if err != nil {
		return err
	}
	c.logg.Info(logCtx, "invitee notified")
	return nil
}

func (c *Consumer) notifyInviter(ctx context.Context, payload payloads.InvitationResolvedEvent, logCtx context.Context) error {
	if payload.InviterID == uuid.Nil {
		return fmt.Errorf("inviter id missing")
	}
	// Only accept/decline resolutions notify the inviter; expiry and
	// revocation are silent.
	var notificationType enums.NotificationType
	var title, message string
	switch payload.Status {
	case enums.InvitationStatusAccepted:
		notificationType = enums.NotificationTypeInvitationAccepted
		title = "Invitation accepted"
		message = "Your invitation was accepted."
	case enums.InvitationStatusDeclined:
		notificationType = enums.NotificationTypeInvitationDeclined
		title = "Invitation declined"
		message = "Your invitation was declined."
	default:
		c.logg.Info(logCtx, "resolution not notified")
		return nil
	}
	link := fmt.Sprintf("/invitations/%s", payload.InvitationID)
	err := c.createAndQueue(ctx, &models.Notification{
		RecipientID: payload.InviterID,
		Type:        notificationType,
		Title:       title,
		Message:     message,
		Link:        &link,
	})
	if err != nil {
		return err
	}
	c.logg.Info(logCtx, "inviter notified")
	return nil
}

func (c *Consumer) notifyGuildModerators(ctx context.Context, payload payloads.JoinRequestCreatedEvent, logCtx context.Context) error {
	if payload.GuildID == uuid.Nil {
		return fmt.Errorf("guild id missing")
	}
	roster, err := c.members.ListGroupMembers(ctx, enums.GroupTypeGuild, payload.GuildID)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("/guilds/%s/join-requests", payload.GuildID)
	for _, member := range roster {
		if member.Role != enums.GroupRoleOwner && member.Role != enums.GroupRoleAdmin {
			continue
		}
		err := c.createAndQueue(ctx, &models.Notification{
			RecipientID: member.UserID,
			Type:        enums.NotificationTypeJoinRequest,
			Title:       "New join request",
			Message:     "A user asked to join your guild.",
			Link:        &link,
		})
		if err != nil {
			return err
		}
	}
	c.logg.Info(logCtx, "guild moderators notified")
	return nil
}

func (c *Consumer) notifyRequester(ctx context.Context, payload payloads.JoinRequestDecidedEvent, logCtx context.Context) error {
	if payload.RequesterID == uuid.Nil {
		return fmt.Errorf("requester id missing")
	}
	var notificationType enums.NotificationType
	var title, message string
	switch payload.Status {
	case enums.JoinRequestStatusAccepted:
		notificationType = enums.NotificationTypeJoinRequestApproved
		title = "Join request approved"
		message = "Your request to join the guild was approved."
	case enums.JoinRequestStatusRejected:
		notificationType = enums.NotificationTypeJoinRequestRejected
		title = "Join request rejected"
		message = "Your request to join the guild was rejected."
	default:
		c.logg.Info(logCtx, "decision not notified")
		return nil
	}
	link := fmt.Sprintf("/guilds/%s", payload.GuildID)
	err := c.createAndQueue(ctx, &models.Notification{
		RecipientID: payload.RequesterID,
		Type:        notificationType,
		Title:       title,
		Message:     message,
		Link:        &link,
	})
	if err != nil {
		return err
	}
	c.logg.Info(logCtx, "requester notified")
	return nil
}

func (c *Consumer) notifyPostAuthor(ctx context.Context, payload payloads.PostModeratedEvent, logCtx context.Context) error {
	// Authors only hear about forced removals of their own posts.
	if payload.Action != "removed" || !payload.Forced {
		c.logg.Info(logCtx, "moderation action not notified")
		return nil
	}
	if payload.AuthorID == uuid.Nil {
		return fmt.Errorf("author id missing")
	}
	link := fmt.Sprintf("/guilds/%s", payload.GuildID)
	err := c.createAndQueue(ctx, &models.Notification{
		RecipientID: payload.AuthorID,
		Type:        enums.NotificationTypePostRemoved,
		Title:       "Post removed",
		Message:     "A moderator removed one of your posts.",
		Link:        &link,
	})
	if err != nil {
		return err
	}
	c.logg.Info(logCtx, "post author notified")
	return nil
}

// createAndQueue writes the ledger row and a notification_created outbox
// event in one transaction so delivery channels never observe a row that was
// rolled back.
func (c *Consumer) createAndQueue(ctx context.Context, notification *models.Notification) error {
	return c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		if err := repo.Create(ctx, notification); err != nil {
			return err
		}
		return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationCreated,
			AggregateType: enums.AggregateNotification,
			AggregateID:   notification.ID,
			Version:       1,
			Data: payloads.NotificationCreatedEvent{
				NotificationID: notification.ID,
				RecipientID:    notification.RecipientID,
				Type:           notification.Type,
				Title:          notification.Title,
				Link:           notification.Link,
			},
		})
	})
}
