package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/api/responses"
	"github.com/skillquest-app/skillquest-backend/api/validators"
	"github.com/skillquest-app/skillquest-backend/internal/invitations"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
	pkgerrors "github.com/skillquest-app/skillquest-backend/pkg/errors"
	"github.com/skillquest-app/skillquest-backend/pkg/logger"
)

type inviteRequest struct {
	InviteeID    *uuid.UUID `json:"invitee_id"`
	InviteeEmail string     `json:"invitee_email" validate:"omitempty,email"`
	Message      *string    `json:"message" validate:"omitempty,max=1000"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// CreateInvitation handles POST /guilds/{guildId}/invitations and
// POST /parties/{partyId}/invitations depending on the group type it is
// registered with.
func CreateInvitation(svc invitations.Service, logg *logger.Logger, groupType enums.GroupType, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invitations service unavailable"))
			return
		}

		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		gid, err := pathUUID(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload inviteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := invitations.InviteInput{
			GroupType:    groupType,
			GroupID:      gid,
			InviterID:    uid,
			InviteeEmail: payload.InviteeEmail,
			Message:      payload.Message,
			ExpiresAt:    payload.ExpiresAt,
		}
		if payload.InviteeID != nil {
			input.InviteeID = *payload.InviteeID
		}

		created, err := svc.Invite(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// AcceptInvitation handles POST /invitations/{invitationId}/accept.
func AcceptInvitation(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		iid, err := pathUUID(r, "invitationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Accept(r.Context(), iid, uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// DeclineInvitation handles POST /invitations/{invitationId}/decline.
func DeclineInvitation(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		iid, err := pathUUID(r, "invitationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Decline(r.Context(), iid, uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// RevokeInvitation handles DELETE /invitations/{invitationId}.
func RevokeInvitation(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		iid, err := pathUUID(r, "invitationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Revoke(r.Context(), iid, uid); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"revoked": true})
	}
}

// GetInvitation handles GET /invitations/{invitationId}.
func GetInvitation(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		iid, err := pathUUID(r, "invitationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.GetByID(r.Context(), iid, uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ListMyInvitations handles GET /invitations/mine.
func ListMyInvitations(svc invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pendingOnly, err := queryBool(r, "pendingOnly")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListMine(r.Context(), uid, pendingOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// ListGroupInvitations handles GET /guilds/{guildId}/invitations and the party
// equivalent, depending on the group type it is registered with.
func ListGroupInvitations(svc invitations.Service, logg *logger.Logger, groupType enums.GroupType, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		gid, err := pathUUID(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pendingOnly, err := queryBool(r, "pendingOnly")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListForGroup(r.Context(), groupType, gid, uid, pendingOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}
