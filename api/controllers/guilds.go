package controllers

import (
	"net/http"

	"github.com/skillquest-app/skillquest-backend/api/responses"
	"github.com/skillquest-app/skillquest-backend/api/validators"
	"github.com/skillquest-app/skillquest-backend/internal/guilds"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
	pkgerrors "github.com/skillquest-app/skillquest-backend/pkg/errors"
	"github.com/skillquest-app/skillquest-backend/pkg/logger"
)

type guildCreateRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"max=2000"`
	Visibility  string `json:"visibility" validate:"omitempty,oneof=public private"`
	MaxMembers  int    `json:"max_members" validate:"omitempty,min=2"`
}

type guildUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=3,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Visibility  *string `json:"visibility" validate:"omitempty,oneof=public private"`
	MaxMembers  *int    `json:"max_members" validate:"omitempty,min=2"`
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// CreateGuild handles POST /guilds.
func CreateGuild(svc guilds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "guilds service unavailable"))
			return
		}

		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload guildCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := guilds.CreateGuildInput{
			Name:        payload.Name,
			Description: payload.Description,
			MaxMembers:  payload.MaxMembers,
		}
		if payload.Visibility != "" {
			visibility, err := enums.ParseGroupVisibility(payload.Visibility)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid visibility"))
				return
			}
			input.Visibility = visibility
		}

		created, err := svc.Create(r.Context(), uid, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// GetGuild handles GET /guilds/{guildId}.
func GetGuild(svc guilds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gid, err := pathUUID(r, "guildId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		guild, err := svc.GetByID(r.Context(), gid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, guild)
	}
}

// UpdateGuild handles PATCH /guilds/{guildId}.
func UpdateGuild(svc guilds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		gid, err := pathUUID(r, "guildId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload guildUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := guilds.UpdateGuildInput{
			Name:        payload.Name,
			Description: payload.Description,
			MaxMembers:  payload.MaxMembers,
		}
		if payload.Visibility != nil {
			visibility, err := enums.ParseGroupVisibility(*payload.Visibility)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid visibility"))
				return
			}
			input.Visibility = &visibility
		}

		updated, err := svc.Update(r.Context(), uid, gid, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// DeleteGuild handles DELETE /guilds/{guildId}.
func DeleteGuild(svc guilds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		gid, err := pathUUID(r, "guildId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), uid, gid); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}

// ListMyGuilds handles GET /guilds/mine.
func ListMyGuilds(svc guilds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListMine(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// ListGuildMembers handles GET /guilds/{guildId}/members.
func ListGuildMembers(svc guilds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		gid, err := pathUUID(r, "guildId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		members, err := svc.ListMembers(r.Context(), uid, gid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, members)
	}
}

// LeaveGuild handles POST /guilds/{guildId}/leave.
func LeaveGuild(svc guilds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		gid, err := pathUUID(r, "guildId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Leave(r.Context(), uid, gid); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"left": true})
	}
}

// ChangeGuildMemberRole handles PUT /guilds/{guildId}/members/{memberId}/role.
func ChangeGuildMemberRole(svc guilds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		gid, err := pathUUID(r, "guildId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mid, err := pathUUID(r, "memberId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload changeRoleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		role, err := enums.ParseGroupRole(enums.GroupTypeGuild, payload.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
			return
		}

		if err := svc.ChangeRole(r.Context(), uid, gid, mid, role); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"updated": true})
	}
}

// RemoveGuildMember handles DELETE /guilds/{guildId}/members/{memberId}.
func RemoveGuildMember(svc guilds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		gid, err := pathUUID(r, "guildId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mid, err := pathUUID(r, "memberId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveMember(r.Context(), uid, gid, mid); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"removed": true})
	}
}
