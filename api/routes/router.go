package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skillquest-app/skillquest-backend/api/controllers"
	"github.com/skillquest-app/skillquest-backend/api/middleware"
	"github.com/skillquest-app/skillquest-backend/internal/auth"
	"github.com/skillquest-app/skillquest-backend/internal/guilds"
	"github.com/skillquest-app/skillquest-backend/internal/invitations"
	"github.com/skillquest-app/skillquest-backend/internal/joinrequests"
	"github.com/skillquest-app/skillquest-backend/internal/notifications"
	"github.com/skillquest-app/skillquest-backend/internal/parties"
	"github.com/skillquest-app/skillquest-backend/internal/policy"
	"github.com/skillquest-app/skillquest-backend/internal/posts"
	"github.com/skillquest-app/skillquest-backend/internal/stash"
	"github.com/skillquest-app/skillquest-backend/pkg/config"
	"github.com/skillquest-app/skillquest-backend/pkg/db"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
	"github.com/skillquest-app/skillquest-backend/pkg/logger"
	"github.com/skillquest-app/skillquest-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	membersStore middleware.MembershipChecker,
	authService auth.Service,
	guildsService guilds.Service,
	partiesService parties.Service,
	invitationsService invitations.Service,
	joinRequestsService joinrequests.Service,
	postsService posts.Service,
	stashService stash.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	idempotency := middleware.Idempotency(redisClient, logg)
	inviteLimiter := middleware.InviteRateLimit(cfg.InviteLimit, redisClient, logg)
	// Coarse moderator pre-gate on guild administration routes; the engines
	// re-check the exact role inside their transactions.
	guildModGate := middleware.RequireGroupRoles(membersStore, logg, enums.GroupTypeGuild, "guildId",
		policy.ModeratorRoles(enums.GroupTypeGuild, policy.ActionDecideJoin)...)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).
			Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg), idempotency).
			Post("/register", controllers.AuthRegister(authService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(idempotency)

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/guilds", func(r chi.Router) {
			r.Post("/", controllers.CreateGuild(guildsService, logg))
			r.Get("/mine", controllers.ListMyGuilds(guildsService, logg))

			r.Route("/{guildId}", func(r chi.Router) {
				r.Get("/", controllers.GetGuild(guildsService, logg))
				r.Put("/", controllers.UpdateGuild(guildsService, logg))
				r.Delete("/", controllers.DeleteGuild(guildsService, logg))
				r.Get("/members", controllers.ListGuildMembers(guildsService, logg))
				r.Post("/leave", controllers.LeaveGuild(guildsService, logg))
				r.With(guildModGate).Put("/members/{memberId}/role", controllers.ChangeGuildMemberRole(guildsService, logg))
				r.With(guildModGate).Delete("/members/{memberId}", controllers.RemoveGuildMember(guildsService, logg))

				r.With(inviteLimiter).Post("/invitations", controllers.CreateInvitation(invitationsService, logg, enums.GroupTypeGuild, "guildId"))
				r.Get("/invitations", controllers.ListGroupInvitations(invitationsService, logg, enums.GroupTypeGuild, "guildId"))

				r.Post("/join-requests", controllers.CreateJoinRequest(joinRequestsService, logg))
				r.With(guildModGate).Get("/join-requests", controllers.ListGuildJoinRequests(joinRequestsService, logg))

				r.Post("/posts", controllers.CreatePost(postsService, logg))
				r.Get("/posts", controllers.ListGuildPosts(postsService, logg))
			})
		})

		r.Route("/v1/parties", func(r chi.Router) {
			r.Post("/", controllers.CreateParty(partiesService, logg))
			r.Get("/mine", controllers.ListMyParties(partiesService, logg))

			r.Route("/{partyId}", func(r chi.Router) {
				r.Get("/", controllers.GetParty(partiesService, logg))
				r.Put("/", controllers.UpdateParty(partiesService, logg))
				r.Delete("/", controllers.DeleteParty(partiesService, logg))
				r.Get("/members", controllers.ListPartyMembers(partiesService, logg))
				r.Post("/leave", controllers.LeaveParty(partiesService, logg))
				r.Delete("/members/{memberId}", controllers.RemovePartyMember(partiesService, logg))

				r.With(inviteLimiter).Post("/invitations", controllers.CreateInvitation(invitationsService, logg, enums.GroupTypeParty, "partyId"))
				r.Get("/invitations", controllers.ListGroupInvitations(invitationsService, logg, enums.GroupTypeParty, "partyId"))

				r.Post("/stash", controllers.ShareStashItem(stashService, logg))
				r.Get("/stash", controllers.ListPartyStash(stashService, logg))
			})
		})

		r.Route("/v1/invitations", func(r chi.Router) {
			r.Get("/mine", controllers.ListMyInvitations(invitationsService, logg))
			r.Route("/{invitationId}", func(r chi.Router) {
				r.Get("/", controllers.GetInvitation(invitationsService, logg))
				r.Post("/accept", controllers.AcceptInvitation(invitationsService, logg))
				r.Post("/decline", controllers.DeclineInvitation(invitationsService, logg))
				r.Delete("/", controllers.RevokeInvitation(invitationsService, logg))
			})
		})

		r.Route("/v1/join-requests", func(r chi.Router) {
			r.Get("/mine", controllers.ListMyJoinRequests(joinRequestsService, logg))
			r.Route("/{requestId}", func(r chi.Router) {
				r.Get("/", controllers.GetJoinRequest(joinRequestsService, logg))
				r.Post("/approve", controllers.ApproveJoinRequest(joinRequestsService, logg))
				r.Post("/reject", controllers.RejectJoinRequest(joinRequestsService, logg))
				r.Delete("/", controllers.CancelJoinRequest(joinRequestsService, logg))
			})
		})

		r.Route("/v1/posts/{postId}", func(r chi.Router) {
			r.Get("/", controllers.GetPost(postsService, logg))
			r.Put("/", controllers.EditPost(postsService, logg))
			r.Delete("/", controllers.DeletePost(postsService, logg))
			r.Put("/pin", controllers.SetPostPinned(postsService, logg))
			r.Put("/lock", controllers.SetPostLocked(postsService, logg))
			r.Post("/comments", controllers.AddComment(postsService, logg))
			r.Get("/comments", controllers.ListComments(postsService, logg))
			r.Post("/like", controllers.LikePost(postsService, logg))
			r.Delete("/like", controllers.UnlikePost(postsService, logg))
		})

		r.Delete("/v1/comments/{commentId}", controllers.DeleteComment(postsService, logg))

		r.Route("/v1/stash/{itemId}", func(r chi.Router) {
			r.Get("/", controllers.GetStashItem(stashService, logg))
			r.Put("/", controllers.UpdateStashItem(stashService, logg))
			r.Delete("/", controllers.DeleteStashItem(stashService, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Get("/latest", controllers.GetLatestNotifications(notificationsService, logg))
			r.Get("/unread-count", controllers.CountUnreadNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
			r.Post("/delete-batch", controllers.DeleteNotificationsBatch(notificationsService, logg))
		})
	})

	return r
}
