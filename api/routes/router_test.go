package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/skillquest-app/skillquest-backend/internal/auth"
	"github.com/skillquest-app/skillquest-backend/internal/guilds"
	"github.com/skillquest-app/skillquest-backend/internal/invitations"
	"github.com/skillquest-app/skillquest-backend/internal/joinrequests"
	"github.com/skillquest-app/skillquest-backend/internal/memberships"
	"github.com/skillquest-app/skillquest-backend/internal/notifications"
	"github.com/skillquest-app/skillquest-backend/internal/parties"
	"github.com/skillquest-app/skillquest-backend/internal/posts"
	"github.com/skillquest-app/skillquest-backend/internal/stash"
	pkgAuth "github.com/skillquest-app/skillquest-backend/pkg/auth"
	"github.com/skillquest-app/skillquest-backend/pkg/config"
	"github.com/skillquest-app/skillquest-backend/pkg/db/models"
	"github.com/skillquest-app/skillquest-backend/pkg/enums"
	"github.com/skillquest-app/skillquest-backend/pkg/logger"
	"github.com/skillquest-app/skillquest-backend/pkg/pagination"
	"github.com/skillquest-app/skillquest-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubMembershipChecker struct{}

func (stubMembershipChecker) UserHasRole(ctx context.Context, groupType enums.GroupType, groupID, userID uuid.UUID, roles ...enums.GroupRole) (bool, error) {
	return true, nil
}

type stubAuthService struct{}

func (stubAuthService) Register(ctx context.Context, req auth.RegisterRequest) (*auth.AuthResponse, error) {
	return &auth.AuthResponse{}, nil
}

func (stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.AuthResponse, error) {
	return &auth.AuthResponse{}, nil
}

type stubGuildsService struct{}

func (stubGuildsService) Create(ctx context.Context, creatorID uuid.UUID, input guilds.CreateGuildInput) (*guilds.GuildDTO, error) {
	return &guilds.GuildDTO{}, nil
}

func (stubGuildsService) GetByID(ctx context.Context, guildID uuid.UUID) (*guilds.GuildDTO, error) {
	return &guilds.GuildDTO{ID: guildID}, nil
}

func (stubGuildsService) Update(ctx context.Context, actorID, guildID uuid.UUID, input guilds.UpdateGuildInput) (*guilds.GuildDTO, error) {
	return &guilds.GuildDTO{ID: guildID}, nil
}

func (stubGuildsService) Delete(ctx context.Context, actorID, guildID uuid.UUID) error {
	return nil
}

func (stubGuildsService) ListMembers(ctx context.Context, actorID, guildID uuid.UUID) ([]memberships.MemberDTO, error) {
	return nil, nil
}

func (stubGuildsService) ListMine(ctx context.Context, userID uuid.UUID) ([]guilds.GuildDTO, error) {
	return nil, nil
}

func (stubGuildsService) Leave(ctx context.Context, actorID, guildID uuid.UUID) error {
	return nil
}

func (stubGuildsService) ChangeRole(ctx context.Context, actorID, guildID, memberID uuid.UUID, role enums.GroupRole) error {
	return nil
}

func (stubGuildsService) RemoveMember(ctx context.Context, actorID, guildID, memberID uuid.UUID) error {
	return nil
}

type stubPartiesService struct{}

func (stubPartiesService) Create(ctx context.Context, creatorID uuid.UUID, input parties.CreatePartyInput) (*parties.PartyDTO, error) {
	return &parties.PartyDTO{}, nil
}

func (stubPartiesService) GetByID(ctx context.Context, partyID uuid.UUID) (*parties.PartyDTO, error) {
	return &parties.PartyDTO{ID: partyID}, nil
}

func (stubPartiesService) Update(ctx context.Context, actorID, partyID uuid.UUID, input parties.UpdatePartyInput) (*parties.PartyDTO, error) {
	return &parties.PartyDTO{ID: partyID}, nil
}

func (stubPartiesService) Delete(ctx context.Context, actorID, partyID uuid.UUID) error {
	return nil
}

func (stubPartiesService) ListMembers(ctx context.Context, actorID, partyID uuid.UUID) ([]memberships.MemberDTO, error) {
	return nil, nil
}

func (stubPartiesService) ListMine(ctx context.Context, userID uuid.UUID) ([]parties.PartyDTO, error) {
	return nil, nil
}

func (stubPartiesService) Leave(ctx context.Context, actorID, partyID uuid.UUID) error {
	return nil
}

func (stubPartiesService) RemoveMember(ctx context.Context, actorID, partyID, memberID uuid.UUID) error {
	return nil
}

type stubInvitationsService struct{}

func (stubInvitationsService) Invite(ctx context.Context, input invitations.InviteInput) (*invitations.InvitationDTO, error) {
	return &invitations.InvitationDTO{}, nil
}

func (stubInvitationsService) Accept(ctx context.Context, invitationID, actorID uuid.UUID) (*invitations.InvitationDTO, error) {
	return &invitations.InvitationDTO{ID: invitationID}, nil
}

func (stubInvitationsService) Decline(ctx context.Context, invitationID, actorID uuid.UUID) (*invitations.InvitationDTO, error) {
	return &invitations.InvitationDTO{ID: invitationID}, nil
}

func (stubInvitationsService) Revoke(ctx context.Context, invitationID, actorID uuid.UUID) error {
	return nil
}

func (stubInvitationsService) GetByID(ctx context.Context, invitationID, actorID uuid.UUID) (*invitations.InvitationDTO, error) {
	return &invitations.InvitationDTO{ID: invitationID}, nil
}

func (stubInvitationsService) ListMine(ctx context.Context, actorID uuid.UUID, pendingOnly bool) ([]invitations.InvitationDTO, error) {
	return nil, nil
}

func (stubInvitationsService) ListForGroup(ctx context.Context, groupType enums.GroupType, groupID, actorID uuid.UUID, pendingOnly bool) ([]invitations.InvitationDTO, error) {
	return nil, nil
}

func (stubInvitationsService) ExpireDue(ctx context.Context, batchSize int) (int64, error) {
	return 0, nil
}

type stubJoinRequestsService struct{}

func (stubJoinRequestsService) Request(ctx context.Context, input joinrequests.RequestInput) (*joinrequests.JoinRequestDTO, error) {
	return &joinrequests.JoinRequestDTO{}, nil
}

func (stubJoinRequestsService) Approve(ctx context.Context, requestID, actorID uuid.UUID) (*joinrequests.JoinRequestDTO, error) {
	return &joinrequests.JoinRequestDTO{ID: requestID}, nil
}

func (stubJoinRequestsService) Reject(ctx context.Context, requestID, actorID uuid.UUID) (*joinrequests.JoinRequestDTO, error) {
	return &joinrequests.JoinRequestDTO{ID: requestID}, nil
}

func (stubJoinRequestsService) Cancel(ctx context.Context, requestID, actorID uuid.UUID) (*joinrequests.JoinRequestDTO, error) {
	return &joinrequests.JoinRequestDTO{ID: requestID}, nil
}

func (stubJoinRequestsService) GetByID(ctx context.Context, requestID, actorID uuid.UUID) (*joinrequests.JoinRequestDTO, error) {
	return &joinrequests.JoinRequestDTO{ID: requestID}, nil
}

func (stubJoinRequestsService) ListMine(ctx context.Context, actorID uuid.UUID, pendingOnly bool) ([]joinrequests.JoinRequestDTO, error) {
	return nil, nil
}

func (stubJoinRequestsService) ListForGuild(ctx context.Context, guildID, actorID uuid.UUID, pendingOnly bool) ([]joinrequests.JoinRequestDTO, error) {
	return nil, nil
}

type stubPostsService struct{}

func (stubPostsService) Create(ctx context.Context, input posts.CreatePostInput) (*posts.PostDTO, error) {
	return &posts.PostDTO{}, nil
}

func (stubPostsService) GetByID(ctx context.Context, postID, actorID uuid.UUID) (*posts.PostDTO, error) {
	return &posts.PostDTO{ID: postID}, nil
}

func (stubPostsService) ListForGuild(ctx context.Context, guildID, actorID uuid.UUID, params pagination.Params) ([]posts.PostDTO, string, error) {
	return nil, "", nil
}

func (stubPostsService) Edit(ctx context.Context, postID, actorID uuid.UUID, input posts.EditPostInput) (*posts.PostDTO, error) {
	return &posts.PostDTO{ID: postID}, nil
}

func (stubPostsService) Delete(ctx context.Context, postID, actorID uuid.UUID, force bool) error {
	return nil
}

func (stubPostsService) SetPinned(ctx context.Context, postID, actorID uuid.UUID, pinned bool) error {
	return nil
}

func (stubPostsService) SetLocked(ctx context.Context, postID, actorID uuid.UUID, locked bool) error {
	return nil
}

func (stubPostsService) AddComment(ctx context.Context, postID, actorID uuid.UUID, content string) (*posts.CommentDTO, error) {
	return &posts.CommentDTO{}, nil
}

func (stubPostsService) DeleteComment(ctx context.Context, commentID, actorID uuid.UUID, force bool) error {
	return nil
}

func (stubPostsService) ListComments(ctx context.Context, postID, actorID uuid.UUID, params pagination.Params) ([]posts.CommentDTO, string, error) {
	return nil, "", nil
}

func (stubPostsService) Like(ctx context.Context, postID, actorID uuid.UUID) error {
	return nil
}

func (stubPostsService) Unlike(ctx context.Context, postID, actorID uuid.UUID) error {
	return nil
}

type stubStashService struct{}

func (stubStashService) Share(ctx context.Context, input stash.ShareInput) (*stash.StashItemDTO, error) {
	return &stash.StashItemDTO{}, nil
}

func (stubStashService) GetByID(ctx context.Context, itemID, actorID uuid.UUID) (*stash.StashItemDTO, error) {
	return &stash.StashItemDTO{ID: itemID}, nil
}

func (stubStashService) Update(ctx context.Context, itemID, actorID uuid.UUID, input stash.UpdateInput) (*stash.StashItemDTO, error) {
	return &stash.StashItemDTO{ID: itemID}, nil
}

func (stubStashService) Delete(ctx context.Context, itemID, actorID uuid.UUID) error {
	return nil
}

func (stubStashService) ListForParty(ctx context.Context, partyID, actorID uuid.UUID, params pagination.Params) ([]stash.StashItemDTO, string, error) {
	return nil, "", nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) Create(ctx context.Context, input notifications.CreateInput) (*models.Notification, error) {
	return &models.Notification{}, nil
}

func (stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationsService) GetLatest(ctx context.Context, recipientID uuid.UUID, limit int, unreadOnly bool) ([]models.Notification, error) {
	return nil, nil
}

func (stubNotificationsService) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return 0, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return 0, nil
}

func (stubNotificationsService) DeleteBatch(ctx context.Context, recipientID uuid.UUID, ids []uuid.UUID) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		stubMembershipChecker{},
		stubAuthService{},
		stubGuildsService{},
		stubPartiesService{},
		stubInvitationsService{},
		stubJoinRequestsService{},
		stubPostsService{},
		stubStashService{},
		stubNotificationsService{},
	)
}

func buildToken(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		UserID:      uuid.New(),
		DisplayName: "tester",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestPublicPingAccessibleWithoutToken(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/public/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token got %d", resp.Code)
	}
}

func TestGuildDetailRouteResolves(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/guilds/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestGuildJoinRequestListPassesModeratorGate(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/guilds/"+uuid.NewString()+"/join-requests", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestInvitationAcceptRequiresIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invitations/"+uuid.NewString()+"/accept", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key got %d", resp.Code)
	}
}

func TestNotificationRoutesResolve(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	token := buildToken(t, cfg)

	for _, target := range []string{
		"/api/v1/notifications",
		"/api/v1/notifications/latest",
		"/api/v1/notifications/unread-count",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d: %s", target, resp.Code, resp.Body.String())
		}
	}
}

func TestStashItemRouteResolves(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stash/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
