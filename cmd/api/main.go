package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/skillquest-app/skillquest-backend/api/routes"
	"github.com/skillquest-app/skillquest-backend/internal/auth"
	"github.com/skillquest-app/skillquest-backend/internal/guilds"
	"github.com/skillquest-app/skillquest-backend/internal/invitations"
	"github.com/skillquest-app/skillquest-backend/internal/joinrequests"
	"github.com/skillquest-app/skillquest-backend/internal/memberships"
	"github.com/skillquest-app/skillquest-backend/internal/notifications"
	"github.com/skillquest-app/skillquest-backend/internal/parties"
	"github.com/skillquest-app/skillquest-backend/internal/posts"
	"github.com/skillquest-app/skillquest-backend/internal/stash"
	"github.com/skillquest-app/skillquest-backend/internal/users"
	"github.com/skillquest-app/skillquest-backend/pkg/config"
	"github.com/skillquest-app/skillquest-backend/pkg/db"
	"github.com/skillquest-app/skillquest-backend/pkg/logger"
	"github.com/skillquest-app/skillquest-backend/pkg/migrate"
	"github.com/skillquest-app/skillquest-backend/pkg/outbox"
	"github.com/skillquest-app/skillquest-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	userRepo := users.NewRepository(dbClient.DB())
	membershipRepo := memberships.NewRepository(dbClient.DB())
	guildRepo := guilds.NewRepository(dbClient.DB())
	partyRepo := parties.NewRepository(dbClient.DB())
	invitationRepo := invitations.NewRepository(dbClient.DB())
	joinRequestRepo := joinrequests.NewRepository(dbClient.DB())
	postRepo := posts.NewRepository(dbClient.DB())
	stashRepo := stash.NewRepository(dbClient.DB())
	notificationRepo := notifications.NewRepository(dbClient.DB())

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		TxRunner:       dbClient,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	guildsService, err := guilds.NewService(guildRepo, membershipRepo, dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create guilds service", err)
		os.Exit(1)
	}

	partiesService, err := parties.NewService(partyRepo, membershipRepo, dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create parties service", err)
		os.Exit(1)
	}

	invitationsService, err := invitations.NewService(
		invitationRepo,
		membershipRepo,
		userRepo,
		[]invitations.GroupAdapter{
			invitations.NewGuildAdapter(guildRepo),
			invitations.NewPartyAdapter(partyRepo),
		},
		dbClient,
		outboxSvc,
		cfg.Invitations,
		cfg.Password,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create invitations service", err)
		os.Exit(1)
	}

	joinRequestsService, err := joinrequests.NewService(joinRequestRepo, membershipRepo, guildRepo, dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create join requests service", err)
		os.Exit(1)
	}

	postsService, err := posts.NewService(postRepo, membershipRepo, guildRepo, dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create posts service", err)
		os.Exit(1)
	}

	stashService, err := stash.NewService(stashRepo, membershipRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create stash service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notificationRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			membershipRepo,
			authService,
			guildsService,
			partiesService,
			invitationsService,
			joinRequestsService,
			postsService,
			stashService,
			notificationsService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
