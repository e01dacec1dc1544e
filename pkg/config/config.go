package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "SKILLQUEST"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv     = "SKILLQUEST_APP_ENV"
	EnvPort       = "SKILLQUEST_APP_PORT"
	EnvDBDSN      = "SKILLQUEST_DB_DSN"
	EnvDBHost     = "SKILLQUEST_DB_HOST"
	EnvDBUser     = "SKILLQUEST_DB_USER"
	EnvDBName     = "SKILLQUEST_DB_NAME"
	EnvRedisURL   = "SKILLQUEST_REDIS_URL"
	EnvJWTSecret  = "SKILLQUEST_JWT_SECRET"
	EnvJWTIssuer  = "SKILLQUEST_JWT_ISSUER"
	EnvJWTExpMins = "SKILLQUEST_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID    = "SKILLQUEST_GCP_PROJECT_ID"
	EnvPubSubTopic     = "SKILLQUEST_PUBSUB_SOCIAL_TOPIC"
	EnvPubSubSub       = "SKILLQUEST_PUBSUB_SOCIAL_SUBSCRIPTION"
	EnvPubSubNotifPub  = "SKILLQUEST_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotifSub  = "SKILLQUEST_PUBSUB_NOTIFICATION_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	InviteLimit   InviteRateLimitConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Invitations   InvitationConfig
	Cron          CronConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SKILLQUEST_APP_ENV" required:"true"`
	Port         string `envconfig:"SKILLQUEST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SKILLQUEST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SKILLQUEST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SKILLQUEST_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SKILLQUEST_DB_DSN"`
	Driver string `envconfig:"SKILLQUEST_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SKILLQUEST_DB_HOST"`
	LegacyPort     int    `envconfig:"SKILLQUEST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SKILLQUEST_DB_USER"`
	LegacyPassword string `envconfig:"SKILLQUEST_DB_PASSWORD"`
	LegacyName     string `envconfig:"SKILLQUEST_DB_NAME"`
	LegacySSLMode  string `envconfig:"SKILLQUEST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SKILLQUEST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SKILLQUEST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SKILLQUEST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SKILLQUEST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SKILLQUEST_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SKILLQUEST_REDIS_ADDR"`
	Password     string        `envconfig:"SKILLQUEST_REDIS_PASSWORD"`
	DB           int           `envconfig:"SKILLQUEST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SKILLQUEST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SKILLQUEST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SKILLQUEST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SKILLQUEST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SKILLQUEST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SKILLQUEST_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SKILLQUEST_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SKILLQUEST_JWT_EXPIRATION_MINUTES" required:"true"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SKILLQUEST_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SKILLQUEST_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SKILLQUEST_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SKILLQUEST_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SKILLQUEST_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SKILLQUEST_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit       int           `envconfig:"SKILLQUEST_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"10"`
	LoginEmailLimit    int           `envconfig:"SKILLQUEST_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	RegisterWindow     time.Duration `envconfig:"SKILLQUEST_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit    int           `envconfig:"SKILLQUEST_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"10"`
	RegisterEmailLimit int           `envconfig:"SKILLQUEST_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
}

type InviteRateLimitConfig struct {
	Window    time.Duration `envconfig:"SKILLQUEST_INVITE_RATE_LIMIT_WINDOW" default:"1m"`
	UserLimit int           `envconfig:"SKILLQUEST_INVITE_RATE_LIMIT_USER_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SKILLQUEST_AUTO_MIGRATE" default:"false"`
}

type InvitationConfig struct {
	DefaultExpiry time.Duration `envconfig:"SKILLQUEST_INVITATION_DEFAULT_EXPIRY" default:"168h"`
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"SKILLQUEST_CRON_INTERVAL" default:"1h"`
	NotificationRetentionDays int           `envconfig:"SKILLQUEST_NOTIFICATION_RETENTION_DAYS" default:"30"`
	OutboxRetentionDays       int           `envconfig:"SKILLQUEST_OUTBOX_RETENTION_DAYS" default:"7"`
	ExpirySweepBatchSize      int           `envconfig:"SKILLQUEST_EXPIRY_SWEEP_BATCH_SIZE" default:"500"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SKILLQUEST_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"SKILLQUEST_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SKILLQUEST_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SocialTopic              string `envconfig:"SKILLQUEST_PUBSUB_SOCIAL_TOPIC" required:"true"`
	SocialSubscription       string `envconfig:"SKILLQUEST_PUBSUB_SOCIAL_SUBSCRIPTION" required:"true"`
	NotificationTopic        string `envconfig:"SKILLQUEST_PUBSUB_NOTIFICATION_TOPIC" default:"sq-notification-events"`
	NotificationSubscription string `envconfig:"SKILLQUEST_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SKILLQUEST_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SKILLQUEST_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SKILLQUEST_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
