package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "reparto"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "REPARTO_DB_DSN"
	EnvDBHost = "REPARTO_DB_HOST"
	EnvDBUser = "REPARTO_DB_USER"
	EnvDBName = "REPARTO_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Stripe        StripeConfig
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
	Env          string `envconfig:"REPARTO_APP_ENV" required:"true"`
	Port         string `envconfig:"REPARTO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"REPARTO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"REPARTO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"REPARTO_DB_DSN"`
	Driver string `envconfig:"REPARTO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"REPARTO_DB_HOST"`
	LegacyPort     int    `envconfig:"REPARTO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"REPARTO_DB_USER"`
	LegacyPassword string `envconfig:"REPARTO_DB_PASSWORD"`
	LegacyName     string `envconfig:"REPARTO_DB_NAME"`
	LegacySSLMode  string `envconfig:"REPARTO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"REPARTO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"REPARTO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"REPARTO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"REPARTO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REPARTO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"REPARTO_REDIS_ADDR"`
	Password     string        `envconfig:"REPARTO_REDIS_PASSWORD"`
	DB           int           `envconfig:"REPARTO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REPARTO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REPARTO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REPARTO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REPARTO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"REPARTO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"REPARTO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"REPARTO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"REPARTO_JWT_EXPIRATION_MINUTES" default:"14400"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"REPARTO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"REPARTO_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"REPARTO_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"REPARTO_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"REPARTO_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"REPARTO_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"REPARTO_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"REPARTO_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	SignupWindow    time.Duration `envconfig:"REPARTO_AUTH_RATE_LIMIT_SIGNUP_WINDOW" default:"5m"`
	SignupIPLimit   int           `envconfig:"REPARTO_AUTH_RATE_LIMIT_SIGNUP_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"REPARTO_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"REPARTO_STRIPE_API_KEY"`
	SigningSecret string `envconfig:"REPARTO_STRIPE_SIGNING_SECRET"`
	Env           string `envconfig:"REPARTO_STRIPE_ENV" default:"test"`
	SuccessURL    string `envconfig:"REPARTO_STRIPE_SUCCESS_URL"`
	CancelURL     string `envconfig:"REPARTO_STRIPE_CANCEL_URL"`
	Currency      string `envconfig:"REPARTO_STRIPE_CURRENCY" default:"usd"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
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
