package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr               string
	DatabaseURL        string
	JWTSecret          string
	Environment        string
	LogLevel           string
	MigrationsDir      string
	RunMigrations      bool
	RunSeed            bool
	SeedTenantName     string
	MaxBodyBytes       int64
	RateLimitPerMinute int
	MetricsEnabled     bool

	ProofMinCount           int
	ProofMaxBytes           int64
	ProofMaxPerUpload       int
	RequireRejectionComment bool

	ScoreWorkers    int
	ScorePolicyFile string

	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	LeaderboardCacheTTL time.Duration

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

var defaults = map[string]any{
	"APP_ADDR":                  ":8080",
	"DATABASE_URL":              "",
	"JWT_SECRET":                "",
	"APP_ENV":                   "development",
	"LOG_LEVEL":                 "info",
	"MIGRATIONS_DIR":            "migrations",
	"RUN_MIGRATIONS":            true,
	"RUN_SEED":                  true,
	"SEED_TENANT_NAME":          "Default Tenant",
	"MAX_BODY_BYTES":            1048576,
	"RATE_LIMIT_PER_MINUTE":     60,
	"METRICS_ENABLED":           true,
	"PROOF_MIN_COUNT":           3,
	"PROOF_MAX_BYTES":           5 * 1024 * 1024,
	"PROOF_MAX_PER_UPLOAD":      10,
	"REQUIRE_REJECTION_COMMENT": true,
	"SCORE_WORKERS":             4,
	"SCORE_POLICY_FILE":         "",
	"REDIS_ADDR":                "",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"LEADERBOARD_CACHE_TTL":     5 * time.Minute,
	"MINIO_ENDPOINT":            "",
	"MINIO_ACCESS_KEY":          "",
	"MINIO_SECRET_KEY":          "",
	"MINIO_BUCKET":              "task-proofs",
	"MINIO_USE_SSL":             false,
}

// Load reads configuration from the environment, using defaults for unset keys.
func Load() Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	return Config{
		Addr:               v.GetString("APP_ADDR"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		Environment:        v.GetString("APP_ENV"),
		LogLevel:           strings.ToLower(v.GetString("LOG_LEVEL")),
		MigrationsDir:      v.GetString("MIGRATIONS_DIR"),
		RunMigrations:      v.GetBool("RUN_MIGRATIONS"),
		RunSeed:            v.GetBool("RUN_SEED"),
		SeedTenantName:     v.GetString("SEED_TENANT_NAME"),
		MaxBodyBytes:       v.GetInt64("MAX_BODY_BYTES"),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		MetricsEnabled:     v.GetBool("METRICS_ENABLED"),

		ProofMinCount:           v.GetInt("PROOF_MIN_COUNT"),
		ProofMaxBytes:           v.GetInt64("PROOF_MAX_BYTES"),
		ProofMaxPerUpload:       v.GetInt("PROOF_MAX_PER_UPLOAD"),
		RequireRejectionComment: v.GetBool("REQUIRE_REJECTION_COMMENT"),

		ScoreWorkers:    v.GetInt("SCORE_WORKERS"),
		ScorePolicyFile: v.GetString("SCORE_POLICY_FILE"),

		RedisAddr:           v.GetString("REDIS_ADDR"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		RedisDB:             v.GetInt("REDIS_DB"),
		LeaderboardCacheTTL: v.GetDuration("LEADERBOARD_CACHE_TTL"),

		MinioEndpoint:  v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey: v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey: v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:    v.GetString("MINIO_BUCKET"),
		MinioUseSSL:    v.GetBool("MINIO_USE_SSL"),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.ProofMinCount < 1 {
		return fmt.Errorf("PROOF_MIN_COUNT must be at least 1")
	}
	if c.ProofMaxBytes <= 0 || c.ProofMaxPerUpload <= 0 {
		return fmt.Errorf("PROOF_MAX_BYTES and PROOF_MAX_PER_UPLOAD must be positive")
	}
	if c.ScoreWorkers <= 0 {
		return fmt.Errorf("SCORE_WORKERS must be positive")
	}
	if c.MinioEndpoint != "" && (c.MinioAccessKey == "" || c.MinioSecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY must be set when MINIO_ENDPOINT is set")
	}
	return nil
}
