package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string   `long:"app-name" env:"APP_NAME" default:"fern" description:"Service name used in logs and traces"`
	Port                          int      `long:"port" env:"PORT" default:"3004" description:"HTTP server port"`
	LogLevel                      string   `long:"log-level" env:"LOG_LEVEL" default:"info" description:"debug, info, warn or error"`
	PrettyLogs                    bool     `long:"pretty-logs" env:"PRETTY_LOGS" description:"Human readable console logs"`
	HttpServerWriteTimeoutSeconds int      `long:"http-write-timeout" env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" default:"10"`
	HttpServerReadTimeoutSeconds  int      `long:"http-read-timeout" env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" default:"10"`
	HttpServerIdleTimeoutSeconds  int      `long:"http-idle-timeout" env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" default:"10"`
	MaxHeaderBytes                int      `long:"http-max-header-bytes" env:"HTTP_SERVER_MAX_HEADER_BYTES" default:"64000"`
	AllowOrigins                  []string `long:"allow-origins" env:"HTTP_SERVER_ALLOW_ORIGINS" env-delim:"," default:"*"`
	AllowMethods                  []string `long:"allow-methods" env:"HTTP_SERVER_ALLOW_METHODS" env-delim:"," default:"GET" default:"POST" default:"PUT" default:"DELETE"`
	StartupMaxAttempts            int      `long:"startup-max-attempts" env:"STARTUP_MAX_ATTEMPTS" default:"5"`

	DatabaseDriver                string        `long:"db-driver" env:"DB_DRIVER" default:"postgres"`
	DatabaseHost                  string        `long:"db-host" env:"DB_HOST" default:"localhost"`
	DatabasePort                  string        `long:"db-port" env:"DB_PORT" default:"5432"`
	DatabaseUserName              string        `long:"db-user" env:"DB_USER_NAME" default:"fern"`
	DatabasePassword              string        `long:"db-password" env:"DB_PASSWORD"`
	DatabaseName                  string        `long:"db-name" env:"DB_NAME" default:"fern"`
	DatabaseSSLMode               string        `long:"db-ssl-mode" env:"DB_SSL_MODE" default:"disable"`
	DatabaseMaxOpenConns          int           `long:"db-max-open-conns" env:"DB_MAX_OPEN_CONNS" default:"25"`
	DatabaseMaxIdleConns          int           `long:"db-max-idle-conns" env:"DB_MAX_IDLE_CONNS" default:"10"`
	DatabaseConnMaxLifetime       time.Duration `long:"db-conn-max-lifetime" env:"DB_CONN_MAX_LIFETIME" default:"10m"`
	DatabaseMigrationFolderPath   string        `long:"db-migration-folder" env:"DB_MIGRATION_FOLDER_PATH" default:"db/pg"`
	DatabaseMigrationVersion      uint          `long:"db-migration-version" env:"DB_MIGRATION_VERSION" default:"0"`
	DatabaseMigrationForce        int           `long:"db-migration-force" env:"DB_MIGRATION_FORCE" default:"0"`
	DatabaseMigrationAutoRollback bool          `long:"db-migration-auto-rollback" env:"DB_MIGRATION_AUTO_ROLLBACK"`

	RedisHost      string        `long:"redis-host" env:"REDIS_HOST" default:"localhost"`
	RedisPort      int           `long:"redis-port" env:"REDIS_PORT" default:"6379"`
	RedisPassword  string        `long:"redis-password" env:"REDIS_PASSWORD"`
	RedisDB        int           `long:"redis-db" env:"REDIS_DB" default:"0"`
	IngestGuardTTL time.Duration `long:"ingest-guard-ttl" env:"INGEST_GUARD_TTL" default:"30s" description:"How long a scraped course hash is locked while it is ingested"`

	KafkaBrokers         []string `long:"kafka-brokers" env:"KAFKA_BROKERS" env-delim:"," default:"localhost:9092"`
	KafkaInputTopic      string   `long:"kafka-input-topic" env:"KAFKA_INPUT_TOPIC" default:"scraped-courses"`
	KafkaConsumerGroup   string   `long:"kafka-consumer-group" env:"KAFKA_CONSUMER_GROUP" default:"fern-consumer"`
	KafkaConsumerEnabled bool     `long:"kafka-consumer-enabled" env:"KAFKA_CONSUMER_ENABLED"`
	KafkaOutputTopic     string   `long:"kafka-output-topic" env:"KAFKA_OUTPUT_TOPIC" default:"course-events"`
	KafkaBatchSize       int      `long:"kafka-batch-size" env:"KAFKA_BATCH_SIZE" default:"100"`
	KafkaBatchTimeoutMs  int      `long:"kafka-batch-timeout-ms" env:"KAFKA_BATCH_TIMEOUT_MS" default:"100"`
	KafkaRequiredAcks    int      `long:"kafka-required-acks" env:"KAFKA_REQUIRED_ACKS" default:"1"`
	KafkaCompression     string   `long:"kafka-compression" env:"KAFKA_COMPRESSION" default:"snappy"`

	OTELEnabled  bool   `long:"otel-enabled" env:"OTEL_ENABLED"`
	OTELEndpoint string `long:"otel-endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	OTELProtocol string `long:"otel-protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL" default:"grpc"`
	OTELInsecure bool   `long:"otel-insecure" env:"OTEL_EXPORTER_OTLP_INSECURE"`

	AuthEnabled   bool   `long:"auth-enabled" env:"AUTH_ENABLED"`
	AuthIssuerURL string `long:"auth-issuer-url" env:"AUTH_ISSUER_URL"`
	AuthClientID  string `long:"auth-client-id" env:"AUTH_CLIENT_ID"`
	AuthRole      string `long:"auth-role" env:"AUTH_ROLE" default:"moderator" description:"Realm role required to review candidates"`

	// Duplicate detection
	DetectHashConfidence      int     `long:"detect-hash-confidence" env:"DETECT_HASH_CONFIDENCE" default:"100"`
	DetectURLConfidence       int     `long:"detect-url-confidence" env:"DETECT_URL_CONFIDENCE" default:"95"`
	DetectSameSourceThreshold float64 `long:"detect-same-source-threshold" env:"DETECT_SAME_SOURCE_THRESHOLD" default:"0.8"`
	DetectSameSourceScale     float64 `long:"detect-same-source-scale" env:"DETECT_SAME_SOURCE_SCALE" default:"90"`
	DetectAnySourceThreshold  float64 `long:"detect-any-source-threshold" env:"DETECT_ANY_SOURCE_THRESHOLD" default:"0.9"`
	DetectAnySourceScale      float64 `long:"detect-any-source-scale" env:"DETECT_ANY_SOURCE_SCALE" default:"80"`
	DetectTitlePrefixLength   int     `long:"detect-title-prefix-length" env:"DETECT_TITLE_PREFIX_LENGTH" default:"10"`
	DetectTitleCandidateLimit int     `long:"detect-title-candidate-limit" env:"DETECT_TITLE_CANDIDATE_LIMIT" default:"5"`
	DetectWarnConfidence      int     `long:"detect-warn-confidence" env:"DETECT_WARN_CONFIDENCE" default:"90"`
	DetectSimilarity          string  `long:"detect-similarity" env:"DETECT_SIMILARITY" default:"levenshtein" choice:"levenshtein" choice:"jaro_winkler"`

	// Review
	ReviewMergeConfidence     int           `long:"review-merge-confidence" env:"REVIEW_MERGE_CONFIDENCE" default:"90"`
	ReviewActiveLearnerWindow time.Duration `long:"review-active-learner-window" env:"REVIEW_ACTIVE_LEARNER_WINDOW" default:"336h"`
	ReviewPendingLimit        int           `long:"review-pending-limit" env:"REVIEW_PENDING_LIMIT" default:"500"`
}

// Load reads an optional .env file and then resolves every field from the
// environment, falling back to the declared defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return Parse(nil)
}

// Parse resolves the configuration from args and the environment.
func Parse(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.AuthEnabled && (c.AuthIssuerURL == "" || c.AuthClientID == "") {
		return errors.New("AUTH_ISSUER_URL and AUTH_CLIENT_ID are required when AUTH_ENABLED is set")
	}
	if c.KafkaConsumerEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_CONSUMER_ENABLED is set")
	}
	if c.DetectTitlePrefixLength < 1 {
		return errors.New("DETECT_TITLE_PREFIX_LENGTH must be positive")
	}
	// Values above 100 disable auto-merge.
	if c.ReviewMergeConfidence < 0 {
		return errors.New("REVIEW_MERGE_CONFIDENCE must not be negative")
	}
	return nil
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
