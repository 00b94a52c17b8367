package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"shg-finance/internal/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds server-level config
type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	LogLevel string `yaml:"level"`
}

// MongoDB connection config
type MongoConfig struct {
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	URI             string        `yaml:"uri"`
	DBName          string        `yaml:"db_name"`
	MaxPoolSize     uint64        `yaml:"max_pool_size"`
	MinPoolSize     uint64        `yaml:"min_pool_size"`
	IdleMinutes     int           `yaml:"max_conn_idle_minutes"`
	TimeoutSeconds  int           `yaml:"connect_timeout_seconds"`
	UseTransactions bool          `yaml:"use_transactions"`
	MaxConnIdleTime time.Duration `yaml:"-"`
	ConnectTimeout  time.Duration `yaml:"-"`
}

// Redis connection config
type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	EnableTLS      bool          `yaml:"enable_tls"`
	TimeoutSeconds int           `yaml:"connect_timeout_seconds"`
	CertContent    string        `yaml:"cert_content"`
	ConnectTimeout time.Duration `yaml:"-"`
}

// LockConfig controls the per-loan and per-group distributed locks.
type LockConfig struct {
	TTLSeconds    int           `yaml:"ttl_seconds"`
	WaitMillis    int           `yaml:"wait_timeout_ms"`
	RetryMillis   int           `yaml:"retry_interval_ms"`
	TTL           time.Duration `yaml:"-"`
	WaitTimeout   time.Duration `yaml:"-"`
	RetryInterval time.Duration `yaml:"-"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type LoansConfig struct {
	DefaultTenureMonths   int     `yaml:"default_tenure_months"`
	DefaultInterestRate   float64 `yaml:"default_interest_rate"`
	StrictRepaymentAmount bool    `yaml:"strict_repayment_amount"`
}

type LedgerConfig struct {
	AllowNegativeCash bool `yaml:"allow_negative_cash"`
}

type PubSubConfig struct {
	ProjectID         string `yaml:"project_id"`
	NotificationTopic string `yaml:"notification_topic"`
}

// Kafka connection config
type KafkaConfig struct {
	Server           string `yaml:"server"`
	LedgerTopic      string `yaml:"ledger_topic"`
	SecurityProtocol string `yaml:"security_protocol"`
	SASLMechanism    string `yaml:"sasl_mechanism"`
	SASLUsername     string `yaml:"sasl_username"`
	SASLPassword     string `yaml:"sasl_password"`
	ClientID         string `yaml:"client_id"`
}

type GCSConfig struct {
	BucketName string `yaml:"bucket_name"`
	FolderName string `yaml:"folder_name"`
}

type OtelConfig struct {
	ServiceName  string `yaml:"service_name"`
	CollectorURL string `yaml:"collector_url"`
}

type ReconciliationConfig struct {
	Schedule    string `yaml:"schedule"`
	ApplyFixes  bool   `yaml:"apply_fixes"`
	MarkOverdue bool   `yaml:"mark_overdue"`
	WorkerCount int    `yaml:"worker_count"`
}

// AppConfig is the main config struct that holds all configs
type AppConfig struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LogConfig            `yaml:"logging"`
	Mongo          MongoConfig          `yaml:"mongo"`
	Redis          RedisConfig          `yaml:"redis"`
	Lock           LockConfig           `yaml:"lock"`
	Auth           AuthConfig           `yaml:"auth"`
	Loans          LoansConfig          `yaml:"loans"`
	Ledger         LedgerConfig         `yaml:"ledger"`
	PubSub         PubSubConfig         `yaml:"pubsub"`
	Kafka          KafkaConfig          `yaml:"kafka"`
	GCS            GCSConfig            `yaml:"gcs"`
	Otel           OtelConfig           `yaml:"otel"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
}

func intOr(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// nolint: funlen
func assignDefaultConfigValues(cfg *AppConfig) *AppConfig {

	// server config defaults
	cfg.Server.Port = GetEnvOrDefaultAsInt("SERVER_PORT", intOr(cfg.Server.Port, 8080))

	// log config defaults
	cfg.Logging.LogLevel = GetEnvOrDefaultAsString("LOGGING_LEVEL", cfg.Logging.LogLevel)

	// MongoDB config defaults
	cfg.Mongo.URI = GetEnvOrDefaultAsString("MONGO_URI", cfg.Mongo.URI)
	cfg.Mongo.DBName = GetEnvOrDefaultAsString("MONGO_DB_NAME", cfg.Mongo.DBName)
	cfg.Mongo.Username = GetEnvOrDefaultAsString("MONGO_USERNAME", cfg.Mongo.Username)
	cfg.Mongo.Password = GetEnvOrDefaultAsString("MONGO_PASSWORD", cfg.Mongo.Password)
	cfg.Mongo.MaxPoolSize = GetEnvOrDefaultAsUint64("MONGO_MAX_POOL_SIZE", cfg.Mongo.MaxPoolSize)
	cfg.Mongo.MinPoolSize = GetEnvOrDefaultAsUint64("MONGO_MIN_POOL_SIZE", cfg.Mongo.MinPoolSize)
	cfg.Mongo.MaxConnIdleTime = time.Duration(GetEnvOrDefaultAsInt("MONGO_MAX_CONN_IDLE_MINUTES",
		intOr(cfg.Mongo.IdleMinutes, 30))) * time.Minute
	cfg.Mongo.ConnectTimeout = time.Duration(GetEnvOrDefaultAsInt("MONGO_CONNECT_TIMEOUT_SECONDS",
		intOr(cfg.Mongo.TimeoutSeconds, 10))) * time.Second
	cfg.Mongo.UseTransactions = GetEnvOrDefaultAsBool("MONGO_USE_TRANSACTIONS", cfg.Mongo.UseTransactions)

	// Redis config defaults
	cfg.Redis.Addr = GetEnvOrDefaultAsString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = GetEnvOrDefaultAsString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = GetEnvOrDefaultAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.EnableTLS = GetEnvOrDefaultAsBool("REDIS_ENABLE_TLS", cfg.Redis.EnableTLS)
	cfg.Redis.ConnectTimeout = time.Duration(GetEnvOrDefaultAsInt("REDIS_CONNECT_TIMEOUT_SECONDS",
		intOr(cfg.Redis.TimeoutSeconds, 10))) * time.Second
	cfg.Redis.CertContent = GetEnvOrDefaultAsString("REDIS_TLS_CERT", cfg.Redis.CertContent)

	// lock defaults
	cfg.Lock.TTL = time.Duration(GetEnvOrDefaultAsInt("LOCK_TTL_SECONDS",
		intOr(cfg.Lock.TTLSeconds, 10))) * time.Second
	cfg.Lock.WaitTimeout = time.Duration(GetEnvOrDefaultAsInt("LOCK_WAIT_TIMEOUT_MS",
		intOr(cfg.Lock.WaitMillis, 3000))) * time.Millisecond
	cfg.Lock.RetryInterval = time.Duration(GetEnvOrDefaultAsInt("LOCK_RETRY_INTERVAL_MS",
		intOr(cfg.Lock.RetryMillis, 50))) * time.Millisecond

	// auth
	cfg.Auth.JWTSecret = GetEnvOrDefaultAsString("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.Issuer = GetEnvOrDefaultAsString("JWT_ISSUER", cfg.Auth.Issuer)

	// loan engine
	cfg.Loans.DefaultTenureMonths = GetEnvOrDefaultAsInt("LOANS_DEFAULT_TENURE_MONTHS",
		intOr(cfg.Loans.DefaultTenureMonths, 12))
	cfg.Loans.DefaultInterestRate = GetEnvOrDefaultAsFloat64("LOANS_DEFAULT_INTEREST_RATE",
		cfg.Loans.DefaultInterestRate)
	cfg.Loans.StrictRepaymentAmount = GetEnvOrDefaultAsBool("LOANS_STRICT_REPAYMENT_AMOUNT",
		cfg.Loans.StrictRepaymentAmount)
	cfg.Ledger.AllowNegativeCash = GetEnvOrDefaultAsBool("LEDGER_ALLOW_NEGATIVE_CASH", cfg.Ledger.AllowNegativeCash)

	// PubSub config defaults
	cfg.PubSub.ProjectID = GetEnvOrDefaultAsString("PROJECT_ID", cfg.PubSub.ProjectID)
	cfg.PubSub.NotificationTopic = GetEnvOrDefaultAsString("PUBSUB_NOTIFICATION_TOPIC",
		cfg.PubSub.NotificationTopic)

	// Kafka config defaults
	cfg.Kafka.Server = GetEnvOrDefaultAsString("KAFKA_SERVER", cfg.Kafka.Server)
	cfg.Kafka.LedgerTopic = GetEnvOrDefaultAsString("KAFKA_LEDGER_TOPIC", cfg.Kafka.LedgerTopic)
	cfg.Kafka.SecurityProtocol = GetEnvOrDefaultAsString("KAFKA_SECURITY_PROTOCOL", cfg.Kafka.SecurityProtocol)
	cfg.Kafka.SASLMechanism = GetEnvOrDefaultAsString("KAFKA_SASL_MECHANISM", cfg.Kafka.SASLMechanism)
	cfg.Kafka.SASLUsername = GetEnvOrDefaultAsString("KAFKA_SASL_USERNAME", cfg.Kafka.SASLUsername)
	cfg.Kafka.SASLPassword = GetEnvOrDefaultAsString("KAFKA_SASL_PASSWORD", cfg.Kafka.SASLPassword)
	cfg.Kafka.ClientID = GetEnvOrDefaultAsString("KAFKA_CLIENT_ID", cfg.Kafka.ClientID)

	cfg.GCS.BucketName = GetEnvOrDefaultAsString("GCS_BUCKET_NAME", cfg.GCS.BucketName)
	cfg.GCS.FolderName = GetEnvOrDefaultAsString("GCS_FOLDER_NAME", cfg.GCS.FolderName)

	cfg.Otel.ServiceName = GetEnvOrDefaultAsString("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	cfg.Otel.CollectorURL = GetEnvOrDefaultAsString("OTEL_COLLECTOR_URL", cfg.Otel.CollectorURL)

	cfg.Reconciliation.Schedule = GetEnvOrDefaultAsString("RECONCILIATION_SCHEDULE", cfg.Reconciliation.Schedule)
	cfg.Reconciliation.ApplyFixes = GetEnvOrDefaultAsBool("RECONCILIATION_APPLY_FIXES", cfg.Reconciliation.ApplyFixes)
	cfg.Reconciliation.MarkOverdue = GetEnvOrDefaultAsBool("RECONCILIATION_MARK_OVERDUE",
		cfg.Reconciliation.MarkOverdue)
	cfg.Reconciliation.WorkerCount = GetEnvOrDefaultAsInt("RECONCILIATION_WORKER_COUNT",
		intOr(cfg.Reconciliation.WorkerCount, 4))
	return cfg
}

// LoadFromConfigFilePath loads and parses config file into AppConfig
func LoadFromConfigFilePath(configPath string) (*AppConfig, error) {

	// #nosec G304: path comes from CONFIG_PATH set by the deployment
	data, err := os.ReadFile(configPath)
	if err != nil {
		logger.Error("Failed to read config file", err, slog.String("path", configPath))
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Error("Failed to unmarshal config", err)
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	defaultCfg := assignDefaultConfigValues(&cfg)

	if err := validateConfig(defaultCfg); err != nil {
		logger.Error("Config validation failed", err)
		return nil, err
	}

	logger.Info("Configuration loaded successfully", slog.String("path", configPath))

	return defaultCfg, nil
}

// LoadFromConfig loads a .env file when present and then the config file named by CONFIG_PATH.
func LoadFromConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Failed to load .env file", slog.String("error", err.Error()))
	}

	configPath := GetEnvOrDefaultAsString("CONFIG_PATH", "configs/config.yaml")

	cfg, err := LoadFromConfigFilePath(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	return cfg, nil
}

func validateConfig(cfg *AppConfig) error {
	if err := validateMongoConfig(cfg.Mongo); err != nil {
		return err
	}
	if err := validateLockConfig(cfg.Lock); err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must be set")
	}
	if cfg.Loans.DefaultTenureMonths < 1 {
		return fmt.Errorf("loans.default_tenure_months must be at least 1, got %d", cfg.Loans.DefaultTenureMonths)
	}
	if cfg.Loans.DefaultInterestRate < 0 {
		return fmt.Errorf("loans.default_interest_rate must not be negative, got %v", cfg.Loans.DefaultInterestRate)
	}
	if err := validateReconciliationConfig(cfg.Reconciliation); err != nil {
		return err
	}
	return nil
}

func validateMongoConfig(mongo MongoConfig) error {
	if mongo.MinPoolSize < 5 || mongo.MinPoolSize > 10 {
		return fmt.Errorf(
			"mongo.min_pool_size must be between 5 and 10, got %d",
			mongo.MinPoolSize,
		)
	}

	if mongo.MaxPoolSize < 10 || mongo.MaxPoolSize > 50 {
		return fmt.Errorf(
			"mongo.max_pool_size must be between 10 and 50, got %d",
			mongo.MaxPoolSize,
		)
	}

	minIdle := 20 * time.Minute
	maxIdle := 30 * time.Minute
	if mongo.MaxConnIdleTime < minIdle || mongo.MaxConnIdleTime > maxIdle {
		return fmt.Errorf(
			"mongo.max_conn_idle_minutes must be between %v and %v, got %v",
			minIdle,
			maxIdle,
			mongo.MaxConnIdleTime,
		)
	}

	return nil
}

func validateLockConfig(lock LockConfig) error {
	if lock.TTL < time.Second || lock.TTL > time.Minute {
		return fmt.Errorf("lock.ttl_seconds must be between 1s and 1m, got %v", lock.TTL)
	}
	if lock.RetryInterval <= 0 || lock.RetryInterval > lock.WaitTimeout {
		return fmt.Errorf("lock.retry_interval_ms must be positive and not exceed lock.wait_timeout_ms, got %v",
			lock.RetryInterval)
	}
	return nil
}

func validateReconciliationConfig(rec ReconciliationConfig) error {
	if rec.WorkerCount < 1 || rec.WorkerCount > 32 {
		return fmt.Errorf("reconciliation.worker_count must be between 1 and 32, got %d", rec.WorkerCount)
	}
	if rec.Schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(rec.Schedule); err != nil {
		return fmt.Errorf("reconciliation.schedule is not a valid cron expression: %w", err)
	}
	return nil
}

// GetEnvOrDefaultAsInt returns the value of the given env variable
// as an int or the default value if not set or invalid.
func GetEnvOrDefaultAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return int(value)
}

// GetEnvOrDefaultAsString returns the value of the given env variable or the default value if not set.
func GetEnvOrDefaultAsString(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		if val != "" {
			return val
		}
	}
	return defaultVal
}

func GetEnvOrDefaultAsUint64(key string, defaultValue uint64) uint64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func GetEnvOrDefaultAsBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func GetEnvOrDefaultAsFloat64(key string, defaultValue float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
