package config

import (
	"errors"
	"fmt"
	"time"

	"posts-backend/internal/utils"

	"golang.org/x/crypto/bcrypt"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	DatabaseURL string
	Storage     string // postgres | memory

	JWTSecret    string
	JWTExpiresIn time.Duration
	BcryptCost   int

	Broker              string // rabbitmq | kafka | memory
	RabbitMQURL         string
	KafkaBrokers        []string
	KafkaGroupID        string
	TaskMaxRedeliveries int

	Cloudinary CloudinaryConfig
	Email      EmailConfig

	BlacklistPruneInterval time.Duration
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	_ = utils.LoadEnv()

	cfg := &Config{
		Env:      utils.GetEnv("APP_ENV", utils.GetEnv("NODE_ENV", EnvDevelopment)),
		Port:     utils.GetEnv("PORT", "5000"),
		LogLevel: utils.GetEnv("LOG_LEVEL", "info"),

		DatabaseURL: databaseURL(),
		Storage:     utils.GetEnv("STORAGE", "postgres"),

		JWTSecret:    utils.GetEnv("JWT_SECRET", ""),
		JWTExpiresIn: utils.GetEnvDuration("JWT_EXPIRES_IN", 24*time.Hour),
		BcryptCost:   utils.GetEnvInt("SALT", bcrypt.DefaultCost),

		Broker:              utils.GetEnv("BROKER", "rabbitmq"),
		RabbitMQURL:         rabbitMQURL(),
		KafkaBrokers:        utils.GetEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:        utils.GetEnv("KAFKA_GROUP_ID", "posts-backend"),
		TaskMaxRedeliveries: utils.GetEnvInt("TASK_MAX_REDELIVERIES", 3),

		Cloudinary: CloudinaryConfig{
			CloudName: utils.GetEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    utils.GetEnv("CLOUDINARY_API_KEY", ""),
			APISecret: utils.GetEnv("CLOUDINARY_API_SECRET", ""),
			Folder:    utils.GetEnv("CLOUDINARY_FOLDER", "img-repository"),
		},
		Email: EmailConfig{
			Host:     utils.GetEnv("EMAIL_HOST", ""),
			Port:     utils.GetEnvInt("EMAIL_PORT", 587),
			Username: utils.GetEnv("EMAIL_USERNAME", ""),
			Password: utils.GetEnv("EMAIL_PASSWORD", ""),
			From:     utils.GetEnv("EMAIL_FROM", "Posts-ish <hello@posts-ish.co>"),
		},

		BlacklistPruneInterval: utils.GetEnvDuration("BLACKLIST_PRUNE_INTERVAL", time.Hour),
	}

	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = "secret"
	}

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("SALT must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.JWTExpiresIn <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES_IN must be positive"))
	}
	if c.TaskMaxRedeliveries < 1 {
		errs = append(errs, errors.New("TASK_MAX_REDELIVERIES must be at least 1"))
	}
	switch c.Storage {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE %q", c.Storage))
	}
	switch c.Broker {
	case "rabbitmq", "kafka", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown BROKER %q", c.Broker))
	}
	return errors.Join(errs...)
}

func databaseURL() string {
	connString := utils.GetEnv("DATABASE_URL", "")
	if connString != "" {
		return connString
	}
	// Fallback to individual vars
	return "postgres://" + utils.GetEnv("POSTGRES_USER", "postgres") + ":" +
		utils.GetEnv("POSTGRES_PASSWORD", "postgres") + "@" +
		utils.GetEnv("POSTGRES_HOST", "localhost") + ":" +
		utils.GetEnv("POSTGRES_PORT", "5432") + "/" +
		utils.GetEnv("POSTGRES_DB", "postsdb") + "?sslmode=disable"
}

func rabbitMQURL() string {
	if url := utils.GetEnv("RABBITMQ_URL", ""); url != "" {
		return url
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		utils.GetEnv("RABBITMQ_USER", "guest"),
		utils.GetEnv("RABBITMQ_PASSWORD", "guest"),
		utils.GetEnv("RABBITMQ_HOST", "localhost"),
		utils.GetEnv("RABBITMQ_PORT", "5672"))
}
