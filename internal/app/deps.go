package app

import (
	"context"
	"fmt"
	"log/slog"

	"posts-backend/internal/config"
	"posts-backend/internal/db"
	"posts-backend/internal/images"
	"posts-backend/internal/mailer"
	"posts-backend/internal/queue"
	"posts-backend/internal/storage"
	"posts-backend/internal/storage/memory"
	"posts-backend/internal/storage/postgres"
)

// OpenStorage connects the configured store. Postgres is migrated to the
// latest schema when migrate is set.
func OpenStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (storage.Storage, error) {
	switch cfg.Storage {
	case "memory":
		logger.Warn("Using in-memory storage, data is lost on exit")
		return memory.New(), nil
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := db.Migrate(ctx, pool, "up"); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return postgres.New(pool), nil
	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}

func OpenBroker(cfg *config.Config, logger *slog.Logger) (queue.Broker, error) {
	switch cfg.Broker {
	case "rabbitmq":
		return queue.NewRabbitMQ(cfg.RabbitMQURL, logger)
	case "kafka":
		return queue.NewKafka(cfg.KafkaBrokers, cfg.KafkaGroupID, logger), nil
	case "memory":
		return queue.NewMemory(logger), nil
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Broker)
	}
}

// NewImageStore uses Cloudinary when credentials are configured and keeps
// images in memory otherwise.
func NewImageStore(cfg *config.Config, logger *slog.Logger) (images.Store, error) {
	c := cfg.Cloudinary
	if c.CloudName == "" {
		logger.Warn("CLOUDINARY_CLOUD_NAME not set, keeping images in memory")
		return images.NewMemory("http://localhost:" + cfg.Port), nil
	}
	return images.NewCloudinary(c.CloudName, c.APIKey, c.APISecret, c.Folder, logger)
}

func NewMailer(cfg *config.Config, logger *slog.Logger) mailer.Mailer {
	e := cfg.Email
	if e.Host == "" {
		logger.Warn("EMAIL_HOST not set, emails will only be logged")
		return mailer.NewLog(logger)
	}
	return mailer.NewSMTP(e.Host, e.Port, e.Username, e.Password, e.From)
}
