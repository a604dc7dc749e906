// Package app builds the pieces shared by the api server and labctl from a
// loaded configuration.
package app

import (
	"context"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/lab-portal-api/internal/config"
	"github.com/jwalitptl/lab-portal-api/internal/email"
	"github.com/jwalitptl/lab-portal-api/internal/repository"
	"github.com/jwalitptl/lab-portal-api/internal/repository/postgres"
	"github.com/jwalitptl/lab-portal-api/internal/service/cart"
	"github.com/jwalitptl/lab-portal-api/internal/service/pricing"
	"github.com/jwalitptl/lab-portal-api/pkg/logger"
	"github.com/jwalitptl/lab-portal-api/pkg/metrics"
)

func NewLogger(cfg config.LogConfig) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Console,
	})
}

type Repositories struct {
	References repository.ReferenceRepository
	Tariffs    repository.TariffRepository
	Exams      repository.ExamRepository
	Categories repository.CategoryRepository
	Articles   repository.ArticleRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	base := postgres.NewBaseRepository(db)
	return &Repositories{
		References: postgres.NewReferenceRepository(base),
		Tariffs:    postgres.NewTariffRepository(base),
		Exams:      postgres.NewExamRepository(base),
		Categories: postgres.NewCategoryRepository(base),
		Articles:   postgres.NewArticleRepository(base),
	}
}

func NewResolver(cfg config.Config, repos *Repositories, m *metrics.Metrics, log *logger.Logger) *pricing.Resolver {
	return pricing.NewResolver(repos.References, repos.Tariffs, repos.Exams, pricing.Options{
		PublicReference:   cfg.Pricing.PublicReference,
		BaseTariff:        cfg.Pricing.BaseTariff,
		ReferentialTariff: cfg.Pricing.ReferentialTariff,
		DirectoryTTL:      cfg.Cache.DirectoryTTL,
		CleanupInterval:   cfg.Cache.CleanupInterval,
	}, m, log)
}

func NewMigrator(cfg config.Config, repos *Repositories, m *metrics.Metrics, log *logger.Logger) *pricing.Migrator {
	return pricing.NewMigrator(repos.References, repos.Tariffs, repos.Exams, pricing.MigrationConfig{
		PublicReference:   cfg.Pricing.PublicReference,
		BaseTariff:        cfg.Pricing.BaseTariff,
		ReferentialTariff: cfg.Pricing.ReferentialTariff,
		ReferentialRefs:   cfg.Pricing.ReferentialRefs,
		ReferentialFactor: decimal.NewFromFloat(cfg.Pricing.ReferentialFactor),
	}, m, log)
}

// NewNotifier picks the checkout notifier for email.driver.
func NewNotifier(cfg config.EmailConfig) email.Notifier {
	if cfg.Driver == "smtp" {
		return email.NewSMTPNotifier(cfg.SMTP, cfg.NotifyTo)
	}
	return email.NewTemplateNotifier(cfg.Template, cfg.NotifyTo, cfg.Timeout)
}

// NewCartStore opens the configured cart store. The redis client, when one
// is opened, is returned so the caller can close and health-check it.
func NewCartStore(ctx context.Context, cfg config.Config) (cart.Store, *redis.Client, error) {
	if cfg.Cart.Store == "memory" {
		return cart.NewMemoryStore(cfg.Cart.TTL), nil, nil
	}
	client, err := cart.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return cart.NewRedisStore(client, cfg.Cart.TTL), client, nil
}
