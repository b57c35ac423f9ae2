package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-booking/internal/auth"
	"github.com/noah-isme/backend-booking/internal/catalog"
	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/config"
	"github.com/noah-isme/backend-booking/internal/db"
	"github.com/noah-isme/backend-booking/internal/obs"
	"github.com/noah-isme/backend-booking/internal/pricing"
	"github.com/noah-isme/backend-booking/internal/secrets"
	"github.com/noah-isme/backend-booking/internal/settings"
)

type seedService struct {
	Name     string
	Price    float64
	Duration int
}

var seedCatalog = []struct {
	Category string
	Services []seedService
}{
	{"Consultation", []seedService{
		{"Initial consultation", 45, 30},
		{"Follow-up session", 30, 30},
	}},
	{"Treatment", []seedService{
		{"Standard treatment", 90, 60},
		{"Extended treatment", 150, 90},
	}},
	{"Workshop", []seedService{
		{"Group workshop seat", 25, 120},
	}},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := obs.NewLogger("console", "info", "booking-seeder")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := db.Migrate(pool); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	svc := catalog.NewService(catalog.ServiceConfig{Store: catalog.PGStore{DB: pool}, Logger: logger})
	for _, group := range seedCatalog {
		cat, err := svc.CreateCategory(ctx, catalog.CategoryInput{Name: group.Category})
		if isConflict(err) {
			logger.Info().Str("category", group.Category).Msg("category exists, skipping")
			continue
		}
		if err != nil {
			logger.Fatal().Err(err).Str("category", group.Category).Msg("seed category")
		}
		for _, s := range group.Services {
			_, err := svc.CreateService(ctx, catalog.ServiceInput{
				CategoryID:      &cat.ID,
				Name:            s.Name,
				Price:           s.Price,
				DurationMinutes: s.Duration,
			})
			if err != nil {
				logger.Fatal().Err(err).Str("service", s.Name).Msg("seed service")
			}
		}
		logger.Info().Str("category", cat.Name).Int("services", len(group.Services)).Msg("seeded")
	}

	cipher, err := secrets.NewCipher(cfg.SettingsEncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise settings cipher")
	}
	repo := &settings.Repository{Store: settings.PGOptionStore{DB: pool}, Cipher: cipher}
	if secret := strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")); secret != "" {
		err := repo.SaveStripe(ctx, settings.StripeInput{
			Enabled:        true,
			PublishableKey: strings.TrimSpace(os.Getenv("STRIPE_PUBLISHABLE_KEY")),
			SecretKey:      secret,
			WebhookSecret:  strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
			Sandbox:        strings.HasPrefix(secret, "sk_test_"),
			CorrectionKind: string(pricing.CorrectionNone),
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("save stripe settings")
		}
		logger.Info().Str("secret_key", settings.Mask(secret)).Msg("stripe settings stored")
	}

	tokens, err := auth.NewTokenService(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: cfg.AdminTokenTTL})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token service")
	}
	token, exp, err := tokens.Issue("seeder", auth.RoleAdmin)
	if err != nil {
		logger.Fatal().Err(err).Msg("issue admin token")
	}
	logger.Info().Time("expires_at", exp).Msg("seeding completed")
	fmt.Println(token)
}

func isConflict(err error) bool {
	var appErr *common.AppError
	return errors.As(err, &appErr) && appErr.HTTPStatus == http.StatusConflict
}
