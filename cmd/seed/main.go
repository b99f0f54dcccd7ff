// Command seed creates an account, typically the first admin, and prints a
// token for it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/users"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	_ = godotenv.Load()

	emailAddr := flag.String("email", os.Getenv("SEED_EMAIL"), "account email")
	password := flag.String("password", os.Getenv("SEED_PASSWORD"), "account password")
	role := flag.String("role", string(domain.RoleAdmin), "admin or storeOwner")
	storeName := flag.String("store", "Admin Store", "store name")
	town := flag.String("town", "", "address town")
	state := flag.String("state", "", "address state")
	zipcode := flag.String("zipcode", "", "address zipcode")
	flag.Parse()

	if *emailAddr == "" || *password == "" {
		logger.Error("-email and -password (or SEED_EMAIL and SEED_PASSWORD) are required")
		os.Exit(1)
	}
	if !domain.Role(*role).IsValid() {
		logger.Error("invalid role", "role", *role)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	repo := users.NewRepository(db)

	user, err := repo.GetByEmail(ctx, *emailAddr)
	switch {
	case err == nil:
		logger.Info("account already exists", "user_id", user.ID, "role", user.Role)
	case errors.Is(err, users.ErrNotFound):
		hash, err := users.HashPassword(*password)
		if err != nil {
			logger.Error("failed to hash password", "error", err)
			os.Exit(1)
		}
		user = &domain.User{
			StoreName:    *storeName,
			Address:      domain.Address{Town: *town, State: *state, Zipcode: *zipcode},
			Email:        *emailAddr,
			PasswordHash: hash,
			Role:         domain.Role(*role),
		}
		if err := repo.Create(ctx, user); err != nil {
			logger.Error("failed to create account", "error", err)
			os.Exit(1)
		}
		logger.Info("account created", "user_id", user.ID, "role", user.Role)
	default:
		logger.Error("failed to look up account", "error", err)
		os.Exit(1)
	}

	tokens, err := auth.NewTokens(cfg.Auth)
	if err != nil {
		logger.Error("failed to configure auth", "error", err)
		os.Exit(1)
	}
	token, err := tokens.Issue(*user, time.Now())
	if err != nil {
		logger.Error("failed to issue token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
