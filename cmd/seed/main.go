// cmd/seed/main.go loads a demo catalog with stock and prints development
// tokens for a customer and an administrator.
// Uso: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"storefront/internal/config"
	"storefront/internal/infra"
	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type seedProduct struct {
	sku   string
	name  string
	price string
	stock int64
}

var catalog = []seedProduct{
	{"MUG-001", "Taza ceramica 350ml", "12.50", 40},
	{"TSH-002", "Remera algodon negra", "24.90", 25},
	{"CAP-003", "Gorra bordada", "18.00", 3},
	{"BAG-004", "Tote bag lona", "15.75", 0},
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Env == "production" {
		log.Fatal().Msg("seed refuses to run with APP_ENV=production")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	ctx := context.Background()
	products := repository.NewProductRepository(db)
	ledger := service.NewStockLedger(repository.NewStockRepository(db), nil)

	for _, sp := range catalog {
		p, err := products.FindBySKU(ctx, sp.sku)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			p = &model.Product{
				ID:     uuid.New(),
				SKU:    sp.sku,
				Name:   sp.name,
				Price:  decimal.RequireFromString(sp.price),
				Active: true,
			}
			if err := products.Create(ctx, p); err != nil {
				log.Fatal().Err(err).Str("sku", sp.sku).Msg("create product")
			}
		case err != nil:
			log.Fatal().Err(err).Str("sku", sp.sku).Msg("lookup product")
		default:
			log.Info().Str("sku", sp.sku).Msg("product exists, skipping")
			continue
		}
		if sp.stock > 0 {
			if _, err := ledger.Restock(ctx, p.ID, sp.stock, service.LedgerRef{Note: "seed"}); err != nil {
				log.Fatal().Err(err).Str("sku", sp.sku).Msg("restock")
			}
		}
		fmt.Printf("%s  %s  stock=%d\n", p.ID, sp.sku, sp.stock)
	}

	for _, rol := range []string{middleware.RoleCustomer, middleware.RoleAdmin} {
		tok, err := devToken(cfg.JWTSecret, rol)
		if err != nil {
			log.Fatal().Err(err).Msg("sign token")
		}
		fmt.Printf("\n%s token:\n%s\n", rol, tok)
	}
}

func devToken(secret, rol string) (string, error) {
	claims := middleware.JWTClaims{
		UserID: uuid.NewString(),
		Email:  rol + "@storefront.local",
		Rol:    rol,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			Issuer:    "storefront-seed",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
