package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/qutab/affiliate-ledger/config"
	"github.com/qutab/affiliate-ledger/pkg/auth"
	"github.com/qutab/affiliate-ledger/pkg/database"
	"github.com/qutab/affiliate-ledger/pkg/ledger"
	"github.com/qutab/affiliate-ledger/pkg/registry"
	"github.com/qutab/affiliate-ledger/pkg/testdata"
)

func main() {
	count := flag.Int("count", 25, "number of demo affiliates to create")
	adminToken := flag.Bool("admin-token", false, "print a back-office JWT for local testing")
	flag.Parse()

	cfg := config.Load()
	log.Printf("🔧 Seeding against %s", cfg.DatabaseURL)

	db, err := database.NewClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	// No audit trail or events for seed data
	registryService := registry.NewService(db.DB, nil, nil)
	ledgerService := ledger.NewService(db.DB, nil, nil)

	generator := testdata.NewGenerator(db.DB, registryService, ledgerService)

	genCfg := testdata.DefaultConfig()
	genCfg.AffiliateCount = *count

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	created, err := generator.Generate(ctx, genCfg)
	if err != nil {
		log.Fatalf("❌ Seeding failed after %d affiliates: %v", created, err)
	}

	total, _ := generator.CountAffiliates(ctx)
	log.Printf("✅ Seeded %d demo affiliates (%d total in database)", created, total)

	if *adminToken {
		token, err := auth.GenerateJWT(0, "Seed Admin", auth.RoleAdmin, cfg.JWTSecret, cfg.JWTExpirationHours)
		if err != nil {
			log.Fatalf("❌ Failed to generate admin token: %v", err)
		}
		log.Printf("🔑 Back-office token (valid %dh): %s", cfg.JWTExpirationHours, token)
		log.Printf("🌐 Dashboard: %s", cfg.FrontendURL)
	}
}
