package testdata

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"

	"github.com/qutab/affiliate-ledger/pkg/ledger"
	"github.com/qutab/affiliate-ledger/pkg/models"
	"github.com/qutab/affiliate-ledger/pkg/registry"
)

// GeneratorConfig configures demo data generation
type GeneratorConfig struct {
	AffiliateCount  int
	VerifiedPercent float64 // 0.0-1.0
	MaxCreditAmount int64   // upper bound per credit, Rupiah
	CreditsPerUser  int
}

// DefaultConfig returns sensible demo defaults
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		AffiliateCount:  25,
		VerifiedPercent: 0.6,
		MaxCreditAmount: 500000,
		CreditsPerUser:  4,
	}
}

// Indonesian banks used for generated bank claims
var bankNames = []string{
	"BCA", "Mandiri", "BNI", "BRI", "CIMB Niaga", "Permata", "Danamon", "BSI",
}

// Common Indonesian given and family names for realistic KTP data
var indonesianNames = []string{
	"Budi Santoso", "Siti Aminah", "Agus Wijaya", "Dewi Lestari", "Rizky Pratama",
	"Putri Maharani", "Andi Saputra", "Sri Rahayu", "Hendra Gunawan", "Rina Kurniawati",
	"Joko Susilo", "Fitri Handayani", "Bayu Nugroho", "Indah Permatasari", "Eko Prasetyo",
}

// Generator seeds demo affiliates, bank claims, and ledger activity
type Generator struct {
	db       *gorm.DB
	registry *registry.Service
	ledger   *ledger.Service
	rng      *rand.Rand
}

// NewGenerator creates a new demo data generator
func NewGenerator(db *gorm.DB, registrySvc *registry.Service, ledgerSvc *ledger.Service) *Generator {
	return &Generator{
		db:       db,
		registry: registrySvc,
		ledger:   ledgerSvc,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate seeds the database with demo affiliates and returns how many
// were created
func (g *Generator) Generate(ctx context.Context, cfg GeneratorConfig) (int, error) {
	created := 0
	for i := 0; i < cfg.AffiliateCount; i++ {
		name := indonesianNames[g.rng.Intn(len(indonesianNames))]
		email := fmt.Sprintf("%s%d@%s",
			strings.ToLower(strings.ReplaceAll(name, " ", ".")), g.rng.Intn(1000), gofakeit.DomainName())
		phone := fmt.Sprintf("+628%d", 100000000+g.rng.Intn(899999999))

		affiliate, err := g.registry.Register(ctx, name, email, phone)
		if err != nil {
			return created, fmt.Errorf("failed to register demo affiliate: %w", err)
		}
		created++

		// Most demo affiliates have submitted a bank claim
		if g.rng.Float64() < 0.85 {
			holder := name
			// A few claims carry a mismatched account holder to exercise
			// the name check queue
			if g.rng.Float64() < 0.15 {
				holder = indonesianNames[g.rng.Intn(len(indonesianNames))]
			}

			_, err = g.registry.SubmitBankDetails(ctx, affiliate.ID, registry.BankDetailsInput{
				BankName:      bankNames[g.rng.Intn(len(bankNames))],
				AccountNumber: fmt.Sprintf("%010d", g.rng.Int63n(9999999999)),
				AccountHolder: holder,
				KTPName:       name,
				KTPNumber:     fmt.Sprintf("%016d", g.rng.Int63n(999999999999999)),
				KTPPhotoRef:   fmt.Sprintf("ktp/%s.jpg", gofakeit.UUID()),
			})
			if err != nil {
				return created, fmt.Errorf("failed to submit demo bank details: %w", err)
			}

			if g.rng.Float64() < cfg.VerifiedPercent {
				if _, err := g.registry.ReviewVerification(ctx, affiliate.ID, "approve", "", "seed-admin"); err != nil {
					return created, fmt.Errorf("failed to approve demo verification: %w", err)
				}

				for j := 0; j < g.rng.Intn(cfg.CreditsPerUser+1); j++ {
					amount := 10000 + g.rng.Int63n(cfg.MaxCreditAmount-10000)
					note := fmt.Sprintf("referral commission for order %s", gofakeit.UUID()[:8])
					if _, err := g.ledger.Credit(ctx, affiliate.ID, amount, note, "seed-admin"); err != nil {
						return created, fmt.Errorf("failed to credit demo affiliate: %w", err)
					}
				}
			}
		}
	}

	return created, nil
}

// CountAffiliates returns the current affiliate count
func (g *Generator) CountAffiliates(ctx context.Context) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.Affiliate{}).Count(&count).Error
	return count, err
}
