package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/qutab/affiliate-ledger/pkg/commission"
)

// CronManager manages scheduled jobs
type CronManager struct {
	cron        *cron.Cron
	commissions *commission.Service
	schedule    string
	logger      *log.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(commissions *commission.Service, schedule string, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}

	return &CronManager{
		cron:        cron.New(),
		commissions: commissions,
		schedule:    schedule,
		logger:      logger,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.logger.Println("Setting up cron jobs...")

	// Commission maturation: pending commissions past the holding period
	// become withdrawable ledger credits
	_, err := cm.cron.AddFunc(cm.schedule, func() {
		cm.logger.Println("🕐 Running commission maturation job...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		credited, err := cm.commissions.Mature(ctx, time.Now())
		if err != nil {
			cm.logger.Printf("❌ Commission maturation failed after %d credits: %v", credited, err)
			return
		}

		cm.logger.Printf("✅ Commission maturation completed: %d commissions credited", credited)
	})
	if err != nil {
		return err
	}

	cm.logger.Println("✅ Cron jobs configured successfully")
	cm.logger.Printf("  - Schedule %q: mature pending commissions", cm.schedule)

	return nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Println("🚀 Starting cron scheduler...")
	cm.cron.Start()
}

// Stop stops the cron scheduler
func (cm *CronManager) Stop() {
	cm.logger.Println("🛑 Stopping cron scheduler...")
	cm.cron.Stop()
}
