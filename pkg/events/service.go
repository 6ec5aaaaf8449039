package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qutab/affiliate-ledger/pkg/domain"
	"github.com/qutab/affiliate-ledger/pkg/models"
)

// Event types emitted by the domain services
const (
	EventCreditApplied        = "credit.applied"
	EventPayoutSettled        = "payout.settled"
	EventPayoutRejected       = "payout.rejected"
	EventVerificationResolved = "verification.resolved"
)

const maxDeliveryRetries = 3

// Service delivers signed domain events to registered webhook subscribers.
// Delivery is asynchronous and best-effort: the emitting command has already
// committed, so failures are logged and counted, never propagated.
type Service struct {
	db         *gorm.DB
	httpClient *http.Client
}

// NewService creates a new events service
func NewService(db *gorm.DB, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		db: db,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Payload is the wire format delivered to subscribers
type Payload struct {
	Event     string                 `json:"event"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// Subscribe registers a webhook for the given events and returns the
// subscription together with its signing secret (shown only once).
func (s *Service) Subscribe(ctx context.Context, url string, eventNames []string, description string) (*models.WebhookSubscription, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, domain.NewValidationError("webhook url is required")
	}
	if len(eventNames) == 0 {
		return nil, domain.NewValidationError("at least one event is required")
	}
	for _, e := range eventNames {
		if !knownEvent(e) {
			return nil, domain.NewValidationError(fmt.Sprintf("unknown event: %s", e))
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to generate secret: %w", err))
	}

	sub := &models.WebhookSubscription{
		URL:         url,
		Secret:      secret,
		Events:      strings.Join(eventNames, ","),
		Description: description,
		Active:      true,
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, domain.NewInternalError(fmt.Errorf("failed to create webhook subscription: %w", err))
	}

	return sub, nil
}

// Unsubscribe deactivates a webhook subscription
func (s *Service) Unsubscribe(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).
		Model(&models.WebhookSubscription{}).
		Where("id = ?", id).
		Update("active", false)
	if result.Error != nil {
		return domain.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("webhook subscription")
	}
	return nil
}

// List returns all webhook subscriptions, newest first
func (s *Service) List(ctx context.Context) ([]models.WebhookSubscription, error) {
	var subs []models.WebhookSubscription
	err := s.db.WithContext(ctx).Order("created_at desc").Find(&subs).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return subs, nil
}

// Publish fans the event out to every active subscription that covers it.
// Each delivery runs in its own goroutine.
func (s *Service) Publish(ctx context.Context, event string, data map[string]interface{}) {
	var subs []models.WebhookSubscription
	err := s.db.WithContext(ctx).Where("active = ?", true).Find(&subs).Error
	if err != nil {
		log.Printf("⚠️  Failed to query webhook subscriptions for event %s: %v", event, err)
		return
	}

	for i := range subs {
		sub := subs[i]
		if sub.SubscribesTo(event) {
			go s.deliver(sub, event, data)
		}
	}
}

// deliver posts the signed payload with exponential backoff retries
func (s *Service) deliver(sub models.WebhookSubscription, event string, data map[string]interface{}) {
	ctx := context.Background()

	payload := Payload{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("⚠️  Failed to marshal webhook payload: %v", err)
		s.recordFailure(ctx, sub.ID)
		return
	}

	signature := Sign(body, sub.Secret)

	for attempt := 0; attempt <= maxDeliveryRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			time.Sleep(backoff)
		}

		req, err := http.NewRequest(http.MethodPost, sub.URL, bytes.NewReader(body))
		if err != nil {
			log.Printf("⚠️  Failed to create webhook request: %v", err)
			continue
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Webhook-Signature", signature)
		req.Header.Set("X-Webhook-Event", event)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			log.Printf("⚠️  Webhook delivery failed (attempt %d/%d): %v", attempt+1, maxDeliveryRetries+1, err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			log.Printf("✅ Webhook delivered: %s (event: %s)", sub.URL, event)
			s.recordSuccess(ctx, sub.ID)
			resp.Body.Close()
			return
		}

		log.Printf("⚠️  Webhook returned status %d (attempt %d/%d)", resp.StatusCode, attempt+1, maxDeliveryRetries+1)
		resp.Body.Close()
	}

	log.Printf("❌ Webhook delivery failed after %d attempts: %s (event: %s)", maxDeliveryRetries+1, sub.URL, event)
	s.recordFailure(ctx, sub.ID)
}

func (s *Service) recordSuccess(ctx context.Context, id uint) {
	err := s.db.WithContext(ctx).
		Model(&models.WebhookSubscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"success_count":     gorm.Expr("success_count + 1"),
			"last_triggered_at": time.Now(),
		}).Error
	if err != nil {
		log.Printf("⚠️  Failed to update webhook success count: %v", err)
	}
}

func (s *Service) recordFailure(ctx context.Context, id uint) {
	err := s.db.WithContext(ctx).
		Model(&models.WebhookSubscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"failure_count":     gorm.Expr("failure_count + 1"),
			"last_triggered_at": time.Now(),
		}).Error
	if err != nil {
		log.Printf("⚠️  Failed to update webhook failure count: %v", err)
	}
}

// generateSecret generates a random signing secret
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Sign generates the HMAC-SHA256 signature for a webhook payload
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies the HMAC signature of a webhook payload
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func knownEvent(event string) bool {
	switch event {
	case EventCreditApplied, EventPayoutSettled, EventPayoutRejected, EventVerificationResolved:
		return true
	}
	return false
}
