package models

import (
	"strings"
	"time"
)

// WebhookSubscription registers an external collaborator (e.g. the
// notification service) to receive signed domain events.
type WebhookSubscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	URL         string `gorm:"size:500;not null" json:"url"`
	Secret      string `gorm:"size:64;not null" json:"-"` // HMAC signing secret
	Events      string `gorm:"size:500;not null" json:"events"` // comma-separated event names
	Description string `gorm:"size:255" json:"description,omitempty"`
	Active      bool   `gorm:"not null;default:true;index" json:"active"`

	SuccessCount    int        `gorm:"not null;default:0" json:"success_count"`
	FailureCount    int        `gorm:"not null;default:0" json:"failure_count"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
}

// SubscribesTo reports whether the subscription covers the given event
func (w *WebhookSubscription) SubscribesTo(event string) bool {
	for _, e := range strings.Split(w.Events, ",") {
		if strings.TrimSpace(e) == event {
			return true
		}
	}
	return false
}

// TableName sets the table name for WebhookSubscription
func (WebhookSubscription) TableName() string {
	return "webhook_subscriptions"
}
