// Package notify defines the pluggable notification-delivery abstraction.
//
// The reminder engine composes a message and hands it to a Notifier together
// with a dedupe tag and an auto-close duration; everything about actual
// delivery (channel, retries, rendering) lives behind this interface.
package notify

import (
	"context"
	"time"

	"github.com/timegrid/timegrid/internal/models"
)

// Notification is a composed reminder ready for delivery.
type Notification struct {
	Message models.ReminderMessage `json:"message"`
	// DedupeTag identifies the logical notification so redelivery of the
	// same evaluation can be suppressed.
	DedupeTag string `json:"dedupe_tag"`
	// AutoClose is how long the notification should stay visible before the
	// client dismisses it on its own. Zero means no auto-close.
	AutoClose time.Duration `json:"auto_close"`
}

// Notifier delivers composed notifications to a user.
type Notifier interface {
	// Send delivers the notification to the given user.
	Send(ctx context.Context, userID string, n Notification) error
}
