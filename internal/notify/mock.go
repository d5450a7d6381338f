package notify

import (
	"context"
	"sync"
)

// SentNotification records one delivery made through the MockNotifier.
type SentNotification struct {
	UserID       string
	Notification Notification
}

// MockNotifier records deliveries for tests.
type MockNotifier struct {
	mu   sync.Mutex
	Sent []SentNotification
	// Err, when set, is returned from every Send call.
	Err error
}

// NewMockNotifier creates an empty MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Send(ctx context.Context, userID string, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentNotification{UserID: userID, Notification: n})
	return nil
}

// SentCount returns the number of recorded deliveries.
func (m *MockNotifier) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
