package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Opts holds configuration options for the Twilio SMS notifier.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio SMS notifier.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// Compile-time check that TwilioNotifier implements Notifier.
var _ Notifier = (*TwilioNotifier)(nil)

// TwilioNotifier delivers reminders as SMS messages via the Twilio REST API.
// The recipient user ID is expected to be the user's phone number in E.164
// format. SMS carries no auto-close concept, so AutoClose is ignored here;
// dedupe is enforced upstream by the engine against the store.
type TwilioNotifier struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewTwilioNotifier creates a Twilio-backed notifier. Options not provided
// fall back to TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER.
func NewTwilioNotifier(opts ...Option) (*TwilioNotifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio notifier config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioNotifier{client: client, fromNumber: cfg.FromNumber}, nil
}

// Send delivers the notification as a single SMS.
func (t *TwilioNotifier) Send(ctx context.Context, userID string, n Notification) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(userID)
	params.SetFrom(t.fromNumber)
	params.SetBody(n.Message.Title + "\n" + n.Message.Body)

	_, err := t.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio Send failed", "to", userID, "tag", n.DedupeTag, "error", err)
		return fmt.Errorf("failed to send notification to %s: %w", userID, err)
	}

	slog.Debug("Twilio notification sent", "to", userID, "tag", n.DedupeTag)
	return nil
}
