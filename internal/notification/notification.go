package notification

import (
	"context"
	"log/slog"
)

const (
	// KindOTP carries a one-time verification code.
	KindOTP = "otp"
	// KindUnlockReceipt confirms a successful contact unlock to the buyer.
	KindUnlockReceipt = "unlock_receipt"
	// KindVerificationDecision informs a seller of an admin review outcome.
	KindVerificationDecision = "verification_decision"
)

const (
	// ChannelEmail delivers via the external mail provider.
	ChannelEmail = "email"
	// ChannelWhatsApp delivers via the external WhatsApp gateway.
	ChannelWhatsApp = "whatsapp"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Channel     string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems. Delivery is
// synchronous: an OTP request must fail when its notification cannot be sent.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"channel", message.Channel,
		"destination", message.Destination,
		"body", message.Body,
	)
	return nil
}
