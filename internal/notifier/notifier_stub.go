//go:build !linux && !windows
// +build !linux,!windows

package notifier

import (
	"context"

	"go.uber.org/zap"
)

// StubNotifier only logs notifications on unsupported platforms (macOS, BSD, etc.)
type StubNotifier struct {
	logger *zap.Logger
}

// NewNotifier creates a log-only notifier for unsupported platforms
func NewNotifier(logger *zap.Logger) *StubNotifier {
	logger.Warn("Desktop notifications are not yet implemented for this platform")
	return &StubNotifier{logger: logger}
}

// Notify logs the message
func (n *StubNotifier) Notify(ctx context.Context, title, message string) error {
	n.logger.Warn("User notification", zap.String("title", title), zap.String("message", message))
	return nil
}
