//go:build windows
// +build windows

package notifier

import (
	"context"
	"fmt"
	"syscall"

	"github.com/lxn/win"
	"go.uber.org/zap"
)

// WindowsNotifier shows error dialogs with the native message box
type WindowsNotifier struct {
	logger *zap.Logger
}

// NewNotifier creates the platform-specific notifier (Windows implementation)
func NewNotifier(logger *zap.Logger) *WindowsNotifier {
	logger.Info("Windows message box notifier initialized")
	return &WindowsNotifier{logger: logger}
}

// Notify shows title and message in a blocking message box
func (n *WindowsNotifier) Notify(ctx context.Context, title, message string) error {
	n.logger.Warn("User notification", zap.String("title", title), zap.String("message", message))

	text, err := syscall.UTF16PtrFromString(message)
	if err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	caption, err := syscall.UTF16PtrFromString(title)
	if err != nil {
		return fmt.Errorf("invalid title: %w", err)
	}

	if win.MessageBox(0, text, caption, win.MB_OK|win.MB_ICONERROR) == 0 {
		return fmt.Errorf("message box failed: %w", syscall.GetLastError())
	}
	return nil
}
