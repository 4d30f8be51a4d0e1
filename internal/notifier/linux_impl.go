//go:build linux
// +build linux

package notifier

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// DialogCommand is a detected command able to show a message to the user
type DialogCommand struct {
	Name   string
	Binary string
	Args   []string // %t is replaced with the title, %m with the message
}

var (
	// Ordered list of dialog commands to try (highest priority first)
	dialogCommands = []DialogCommand{
		{Name: "notify-send", Binary: "notify-send", Args: []string{"--app-name=reelplay", "--urgency=critical", "%t", "%m"}},
		{Name: "kdialog", Binary: "kdialog", Args: []string{"--title", "%t", "--error", "%m"}},
		{Name: "zenity", Binary: "zenity", Args: []string{"--error", "--title=%t", "--text=%m"}},
	}

	lookPath = exec.LookPath
)

// LinuxNotifier shows error dialogs through a desktop notification tool
type LinuxNotifier struct {
	logger  *zap.Logger
	command DialogCommand
}

// NewNotifier creates the platform-specific notifier (Linux implementation).
// Without any supported tool the notifier only logs.
func NewNotifier(logger *zap.Logger) *LinuxNotifier {
	cmd := detectCommand(logger)
	if cmd.Binary == "" {
		logger.Warn("No notification command found, user messages will only be logged")
	} else {
		logger.Info("Notification command detected",
			zap.String("name", cmd.Name),
			zap.String("binary", cmd.Binary))
	}
	return &LinuxNotifier{logger: logger, command: cmd}
}

// detectCommand prefers the dialog tool native to the running desktop
func detectCommand(logger *zap.Logger) DialogCommand {
	desktop := strings.ToLower(os.Getenv("XDG_CURRENT_DESKTOP"))
	logger.Debug("Detecting notification command", zap.String("desktop", desktop))

	if strings.Contains(desktop, "kde") {
		for _, cmd := range dialogCommands {
			if cmd.Name == "kdialog" && commandExists(cmd.Binary) {
				return cmd
			}
		}
	}

	for _, cmd := range dialogCommands {
		if commandExists(cmd.Binary) {
			return cmd
		}
	}
	return DialogCommand{}
}

func commandExists(binary string) bool {
	_, err := lookPath(binary)
	return err == nil
}

// Notify shows title and message to the user
func (n *LinuxNotifier) Notify(ctx context.Context, title, message string) error {
	n.logger.Warn("User notification", zap.String("title", title), zap.String("message", message))
	if n.command.Binary == "" {
		return nil
	}

	args := expandArgs(n.command.Args, title, message)
	cmd := exec.CommandContext(ctx, n.command.Binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to notify with %s: %w (output: %s)",
			n.command.Name, err, string(output))
	}
	return nil
}

func expandArgs(template []string, title, message string) []string {
	args := make([]string, len(template))
	r := strings.NewReplacer("%t", title, "%m", message)
	for i, arg := range template {
		args[i] = r.Replace(arg)
	}
	return args
}
