package out

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"

	timerout "timeblock/internal/modules/timer/port/out"
)

type DesktopNotifier struct {
	lookPath func(string) (string, error)
	command  func(ctx context.Context, name string, args ...string) *exec.Cmd
	goos     string
}

func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{lookPath: exec.LookPath, command: exec.CommandContext, goos: runtime.GOOS}
}

// RequestPermission reports granted when the notification tool exists.
// There is no prompt to answer on a desktop, so the answer never stays default.
func (n *DesktopNotifier) RequestPermission(_ context.Context) timerout.Permission {
	if _, err := n.lookPath(n.tool()); err != nil {
		return timerout.PermissionDenied
	}
	return timerout.PermissionGranted
}

func (n *DesktopNotifier) Notify(ctx context.Context, title, body string) error {
	var cmd *exec.Cmd
	switch n.goos {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s", strconv.Quote(body), strconv.Quote(title))
		cmd = n.command(ctx, "osascript", "-e", script)
	case "linux", "freebsd", "openbsd":
		cmd = n.command(ctx, "notify-send", "--app-name=timeblock", title, body)
	default:
		return fmt.Errorf("desktop notifications are not supported on %s", n.goos)
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("send desktop notification: %w", err)
	}
	return nil
}

func (n *DesktopNotifier) tool() string {
	if n.goos == "darwin" {
		return "osascript"
	}
	return "notify-send"
}

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) RequestPermission(context.Context) timerout.Permission {
	return timerout.PermissionGranted
}

func (n *LogNotifier) Notify(_ context.Context, title, body string) error {
	n.logger.Info("notification", slog.String("title", title), slog.String("body", body))
	return nil
}

// DisabledNotifier denies permission, so nothing is ever sent.
type DisabledNotifier struct{}

func (DisabledNotifier) RequestPermission(context.Context) timerout.Permission {
	return timerout.PermissionDenied
}

func (DisabledNotifier) Notify(context.Context, string, string) error {
	return nil
}

// NewNotifier picks a sink by config name. "auto" prefers the desktop tool
// and falls back to the log.
func NewNotifier(kind string, logger *slog.Logger) timerout.NotificationSink {
	switch kind {
	case "desktop":
		return NewDesktopNotifier()
	case "log":
		return NewLogNotifier(logger)
	case "none":
		return DisabledNotifier{}
	default:
		desktop := NewDesktopNotifier()
		if desktop.RequestPermission(context.Background()) == timerout.PermissionGranted {
			return desktop
		}
		return NewLogNotifier(logger)
	}
}
