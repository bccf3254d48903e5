package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", "--app-name=smdl", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
		$text = $template.GetElementsByTagName("text")
		$text.Item(0).AppendChild($template.CreateTextNode('%s')) | Out-Null
		$text.Item(1).AppendChild($template.CreateTextNode('%s')) | Out-Null
		$toast = [Windows.UI.Notifications.ToastNotification]::new($template)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("smdl").Show($toast)
	`, psQuote(title), psQuote(message))

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

func psQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// PlatformSender returns the desktop sender for this OS, or nil
func PlatformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	default:
		return nil
	}
}

// Notifier announces the end of a run. Terminal notifications ring the
// bell and print a line; desktop ones go through a NotificationSender.
type Notifier struct {
	out    io.Writer
	sender NotificationSender
}

// NewNotifier creates a notifier for kind "terminal", "desktop" or "none"
func NewNotifier(kind string, out io.Writer) *Notifier {
	switch strings.ToLower(kind) {
	case "desktop":
		return &Notifier{sender: PlatformSender()}
	case "none":
		return &Notifier{}
	default:
		return &Notifier{out: out}
	}
}

// NewNotifierWithSender creates a desktop notifier with a custom sender
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// Notify delivers title and message. Delivery failures are returned but
// are never fatal to a run.
func (n *Notifier) Notify(title, message string) error {
	if n.out != nil {
		fmt.Fprintf(n.out, "\a%s: %s\n", Cyan(title), message)
	}
	if n.sender != nil {
		return n.sender.Send(title, message)
	}
	return nil
}

// NotifyingObserver forwards events and sends a notification when the run
// finishes, according to the onComplete and onError switches.
type NotifyingObserver struct {
	Observer
	notifier   *Notifier
	onComplete bool
	onError    bool
	errHandler func(error)
}

// WithNotifications wraps obs so RunFinished also notifies
func WithNotifications(obs Observer, n *Notifier, onComplete, onError bool, errHandler func(error)) *NotifyingObserver {
	return &NotifyingObserver{
		Observer:   obs,
		notifier:   n,
		onComplete: onComplete,
		onError:    onError,
		errHandler: errHandler,
	}
}

func (o *NotifyingObserver) RunFinished(counts Counts, elapsed time.Duration, err error) {
	o.Observer.RunFinished(counts, elapsed, err)

	var title, message string
	switch {
	case err != nil && o.onError:
		title, message = "smdl failed", err.Error()
	case err == nil && counts.Failed > 0 && o.onError:
		title, message = "smdl finished with errors", counts.String()
	case err == nil && o.onComplete:
		title, message = "smdl finished", counts.String()
	default:
		return
	}

	if sendErr := o.notifier.Notify(title, message); sendErr != nil && o.errHandler != nil {
		o.errHandler(sendErr)
	}
}
