// Package notify delivers transient, human-readable notices about failed
// writes so an admin can tell what went wrong without reading logs.
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/phillip/parenting-hub-go/apperr"
)

type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Notification is a single user-facing notice.
type Notification struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Failure builds the notice shown when op failed with err.
func Failure(op string, err error) Notification {
	return Notification{
		Level:   LevelError,
		Title:   op + " failed",
		Message: apperr.UserMessage(err),
	}
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification)

func (f Func) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Nop drops every notification.
var Nop Notifier = Func(func(context.Context, Notification) {})

// Multi fans a notification out to every notifier.
func Multi(ns ...Notifier) Notifier {
	return Func(func(ctx context.Context, n Notification) {
		for _, x := range ns {
			if x != nil {
				x.Notify(ctx, n)
			}
		}
	})
}

// Logger writes notifications through slog.
type Logger struct {
	log *slog.Logger
}

func NewLogger(l *slog.Logger) *Logger { return &Logger{log: l} }

func (l *Logger) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	switch n.Level {
	case LevelError:
		level = slog.LevelError
	case LevelWarning:
		level = slog.LevelWarn
	}
	l.log.Log(ctx, level, "notification", slog.String("title", n.Title), slog.String("message", n.Message))
}

type mailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Mailer emails error notifications to the configured recipients. Sending is
// asynchronous so a slow mail API never delays the failing request.
type Mailer struct {
	sender     mailSender
	recipients []string
	log        *slog.Logger
}

func NewMailer(sender mailSender, recipients []string, logger *slog.Logger) *Mailer {
	return &Mailer{sender: sender, recipients: recipients, log: logger}
}

func (m *Mailer) Notify(ctx context.Context, n Notification) {
	if n.Level != LevelError || len(m.recipients) == 0 {
		return
	}
	subject := fmt.Sprintf("[parenting-hub] %s", n.Title)
	body := fmt.Sprintf("<p><strong>%s</strong></p><p>%s</p>", html.EscapeString(n.Title), html.EscapeString(n.Message))
	detached := context.WithoutCancel(ctx)
	for _, to := range m.recipients {
		go func(to string) {
			if err := m.sender.SendEmail(detached, to, subject, body); err != nil {
				m.log.WarnContext(detached, "notification email failed", slog.String("to", to), slog.String("error", err.Error()))
			}
		}(to)
	}
}
