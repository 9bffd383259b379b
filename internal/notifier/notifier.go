// Package notifier shows reminder notifications, either through the background agent or
// directly from the foreground process.
package notifier

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gen2brain/beeep"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/logger"
	"github.com/julianstephens/affirm/internal/models"
)

// Display renders a notification.
type Display interface {
	Show(n models.Notification) error
}

// DesktopDisplay uses the platform notification service.
type DesktopDisplay struct{}

func (DesktopDisplay) Show(n models.Notification) error {
	if err := beeep.Notify(n.Title, n.Body, ""); err != nil {
		return fmt.Errorf("desktop notification failed: %w", err)
	}
	return nil
}

// WriterDisplay prints notifications instead of showing them.
type WriterDisplay struct {
	W io.Writer
}

func (d WriterDisplay) Show(n models.Notification) error {
	_, err := fmt.Fprintf(d.W, "[%s] %s: %s\n", n.Tag, n.Title, n.Body)
	return err
}

// BodyFunc supplies the body text at display time. An empty result means the default body.
type BodyFunc func() string

// Tag identifies a notification so repeats of the same title replace each other.
func Tag(title string) string {
	return constants.NotificationTagPrefix + title
}

// Build assembles a notification for title, falling back to the default body.
func Build(title string, body BodyFunc) models.Notification {
	text := ""
	if body != nil {
		text = strings.TrimSpace(body())
	}
	if text == "" {
		text = constants.DefaultNotificationBody
	}
	return models.Notification{Title: title, Body: text, Tag: Tag(title)}
}

// Foreground displays notifications synchronously from the calling process.
type Foreground struct {
	display Display
	body    BodyFunc
}

func NewForeground(display Display, body BodyFunc) *Foreground {
	return &Foreground{display: display, body: body}
}

func (f *Foreground) Notify(ctx context.Context, title string) error {
	return f.display.Show(Build(title, f.body))
}

// Agent is the background notification capability.
type Agent interface {
	Available() bool
	Notify(ctx context.Context, title string) error
}

// Delegating hands notifications to the agent when one is running and otherwise shows them itself.
type Delegating struct {
	agent    Agent
	fallback *Foreground
}

func NewDelegating(agent Agent, fallback *Foreground) *Delegating {
	return &Delegating{agent: agent, fallback: fallback}
}

func (d *Delegating) Notify(ctx context.Context, title string) error {
	if d.agent != nil && d.agent.Available() {
		err := d.agent.Notify(ctx, title)
		if err == nil {
			return nil
		}
		logger.Warn("Agent notification failed, showing directly", "error", err)
	}
	return d.fallback.Notify(ctx, title)
}
