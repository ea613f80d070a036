// Package notify delivers alert messages over email, a chat webhook and
// Telegram. Each channel is optional and independent of the others.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/models"
)

// Dispatcher sends one alert over one channel.
type Dispatcher interface {
	// Name identifies the channel in events and logs.
	Name() string
	// Enabled is false when the channel is not configured; Dispatch is then
	// never called.
	Enabled() bool
	// Dispatch sends the alert and returns the provider's message id, if any.
	Dispatch(ctx context.Context, alert models.AlertEvent) (string, error)
}

const sentLayout = "2006-01-02 15:04:05"

// Subject renders the email subject line.
func Subject(a models.AlertEvent) string {
	return fmt.Sprintf("Alert: %s (%s) %s %s%%", a.Name, a.Symbol, a.Direction, a.AbsPercent())
}

// ChatMessage renders the plain chat message used by the webhook.
func ChatMessage(a models.AlertEvent, loc *time.Location) string {
	return fmt.Sprintf("**%s (%s)** %s %s %s%%\n🕒 Sent: %s (%s)",
		a.Name, a.Symbol, a.Direction.Emoji(), a.Direction, a.AbsPercent(),
		a.Timestamp.In(loc).Format(sentLayout), loc.String())
}

func locationOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
