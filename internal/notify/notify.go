package notify

import (
	"context"
	"log"

	"leadmatch/internal/model"
)

// LogNotifier writes agent notifications to the log. Used when no chat
// transport is configured.
type LogNotifier struct{}

// NotifyAgent logs the message
func (LogNotifier) NotifyAgent(_ context.Context, agent *model.Agent, text string) error {
	log.Printf("📨 [agent %s @%s]\n%s", agent.ID, agent.Handle, text)
	return nil
}
