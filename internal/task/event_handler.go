package task

import (
	"context"
	"fmt"

	"github.com/phrazzld/chapterq/internal/events"
)

// HandleEvent implements events.EventHandler. Cancel requests are turned into
// CancelSignal calls; every other event type is ignored.
func (p *QueueProcessor) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.EventTypeDownloadCancelRequested {
		return nil
	}

	chapter, err := event.Chapter()
	if err != nil {
		p.logger.Error("invalid cancel request",
			"error", err,
			"event_id", event.ID)
		return fmt.Errorf("invalid cancel request %s: %w", event.ID, err)
	}

	p.CancelSignal(chapter)
	return nil
}
