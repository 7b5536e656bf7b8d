package host

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/phrazzld/chapterq/internal/task"
)

// DefaultMessageLimit is the number of notifications an Activity keeps.
const DefaultMessageLimit = 20

// Activity records what the processor reports to its host. It implements
// task.ProgressSink, task.Notifier and task.Host.
type Activity struct {
	logger *slog.Logger
	limit  int

	mu       sync.Mutex
	text     string
	complete bool
	messages []string
	stops    int
}

var (
	_ task.ProgressSink = (*Activity)(nil)
	_ task.Notifier     = (*Activity)(nil)
	_ task.Host         = (*Activity)(nil)
)

// NewActivity creates an Activity keeping the last limit notifications.
// A non-positive limit selects DefaultMessageLimit.
func NewActivity(limit int, logger *slog.Logger) *Activity {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	return &Activity{
		logger: logger.With("component", "host_activity"),
		limit:  limit,
	}
}

// Update replaces the current progress text.
func (a *Activity) Update(text string, isComplete bool) {
	a.mu.Lock()
	a.text = text
	a.complete = isComplete
	a.mu.Unlock()

	a.logger.Debug("progress", "text", text, "complete", isComplete)
}

// Notify appends text to the notification history, evicting the oldest
// entry once the limit is reached.
func (a *Activity) Notify(text string) {
	a.mu.Lock()
	if len(a.messages) == a.limit {
		a.messages = slices.Delete(a.messages, 0, 1)
	}
	a.messages = append(a.messages, text)
	a.mu.Unlock()

	a.logger.Info("notification", "text", text)
}

// Stop is called when a drain session has emptied the queue.
func (a *Activity) Stop() {
	a.mu.Lock()
	a.stops++
	n := a.stops
	a.mu.Unlock()

	a.logger.Info("drain session finished", "sessions_finished", n)
}

// LastProgress returns the most recent progress text.
func (a *Activity) LastProgress() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text, a.complete
}

// Messages returns the notification history, oldest first.
func (a *Activity) Messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.messages)
}

// Stops returns how many drain sessions have finished.
func (a *Activity) Stops() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stops
}
