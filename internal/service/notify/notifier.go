package notify

import (
	"log/slog"

	"github.com/Taichi-iskw/yt-skip/internal/model"
)

// Notifier fans messages out to observers found in a Hub
type Notifier struct {
	hub    *Hub
	logger *slog.Logger
}

// NewNotifier creates a notifier over hub
func NewNotifier(hub *Hub, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		hub:    hub,
		logger: logger.With("component", "notifier"),
	}
}

// Notify delivers msg to one observer. Unknown or unreachable observers are
// logged and skipped; the result only reports whether delivery succeeded.
func (n *Notifier) Notify(observerID string, msg model.Message) bool {
	observer, ok := n.hub.Lookup(observerID)
	if !ok {
		n.logger.Debug("observer not attached, dropping message",
			"observer_id", observerID, "action", msg.Action, "video_id", msg.VideoID)
		return false
	}

	if err := observer.Deliver(msg); err != nil {
		n.logger.Debug("observer unreachable, dropping message",
			"observer_id", observerID, "action", msg.Action, "video_id", msg.VideoID, "error", err)
		return false
	}
	return true
}

// NotifyAll delivers msg once to each id in ids and returns the set of ids attempted
func (n *Notifier) NotifyAll(ids []string, msg model.Message) map[string]struct{} {
	attempted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, done := attempted[id]; done {
			continue
		}
		attempted[id] = struct{}{}
		n.Notify(id, msg)
	}
	return attempted
}

// Broadcast delivers msg to every attached observer not listed in exclude
// and returns how many deliveries succeeded.
func (n *Notifier) Broadcast(msg model.Message, exclude map[string]struct{}) int {
	delivered := 0
	for _, observer := range n.hub.All() {
		if _, skip := exclude[observer.ID()]; skip {
			continue
		}
		if err := observer.Deliver(msg); err != nil {
			n.logger.Debug("broadcast skipped unreachable observer",
				"observer_id", observer.ID(), "action", msg.Action, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// SettingsChanged broadcasts the new preferences to every attached observer.
// It has the signature settings.Service.Watch expects.
func (n *Notifier) SettingsChanged(s model.Settings) {
	delivered := n.Broadcast(model.NewSettingsChanged(s), nil)
	n.logger.Debug("settings change broadcast", "delivered", delivered)
}
