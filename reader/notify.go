package reader

import (
	"go.uber.org/zap"

	"rdmark/common"
)

// Notification is user facing message.
type Notification struct {
	Type  common.NotificationType `json:"type"`
	Title string                  `json:"title"`
	Msg   string                  `json:"msg"`
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier reports notifications to the log, it is used when nothing
// better is available.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) Notify(note Notification) {
	fields := []zap.Field{zap.String("title", note.Title), zap.String("msg", note.Msg)}
	switch note.Type {
	case common.NotificationTypeErr:
		n.log.Error("Notification", fields...)
	case common.NotificationTypeWarn:
		n.log.Warn("Notification", fields...)
	default:
		n.log.Info("Notification", fields...)
	}
}
