package dialog

import (
	"sync"

	"github.com/leandrodaf/midiports/sdk/contracts"
)

// LogNotifier reports notifications through the logger. It is the default
// when no notifier is configured.
func LogNotifier(logger contracts.Logger) contracts.Notifier {
	return contracts.NotifierFunc(func(n contracts.Notification) {
		fields := []contracts.Field{logger.Field().String("notification", n.Message)}
		if n.Err != nil {
			fields = append(fields, logger.Field().Error("error", n.Err))
		}
		switch n.Level {
		case contracts.ErrorLevel, contracts.FatalLevel:
			logger.Error("user notification", fields...)
		case contracts.WarnLevel:
			logger.Warn("user notification", fields...)
		default:
			logger.Info("user notification", fields...)
		}
	})
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu  sync.Mutex
	all []contracts.Notification
}

// Notify appends n.
func (r *Recorder) Notify(n contracts.Notification) {
	r.mu.Lock()
	r.all = append(r.all, n)
	r.mu.Unlock()
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []contracts.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]contracts.Notification, len(r.all))
	copy(out, r.all)
	return out
}

// Last returns the most recent notification.
func (r *Recorder) Last() (contracts.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.all) == 0 {
		return contracts.Notification{}, false
	}
	return r.all[len(r.all)-1], true
}
