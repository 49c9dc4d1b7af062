package contracts

// Notification is a user facing message raised by a dialog operation.
type Notification struct {
	Level   LogLevel
	Message string
	Err     error
}

// Notifier surfaces notifications to the user. Implementations decide how.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) {
	f(n)
}
