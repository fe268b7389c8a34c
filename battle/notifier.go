package battle

type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastInfo    ToastLevel = "info"
	ToastError   ToastLevel = "error"
)

// Toast is a non-blocking user notification.
type Toast struct {
	Level   ToastLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message,omitempty"`
}

type Notifier interface {
	Notify(userID string, toast Toast)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(userID string, toast Toast)

func (f NotifierFunc) Notify(userID string, toast Toast) { f(userID, toast) }

func ErrorToast(title string, err error) Toast {
	return Toast{Level: ToastError, Title: title, Message: err.Error()}
}
