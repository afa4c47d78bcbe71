package services

// Notifier pushes server-side notifications to a viewer's page.
type Notifier interface {
	Notify(event string, data interface{}) error
}

const (
	NotifyWalletState = "wallet_state"
	NotifySpinResult  = "spin_result"
	NotifyReload      = "reload"
)

type nopNotifier struct{}

func (nopNotifier) Notify(string, interface{}) error { return nil }
